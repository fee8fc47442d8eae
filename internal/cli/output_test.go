package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/hyperjump/otoshimono/internal/matching"
	"github.com/hyperjump/otoshimono/internal/models"
)

func testReport(dryRun bool) *MatchReport {
	return &MatchReport{
		Item:   &models.Item{ID: "lost-1", Type: models.ItemTypeLost, Title: "Black Backpack"},
		DryRun: dryRun,
		Matches: []matching.MatchCandidate{
			{
				Item:  &models.Item{ID: "found-1", Type: models.ItemTypeFound, Title: "Black Bag", Location: "Central Library"},
				Score: 76,
				Factors: models.Factors{
					"category": {Score: 30, Detail: "Bags"},
					"keywords": {Score: 11.25, Detail: "black"},
					"distance": {},
				},
			},
		},
	}
}

func TestWriteMatches_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteMatches(&buf, testReport(true), OutputJSON); err != nil {
		t.Fatal(err)
	}
	var decoded MatchReport
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if !decoded.DryRun || len(decoded.Matches) != 1 || decoded.Matches[0].Score != 76 {
		t.Errorf("decoded = %+v", decoded)
	}
	if decoded.Matches[0].Factors["keywords"].Detail != "black" {
		t.Errorf("factors = %+v", decoded.Matches[0].Factors)
	}
}

func TestWriteMatches_Text(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteMatches(&buf, testReport(false), OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"Lost item lost-1: Black Backpack", "1 matches (notifications sent)", "Score: 76", "Location: Central Library", "black"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "category") > strings.Index(out, "keywords") {
		t.Error("factors should be listed by descending contribution")
	}
}

func TestWriteMatches_DryRunText(t *testing.T) {
	var buf bytes.Buffer
	report := testReport(true)
	report.Matches = nil
	if err := WriteMatches(&buf, report, OutputText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "0 matches (dry run, nothing sent)") {
		t.Errorf("got %q", buf.String())
	}
}

func TestParseOutputFormat(t *testing.T) {
	for _, s := range []string{"text", "json"} {
		if _, err := ParseOutputFormat(s); err != nil {
			t.Errorf("ParseOutputFormat(%q) error: %v", s, err)
		}
	}
	if _, err := ParseOutputFormat("xml"); err == nil {
		t.Error("expected error for xml")
	}
}
