// Package intake imports logs of found items dropped by lost-and-found desks.
package intake

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"

	"github.com/hyperjump/otoshimono/internal/models"
)

// Defaults fill fields an intake row leaves empty.
type Defaults struct {
	CampusID string
	PostedBy string
	Type     models.ItemType
}

// Row is one item input read from an intake file. Line is 1-based: the list
// position for JSON/YAML, the sheet row for spreadsheets.
type Row struct {
	Line  int
	Input models.ItemInput
	// Err is set when a cell could not be read.
	Err error
}

// ParseFile reads the intake file at path.
func ParseFile(path string, defaults Defaults) ([]Row, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read intake file: %w", err)
	}
	return ParseBytes(content, strings.ToLower(filepath.Ext(path)), defaults)
}

// ParseBytes parses content by extension (with leading dot) and applies defaults.
func ParseBytes(content []byte, ext string, defaults Defaults) ([]Row, error) {
	var (
		rows []Row
		err  error
	)
	switch ext {
	case ".json":
		rows, err = parseJSON(content)
	case ".yaml", ".yml":
		rows, err = parseYAML(content)
	case ".xlsx":
		rows, err = parseXLSX(content)
	default:
		return nil, fmt.Errorf("unsupported intake format %q", ext)
	}
	if err != nil {
		return nil, err
	}
	for i := range rows {
		applyDefaults(&rows[i].Input, defaults)
	}
	return rows, nil
}

func applyDefaults(in *models.ItemInput, d Defaults) {
	if strings.TrimSpace(in.CampusID) == "" {
		in.CampusID = d.CampusID
	}
	if strings.TrimSpace(in.PostedBy) == "" {
		in.PostedBy = d.PostedBy
	}
	if in.Type == "" {
		in.Type = d.Type
	}
}

func listRows(inputs []models.ItemInput) []Row {
	rows := make([]Row, len(inputs))
	for i, in := range inputs {
		rows[i] = Row{Line: i + 1, Input: in}
	}
	return rows
}

func parseJSON(content []byte) ([]Row, error) {
	var inputs []models.ItemInput
	if err := json.Unmarshal(content, &inputs); err != nil {
		return nil, fmt.Errorf("parse JSON intake: %w", err)
	}
	return listRows(inputs), nil
}

func parseYAML(content []byte) ([]Row, error) {
	var inputs []models.ItemInput
	if err := yaml.Unmarshal(content, &inputs); err != nil {
		return nil, fmt.Errorf("parse YAML intake: %w", err)
	}
	return listRows(inputs), nil
}

// sheetColumns maps header names (lowercase) to the setter for that column.
var sheetColumns = map[string]func(in *models.ItemInput, v string) error{
	"id":          func(in *models.ItemInput, v string) error { in.ID = v; return nil },
	"title":       func(in *models.ItemInput, v string) error { in.Title = v; return nil },
	"description": func(in *models.ItemInput, v string) error { in.Description = v; return nil },
	"category":    func(in *models.ItemInput, v string) error { in.Category = v; return nil },
	"location":    func(in *models.ItemInput, v string) error { in.Location = v; return nil },
	"campus":      func(in *models.ItemInput, v string) error { in.CampusID = v; return nil },
	"campus_id":   func(in *models.ItemInput, v string) error { in.CampusID = v; return nil },
	"posted_by":   func(in *models.ItemInput, v string) error { in.PostedBy = v; return nil },
	"type":        func(in *models.ItemInput, v string) error { in.Type = models.ItemType(v); return nil },
	"lat":         func(in *models.ItemInput, v string) error { return setCoord(in, v, true) },
	"lng":         func(in *models.ItemInput, v string) error { return setCoord(in, v, false) },
	"tags": func(in *models.ItemInput, v string) error {
		for _, t := range strings.Split(v, ",") {
			if t = strings.TrimSpace(t); t != "" {
				in.Tags = append(in.Tags, t)
			}
		}
		return nil
	},
}

func setCoord(in *models.ItemInput, v string, lat bool) error {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("invalid coordinate %q", v)
	}
	if in.Coordinates == nil {
		in.Coordinates = &models.Coordinates{}
	}
	if lat {
		in.Coordinates.Lat = f
	} else {
		in.Coordinates.Lng = f
	}
	return nil
}

// parseXLSX reads the first sheet. Row 1 is the header; blank rows are skipped.
func parseXLSX(content []byte) ([]Row, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("open Excel: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	cells, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("get rows for sheet %q: %w", sheets[0], err)
	}
	if len(cells) == 0 {
		return nil, nil
	}

	header := make([]string, len(cells[0]))
	for i, h := range cells[0] {
		header[i] = strings.ToLower(strings.TrimSpace(h))
	}

	var rows []Row
	for r, line := range cells[1:] {
		if blankRow(line) {
			continue
		}
		row := Row{Line: r + 2}
		for c, v := range line {
			if c >= len(header) {
				break
			}
			set, ok := sheetColumns[header[c]]
			v = strings.TrimSpace(v)
			if !ok || v == "" {
				continue
			}
			if err := set(&row.Input, v); err != nil && row.Err == nil {
				row.Err = fmt.Errorf("column %s: %w", header[c], err)
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func blankRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
