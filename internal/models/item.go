// Package models defines core data structures for items, users, and notifications.
package models

import (
	"fmt"
	"strings"
	"time"
)

// ItemType distinguishes lost reports from found reports.
type ItemType string

const (
	ItemTypeLost  ItemType = "lost"
	ItemTypeFound ItemType = "found"
)

// Opposite returns the type an item of this type is matched against.
func (t ItemType) Opposite() ItemType {
	if t == ItemTypeLost {
		return ItemTypeFound
	}
	return ItemTypeLost
}

// Valid reports whether t is lost or found.
func (t ItemType) Valid() bool {
	return t == ItemTypeLost || t == ItemTypeFound
}

// Label returns the capitalized form used in notification and email text.
func (t ItemType) Label() string {
	switch t {
	case ItemTypeLost:
		return "Lost"
	case ItemTypeFound:
		return "Found"
	default:
		return "Unknown"
	}
}

// ParseItemType parses "lost" or "found" (case-insensitive).
func ParseItemType(s string) (ItemType, error) {
	t := ItemType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("invalid item type %q: must be lost or found", s)
	}
	return t, nil
}

// Status is the lifecycle state of an item. Only active items are match candidates.
type Status string

const (
	StatusActive   Status = "active"
	StatusResolved Status = "resolved"
	StatusArchived Status = "archived"
	StatusLocked   Status = "locked"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusResolved, StatusArchived, StatusLocked:
		return true
	}
	return false
}

// Categories is the fixed set of item categories.
var Categories = []string{
	"Electronics",
	"Bags",
	"Wallets",
	"Keys",
	"ID Cards",
	"Books",
	"Clothing",
	"Accessories",
	"Water Bottles",
	"Sports",
	"Other",
}

// NormalizeCategory maps s onto the canonical spelling from Categories.
// The second return value is false when s is not a known category.
func NormalizeCategory(s string) (string, bool) {
	s = strings.TrimSpace(s)
	for _, c := range Categories {
		if strings.EqualFold(c, s) {
			return c, true
		}
	}
	return s, false
}

// Coordinates is a WGS84 point.
type Coordinates struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}

// Valid reports whether the point lies within latitude/longitude bounds.
func (c *Coordinates) Valid() bool {
	if c == nil {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// Item is a lost or found report. Both variants share this shape.
type Item struct {
	ID          string       `json:"id"`
	Type        ItemType     `json:"type"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Category    string       `json:"category"`
	Location    string       `json:"location"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
	CampusID    string       `json:"campus_id"`
	PostedBy    string       `json:"posted_by"`
	Status      Status       `json:"status"`
	Tags        []string     `json:"tags,omitempty"`
	// Embedding is reserved for vector similarity and is not read by the scorer.
	Embedding []float32 `json:"embedding,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Text returns the title and description joined for keyword extraction.
func (i *Item) Text() string {
	return strings.TrimSpace(i.Title + " " + i.Description)
}

// IsActive reports whether the item can take part in matching.
func (i *Item) IsActive() bool {
	return i.Status == StatusActive
}

// ItemInput is the input for creating an item.
type ItemInput struct {
	ID          string       `json:"id,omitempty" yaml:"id,omitempty" validate:"max=64"`
	Type        ItemType     `json:"type" yaml:"type"`
	Title       string       `json:"title" yaml:"title" validate:"max=200"`
	Description string       `json:"description,omitempty" yaml:"description,omitempty" validate:"max=2000"`
	Category    string       `json:"category" yaml:"category"`
	Location    string       `json:"location" yaml:"location" validate:"max=200"`
	Coordinates *Coordinates `json:"coordinates,omitempty" yaml:"coordinates,omitempty"`
	CampusID    string       `json:"campus_id" yaml:"campus_id" validate:"max=64"`
	PostedBy    string       `json:"posted_by" yaml:"posted_by" validate:"max=64"`
	Tags        []string     `json:"tags,omitempty" yaml:"tags,omitempty" validate:"max=20,dive,max=40"`
}

// Validate checks required fields and normalizes type, category, and tags.
func (in *ItemInput) Validate() error {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return fmt.Errorf("title cannot be empty")
	}
	t, err := ParseItemType(string(in.Type))
	if err != nil {
		return err
	}
	in.Type = t
	if strings.TrimSpace(in.CampusID) == "" {
		return fmt.Errorf("campus_id cannot be empty")
	}
	if strings.TrimSpace(in.PostedBy) == "" {
		return fmt.Errorf("posted_by cannot be empty")
	}
	if in.Category == "" {
		in.Category = "Other"
	}
	cat, ok := NormalizeCategory(in.Category)
	if !ok {
		return fmt.Errorf("unknown category %q", in.Category)
	}
	in.Category = cat
	if in.Coordinates != nil && !in.Coordinates.Valid() {
		return fmt.Errorf("coordinates out of range: %+v", *in.Coordinates)
	}
	in.Location = strings.TrimSpace(in.Location)
	in.Tags = normalizeTags(in.Tags)
	return checkFields(in)
}

// ToItem builds an active item from validated input.
func (in *ItemInput) ToItem() *Item {
	return &Item{
		ID:          in.ID,
		Type:        in.Type,
		Title:       in.Title,
		Description: strings.TrimSpace(in.Description),
		Category:    in.Category,
		Location:    in.Location,
		Coordinates: in.Coordinates,
		CampusID:    strings.TrimSpace(in.CampusID),
		PostedBy:    strings.TrimSpace(in.PostedBy),
		Status:      StatusActive,
		Tags:        in.Tags,
	}
}

func normalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
