package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// Subject is the on-chain entity analyzed by contract-intel jobs.
type Subject struct {
	Address string `json:"address"`
	Network string `json:"network"`
}

// Key returns the snapshot key for the subject. Addresses are compared
// case-insensitively.
func (s Subject) Key() string {
	return strings.ToLower(strings.TrimSpace(s.Network)) + ":" + strings.ToLower(strings.TrimSpace(s.Address))
}

// Category is a class of data resolved from external providers.
type Category string

// Data categories.
const (
	CategoryHolders Category = "holders"
	CategoryRisk    Category = "risk"
	CategoryProfile Category = "profile"
)

// Categories lists every category in rendering order.
var Categories = []Category{CategoryHolders, CategoryRisk, CategoryProfile}

// CategoryResult is the final record for one category.
type CategoryResult struct {
	Category Category        `json:"category"`
	Source   string          `json:"source,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
	Resolved bool            `json:"resolved"`
}

// Aggregate is the combined resolution for one subject.
type Aggregate struct {
	Subject    Subject          `json:"subject"`
	Categories []CategoryResult `json:"categories"`

	// Change detection against the previous snapshot. Not part of the hash.
	ContentHash  string `json:"-"`
	PreviousHash string `json:"-"`
	Changed      bool   `json:"-"`
}

// Category returns the result for c, or an unresolved marker.
func (a *Aggregate) Category(c Category) CategoryResult {
	for _, r := range a.Categories {
		if r.Category == c {
			return r
		}
	}
	return CategoryResult{Category: c}
}

// Snapshot is the last-known aggregate for one subject key.
type Snapshot struct {
	SubjectKey  string
	CapturedAt  time.Time
	Aggregate   json.RawMessage
	ContentHash string
}
