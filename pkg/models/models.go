package models

import (
	"strings"
	"time"
)

// UnclassifiedCategory is the category label given to cards nobody has classified yet
const UnclassifiedCategory = "未分类"

// listSeparator joins multi-valued phone/email fields into a single column
const listSeparator = ";"

// CandidateRecord is an unvalidated directory entry produced by an extractor
type CandidateRecord struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Website     string     `json:"website"`
	Phones      []string   `json:"phone"`
	Emails      []string   `json:"email"`
	Address     string     `json:"address"`
	Category    string     `json:"category"`
	Source      string     `json:"source"`
	Status      CardStatus `json:"status"`
}

// Card is a persisted directory row
type Card struct {
	ID             int64      `db:"id" json:"id"`
	Name           string     `db:"name" json:"name"`
	Description    *string    `db:"description" json:"description"`
	Website        *string    `db:"website" json:"website"`
	Phone          *string    `db:"tel" json:"-"`
	Email          *string    `db:"email" json:"-"`
	Address        *string    `db:"address" json:"address"`
	QRCode         *string    `db:"qr_code" json:"qrCode"`
	Category       *string    `db:"category" json:"category"`
	SearchKeywords *string    `db:"search_keywords" json:"searchKeywords"`
	Status         CardStatus `db:"status" json:"status"`
	LastUpdated    *time.Time `db:"last_updated" json:"lastUpdated"`
}

// Phones returns the stored phone column split into its individual numbers
func (c *Card) Phones() []string { return SplitList(c.Phone) }

// Emails returns the stored email column split into its individual addresses
func (c *Card) Emails() []string { return SplitList(c.Email) }

// CategoryOrDefault returns the card's category, or the unclassified label when empty
func (c *Card) CategoryOrDefault() string {
	if c.Category == nil || *c.Category == "" {
		return UnclassifiedCategory
	}
	return *c.Category
}

// Feedback is an error report filed against a card
type Feedback struct {
	ID          int64          `db:"feedback_id" json:"id"`
	CardID      *int64         `db:"card_id" json:"cardId"`
	CardName    *string        `db:"card_name" json:"cardName"`
	Content     string         `db:"content" json:"content"`
	SubmittedAt *time.Time     `db:"submitted_at" json:"submittedAt"`
	Status      FeedbackStatus `db:"status" json:"status"`
	ProcessedBy *string        `db:"processed_by" json:"processedBy"`
	ProcessedAt *time.Time     `db:"processed_at" json:"processedAt"`
	Resolution  *string        `db:"resolution" json:"resolution"`
}

// CrawlOutcome records the result of running the ingest pipeline for one URL
type CrawlOutcome struct {
	URL         string        `json:"url"`
	RunID       string        `json:"run_id"`
	Result      OutcomeResult `json:"result"`
	ErrorType   string        `json:"error_type,omitempty"` // Error category (on failure/duplicate)
	Message     string        `json:"message,omitempty"`
	CardID      int64         `json:"card_id,omitempty"` // Set when Result is saved
	ProcessedAt time.Time     `json:"processed_at"`
}

// CategoryNode is one node of the static category tree
type CategoryNode struct {
	ID          int            `json:"id" yaml:"id"`
	Name        string         `json:"name" yaml:"name"`
	Level       int            `json:"level" yaml:"level"` // 1..3
	Code        string         `json:"code" yaml:"code"`
	Description string         `json:"description" yaml:"description"`
	Children    []CategoryNode `json:"children,omitempty" yaml:"children,omitempty"`
}

// JoinList joins values into the single-column storage form; empty input yields nil
func JoinList(values []string) *string {
	cleaned := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			cleaned = append(cleaned, v)
		}
	}
	if len(cleaned) == 0 {
		return nil
	}
	joined := strings.Join(cleaned, listSeparator)
	return &joined
}

// SplitList reverses JoinList; a nil or blank column yields an empty slice
func SplitList(column *string) []string {
	out := []string{}
	if column == nil {
		return out
	}
	for _, part := range strings.Split(*column, listSeparator) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// NullableString returns nil for blank strings so optional columns are stored as NULL
func NullableString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to string or "" for nil
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
