// Package extract derives candidate directory records from fetched HTML.
package extract

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/Sriram-PR/card-directory/pkg/config"
	"github.com/Sriram-PR/card-directory/pkg/models"
	"github.com/Sriram-PR/card-directory/pkg/utils"
)

// Extractor turns a page body into a candidate record. Implementations must
// be pure: no I/O, no shared mutable state.
type Extractor interface {
	Extract(body string, source *url.URL) (*models.CandidateRecord, error)
}

// Coarse contact patterns shared by every extractor. They over-match on
// purpose (any 7-8 digit run is a phone) and are reviewed by an admin later.
var (
	phonePattern   = regexp.MustCompile(`(?:\d{3,4}-)?\d{7,8}`)
	emailPattern   = regexp.MustCompile(`[a-zA-Z0-9._-]+@[a-zA-Z0-9._-]+\.[a-zA-Z0-9_-]+`)
	addressLabel   = regexp.MustCompile(`地址[:：]\s*([^\n]+)`)
	tagPattern     = regexp.MustCompile(`<[^>]+>`)
	spacesPattern  = regexp.MustCompile(`\s+`)
	extractorNames = []string{config.ExtractorRegex, config.ExtractorDOM}
)

// New returns the extractor registered under kind ("regex" or "dom")
func New(kind string) (Extractor, error) {
	switch kind {
	case "", config.ExtractorRegex:
		return NewRegexExtractor(), nil
	case config.ExtractorDOM:
		return NewDocumentExtractor(), nil
	default:
		return nil, fmt.Errorf("%w: unknown extractor %q (want one of %s)",
			utils.ErrConfigValidation, kind, strings.Join(extractorNames, ", "))
	}
}

// findPhones returns distinct phone-shaped matches in first-seen order
func findPhones(text string) []string {
	return uniqueMatches(phonePattern.FindAllString(text, -1))
}

// findEmails returns distinct email-shaped matches in first-seen order
func findEmails(text string) []string {
	return uniqueMatches(emailPattern.FindAllString(text, -1))
}

// findLabelledAddress returns the text after a "地址:" label up to line end
func findLabelledAddress(text string) string {
	m := addressLabel.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return cleanText(stripTags(m[1]))
}

func uniqueMatches(matches []string) []string {
	seen := make(map[string]struct{}, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if _, dup := seen[m]; dup {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}

func stripTags(s string) string {
	return tagPattern.ReplaceAllString(s, " ")
}

// cleanText collapses whitespace runs and trims
func cleanText(s string) string {
	return strings.TrimSpace(spacesPattern.ReplaceAllString(s, " "))
}

// newCandidate fills the fields every extractor sets the same way
func newCandidate(source *url.URL) *models.CandidateRecord {
	return &models.CandidateRecord{
		Website:  source.String(),
		Source:   source.String(),
		Category: models.UnclassifiedCategory,
		Status:   models.CardStatusPending,
	}
}

// recoverParsing converts a panic inside an extractor into ErrParsing
func recoverParsing(source *url.URL, rec **models.CandidateRecord, err *error) {
	if r := recover(); r != nil {
		*rec = nil
		*err = fmt.Errorf("%w: extracting %v: panic: %v", utils.ErrParsing, source, r)
	}
}
