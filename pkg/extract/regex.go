package extract

import (
	"fmt"
	"html"
	"net/url"
	"regexp"

	"github.com/Sriram-PR/card-directory/pkg/models"
	"github.com/Sriram-PR/card-directory/pkg/utils"
)

var (
	titlePattern       = regexp.MustCompile(`(?i)<title[^>]*>([^<]+)</title>`)
	descriptionPattern = regexp.MustCompile(`(?i)<meta\s+name="description"\s+content="([^"]+)"`)
	addressPattern     = regexp.MustCompile(`(?i)<address[^>]*>([\s\S]*?)</address>`)
)

// RegexExtractor pulls contact fields straight out of raw markup with
// regular expressions. It never parses the document.
type RegexExtractor struct{}

// NewRegexExtractor creates the default extractor
func NewRegexExtractor() *RegexExtractor {
	return &RegexExtractor{}
}

// Extract implements Extractor
func (e *RegexExtractor) Extract(body string, source *url.URL) (rec *models.CandidateRecord, err error) {
	if source == nil {
		return nil, fmt.Errorf("%w: nil source URL", utils.ErrParsing)
	}
	defer recoverParsing(source, &rec, &err)

	rec = newCandidate(source)

	rec.Name = source.Hostname()
	if m := titlePattern.FindStringSubmatch(body); m != nil {
		if title := cleanText(html.UnescapeString(m[1])); title != "" {
			rec.Name = title
		}
	}

	if m := descriptionPattern.FindStringSubmatch(body); m != nil {
		rec.Description = cleanText(html.UnescapeString(m[1]))
	}

	rec.Phones = findPhones(body)
	rec.Emails = findEmails(body)

	if m := addressPattern.FindStringSubmatch(body); m != nil {
		rec.Address = cleanText(html.UnescapeString(stripTags(m[1])))
	}
	if rec.Address == "" {
		rec.Address = findLabelledAddress(body)
	}

	return rec, nil
}
