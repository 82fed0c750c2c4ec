package extract

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/Sriram-PR/card-directory/pkg/models"
	"github.com/Sriram-PR/card-directory/pkg/utils"
)

// DocumentExtractor parses the page with goquery and reads fields from the
// DOM. It additionally honours tel: and mailto: links and og:site_name.
type DocumentExtractor struct{}

// NewDocumentExtractor creates a goquery-backed extractor
func NewDocumentExtractor() *DocumentExtractor {
	return &DocumentExtractor{}
}

// Extract implements Extractor
func (e *DocumentExtractor) Extract(body string, source *url.URL) (rec *models.CandidateRecord, err error) {
	if source == nil {
		return nil, fmt.Errorf("%w: nil source URL", utils.ErrParsing)
	}
	defer recoverParsing(source, &rec, &err)

	doc, parseErr := goquery.NewDocumentFromReader(strings.NewReader(body))
	if parseErr != nil {
		return nil, fmt.Errorf("%w: %w", utils.ErrParsing, parseErr)
	}

	rec = newCandidate(source)

	rec.Name = firstNonEmpty(
		cleanText(doc.Find("title").First().Text()),
		metaContent(doc, `meta[property="og:site_name"]`),
		source.Hostname(),
	)
	rec.Description = firstNonEmpty(
		metaContent(doc, `meta[name="description"]`),
		metaContent(doc, `meta[property="og:description"]`),
	)

	// Script and style bodies are noise for digit and email patterns
	doc.Find("script, style, noscript").Remove()
	text := documentText(doc)

	rec.Phones = uniqueMatches(append(linkTargets(doc, "tel:"), phonePattern.FindAllString(text, -1)...))
	rec.Emails = uniqueMatches(append(linkTargets(doc, "mailto:"), emailPattern.FindAllString(text, -1)...))

	rec.Address = cleanText(doc.Find("address").First().Text())
	if rec.Address == "" {
		rec.Address = findLabelledAddress(text)
	}

	return rec, nil
}

// documentText joins every text node with newlines so that adjacent elements
// never fuse into one token (e.g. "87654321" + "a@b.cn").
func documentText(doc *goquery.Document) string {
	var parts []string
	doc.Find("*").Contents().Each(func(_ int, s *goquery.Selection) {
		if goquery.NodeName(s) == "#text" {
			parts = append(parts, s.Text())
		}
	})
	return strings.Join(parts, "\n")
}

func metaContent(doc *goquery.Document, selector string) string {
	content, _ := doc.Find(selector).First().Attr("content")
	return cleanText(content)
}

// linkTargets returns the cleaned targets of <a href="scheme..."> links
func linkTargets(doc *goquery.Document, scheme string) []string {
	var out []string
	doc.Find(`a[href^="` + scheme + `"]`).Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		target := strings.TrimPrefix(href, scheme)
		if i := strings.IndexByte(target, '?'); i >= 0 {
			target = target[:i]
		}
		target = strings.ReplaceAll(strings.TrimSpace(target), " ", "")
		if target != "" {
			out = append(out, target)
		}
	})
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
