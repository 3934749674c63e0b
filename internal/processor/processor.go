// Package processor extracts the title and outbound link targets from HTML
// documents.
package processor

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// PageContent holds what the crawler keeps from a parsed HTML document.
type PageContent struct {
	// Title is the trimmed text of the first <title> element, if any.
	Title string
	// Links are the raw href values of every anchor, in document order.
	Links []string
}

// Processor defines the HTML extraction capability used by the crawl engine.
type Processor interface {
	Extract(body []byte) (*PageContent, error)
}

// HTMLProcessor parses fetched HTML bodies with goquery.
type HTMLProcessor struct{}

// NewHTMLProcessor constructs the default HTML processor.
func NewHTMLProcessor() HTMLProcessor {
	return HTMLProcessor{}
}

// Extract returns the page title and the ordered anchor targets.
func (HTMLProcessor) Extract(body []byte) (*PageContent, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	content := &PageContent{
		Title: strings.TrimSpace(doc.Find("title").First().Text()),
	}

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		content.Links = append(content.Links, href)
	})

	return content, nil
}
