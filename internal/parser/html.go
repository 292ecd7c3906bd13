package parser

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// HTMLParser converts HTML mail bodies into readable plain text for storage
type HTMLParser struct {
	spaceRegex   *regexp.Regexp
	newlineRegex *regexp.Regexp
}

// NewHTMLParser creates a new HTML parser
func NewHTMLParser() *HTMLParser {
	return &HTMLParser{
		spaceRegex:   regexp.MustCompile(`[^\S\n]+`),
		newlineRegex: regexp.MustCompile(`\n{3,}`),
	}
}

// Parse converts HTML to clean plain text
func (p *HTMLParser) Parse(html string) (string, error) {
	if html == "" {
		return "", nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}

	doc.Find("script, style, head, meta, link").Remove()

	// Keep block boundaries visible in the extracted text
	doc.Find("p, div, br, h1, h2, h3, h4, h5, h6, li, tr").Each(func(_ int, sel *goquery.Selection) {
		sel.PrependHtml("\n")
	})

	text := p.spaceRegex.ReplaceAllString(doc.Text(), " ")

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}

	text = strings.Join(lines, "\n")
	text = p.newlineRegex.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text), nil
}
