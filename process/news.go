package process

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/gurre/crawlingest/ingest"
)

// NewsProcessor extracts article title and body text from crawled pages.
// Only English-language documents produce a row; everything else yields
// nothing.
type NewsProcessor struct{}

func (p *NewsProcessor) Name() string { return "news" }

func (p *NewsProcessor) Process(rec ingest.Record) ([]Row, error) {
	doc, err := html.Parse(strings.NewReader(rec.Content))
	if err != nil {
		return nil, fmt.Errorf("could not parse: %w", err)
	}

	if lang := documentLang(doc); lang != "en" {
		return nil, nil
	}

	title := ""
	if n := findFirst(doc, "title"); n != nil {
		title = strings.TrimSpace(text(n))
	}

	var paragraphs []string
	for _, n := range findAll(doc, "p") {
		if t := strings.TrimSpace(text(n)); t != "" {
			paragraphs = append(paragraphs, t)
		}
	}

	return []Row{{
		"uri":   rec.URI,
		"ts":    rec.TS,
		"title": title,
		"text":  strings.Join(paragraphs, "\n\n"),
	}}, nil
}

// documentLang reads the document language from <html lang> or the
// http-equiv content-language meta tag.
func documentLang(doc *html.Node) string {
	if n := findFirst(doc, "html"); n != nil {
		if lang := attr(n, "lang"); lang != "" {
			return normalizeLang(lang)
		}
	}
	for _, n := range findAll(doc, "meta") {
		if strings.EqualFold(attr(n, "http-equiv"), "content-language") {
			return normalizeLang(attr(n, "content"))
		}
	}
	return ""
}

func normalizeLang(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	return lang
}
