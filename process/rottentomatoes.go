package process

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/gurre/crawlingest/ingest"
)

// RottenTomatoesProcessor scrapes critic and audience scores out of movie
// pages. The site changed layout repeatedly, so three probes run in order:
// the old meter spans, the 2020 ratings wrap, and the 2021 score-board
// element.
type RottenTomatoesProcessor struct{}

// scores is the scraped result before it becomes a row.
type scores struct {
	critic      string
	audience    string
	numCritic   int
	numAudience int
}

func (p *RottenTomatoesProcessor) Name() string { return "rottentomatoes" }

// Process emits one score row per page. Failures never surface as an
// error: they reduce to an {error, reason} row so the page that broke the
// scraper stays identifiable in the output.
func (p *RottenTomatoesProcessor) Process(rec ingest.Record) ([]Row, error) {
	doc, err := html.Parse(strings.NewReader(rec.Content))
	if err != nil {
		return []Row{p.errorRow(rec, err)}, nil
	}

	sc, err := scrapeOld(doc)
	if err != nil {
		sc, err = scrapeNew(doc)
	}
	if err != nil {
		return []Row{p.errorRow(rec, err)}, nil
	}

	return []Row{{
		"uri":           rec.URI,
		"ts":            rec.TS,
		"criticScore":   sc.critic,
		"criticNum":     sc.numCritic,
		"audienceScore": sc.audience,
		"audienceNum":   sc.numAudience,
	}}, nil
}

func (p *RottenTomatoesProcessor) errorRow(rec ingest.Record, err error) Row {
	return Row{
		"error":  fmt.Sprintf("Error processing: %s", rec.URI),
		"reason": err.Error(),
	}
}

// scrapeOld probes the pre-2020 layout.
func scrapeOld(doc *html.Node) (scores, error) {
	critic := findFirst(doc, "span", "meter-value", "superPageFontColor")
	audienceMeter := findFirst(doc, "div", "audience-score", "meter")
	if critic == nil || audienceMeter == nil {
		return scores{}, fmt.Errorf("old layout not present")
	}
	audience := findFirst(audienceMeter, "span", "superPageFontColor")
	if audience == nil {
		return scores{}, fmt.Errorf("old layout missing audience span")
	}
	return scores{
		critic:   strings.TrimSpace(text(critic)),
		audience: strings.TrimSpace(text(audience)),
	}, nil
}

// scrapeNew probes the 2020 ratings wrap, falling back to the 2021
// score-board element.
func scrapeNew(doc *html.Node) (scores, error) {
	halves := findAll(doc, "div", "mop-ratings-wrap__half")
	if len(halves) == 0 {
		// 2021 layout carries the numbers as attributes.
		if board := findFirst(doc, "score-board"); board != nil {
			return scores{
				critic:   attr(board, "tomatometerscore"),
				audience: attr(board, "audiencescore"),
			}, nil
		}
		return scores{}, fmt.Errorf("ratings wrap not present")
	}

	sc := scores{audience: "None"}
	sc.critic = firstToken(text(halves[0]))
	if len(halves) > 1 {
		sc.audience = firstToken(text(halves[1]))
	}

	sc.numCritic, sc.numAudience = scrapeReviewCounts(doc)
	return sc, nil
}

// scrapeReviewCounts pulls the review counts out of whichever layout the
// page carries. Missing counts stay zero.
func scrapeReviewCounts(doc *html.Node) (critic, audience int) {
	if smalls := findAll(doc, "small", "mop-ratings-wrap__text--small"); len(smalls) > 0 {
		critic = parseCount(text(smalls[0]))
	} else if links := findAll(doc, "a", "scoreboard__link", "scoreboard__link--tomatometer"); len(links) > 0 {
		critic = parseCount(text(links[0]))
	}

	strongs := findAll(doc, "strong", "mop-ratings-wrap__text--small")
	if len(strongs) > 1 {
		audience = parseCount(strings.Replace(text(strongs[1]), "Verified Ratings: ", "", 1))
	} else if links := findAll(doc, "a", "scoreboard__link", "scoreboard__link--audience"); len(links) > 0 {
		audience = parseCount(text(links[0]))
	}
	return critic, audience
}

func firstToken(s string) string {
	fields := strings.Fields(strings.ReplaceAll(s, "\n", " "))
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func parseCount(s string) int {
	cleaned := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
	n, err := strconv.Atoi(cleaned)
	if err != nil {
		return 0
	}
	return n
}
