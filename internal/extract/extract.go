// Package extract pulls result counts, prices and listing titles out of
// public search pages using per-site pattern heuristics.
//
// Everything here is best effort. Pages change without notice and the
// patterns are tuned to whatever markup the sites used when they were
// written.
package extract

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/FranksOps/appraise/internal/market"
	"github.com/PuerkitoBio/goquery"
)

var (
	countPattern = regexp.MustCompile(`(?i)([\d,.\s]+)\s+results`)
	urlPattern   = regexp.MustCompile(`(?i)^https?://`)
	spacePattern = regexp.MustCompile(`\s+`)
)

// Count returns the "<number> results" figure printed near the top of a
// search page, or nil when the page does not carry one.
func Count(html string) *int {
	m := countPattern.FindStringSubmatch(html)
	if m == nil {
		return nil
	}
	digits := strings.Map(func(r rune) rune {
		if r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			return -1
		}
		return r
	}, m[1])
	n, err := strconv.ParseFloat(digits, 64)
	if err != nil || math.IsNaN(n) || n < 0 || n >= math.MaxInt {
		return nil
	}
	return market.Int(int(n))
}

// Range is an open interval of plausible prices. A zero bound is unbounded.
type Range struct {
	Min float64
	Max float64
}

// Contains reports whether n lies strictly inside the range.
func (r Range) Contains(n float64) bool {
	if r.Min != 0 && n <= r.Min {
		return false
	}
	if r.Max != 0 && n >= r.Max {
		return false
	}
	return true
}

// Tier is one priority level of price patterns. Each capture group of each
// match yields one price.
type Tier struct {
	Patterns []*regexp.Regexp
	// Bounded tiers drop prices outside the adapter's plausible range, which
	// filters page furniture and SKU numbers out of bare currency matches.
	Bounded bool
	// Limit keeps only the first Limit prices. Zero keeps all.
	Limit int
}

// Prices returns the prices of the first tier that matches anything.
func Prices(html string, tiers []Tier, plausible Range) []float64 {
	for _, tier := range tiers {
		var prices []float64
		for _, re := range tier.Patterns {
			for _, m := range re.FindAllStringSubmatch(html, -1) {
				for _, g := range m[1:] {
					p, ok := parsePrice(g)
					if !ok {
						continue
					}
					if tier.Bounded && !plausible.Contains(p) {
						continue
					}
					prices = append(prices, p)
				}
			}
		}
		if tier.Limit > 0 && len(prices) > tier.Limit {
			prices = prices[:tier.Limit]
		}
		if len(prices) > 0 {
			return prices
		}
	}
	return nil
}

func parsePrice(raw string) (float64, bool) {
	raw = strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if raw == "" {
		return 0, false
	}
	p, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(p) || math.IsInf(p, 0) {
		return 0, false
	}
	return p, true
}

// Window bounds the length, in characters, of an accepted title.
type Window struct {
	Min int
	Max int
}

// Titles returns the collapsed text of elements matching selector whose
// length falls inside window, skipping raw URLs. At most limit titles are
// returned (zero means all).
func Titles(html, selector string, window Window, limit int) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	var titles []string
	doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.TrimSpace(spacePattern.ReplaceAllString(s.Text(), " "))
		n := utf8.RuneCountInString(text)
		if n < window.Min || (window.Max > 0 && n > window.Max) {
			return true
		}
		if urlPattern.MatchString(text) {
			return true
		}
		titles = append(titles, text)
		return limit <= 0 || len(titles) < limit
	})
	return titles, nil
}

// Pair builds samples by matching the Nth title with the Nth price. This is
// positional, not proximity based, so a title can end up next to another
// listing's price on busy pages.
func Pair(titles []string, prices []float64, source string) []market.Sample {
	samples := make([]market.Sample, 0, len(titles))
	for i, title := range titles {
		s := market.Sample{Title: title, Source: source}
		if i < len(prices) {
			s.Price = market.Float(prices[i])
		}
		samples = append(samples, s)
	}
	return samples
}
