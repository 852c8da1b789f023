package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/FranksOps/appraise/internal/market"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Output formats accepted by WriteMarket.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatHTML  = "html"
)

func money(p *float64) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprintf("$%.2f", *p)
}

func priceRange(r market.SourceResult) string {
	if r.MinPrice == nil && r.MaxPrice == nil {
		return "-"
	}
	return money(r.MinPrice) + " - " + money(r.MaxPrice)
}

func count(c *int) string {
	if c == nil {
		return "-"
	}
	return fmt.Sprint(*c)
}

func marketTable(w io.Writer, resp market.Response, samples int) table.Writer {
	t := NewTable(w)
	title := "Market prices for " + resp.Query
	if resp.Degraded {
		title += " (degraded)"
	}
	t.SetTitle(title)
	t.AppendHeader(table.Row{"Source", "Status", "Count", "Range", "Samples", "Notes"})
	for _, r := range resp.Platforms {
		var lines []string
		for i, s := range r.Samples {
			if i == samples {
				break
			}
			lines = append(lines, fmt.Sprintf("%s %s", money(s.Price), text.Trim(s.Title, 48)))
		}
		notes := r.Description
		if r.Status.IsLinkOnly() {
			notes += "\n" + r.Link
		}
		t.AppendRow(table.Row{r.Name, string(r.Status), count(r.Count), priceRange(r), strings.Join(lines, "\n"), notes})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight},
		{Number: 6, WidthMax: 60},
	})
	return t
}

// WriteMarket renders resp in the given format. samples caps the sample
// lines shown per source in table and HTML output.
func WriteMarket(w io.Writer, resp market.Response, format string, samples int) error {
	switch format {
	case "", FormatTable:
		marketTable(w, resp, samples).Render()
		return nil
	case FormatHTML:
		_, err := io.WriteString(w, marketTable(io.Discard, resp, samples).RenderHTML()+"\n")
		return err
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(resp); err != nil {
			return fmt.Errorf("encode response: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}
