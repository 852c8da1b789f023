// Package report renders fetch-audit summaries and market responses for
// the command line.
package report

import (
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"sort"
	"time"

	"github.com/FranksOps/appraise/internal/storage"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// SourceSummary aggregates the audit records of one source.
type SourceSummary struct {
	Source      string         `json:"source"`
	Requests    int            `json:"requests"`
	Errors      int            `json:"errors"`
	Blocked     int            `json:"blocked"`
	BlockedBy   map[string]int `json:"blockedBy"`
	Bytes       int64          `json:"bytes"`
	AvgDuration time.Duration  `json:"avgDuration"`

	total time.Duration
}

// SuccessRate is the share of requests that neither failed nor hit a wall.
func (s SourceSummary) SuccessRate() float64 {
	if s.Requests == 0 {
		return 0
	}
	return float64(s.Requests-s.Errors) / float64(s.Requests)
}

// Summary contains aggregated metrics over a set of fetch records.
type Summary struct {
	TotalRequests int             `json:"totalRequests"`
	TotalErrors   int             `json:"totalErrors"`
	TotalBlocked  int             `json:"totalBlocked"`
	TotalBytes    int64           `json:"totalBytes"`
	StatusCodes   map[int]int     `json:"statusCodes"`
	Sources       []SourceSummary `json:"sources"`
	StartTime     time.Time       `json:"startTime"`
	EndTime       time.Time       `json:"endTime"`
	Duration      time.Duration   `json:"duration"`
}

// GenerateSummary processes fetch records into summary metrics. Sources are
// ordered by name.
func GenerateSummary(records []*storage.FetchRecord) Summary {
	s := Summary{StatusCodes: make(map[int]int), Sources: []SourceSummary{}}
	if len(records) == 0 {
		return s
	}

	bySource := make(map[string]*SourceSummary)
	s.StartTime = records[0].CreatedAt
	s.EndTime = records[0].CreatedAt

	for _, r := range records {
		src, ok := bySource[r.Source]
		if !ok {
			src = &SourceSummary{Source: r.Source, BlockedBy: make(map[string]int)}
			bySource[r.Source] = src
		}

		s.TotalRequests++
		src.Requests++
		if r.Error != "" {
			s.TotalErrors++
			src.Errors++
		}
		if r.Blocked() {
			s.TotalBlocked++
			src.Blocked++
			src.BlockedBy[r.BlockedBy]++
		}
		if r.StatusCode > 0 {
			s.StatusCodes[r.StatusCode]++
		}
		s.TotalBytes += r.Bytes
		src.Bytes += r.Bytes
		src.total += r.Duration

		if r.CreatedAt.Before(s.StartTime) {
			s.StartTime = r.CreatedAt
		}
		if r.CreatedAt.After(s.EndTime) {
			s.EndTime = r.CreatedAt
		}
	}

	for _, src := range bySource {
		src.AvgDuration = src.total / time.Duration(src.Requests)
		s.Sources = append(s.Sources, *src)
	}
	sort.Slice(s.Sources, func(i, j int) bool { return s.Sources[i].Source < s.Sources[j].Source })

	s.Duration = s.EndTime.Sub(s.StartTime)
	return s
}

// WriteJSON writes the summary to w as indented JSON.
func WriteJSON(w io.Writer, summary Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	return nil
}

// NewTable returns a rounded table writer that renders to w.
func NewTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)
	return t
}

func sourceTable(w io.Writer, summary Summary) table.Writer {
	t := NewTable(w)
	t.AppendHeader(table.Row{"Source", "Requests", "Errors", "Blocked", "Walls", "Success", "Avg", "Bytes"})
	for _, src := range summary.Sources {
		t.AppendRow(table.Row{
			src.Source,
			src.Requests,
			src.Errors,
			src.Blocked,
			walls(src.BlockedBy),
			fmt.Sprintf("%.0f%%", src.SuccessRate()*100),
			src.AvgDuration.Round(time.Millisecond),
			src.Bytes,
		})
	}
	t.AppendFooter(table.Row{"Total", summary.TotalRequests, summary.TotalErrors, summary.TotalBlocked, "", "", "", summary.TotalBytes})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
		{Number: 7, Align: text.AlignRight},
		{Number: 8, Align: text.AlignRight},
	})
	return t
}

func walls(m map[string]int) string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	out := ""
	for i, name := range names {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("%s×%d", name, m[name])
	}
	return out
}

// WriteText writes a human-readable summary with a per-source table.
func WriteText(w io.Writer, summary Summary) error {
	if summary.TotalRequests == 0 {
		_, err := fmt.Fprintln(w, "No fetches recorded.")
		return err
	}
	_, err := fmt.Fprintf(w, "Fetch audit %s - %s (%s)\n",
		summary.StartTime.Format("2006-01-02 15:04:05"),
		summary.EndTime.Format("2006-01-02 15:04:05"),
		summary.Duration.Round(time.Second))
	if err != nil {
		return err
	}
	sourceTable(w, summary).Render()

	codes := make([]int, 0, len(summary.StatusCodes))
	for code := range summary.StatusCodes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	t := NewTable(w)
	t.AppendHeader(table.Row{"Status", "Count"})
	for _, code := range codes {
		t.AppendRow(table.Row{code, summary.StatusCodes[code]})
	}
	t.Render()
	return nil
}

var htmlReport = template.Must(template.New("audit").Parse(`<!DOCTYPE html>
<html>
<head>
<title>appraise fetch audit</title>
<style>
  body { font-family: sans-serif; margin: 40px; color: #333; }
  h1 { border-bottom: 2px solid #ccc; padding-bottom: 10px; }
  .stat-card { display: inline-block; padding: 20px; margin: 10px 10px 10px 0; background: #f4f4f4; border-radius: 5px; min-width: 150px; }
  .stat-val { font-size: 24px; font-weight: bold; }
  table { border-collapse: collapse; margin-top: 10px; }
  th, td { padding: 8px 12px; border: 1px solid #ccc; text-align: left; }
  th { background: #eaeaea; }
</style>
</head>
<body>
  <h1>Fetch audit</h1>
  <p><strong>Time:</strong> {{.StartTime.Format "2006-01-02 15:04:05"}} to {{.EndTime.Format "2006-01-02 15:04:05"}} ({{.Duration}})</p>
  <div class="stat-card"><div>Requests</div><div class="stat-val">{{.TotalRequests}}</div></div>
  <div class="stat-card"><div>Errors</div><div class="stat-val">{{.TotalErrors}}</div></div>
  <div class="stat-card"><div>Blocked</div><div class="stat-val" style="color: {{if gt .TotalBlocked 0}}red{{else}}green{{end}};">{{.TotalBlocked}}</div></div>
  <h3>By source</h3>
  {{.SourceTable}}
</body>
</html>
`))

// WriteHTML writes a standalone HTML report.
func WriteHTML(w io.Writer, summary Summary) error {
	data := struct {
		Summary
		SourceTable template.HTML
	}{
		Summary: summary,
		// go-pretty escapes cell contents in RenderHTML.
		SourceTable: template.HTML(sourceTable(io.Discard, summary).RenderHTML()),
	}
	if err := htmlReport.Execute(w, data); err != nil {
		return fmt.Errorf("render html report: %w", err)
	}
	return nil
}
