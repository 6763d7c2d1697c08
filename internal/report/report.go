// Package report renders a validation record for people: Markdown for
// terminals and review threads, HTML for sharing.
package report

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"edgeproof/domain/result"
	"edgeproof/domain/stats"
)

// Markdown summarises rec as a Markdown document
func Markdown(rec result.Record) []byte {
	var b strings.Builder

	fmt.Fprintf(&b, "# Validation run %s\n\n", rec.RunID)
	fmt.Fprintf(&b, "- Schema: %s\n", rec.SchemaVersion)
	fmt.Fprintf(&b, "- Created: %s\n", rec.CreatedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "- Primary: `%s`\n", rec.Primary)
	fmt.Fprintf(&b, "- Hypotheses: %d over %d aligned periods", rec.NHypotheses, rec.NPeriods)
	if rec.PeriodStart != nil && rec.PeriodEnd != nil {
		fmt.Fprintf(&b, " (%s to %s)", rec.PeriodStart.Format("2006-01-02"), rec.PeriodEnd.Format("2006-01-02"))
	}
	b.WriteString("\n\n")

	b.WriteString("## Headline\n\n| Metric | Value |\n| --- | --- |\n")
	row := func(name, value string) { fmt.Fprintf(&b, "| %s | %s |\n", name, value) }
	row("Raw Sharpe", value(rec.RawSR, rec.RawSRSkippedReason))
	row("Deflated Sharpe", value(rec.DeflatedSR, rec.DeflatedSRSkippedReason))
	row("Trials used", value(rec.NTrialsUsed, "")+" ("+rec.NTrialsSource+")")
	row("Reality Check p", value(rec.RCPValue, rec.RCSkippedReason))
	row("PBO (CSCV)", value(rec.PBOCSCV, rec.PBOCSCVSkippedReason))
	row("PBO (walk-forward)", value(rec.PBOWalkForward, rec.PBOWalkForwardSkippedReason))
	row("HAC t (mean)", value(rec.THACMean, rec.HACSkippedReason))
	row("HAC p (mean)", value(rec.PHACMean, rec.HACSkippedReason))
	fmt.Fprintf(&b, "\nFDR (%s, q = %s): %d of %d discoveries\n\n",
		rec.FDR.Method, num(rec.FDR.Q), len(rec.FDR.Discoveries), rec.FDR.M)
	if rc := rec.RealityCheck; rc != nil && rec.RCPValue != nil {
		verdict := "not significant"
		if rc.Significant {
			verdict = "significant"
		}
		fmt.Fprintf(&b, "Reality Check at alpha = %s: %s", num(rc.Alpha), verdict)
		if len(rec.RWRejected) > 0 {
			fmt.Fprintf(&b, "; Romano-Wolf rejects %d", len(rec.RWRejected))
		}
		b.WriteString("\n\n")
	}

	b.WriteString("## Hypotheses\n\n")
	b.WriteString("| Id | N | NaN | Raw SR | DSR | HAC p | FDR p | Discovery | RW p | Break |\n")
	b.WriteString("| --- | --- | --- | --- | --- | --- | --- | --- | --- | --- |\n")
	for _, e := range rec.Hypotheses {
		fmt.Fprintf(&b, "| `%s` | %d | %d | %s | %s | %s | %s | %s | %s | %s |\n",
			e.ID, e.N, e.NNaN,
			value(e.RawSR, e.MomentsSkipReason),
			value(e.DeflatedSR, e.DeflatedSRSkippedReason),
			value(e.PHAC, e.HACSkippedReason),
			value(e.FDRAdjustedP, ""),
			yesNo(e.IsDiscovery),
			value(e.RWAdjusted, ""),
			breakSummary(e.Breaks))
	}

	if len(rec.Capacity.Rows) > 0 {
		fmt.Fprintf(&b, "\n## Capacity of `%s`\n\n", rec.Capacity.Series)
		b.WriteString("| " + strings.Join(rec.Capacity.Columns, " | ") + " |\n")
		b.WriteString(strings.Repeat("| --- ", len(rec.Capacity.Columns)) + "|\n")
		for _, r := range rec.Capacity.Rows {
			cells := make([]string, len(r))
			for i, v := range r {
				cells[i] = num(v)
			}
			b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
		}
	} else if rec.Capacity.SkippedReason.Skipped() {
		fmt.Fprintf(&b, "\nCapacity skipped: %s\n", rec.Capacity.SkippedReason)
	}

	if len(rec.Warnings) > 0 {
		b.WriteString("\n## Warnings\n\n")
		for _, w := range rec.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
	}
	return []byte(b.String())
}

// HTML renders the Markdown summary as a complete HTML page
func HTML(rec result.Record) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions)
	r := html.NewRenderer(html.RendererOptions{
		Flags: html.CommonFlags | html.CompletePage,
		Title: "Validation run " + string(rec.RunID),
	})
	return markdown.ToHTML(Markdown(rec), p, r)
}

func value(v *float64, reason stats.SkipReason) string {
	if v != nil {
		return num(*v)
	}
	if reason.Skipped() {
		return "skipped: " + strings.ReplaceAll(string(reason), "|", "/")
	}
	return "n/a"
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'g', 4, 64)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func breakSummary(breaks []result.BreakDiagnostic) string {
	var suspected []string
	for _, d := range breaks {
		if !d.BreakSuspected {
			continue
		}
		s := d.TestName
		if d.EstimatedBreakDate != nil {
			s += " @ " + d.EstimatedBreakDate.Format("2006-01-02")
		}
		suspected = append(suspected, s)
	}
	if len(suspected) == 0 {
		return "none"
	}
	return strings.Join(suspected, ", ")
}
