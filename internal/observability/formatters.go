package observability

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
)

// RunReport is the printable view of a finished pipeline run.
type RunReport struct {
	RunID        string
	Status       string
	Message      string
	JobsFetched  int
	MatchesFound int
	EmailsSent   int
	JobsBySource map[string]int
	SourceErrors map[string]string
}

// Printer writes boxed, human-readable summaries for CLI commands.
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		if len([]rune(line)) > boxWidth-4 {
			line = string([]rune(line)[:boxWidth-7]) + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintRunSummary outputs the counters of a pipeline run.
func (p *Printer) PrintRunSummary(r *RunReport) {
	if r == nil {
		return
	}

	var sb strings.Builder
	if r.RunID != "" {
		sb.WriteString(fmt.Sprintf("Run:      %s\n", r.RunID))
	}
	sb.WriteString(fmt.Sprintf("Status:   %s\n", r.Status))
	sb.WriteString(fmt.Sprintf("Jobs:     %d\n", r.JobsFetched))
	sb.WriteString(fmt.Sprintf("Matches:  %d\n", r.MatchesFound))
	sb.WriteString(fmt.Sprintf("Emails:   %d\n", r.EmailsSent))

	if len(r.JobsBySource) > 0 {
		sb.WriteString("\nBy source:\n")
		sb.WriteString(sourceLines(r.JobsBySource, r.SourceErrors))
	}
	if r.Message != "" {
		sb.WriteString("\n" + r.Message + "\n")
	}

	p.printBox("PIPELINE RUN", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintScrapeReport outputs per-source listing counts of a scrape-only run.
func (p *Printer) PrintScrapeReport(bySource map[string]int, errs map[string]string, unique int) {
	var sb strings.Builder
	sb.WriteString(sourceLines(bySource, errs))
	sb.WriteString(fmt.Sprintf("\nUnique listings: %d", unique))
	p.printBox("SCRAPE RESULT", sb.String())
}

func sourceLines(bySource map[string]int, errs map[string]string) string {
	names := make([]string, 0, len(bySource))
	for name := range bySource {
		names = append(names, name)
	}
	for name := range errs {
		if _, ok := bySource[name]; !ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var sb strings.Builder
	for _, name := range names {
		sb.WriteString(fmt.Sprintf("  • %-18s %d", name, bySource[name]))
		if msg, ok := errs[name]; ok {
			sb.WriteString("  (failed: " + msg + ")")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
