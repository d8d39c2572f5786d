package observability

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrintRunSummary(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintRunSummary(&RunReport{
		RunID:        "run-1",
		Status:       "completed",
		Message:      "Pipeline completed successfully",
		JobsFetched:  12,
		MatchesFound: 3,
		EmailsSent:   2,
		JobsBySource: map[string]int{"gozambia": 8, "greatzambiajobs": 4},
	})
	output := buf.String()

	assert.Contains(t, output, "PIPELINE RUN")
	assert.Contains(t, output, "run-1")
	assert.Contains(t, output, "Jobs:     12")
	assert.Contains(t, output, "Matches:  3")
	assert.Contains(t, output, "Emails:   2")
	assert.Contains(t, output, "gozambia")
	assert.Contains(t, output, "Pipeline completed successfully")
	assert.Less(t, strings.Index(output, "greatzambiajobs"), strings.Index(output, "• gozambia"))
}

func TestPrintRunSummary_Nil(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintRunSummary(nil)

	assert.Empty(t, buf.String())
}

func TestPrintScrapeReport_IncludesFailedSources(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintScrapeReport(map[string]int{"gozambia": 5}, map[string]string{"greatzambiajobs": "timeout"}, 5)
	output := buf.String()

	assert.Contains(t, output, "SCRAPE RESULT")
	assert.Contains(t, output, "greatzambiajobs")
	assert.Contains(t, output, "failed: timeout")
	assert.Contains(t, output, "Unique listings: 5")
}

func TestPrintBox_TruncatesLongLines(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.printBox("TITLE", strings.Repeat("x", 200))

	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		assert.LessOrEqual(t, len([]rune(line)), boxWidth)
	}
	assert.Contains(t, buf.String(), "...")
}
