package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummarize(t *testing.T) {
	s := Summarize([]Finding{
		{Title: "a", SourceType: "nmap", Severity: SeverityUnknown},
		{Title: "b", SourceType: "burp", Severity: SeverityHigh},
		{Title: "c", SourceType: "burp", Severity: SeverityCritical},
		{Title: "d", SourceType: "nuclei", Severity: "bogus"},
	})

	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 2, s.BySeverity[SeverityUnknown])
	assert.Equal(t, 2, s.Urgent())
	assert.Equal(t, 2, s.BySource["burp"])
}

func TestSortBySeverityIsStableCopy(t *testing.T) {
	in := []Finding{
		{Title: "low-1", Severity: SeverityLow},
		{Title: "crit", Severity: SeverityCritical},
		{Title: "low-2", Severity: SeverityLow},
		{Title: "unk", Severity: SeverityUnknown},
	}
	out := SortBySeverity(in)

	assert.Equal(t, []string{"crit", "low-1", "low-2", "unk"}, titles(out))
	assert.Equal(t, "low-1", in[0].Title)
}

func TestReportMentionsEveryFinding(t *testing.T) {
	r := Report([]Finding{
		{Title: "Open Port: 22/tcp (ssh)", SourceType: "nmap", Severity: SeverityUnknown, Host: "10.0.0.1", Port: 22},
	})
	assert.Contains(t, r, "1 total")
	assert.Contains(t, r, "[UNKNOWN] Open Port: 22/tcp (ssh) (nmap)")
	assert.Contains(t, r, "Location: 10.0.0.1:22")
}

func titles(fs []Finding) []string {
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = f.Title
	}
	return out
}
