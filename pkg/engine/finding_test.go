package engine

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSeverity(t *testing.T) {
	testCases := []struct {
		input   string
		want    Severity
		wantErr bool
	}{
		{input: "Critical", want: SeverityCritical},
		{input: " HIGH ", want: SeverityHigh},
		{input: "Medium", want: SeverityMedium},
		{input: "low", want: SeverityLow},
		{input: "Information", want: SeverityInfo},
		{input: "", want: SeverityUnknown},
		{input: "severe", want: SeverityUnknown, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			got, err := ParseSeverity(tc.input)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestSeverityRankOrder(t *testing.T) {
	for i := 1; i < len(Severities); i++ {
		assert.Greater(t, Severities[i-1].Rank(), Severities[i].Rank(), "%s should outrank %s", Severities[i-1], Severities[i])
	}
}

func TestFindingValidate(t *testing.T) {
	ok := Finding{Title: "Open Port", SourceType: "nmap", Severity: SeverityUnknown}
	assert.NoError(t, ok.Validate())

	noTitle := ok
	noTitle.Title = "  "
	assert.ErrorIs(t, noTitle.Validate(), ErrMissingTitle)

	noSource := ok
	noSource.SourceType = ""
	assert.ErrorIs(t, noSource.Validate(), ErrMissingSourceType)

	badSeverity := ok
	badSeverity.Severity = "severe"
	assert.Error(t, badSeverity.Validate())
}

func TestCloneDoesNotShareRaw(t *testing.T) {
	orig := Finding{Title: "x", SourceType: "nuclei", Raw: json.RawMessage(`{"a":1}`), Tags: []string{"cve"}}
	c := orig.Clone()
	c.Raw[2] = 'b'
	c.Tags[0] = "changed"

	assert.Equal(t, `{"a":1}`, string(orig.Raw))
	assert.Equal(t, "cve", orig.Tags[0])
}

func TestSeverityUnmarshalMixedCase(t *testing.T) {
	var f Finding
	require.NoError(t, json.Unmarshal([]byte(`{"title":"t","source_type":"burp","severity":"High"}`), &f))
	assert.Equal(t, SeverityHigh, f.Severity)
}

func TestLocation(t *testing.T) {
	assert.Equal(t, "10.0.0.1:22", Finding{Host: "10.0.0.1", Port: 22}.Location())
	assert.Equal(t, "10.0.0.1", Finding{Host: "10.0.0.1"}.Location())
	assert.Equal(t, "https://x.test/", Finding{URL: "https://x.test/"}.Location())
}
