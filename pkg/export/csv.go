package export

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/user/secreport/pkg/engine"
)

var csvHeader = []string{
	"title", "severity", "host", "hostname", "port", "protocol", "service", "url",
	"description", "evidence", "remediation", "ai_summary", "source_type", "tags", "references",
}

type csvFormatter struct{}

func (csvFormatter) Format(w io.Writer, findings []engine.Finding, _ Metadata) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, f := range findings {
		port := ""
		if f.Port > 0 {
			port = strconv.Itoa(f.Port)
		}
		row := []string{
			f.Title, string(f.Severity), f.Host, f.Hostname, port, f.Protocol, f.Service, f.URL,
			f.Description, f.Evidence, f.Remediation, f.AISummary, f.SourceType,
			strings.Join(f.Tags, ";"), strings.Join(f.References, ";"),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
