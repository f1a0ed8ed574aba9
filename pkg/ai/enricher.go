package ai

import (
	"context"
	"fmt"
	"io"

	"github.com/hashicorp/go-hclog"

	"github.com/user/secreport/pkg/engine"
)

// Enricher fills ai_summary, severity and remediation on copies of the
// findings it is given. Without a provider, or when a provider call
// fails, local rules and templates are used.
type Enricher struct {
	provider    LLMProvider
	remediation *RemediationEngine
	logger      hclog.Logger
}

type EnricherOption func(*Enricher)

// WithProvider enables LLM completions. A nil provider is ignored.
func WithProvider(p LLMProvider) EnricherOption {
	return func(e *Enricher) { e.provider = p }
}

func WithRemediationEngine(r *RemediationEngine) EnricherOption {
	return func(e *Enricher) { e.remediation = r }
}

func WithLogger(l hclog.Logger) EnricherOption {
	return func(e *Enricher) {
		if l != nil {
			e.logger = l
		}
	}
}

func NewEnricher(opts ...EnricherOption) (*Enricher, error) {
	e := &Enricher{logger: hclog.NewNullLogger()}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.Named("enrich")
	if e.remediation == nil {
		r, err := NewRemediationEngine(e.logger)
		if err != nil {
			return nil, fmt.Errorf("load remediation templates: %w", err)
		}
		e.remediation = r
	}
	return e, nil
}

// Close releases the provider's client when it holds one.
func (e *Enricher) Close() error {
	if c, ok := e.provider.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Enrich returns enriched copies; the input slice is not modified.
func (e *Enricher) Enrich(ctx context.Context, findings []engine.Finding) ([]engine.Finding, error) {
	out := make([]engine.Finding, 0, len(findings))
	for i, f := range findings {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		enriched := f.Clone()
		enriched.Severity = e.severity(ctx, f)
		enriched.AISummary = e.summary(ctx, enriched)
		enriched.Remediation = e.remediate(ctx, enriched)
		out = append(out, enriched)
		e.logger.Debug("enriched finding", "index", i, "title", f.Title, "severity", enriched.Severity)
	}
	e.logger.Info("enrichment complete", "findings", len(out), "provider", e.provider != nil)
	return out, nil
}

func (e *Enricher) complete(ctx context.Context, task, prompt string) (string, bool) {
	if e.provider == nil {
		return "", false
	}
	answer, err := e.provider.Complete(ctx, prompt)
	if err != nil {
		e.logger.Warn("provider call failed, using local fallback", "task", task, "error", err)
		return "", false
	}
	return answer, true
}

func (e *Enricher) severity(ctx context.Context, f engine.Finding) engine.Severity {
	prompt, err := renderFindingPrompt("severity.tmpl", f)
	if err == nil {
		if answer, ok := e.complete(ctx, "severity", prompt); ok {
			if sev, ok := parseSeverityAnswer(answer); ok {
				return sev
			}
			e.logger.Warn("unusable severity answer, using rules", "title", f.Title, "answer", truncateText(answer, 80))
		}
	}
	return ClassifyByRules(f)
}

func (e *Enricher) summary(ctx context.Context, f engine.Finding) string {
	prompt, err := renderFindingPrompt("summary.tmpl", f)
	if err == nil {
		if answer, ok := e.complete(ctx, "summary", prompt); ok {
			return answer
		}
	}
	return TemplateSummary(f)
}

func (e *Enricher) remediate(ctx context.Context, f engine.Finding) string {
	prompt, err := renderFindingPrompt("remediation.tmpl", f)
	if err == nil {
		if answer, ok := e.complete(ctx, "remediation", prompt); ok {
			return answer
		}
	}
	plan, err := e.remediation.Suggest(f)
	if err != nil {
		e.logger.Warn("no remediation available", "title", f.Title, "error", err)
		return ""
	}
	return plan
}

// TemplateSummary is the summary used when no provider answers.
func TemplateSummary(f engine.Finding) string {
	where := ""
	if loc := f.Location(); loc != "" {
		where = " on " + loc
	}
	return fmt.Sprintf("A %s severity security issue was identified%s: %s. This finding requires review and remediation according to security best practices.",
		f.Severity, where, f.Title)
}

// ExecutiveSummary summarizes the whole finding set.
func (e *Enricher) ExecutiveSummary(ctx context.Context, findings []engine.Finding) string {
	prompt, err := renderExecutivePrompt(findings)
	if err == nil {
		if answer, ok := e.complete(ctx, "executive summary", prompt); ok {
			return answer
		}
	}
	s := engine.Summarize(findings)
	return fmt.Sprintf("This assessment identified %d security findings, %d of them rated critical or high. "+
		"Critical and high findings should be remediated first, followed by medium and low items. "+
		"Findings should be re-tested after remediation and covered by recurring scans.", s.Total, s.Urgent())
}
