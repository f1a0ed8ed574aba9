package ai

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"text/template"

	"github.com/hashicorp/go-hclog"
	"gopkg.in/yaml.v3"

	"github.com/user/secreport/pkg/engine"
)

//go:embed remediation/*.yaml
var builtinTemplates embed.FS

// RemediationTemplate is a remediation playbook matched to findings by
// keyword.
type RemediationTemplate struct {
	ID                string   `yaml:"id"`
	Name              string   `yaml:"name"`
	Priority          int      `yaml:"priority"`
	Match             []string `yaml:"match"`
	Issue             string   `yaml:"issue"`
	Risk              string   `yaml:"risk"`
	Standard          string   `yaml:"standard"`
	Steps             string   `yaml:"steps"`
	FixCommand        string   `yaml:"fix_command"`
	ValidationCommand string   `yaml:"validation_command"`
	RollbackCommand   string   `yaml:"rollback_command"`
	Variables         []string `yaml:"variables"`
}

// RemediationEngine manages remediation templates
type RemediationEngine struct {
	Templates map[string]RemediationTemplate
	logger    hclog.Logger
}

// NewRemediationEngine returns an engine loaded with the built-in templates.
func NewRemediationEngine(logger hclog.Logger) (*RemediationEngine, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	e := &RemediationEngine{
		Templates: make(map[string]RemediationTemplate),
		logger:    logger.Named("remediation"),
	}
	if err := e.loadFS(builtinTemplates, "remediation"); err != nil {
		return nil, err
	}
	return e, nil
}

// LoadTemplates reads YAML templates from a directory. Templates replace
// built-ins with the same ID.
func (e *RemediationEngine) LoadTemplates(dir string) error {
	return e.loadFS(os.DirFS(dir), ".")
}

func (e *RemediationEngine) loadFS(fsys fs.FS, dir string) error {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		ext := filepath.Ext(entry.Name())
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		data, err := fs.ReadFile(fsys, filepath.ToSlash(filepath.Join(dir, entry.Name())))
		if err != nil {
			return err
		}

		var t RemediationTemplate
		if err := yaml.Unmarshal(data, &t); err != nil {
			return fmt.Errorf("failed to parse %s: %w", entry.Name(), err)
		}
		if t.ID == "" {
			return fmt.Errorf("%s: template has no id", entry.Name())
		}
		e.Templates[t.ID] = t
		e.logger.Debug("loaded remediation template", "id", t.ID, "file", entry.Name())
	}
	return nil
}

// ListTemplates returns a list of available template IDs and descriptions
func (e *RemediationEngine) ListTemplates() []string {
	var list []string
	for _, t := range e.ordered() {
		list = append(list, fmt.Sprintf("%s: %s", t.ID, t.Name))
	}
	return list
}

// ordered sorts templates by descending priority, then ID.
func (e *RemediationEngine) ordered() []RemediationTemplate {
	out := make([]RemediationTemplate, 0, len(e.Templates))
	for _, t := range e.Templates {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Match returns the highest priority template whose keywords appear in the
// finding, or the "generic" template.
func (e *RemediationEngine) Match(f engine.Finding) (RemediationTemplate, bool) {
	text := strings.ToLower(strings.Join([]string{f.Title, f.Description, f.Service, f.SourceType}, " "))
	for _, t := range e.ordered() {
		for _, kw := range t.Match {
			if matchKeyword(text, strings.ToLower(kw)) {
				return t, true
			}
		}
	}
	t, ok := e.Templates["generic"]
	return t, ok
}

// Suggest renders the plan of the best matching template for f.
func (e *RemediationEngine) Suggest(f engine.Finding) (string, error) {
	t, ok := e.Match(f)
	if !ok {
		return "", fmt.Errorf("no remediation template for %q", f.Title)
	}
	plan, err := e.GeneratePlan(t.ID, FindingVars(f))
	if err != nil && t.ID != "generic" {
		e.logger.Debug("template not applicable, using generic", "template", t.ID, "error", err)
		return e.GeneratePlan("generic", FindingVars(f))
	}
	return plan, err
}

// FindingVars exposes finding fields to templates.
func FindingVars(f engine.Finding) map[string]string {
	vars := map[string]string{
		"Title":    f.Title,
		"Host":     f.Host,
		"URL":      f.URL,
		"Service":  f.Service,
		"Location": f.Location(),
	}
	if f.Port > 0 {
		vars["Port"] = strconv.Itoa(f.Port)
	}
	if vars["Location"] == "" {
		vars["Location"] = "the affected system"
	}
	return vars
}

// GeneratePlan creates a remediation plan from a template and variables
func (e *RemediationEngine) GeneratePlan(id string, vars map[string]string) (string, error) {
	tmpl, ok := e.Templates[id]
	if !ok {
		return "", fmt.Errorf("template not found: %s", id)
	}

	for _, requiredVar := range tmpl.Variables {
		if vars[requiredVar] == "" {
			return "", fmt.Errorf("missing required variable: %s", requiredVar)
		}
	}

	sections := []struct {
		name, label, body string
	}{
		{"steps", "Steps", tmpl.Steps},
		{"fix", "Suggested Fix", tmpl.FixCommand},
		{"validate", "Validation", tmpl.ValidationCommand},
		{"rollback", "Rollback", tmpl.RollbackCommand},
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Issue: %s\n", tmpl.Issue))
	sb.WriteString(fmt.Sprintf("Risk: %s\n", tmpl.Risk))
	sb.WriteString(fmt.Sprintf("Standard: %s\n", tmpl.Standard))
	for _, s := range sections {
		if strings.TrimSpace(s.body) == "" {
			continue
		}
		rendered, err := renderString(s.name, s.body, vars)
		if err != nil {
			return "", err
		}
		sb.WriteString(fmt.Sprintf("\n%s:\n%s\n", s.label, strings.TrimSpace(rendered)))
	}
	return sb.String(), nil
}

func renderString(name, tmplStr string, vars map[string]string) (string, error) {
	t, err := template.New(name).Option("missingkey=zero").Parse(tmplStr)
	if err != nil {
		return "", fmt.Errorf("failed to parse template %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, vars); err != nil {
		return "", fmt.Errorf("failed to execute template %s: %w", name, err)
	}
	return buf.String(), nil
}
