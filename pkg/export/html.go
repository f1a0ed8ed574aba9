package export

import (
	"bytes"
	"html/template"
	"io"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"

	"github.com/user/secreport/pkg/engine"
)

var markdownRenderer = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(gmhtml.WithHardWraps()),
)

var pageTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: -apple-system, "Segoe UI", Helvetica, Arial, sans-serif; max-width: 960px; margin: 2em auto; color: #222; line-height: 1.5; }
h1 { border-bottom: 3px solid #2c3e50; padding-bottom: .3em; }
h3 { margin-top: 2em; }
table { border-collapse: collapse; }
th, td { border: 1px solid #ccc; padding: 4px 12px; }
pre { background: #f6f8fa; padding: 1em; overflow-x: auto; white-space: pre-wrap; }
hr { border: 0; border-top: 1px solid #eee; }
@media print { pre { page-break-inside: avoid; } }
</style>
</head>
<body>
{{.Body}}
</body>
</html>
`))

// htmlFormatter renders the markdown report through goldmark. Raw HTML in
// finding text is escaped before rendering and goldmark drops any that
// remains.
type htmlFormatter struct{}

func (htmlFormatter) Format(w io.Writer, findings []engine.Finding, meta Metadata) error {
	var md bytes.Buffer
	if err := (markdownFormatter{}).Format(&md, findings, meta); err != nil {
		return err
	}
	var body bytes.Buffer
	if err := markdownRenderer.Convert(md.Bytes(), &body); err != nil {
		return err
	}
	return pageTemplate.Execute(w, struct {
		Title string
		Body  template.HTML
	}{Title: meta.Title, Body: template.HTML(body.String())})
}
