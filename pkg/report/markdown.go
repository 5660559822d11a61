package report

import (
	"fmt"
	"io"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"

	"github.com/user/sentinel-adk/pkg/engine"
)

const markdownTemplate = `# Security Report: {{ .Target }}

| Field | Value |
|---|---|
| Scan ID | ` + "`{{ .ScanID }}`" + ` |
| Status | {{ .Status }} |
| Mode | {{ .Mode | default "full" | title }} |
| Generated | {{ dateInZone "2006-01-02 15:04 MST" .GeneratedAt "UTC" }} |
| Risk Score | **{{ .Risk.Score }}/100 ({{ .Risk.Level }})** |

## Summary

| Severity | Count |
|---|---|
{{- range .Summary }}
| {{ .Severity }} | {{ .Count }} |
{{- end }}

## Findings
{{ if not .Findings }}
No findings.
{{ end }}
{{- range $i, $f := .Findings }}
### {{ add1 $i }}. {{ $f.Issue }}

- **ID:** {{ $f.ID }}
- **Severity:** {{ $f.Severity }}
- **Category:** {{ $f.Category }}
{{- if $f.Source }}
- **Source:** {{ $f.Source }}
{{- end }}
{{- if $f.Controls }}
- **Controls:** {{ controls $f.Controls }}
{{- end }}

{{ $f.Description | default "No description." }}

` + "```" + `
{{ $f.Evidence | default "N/A" | trim }}
` + "```" + `
{{ if $f.Remediation }}
**Remediation:**

{{ $f.Remediation | trim }}
{{ end }}
{{- end }}
{{- if .Logs }}
## Activity

{{- range .Logs }}
- ` + "`{{ dateInZone \"15:04:05\" .Time \"UTC\" }}`" + ` {{ .Text }}
{{- end }}
{{ end -}}
`

var markdownTmpl = template.Must(template.New("report").
	Funcs(sprig.TxtFuncMap()).
	Funcs(template.FuncMap{"controls": joinControls}).
	Parse(markdownTemplate))

// WriteMarkdown renders r as a markdown document.
func WriteMarkdown(w io.Writer, r Report) error {
	if err := markdownTmpl.Execute(w, r); err != nil {
		return fmt.Errorf("render markdown report: %w", err)
	}
	return nil
}

func joinControls(refs []engine.ControlRef) string {
	parts := make([]string, len(refs))
	for i, r := range refs {
		parts[i] = r.String()
	}
	return strings.Join(parts, ", ")
}
