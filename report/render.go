package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/template"
)

var funcs = template.FuncMap{
	"hex4": func(v uint16) string {
		return fmt.Sprintf("0x%04x", v)
	},
	"join": strings.Join,
}

var textTemplate = template.Must(template.New("report").Funcs(funcs).Parse(
	`Versions:
{{- range .Versions}}
  {{.Name}} ({{hex4 .Version}})
{{- end}}
Cipher suites:
{{- range .Ciphers}}
  {{.Name}} ({{hex4 .ID}})
{{- end}}
Compression: {{if .Compression}}offered{{else}}none{{end}}
SNI: {{if .SNI}}{{join .SNI ", "}}{{else}}(none){{end}}
ALPN: {{if .ALPN}}{{join .ALPN ", "}}{{else}}(none){{end}}
Extensions:
{{- range .Extensions}}
  {{.Name}} ({{.Type}})
{{- end}}
JA3: {{.JA3}}
JA3 hash: {{.JA3Hash}}
{{- if .Raw}}

Raw:
{{.Raw}}
{{- end}}
`))

func (r Report) WriteText(w io.Writer) error {
	return textTemplate.Execute(w, r)
}

func (r Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
