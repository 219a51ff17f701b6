package export

import (
	"bytes"
	"html/template"
	"strings"
	"time"
)

var caseTemplate *template.Template

func init() {
	funcMap := template.FuncMap{
		"lower": strings.ToLower,
		"formatDate": func(t time.Time, layout string) string {
			return t.Format(layout)
		},
	}
	caseTemplate = template.Must(template.New("case").Funcs(funcMap).Parse(caseTemplateText))
}

// TemplateData holds data for case record rendering.
type TemplateData struct {
	CaseID      string
	Status      string
	CreatedAt   time.Time
	SideA       TemplateSide
	SideB       TemplateSide
	Decisions   []TemplateDecision
	GeneratedAt time.Time
}

// TemplateSide holds one party's submissions.
type TemplateSide struct {
	Label     string
	Documents []string
	Arguments []TemplateArgument
}

// TemplateArgument holds a single argument entry.
type TemplateArgument struct {
	Text      string
	CreatedAt time.Time
}

// TemplateDecision holds a single ruling entry.
type TemplateDecision struct {
	Round     int
	Verdict   string
	Reasoning string
	CreatedAt time.Time
}

// RenderCaseHTML renders the case record template with provided data.
func RenderCaseHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := caseTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const caseTemplateText = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.CaseID}}</title>
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.6; max-width: 800px; margin: 2rem auto; }
    h1 { border-bottom: 2px solid #333; padding-bottom: 0.5rem; }
    h2 { margin-top: 2rem; }
    .meta { color: #666; font-size: 0.9em; margin-bottom: 2rem; }
    .argument { background: #f5f5f5; padding: 1rem; margin: 1rem 0; border-left: 3px solid #333; }
    .decision { background: #eef3fa; padding: 1rem; margin: 1rem 0; border-left: 3px solid #1a4d8f; }
    .verdict { font-weight: bold; }
    ul.documents { color: #444; }
  </style>
</head>
<body>
  <h1>Case {{.CaseID}}</h1>
  <div class="meta">Status: {{.Status}} | Opened {{.CreatedAt.Format "Jan 2, 2006"}} | Exported {{.GeneratedAt.Format "Jan 2, 2006 15:04"}}</div>

  <h2>{{.SideA.Label}}</h2>
  {{if .SideA.Documents}}<ul class="documents">{{range .SideA.Documents}}<li>{{.}}</li>{{end}}</ul>{{else}}<p>No documents submitted.</p>{{end}}
  {{range .SideA.Arguments}}<div class="argument">{{.Text}}</div>{{else}}<p>No arguments submitted.</p>{{end}}

  <h2>{{.SideB.Label}}</h2>
  {{if .SideB.Documents}}<ul class="documents">{{range .SideB.Documents}}<li>{{.}}</li>{{end}}</ul>{{else}}<p>No documents submitted.</p>{{end}}
  {{range .SideB.Arguments}}<div class="argument">{{.Text}}</div>{{else}}<p>No arguments submitted.</p>{{end}}

  {{if .Decisions}}
  <h2>Rulings</h2>
  {{range .Decisions}}
  <div class="decision">
    <div class="verdict">Round {{.Round}}: {{.Verdict}}</div>
    <div>{{.Reasoning}}</div>
  </div>
  {{end}}
  {{end}}
</body>
</html>`
