package render

import (
	"bytes"
	"embed"
	"html/template"
	"maps"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

//go:embed templates/*.html
var templateFS embed.FS

// Template names for the built-in document layouts
const (
	TemplateCertificate  = "certificate"
	TemplatePrescription = "prescription"
)

// CertificateData is the data bound to the medical certificate template
type CertificateData struct {
	Code          string
	DoctorName    string
	DoctorCRM     string
	Specialty     string
	ClinicName    string
	ClinicPhone   string
	SignatureURL  string
	PatientName   string
	PatientDoc    string
	Purpose       string
	RestDays      int
	CID           string
	IssuedAt      time.Time
	VerifyBaseURL string
}

// PrescriptionData is the data bound to the prescription template
type PrescriptionData struct {
	Code          string
	DoctorName    string
	DoctorCRM     string
	Specialty     string
	ClinicName    string
	ClinicPhone   string
	SignatureURL  string
	PatientName   string
	PatientDoc    string
	Medications   []MedicationLine
	Instructions  string
	IssuedAt      time.Time
	VerifyBaseURL string
}

// MedicationLine is one prescribed item
type MedicationLine struct {
	Name     string
	Dosage   string
	Quantity string
	Notes    string
}

// TemplateEngine renders the built-in document templates into HTML.
// It uses Go's html/template package with custom formatting functions.
type TemplateEngine struct {
	funcMap   template.FuncMap
	templates *template.Template
}

// NewTemplateEngine creates a template engine with the built-in layouts parsed
func NewTemplateEngine() (*TemplateEngine, error) {
	e := &TemplateEngine{}

	e.funcMap = template.FuncMap{
		// Date formatting
		"formatDate":     formatDate,
		"formatDateTime": formatDateTime,

		// String utilities
		"upper":      strings.ToUpper,
		"lower":      strings.ToLower,
		"title":      titleCase,
		"trim":       strings.TrimSpace,
		"join":       strings.Join,
		"replace":    strings.ReplaceAll,
		"hasPrefix":  strings.HasPrefix,
		"trimPrefix": strings.TrimPrefix,

		// Conditional
		"default": defaultFunc,

		// Safe HTML, only for trusted system-generated content
		"safeHTML": safeHTML,
		"safeCSS":  safeCSS,
		"safeURL":  safeURL,

		// Misc
		"now": time.Now,
	}

	tmpl, err := template.New("documents").Funcs(e.funcMap).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, NewRenderError(ErrCodeInvalidHTML, "failed to parse built-in templates", err)
	}
	e.templates = tmpl

	return e, nil
}

// Render renders a named built-in template with the provided data
func (e *TemplateEngine) Render(name string, data interface{}) (string, error) {
	tmpl := e.templates.Lookup(name + ".html")
	if tmpl == nil {
		return "", NewRenderError(ErrCodeInvalidHTML, "unknown template: "+name, nil)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", NewRenderError(ErrCodeRenderFailed, "failed to execute template "+name, err)
	}

	return buf.String(), nil
}

// RenderString renders an ad-hoc template string with the provided data
func (e *TemplateEngine) RenderString(name, content string, data interface{}) (string, error) {
	if content == "" {
		return "", NewRenderError(ErrCodeInvalidHTML, "template content is empty", nil)
	}

	tmpl, err := template.New(name).Funcs(e.funcMap).Parse(content)
	if err != nil {
		return "", NewRenderError(ErrCodeInvalidHTML, "failed to parse template", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", NewRenderError(ErrCodeRenderFailed, "failed to execute template", err)
	}

	return buf.String(), nil
}

// GetFuncMap returns a copy of the template function map
func (e *TemplateEngine) GetFuncMap() template.FuncMap {
	funcMap := make(template.FuncMap, len(e.funcMap))
	maps.Copy(funcMap, e.funcMap)
	return funcMap
}

// formatDate formats a time value as date string
// Example: time.Now() -> "2026-01-15"
func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("02/01/2006")
}

// formatDateTime formats a time value as datetime string
func formatDateTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("02/01/2006 15:04")
}

// titleCase converts string to title case using proper Unicode handling
func titleCase(s string) string {
	caser := cases.Title(language.BrazilianPortuguese)
	return caser.String(s)
}

func defaultFunc(def, val interface{}) interface{} {
	if val == nil {
		return def
	}
	if s, ok := val.(string); ok && s == "" {
		return def
	}
	return val
}

// safeHTML marks a string as safe HTML, bypassing automatic escaping.
// SECURITY: Only use with trusted, non-user-generated content.
func safeHTML(s string) template.HTML {
	return template.HTML(s)
}

// safeCSS marks a string as safe CSS, bypassing automatic escaping.
// SECURITY: Only use with trusted, non-user-generated content.
func safeCSS(s string) template.CSS {
	return template.CSS(s)
}

// safeURL marks a string as safe URL, bypassing automatic escaping.
// SECURITY: Only use with trusted, non-user-generated content.
func safeURL(s string) template.URL {
	return template.URL(s)
}
