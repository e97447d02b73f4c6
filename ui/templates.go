package ui

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"github.com/rs/zerolog/log"
)

//go:embed templates/*.html
var templatesFS embed.FS

var templates *template.Template

func init() {
	funcMap := template.FuncMap{
		"ownerOrDash": func(owner string) string {
			if owner == "" {
				return "-"
			}
			return owner
		},
	}

	templates = template.Must(template.New("").Funcs(funcMap).ParseFS(templatesFS, "templates/*.html"))
}

// RenderTemplate renders a template with the given data and status code
func RenderTemplate(w http.ResponseWriter, status int, templateName string, data interface{}) {
	var buf bytes.Buffer
	err := templates.ExecuteTemplate(&buf, templateName, data)
	if err != nil {
		log.Error().Err(err).Str("template", templateName).Msg("failed to render template")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}
