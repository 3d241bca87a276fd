package http

import (
	"embed"
	"html/template"
	"io/fs"
	"strconv"
)

//go:embed templates/*.tmpl
var embeddedTemplates embed.FS

//go:embed assets/*
var embeddedAssets embed.FS

func parseTemplates() (*template.Template, error) {
	funcs := template.FuncMap{
		"step": func(v float64) string {
			return strconv.FormatFloat(v, 'f', -1, 64)
		},
	}
	return template.New("pages").Funcs(funcs).ParseFS(embeddedTemplates, "templates/*.tmpl")
}

// assetsFS the stylesheet and feed script served under /static/
func assetsFS() fs.FS {
	sub, err := fs.Sub(embeddedAssets, "assets")
	if err != nil {
		return embeddedAssets
	}
	return sub
}
