// Package templates embeds the few server-rendered pages of the portal.
package templates

import (
	"embed"
	"html/template"
	"io/fs"

	"github.com/gin-gonic/gin"
)

//go:embed *.html
var TemplateFS embed.FS

// Parse compiles every embedded page, each under its file name.
func Parse() (*template.Template, error) {
	tmpl := template.New("")

	files, err := fs.ReadDir(TemplateFS, ".")
	if err != nil {
		return nil, err
	}

	for _, file := range files {
		if file.IsDir() {
			continue
		}
		content, err := TemplateFS.ReadFile(file.Name())
		if err != nil {
			return nil, err
		}
		if _, err := tmpl.New(file.Name()).Parse(string(content)); err != nil {
			return nil, err
		}
	}
	return tmpl, nil
}

// LoadTemplates installs the embedded pages on the Gin engine.
func LoadTemplates(router *gin.Engine) error {
	tmpl, err := Parse()
	if err != nil {
		return err
	}
	router.SetHTMLTemplate(tmpl)
	return nil
}
