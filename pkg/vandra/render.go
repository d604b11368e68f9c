package vandra

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/otiai10/copy"
	"k8s.io/klog/v2"
)

//go:embed assets/*.tmpl
var templates embed.FS

//go:embed assets/style.css
var styleText []byte

// Template names.
const (
	TrackTemplate = "track.tmpl"
	IndexTemplate = "index.tmpl"
)

// Renderer executes a named page template.
type Renderer interface {
	Render(w io.Writer, name string, data any) error
}

// TemplateRenderer renders the built-in html/template pages.
type TemplateRenderer struct {
	tmpl *template.Template
}

// NewTemplateRenderer parses the built-in templates.
func NewTemplateRenderer() (*TemplateRenderer, error) {
	tmpl, err := template.New("pages").Funcs(tmplFunctions()).ParseFS(templates, "assets/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	return &TemplateRenderer{tmpl: tmpl}, nil
}

// Render executes the template called name.
func (r *TemplateRenderer) Render(w io.Writer, name string, data any) error {
	return r.tmpl.ExecuteTemplate(w, name, data)
}

// writePage renders a template to path, creating parent directories.
func writePage(r Renderer, path string, name string, data any) error {
	var buf bytes.Buffer
	if err := r.Render(&buf, name, data); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}

	klog.V(1).Infof("writing %s", path)
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// writeAssets writes the stylesheet and any user-supplied assets to outDir/static.
func writeAssets(inDir string, outDir string) error {
	staticDir := filepath.Join(outDir, "static")
	if err := os.MkdirAll(staticDir, 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}

	if err := os.WriteFile(filepath.Join(staticDir, "style.css"), styleText, 0o644); err != nil {
		return fmt.Errorf("write style: %w", err)
	}

	if inDir == "" {
		return nil
	}

	for _, ext := range []string{"png", "css", "jpg", "gif", "svg", "js"} {
		src := fmt.Sprintf("%s/*.%s", inDir, ext)
		ms, err := filepath.Glob(src)
		if err != nil {
			return err
		}
		klog.V(1).Infof("copying %d assets from %s", len(ms), src)
		for _, m := range ms {
			if err := copy.Copy(m, filepath.Join(staticDir, filepath.Base(m))); err != nil {
				return err
			}
		}
	}
	return nil
}

// tmplFunctions are functions available to our templates.
func tmplFunctions() template.FuncMap {
	return template.FuncMap{
		"Odd": func(i int) bool {
			return i%2 == 1
		},
		"Date": func(t time.Time) string {
			return t.Format("2006-01-02")
		},
		"Km": func(m float64) string {
			return fmt.Sprintf("%.1f", m/1000)
		},
	}
}
