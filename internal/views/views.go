// Package views renders the HTML pages through Fiber's Views interface.
package views

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"path"
	"strings"
	"sync"
	"time"

	"inkwell/internal/models"
)

//go:embed templates/*.html
var embedded embed.FS

const layoutFile = "layout.html"

// Flash is a one-shot message shown on the next rendered page.
type Flash struct {
	Category string `json:"c"`
	Message  string `json:"m"`
}

// Page is the data every template receives.
type Page struct {
	Title    string
	Name     string
	LoggedIn bool
	Flashes  []Flash
	Posts    []*models.Post
	Post     *models.Post
	Form     map[string]string
	Status   int
	Message  string
	LiveFeed bool
}

// Engine is a fiber.Views implementation backed by html/template.
// Each page is parsed together with the shared layout into its own set.
type Engine struct {
	files fs.FS

	mu    sync.RWMutex
	pages map[string]*template.Template
}

// New returns an engine over the embedded templates.
func New() *Engine {
	sub, err := fs.Sub(embedded, "templates")
	if err != nil {
		panic(err)
	}
	return NewFromFS(sub)
}

// NewFromFS returns an engine over files, which must hold layout.html and the pages.
func NewFromFS(files fs.FS) *Engine {
	return &Engine{files: files}
}

func (e *Engine) Load() error {
	entries, err := fs.Glob(e.files, "*.html")
	if err != nil {
		return err
	}

	pages := make(map[string]*template.Template, len(entries))
	for _, file := range entries {
		if file == layoutFile {
			continue
		}
		t, err := template.New(file).Funcs(funcs).ParseFS(e.files, layoutFile, file)
		if err != nil {
			return fmt.Errorf("parse %s: %w", file, err)
		}
		pages[strings.TrimSuffix(file, path.Ext(file))] = t
	}

	e.mu.Lock()
	e.pages = pages
	e.mu.Unlock()
	return nil
}

// Render executes the named page. With a layout name the layout wraps the page's
// "content" block; without one only the block is written.
func (e *Engine) Render(w io.Writer, name string, binding interface{}, layout ...string) error {
	e.mu.RLock()
	t, ok := e.pages[name]
	e.mu.RUnlock()
	if !ok {
		return fmt.Errorf("views: template %q not found", name)
	}

	entry := "content"
	if len(layout) > 0 && layout[0] != "" {
		entry = layout[0]
	}
	return t.ExecuteTemplate(w, entry, binding)
}

// Has reports whether a page exists.
func (e *Engine) Has(name string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.pages[name]
	return ok
}

var funcs = template.FuncMap{
	"uploadURL": func(name string) string {
		return "/static/uploads/" + name
	},
	"formatDate": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format("January 2, 2006 at 15:04")
	},
	"alertClass": func(category string) string {
		switch category {
		case "success", "info", "warning", "danger":
			return category
		}
		return "info"
	},
	"formValue": func(form map[string]string, key string) string {
		return form[key]
	},
}
