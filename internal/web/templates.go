package web

import (
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	webembed "github.com/billslocker/backend/web"
)

// Templates holds one parsed template set per page.
type Templates struct {
	templates map[string]*template.Template
	logger    *zap.Logger
}

func funcMap(receiptBase string) template.FuncMap {
	return template.FuncMap{
		"title": func(v interface{}) string {
			s := fmt.Sprint(v)
			if s == "" {
				return s
			}
			return strings.ToUpper(s[:1]) + s[1:]
		},
		"date": func(v interface{}) string {
			switch t := v.(type) {
			case time.Time:
				return t.UTC().Format("2006-01-02")
			case *time.Time:
				if t == nil {
					return ""
				}
				return t.UTC().Format("2006-01-02")
			}
			return ""
		},
		"price": func(p *decimal.Decimal) string {
			if p == nil {
				return "-"
			}
			return p.StringFixed(2)
		},
		"receiptURL": func(path string) string {
			return receiptBase + path
		},
	}
}

// LoadTemplates parses every page together with the shared layout.
func LoadTemplates(receiptBase string, logger *zap.Logger) (*Templates, error) {
	tfs := webembed.TemplatesFS()

	layoutBytes, err := fs.ReadFile(tfs, "layout.html")
	if err != nil {
		return nil, fmt.Errorf("reading layout template: %w", err)
	}

	pages := []string{"list.html", "detail.html", "form.html"}
	ts := &Templates{templates: make(map[string]*template.Template), logger: logger}

	for _, page := range pages {
		pageBytes, err := fs.ReadFile(tfs, page)
		if err != nil {
			return nil, fmt.Errorf("reading template %s: %w", page, err)
		}

		tmpl := template.New(page).Funcs(funcMap(receiptBase))
		if tmpl, err = tmpl.Parse(string(layoutBytes)); err != nil {
			return nil, fmt.Errorf("parsing layout for %s: %w", page, err)
		}
		if tmpl, err = tmpl.Parse(string(pageBytes)); err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", page, err)
		}
		ts.templates[page] = tmpl
	}

	return ts, nil
}

// Render writes the named page inside the layout.
func (ts *Templates) Render(w http.ResponseWriter, status int, name string, data any) {
	tmpl, ok := ts.templates[name]
	if !ok {
		http.Error(w, "template not found", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := tmpl.ExecuteTemplate(w, "layout", data); err != nil {
		ts.logger.Error("failed to render template", zap.String("template", name), zap.Error(err))
	}
}

// PageData is embedded in every page's data.
type PageData struct {
	Title string
	Error string
}
