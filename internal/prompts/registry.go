package prompts

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"sync"
	"text/template"
)

//go:embed templates/common/*.tmpl templates/planner/*.tmpl templates/spec/*.tmpl templates/docqa/*.tmpl
var templateFS embed.FS

type registry struct {
	mu        sync.RWMutex
	templates map[PromptID]*template.Template
	sources   map[PromptID]string
	funcMap   template.FuncMap
}

var globalRegistry = &registry{
	templates: make(map[PromptID]*template.Template),
	sources:   make(map[PromptID]string),
	funcMap:   defaultFuncMap(),
}

func defaultFuncMap() template.FuncMap {
	return template.FuncMap{
		"join": strings.Join,
		"hasContent": func(s string) bool {
			return strings.TrimSpace(s) != ""
		},
		"bullets": func(items []string) string {
			lines := make([]string, len(items))
			for i, item := range items {
				lines[i] = "- " + item
			}
			return strings.Join(lines, "\n")
		},
		"score": func(f float64) string {
			return fmt.Sprintf("%.3f", f)
		},
		"inc": func(i int) int { return i + 1 },
	}
}

func init() {
	if err := globalRegistry.loadAll(); err != nil {
		panic(fmt.Sprintf("failed to load embedded templates: %v", err))
	}
}

func (r *registry) loadAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	common, err := r.loadCommon()
	if err != nil {
		return fmt.Errorf("loading common templates: %w", err)
	}

	return fs.WalkDir(templateFS, "templates", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(p, ".tmpl") || strings.Contains(p, "/common/") {
			return nil
		}

		content, err := templateFS.ReadFile(p)
		if err != nil {
			return fmt.Errorf("reading template %s: %w", p, err)
		}

		id := pathToPromptID(p)
		tmpl := template.New(string(id)).Funcs(r.funcMap)
		for name, c := range common {
			if _, err := tmpl.AddParseTree(name, c.Tree); err != nil {
				return fmt.Errorf("adding common template %s: %w", name, err)
			}
		}
		if _, err := tmpl.Parse(string(content)); err != nil {
			return fmt.Errorf("parsing template %s: %w", p, err)
		}

		r.templates[id] = tmpl
		r.sources[id] = string(content)
		return nil
	})
}

// loadCommon parses templates/common/*.tmpl as "common/<name>" so other
// templates can {{template "common/<name>" .}} them.
func (r *registry) loadCommon() (map[string]*template.Template, error) {
	common := make(map[string]*template.Template)

	entries, err := templateFS.ReadDir("templates/common")
	if err != nil {
		return common, nil
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".tmpl") {
			continue
		}
		p := path.Join("templates/common", entry.Name())
		content, err := templateFS.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("reading common template %s: %w", p, err)
		}
		name := "common/" + strings.TrimSuffix(entry.Name(), ".tmpl")
		tmpl, err := template.New(name).Funcs(r.funcMap).Parse(string(content))
		if err != nil {
			return nil, fmt.Errorf("parsing common template %s: %w", p, err)
		}
		common[name] = tmpl
	}
	return common, nil
}

func pathToPromptID(p string) PromptID {
	id := strings.TrimPrefix(p, "templates/")
	return PromptID(strings.TrimSuffix(id, ".tmpl"))
}

func (r *registry) get(id PromptID) (*template.Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tmpl, ok := r.templates[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
	}
	return tmpl, nil
}

func (r *registry) source(id PromptID) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	src, ok := r.sources[id]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
	}
	return src, nil
}

func (r *registry) list() []PromptID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]PromptID, 0, len(r.templates))
	for id := range r.templates {
		ids = append(ids, id)
	}
	return ids
}
