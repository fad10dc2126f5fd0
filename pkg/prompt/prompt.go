// Package prompt renders the language-model prompts from text templates.
//
// Templates are looked up in the local templates directory first so prompts can be tuned
// without rebuilding, then in the copy embedded into the binary. Shared fragments such as
// the response schema live in schema.tmpl and are available to every prompt.
package prompt

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"text/template"

	"github.com/lepinkainen/recipe-forge/templates"
)

const sharedTemplate = "schema.tmpl"

// Prompt template names
const (
	ExtractFast       = "extract_fast"
	ExtractDetailed   = "extract_detailed"
	ExtractAggressive = "extract_aggressive"
	Convert           = "convert"
)

// OverrideDir is the directory checked for prompt overrides, relative to the working directory
const OverrideDir = "templates"

// Renderer executes named prompt templates
type Renderer struct {
	mu        sync.Mutex
	templates map[string]*template.Template
	funcMap   template.FuncMap
	override  fs.FS
	fallback  fs.FS
}

// NewRenderer creates a renderer reading overrides from OverrideDir and falling back to
// the embedded prompts
func NewRenderer() *Renderer {
	return NewRendererFS(os.DirFS(OverrideDir), templates.EmbeddedTemplates)
}

// NewRendererFS creates a renderer over explicit filesystems. override may be nil.
func NewRendererFS(override, fallback fs.FS) *Renderer {
	return &Renderer{
		templates: make(map[string]*template.Template),
		funcMap:   TemplateFuncs(),
		override:  override,
		fallback:  fallback,
	}
}

// Render executes the named template with data and returns the prompt text
func (r *Renderer) Render(name string, data any) (string, error) {
	tmpl, err := r.load(name)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template %s: %w", name, err)
	}
	return buf.String(), nil
}

func (r *Renderer) load(name string) (*template.Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if tmpl, ok := r.templates[name]; ok {
		return tmpl, nil
	}

	fsys, err := r.resolveFS(name + ".tmpl")
	if err != nil {
		return nil, err
	}

	tmpl, err := template.New(name+".tmpl").Funcs(r.funcMap).ParseFS(fsys, name+".tmpl", sharedTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
	}

	r.templates[name] = tmpl
	slog.Debug("Prompt template loaded", "name", name)
	return tmpl, nil
}

// resolveFS picks the override filesystem when it carries both the template and the shared
// schema, else the embedded one
func (r *Renderer) resolveFS(file string) (fs.FS, error) {
	if r.override != nil {
		if _, err := fs.Stat(r.override, file); err == nil {
			if _, err := fs.Stat(r.override, sharedTemplate); err == nil {
				slog.Debug("Using template override", "file", file)
				return r.override, nil
			}
		}
	}
	if r.fallback == nil {
		return nil, fmt.Errorf("template %s not found", file)
	}
	if _, err := fs.Stat(r.fallback, file); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("template %s not found", file)
		}
		return nil, fmt.Errorf("failed to stat template %s: %w", file, err)
	}
	return r.fallback, nil
}
