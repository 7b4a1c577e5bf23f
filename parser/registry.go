package parser

import (
	"fmt"
	"path/filepath"
	"strings"
)

type Registry struct {
	loaders map[string]Loader
}

func NewRegistry() *Registry {
	r := &Registry{loaders: make(map[string]Loader)}
	// Register built-in loaders
	pdf := &PDFLoader{}

	for _, l := range []Loader{pdf} {
		for _, f := range l.SupportedFormats() {
			r.loaders[f] = l
		}
	}
	return r
}

func (r *Registry) Get(format string) (Loader, error) {
	l, ok := r.loaders[format]
	if !ok {
		return nil, fmt.Errorf("no loader for format: %s", format)
	}
	return l, nil
}

func (r *Registry) Register(format string, l Loader) {
	r.loaders[format] = l
}

// Open picks a loader from the file extension and opens path.
func (r *Registry) Open(path string) (Document, error) {
	l, err := r.Get(Format(path))
	if err != nil {
		return nil, err
	}
	return l.Open(path)
}

// Format returns the lower-case extension of path without the dot.
func Format(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}
