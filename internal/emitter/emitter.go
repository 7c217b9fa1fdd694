// Package emitter renders a generated test suite into downloadable formats
package emitter

import (
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"sort"

	"github.com/foxhui123/AutoQA/internal/mindmap"
	"github.com/foxhui123/AutoQA/internal/suite"
)

// Emitter writes a test suite in one format
type Emitter interface {
	// Name returns the format name (e.g., "markdown", "xmind")
	Name() string

	// ContentType returns the MIME type of the output
	ContentType() string

	// FileName returns the download name for a suite
	FileName(s *suite.TestSuite) string

	// Emit writes the suite to w
	Emit(w io.Writer, s *suite.TestSuite) error
}

// Registry holds all available emitters
type Registry struct {
	emitters map[string]Emitter
}

// NewRegistry creates a new emitter registry with all built-in emitters
func NewRegistry() *Registry {
	r := &Registry{
		emitters: make(map[string]Emitter),
	}

	r.Register(&MarkdownEmitter{})
	r.Register(&XMindEmitter{})
	r.Register(&CSVEmitter{})
	r.Register(&JSONEmitter{})
	r.Register(&TableEmitter{})
	r.Register(&SVGEmitter{Width: mindmap.DefaultWidth, Height: mindmap.DefaultHeight})

	return r
}

// Register adds an emitter to the registry
func (r *Registry) Register(e Emitter) {
	r.emitters[e.Name()] = e
}

// Get returns an emitter by name
func (r *Registry) Get(name string) (Emitter, error) {
	e, ok := r.emitters[name]
	if !ok {
		return nil, fmt.Errorf("emitter not found: %s", name)
	}
	return e, nil
}

// List returns all registered emitter names, sorted
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.emitters))
	for name := range r.emitters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var whitespace = regexp.MustCompile(`\s+`)

func baseName(s *suite.TestSuite) string {
	name := mindmap.FallbackRootName
	if s != nil && s.FeatureName != "" {
		name = s.FeatureName
	}
	return whitespace.ReplaceAllString(name, "_") + "_测试用例"
}

// MarkdownEmitter writes the copy-as-text markdown document
type MarkdownEmitter struct{}

func (e *MarkdownEmitter) Name() string                       { return "markdown" }
func (e *MarkdownEmitter) ContentType() string                { return "text/markdown; charset=utf-8" }
func (e *MarkdownEmitter) FileName(s *suite.TestSuite) string { return baseName(s) + ".md" }

func (e *MarkdownEmitter) Emit(w io.Writer, s *suite.TestSuite) error {
	_, err := io.WriteString(w, suite.Markdown(s))
	return err
}

// XMindEmitter writes an .xmind mind map archive
type XMindEmitter struct{}

func (e *XMindEmitter) Name() string                       { return "xmind" }
func (e *XMindEmitter) ContentType() string                { return "application/vnd.xmind.workbook" }
func (e *XMindEmitter) FileName(s *suite.TestSuite) string { return suite.XMindFileName(s) }

func (e *XMindEmitter) Emit(w io.Writer, s *suite.TestSuite) error {
	return suite.WriteXMind(w, s)
}

// CSVEmitter writes the table as CSV
type CSVEmitter struct{}

func (e *CSVEmitter) Name() string                       { return "csv" }
func (e *CSVEmitter) ContentType() string                { return "text/csv; charset=utf-8" }
func (e *CSVEmitter) FileName(s *suite.TestSuite) string { return baseName(s) + ".csv" }

func (e *CSVEmitter) Emit(w io.Writer, s *suite.TestSuite) error {
	return suite.WriteCSV(w, s)
}

// JSONEmitter writes the suite as indented JSON
type JSONEmitter struct{}

func (e *JSONEmitter) Name() string                       { return "json" }
func (e *JSONEmitter) ContentType() string                { return "application/json" }
func (e *JSONEmitter) FileName(s *suite.TestSuite) string { return baseName(s) + ".json" }

func (e *JSONEmitter) Emit(w io.Writer, s *suite.TestSuite) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(s)
}

// TableEmitter writes an aligned plain-text table
type TableEmitter struct{}

func (e *TableEmitter) Name() string                       { return "table" }
func (e *TableEmitter) ContentType() string                { return "text/plain; charset=utf-8" }
func (e *TableEmitter) FileName(s *suite.TestSuite) string { return baseName(s) + ".txt" }

func (e *TableEmitter) Emit(w io.Writer, s *suite.TestSuite) error {
	return suite.WriteTable(w, s)
}

// SVGEmitter renders the mind map at a fixed size with no pan or zoom
type SVGEmitter struct {
	Width, Height float64
}

func (e *SVGEmitter) Name() string                       { return "svg" }
func (e *SVGEmitter) ContentType() string                { return "image/svg+xml" }
func (e *SVGEmitter) FileName(s *suite.TestSuite) string { return baseName(s) + ".svg" }

func (e *SVGEmitter) Emit(w io.Writer, s *suite.TestSuite) error {
	c := mindmap.NewCanvas(e.Width, e.Height)
	c.SetSuite(s)
	return c.RenderSVG(w)
}
