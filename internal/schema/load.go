package schema

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

// Layer is one queryable document type: the index it lives in, its
// optional mapping type, and its attribute schema.
type Layer struct {
	Name    string
	Index   string
	DocType string
	Schema  *Schema
}

// Catalog holds the configured layers by name.
type Catalog struct {
	layers map[string]*Layer
}

// LayerSpec is the configuration form of a Layer.
type LayerSpec struct {
	Name       string          `yaml:"name" json:"name"`
	Index      string          `yaml:"index,omitempty" json:"index,omitempty"`
	DocType    string          `yaml:"type,omitempty" json:"type,omitempty"`
	Attributes []AttributeSpec `yaml:"attributes" json:"attributes"`
}

// File is the top-level layout of a layer configuration file.
type File struct {
	Layers []LayerSpec `yaml:"layers" json:"layers"`
}

// ErrUnknownLayer is returned by Catalog.Layer for names not configured.
var ErrUnknownLayer = errors.New("unknown layer")

// LoadFile reads a layer configuration. The format is chosen by extension:
// .cue files are evaluated with CUE, anything else is parsed as YAML (which
// also accepts JSON).
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read layer config: %w", err)
	}
	if filepath.Ext(path) == ".cue" {
		return LoadCUE(data, filepath.Base(path))
	}
	return LoadYAML(bytes.NewReader(data))
}

// LoadYAML parses a YAML layer configuration. Unknown keys are rejected so
// a misspelled "analysed" fails loudly instead of silently defaulting.
func LoadYAML(r io.Reader) (*Catalog, error) {
	var f File
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return NewCatalog(f.Layers)
}

// LoadCUE evaluates a CUE layer configuration. The document must define a
// top-level "layers" list with the same shape as the YAML form; CUE
// constraints and defaults in the file are resolved before decoding.
func LoadCUE(data []byte, filename string) (*Catalog, error) {
	ctx := cuecontext.New()
	value := ctx.CompileBytes(data, cue.Filename(filename))
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("building CUE value: %w", err)
	}

	layersVal := value.LookupPath(cue.ParsePath("layers"))
	if !layersVal.Exists() {
		return nil, fmt.Errorf("%s: no layers defined", filename)
	}
	if err := layersVal.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("%s: layers: %w", filename, err)
	}

	var specs []LayerSpec
	if err := layersVal.Decode(&specs); err != nil {
		return nil, fmt.Errorf("%s: decoding layers: %w", filename, err)
	}
	return NewCatalog(specs)
}

// NewCatalog validates layer specs and builds their schemas. A layer with
// no index uses its name as the index.
func NewCatalog(specs []LayerSpec) (*Catalog, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("no layers defined")
	}

	c := &Catalog{layers: make(map[string]*Layer, len(specs))}
	for i, spec := range specs {
		if spec.Name == "" {
			return nil, fmt.Errorf("layer %d: name is required", i)
		}
		if _, dup := c.layers[spec.Name]; dup {
			return nil, fmt.Errorf("duplicate layer %q", spec.Name)
		}
		s, err := New(spec.Name, spec.Attributes)
		if err != nil {
			return nil, err
		}
		index := spec.Index
		if index == "" {
			index = spec.Name
		}
		c.layers[spec.Name] = &Layer{
			Name:    spec.Name,
			Index:   index,
			DocType: spec.DocType,
			Schema:  s,
		}
	}
	return c, nil
}

// Layer returns the named layer.
func (c *Catalog) Layer(name string) (*Layer, error) {
	l, ok := c.layers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLayer, name)
	}
	return l, nil
}

// Names returns the layer names in sorted order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.layers))
	for name := range c.layers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
