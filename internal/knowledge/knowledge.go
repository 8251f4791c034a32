// Package knowledge provides the static concept store used to ground tutoring answers.
//
// A knowledge document is loaded once at startup and is read-only afterwards,
// so a *Base can be shared by concurrent requests without locking.
package knowledge

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where the knowledge document is looked up when none is configured.
const DefaultPath = "static/knowledge.json"

// Concept is a single knowledge entry pairing keywords with explanations.
type Concept struct {
	Keywords             []string `json:"keywords" yaml:"keywords"`
	Definition           string   `json:"definition" yaml:"definition"`
	Analogies            []string `json:"analogies,omitempty" yaml:"analogies,omitempty"`
	PsychologyStrategies []string `json:"psychology_strategies,omitempty" yaml:"psychology_strategies,omitempty"`
}

// Document is the on-disk shape of a knowledge file.
type Document struct {
	Concepts []Concept `json:"concepts" yaml:"concepts"`
}

// Base is an immutable, ordered collection of concepts.
type Base struct {
	concepts []Concept
}

// NewBase creates a Base from concepts, keeping their order.
func NewBase(concepts []Concept) *Base {
	cp := make([]Concept, len(concepts))
	copy(cp, concepts)
	return &Base{concepts: cp}
}

// Len returns the number of concepts in the base.
func (b *Base) Len() int {
	if b == nil {
		return 0
	}
	return len(b.concepts)
}

// Concepts returns the concepts in load order.
func (b *Base) Concepts() []Concept {
	if b == nil {
		return nil
	}
	return b.concepts
}

// Load reads a knowledge document from path. YAML is used for .yaml/.yml files
// and JSON otherwise. On any failure it returns an empty, usable Base together
// with the error so callers can degrade instead of aborting.
func Load(path string) (*Base, error) {
	slog.Debug("knowledge.Load: reading knowledge document", "path", path)

	data, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("knowledge.Load: failed to read knowledge document, continuing with empty base", "path", path, "error", err)
		return NewBase(nil), fmt.Errorf("failed to read knowledge document: %w", err)
	}

	doc, err := Parse(data, filepath.Ext(path))
	if err != nil {
		slog.Warn("knowledge.Load: failed to parse knowledge document, continuing with empty base", "path", path, "error", err)
		return NewBase(nil), err
	}

	slog.Info("knowledge.Load: knowledge base loaded", "path", path, "concepts", len(doc.Concepts))
	return NewBase(doc.Concepts), nil
}

// Parse decodes a knowledge document. ext selects the format (".yaml", ".yml" or anything else for JSON).
func Parse(data []byte, ext string) (Document, error) {
	var doc Document
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return Document{}, fmt.Errorf("failed to parse YAML knowledge document: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &doc); err != nil {
			return Document{}, fmt.Errorf("failed to parse JSON knowledge document: %w", err)
		}
	}
	return doc, nil
}
