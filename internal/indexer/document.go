package indexer

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dshills/saasrank/pkg/types"
)

// Document validation errors
var (
	ErrEmptyDocument       = errors.New("catalog document has no candidates")
	ErrDuplicateCandidate  = errors.New("duplicate candidate ID")
	ErrDuplicateChunk      = errors.New("duplicate chunk ID")
	ErrMissingField        = errors.New("required field is empty")
	ErrUnknownCategoryCode = errors.New("unknown category")
)

// Document is the JSON catalog file accepted by the import command
type Document struct {
	Candidates []CandidateRecord `json:"candidates"`
}

// CandidateRecord is one product with its facts and pre-chunked documents
type CandidateRecord struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Vendor   string        `json:"vendor"`
	Category string        `json:"category"`
	Active   *bool         `json:"is_active,omitempty"` // Defaults to true
	Facts    []FactRecord  `json:"facts"`
	Chunks   []ChunkRecord `json:"chunks"`
}

// FactRecord is a structured fact of a candidate
type FactRecord struct {
	Type        string `json:"type"`
	Value       string `json:"value"`
	EvidenceURL string `json:"evidence_url,omitempty"`
	Confidence  string `json:"confidence,omitempty"`
}

// ChunkRecord is one retrievable excerpt of a candidate document
type ChunkRecord struct {
	ID        string `json:"id"`
	DocType   string `json:"doc_type"`
	Content   string `json:"content"`
	SourceURL string `json:"source_url,omitempty"`
}

// IsActive reports whether the candidate should be rankable
func (c *CandidateRecord) IsActive() bool {
	return c.Active == nil || *c.Active
}

// LoadDocument decodes and validates a catalog document
func LoadDocument(r io.Reader) (*Document, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode catalog document: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// LoadFile reads a catalog document from disk
func LoadFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog document: %w", err)
	}
	defer func() { _ = f.Close() }()

	return LoadDocument(f)
}

// Validate checks identifiers are present and unique across the document
func (d *Document) Validate() error {
	if len(d.Candidates) == 0 {
		return ErrEmptyDocument
	}

	candidates := make(map[string]struct{}, len(d.Candidates))
	chunks := make(map[string]struct{})

	for i := range d.Candidates {
		c := &d.Candidates[i]
		if strings.TrimSpace(c.ID) == "" {
			return fmt.Errorf("%w: candidates[%d].id", ErrMissingField, i)
		}
		if strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("%w: candidate %s name", ErrMissingField, c.ID)
		}
		if !types.Category(c.Category).Valid() {
			return fmt.Errorf("%w: candidate %s has category %q", ErrUnknownCategoryCode, c.ID, c.Category)
		}
		if _, dup := candidates[c.ID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateCandidate, c.ID)
		}
		candidates[c.ID] = struct{}{}

		for j, f := range c.Facts {
			if strings.TrimSpace(f.Type) == "" {
				return fmt.Errorf("%w: candidate %s facts[%d].type", ErrMissingField, c.ID, j)
			}
		}

		for j, ch := range c.Chunks {
			if strings.TrimSpace(ch.ID) == "" {
				return fmt.Errorf("%w: candidate %s chunks[%d].id", ErrMissingField, c.ID, j)
			}
			if strings.TrimSpace(ch.Content) == "" {
				return fmt.Errorf("%w: chunk %s content", ErrMissingField, ch.ID)
			}
			if _, dup := chunks[ch.ID]; dup {
				return fmt.Errorf("%w: %s", ErrDuplicateChunk, ch.ID)
			}
			chunks[ch.ID] = struct{}{}
		}
	}

	return nil
}
