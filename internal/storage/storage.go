package storage

import (
	"context"
	"time"

	"github.com/dshills/saasrank/pkg/types"
)

// Reader is the read side of the catalog store, including both retrieval
// channels used by the ranker
type Reader interface {
	// Candidate operations
	GetCandidate(ctx context.Context, id string) (*Candidate, error)
	ListCandidates(ctx context.Context, opts ListOptions) ([]*Candidate, error)

	// Content operations
	GetChunk(ctx context.Context, id string) (*Chunk, error)
	GetEmbedding(ctx context.Context, chunkID string) (*Embedding, error)

	// Retrieval operations
	SearchLexical(ctx context.Context, query string, candidateIDs []types.CandidateID, maxResults int) ([]types.RetrievalHit, error)
	SearchVector(ctx context.Context, vector []float32, candidateIDs []types.CandidateID, maxResults int) ([]types.RetrievalHit, error)

	// Status operations
	GetStatus(ctx context.Context) (*Status, error)

	// Revision identifies the current chunk and embedding content. It
	// changes whenever retrievable content is written.
	Revision(ctx context.Context) (string, error)
}

// Writer loads catalog data. Used by the import command and tests.
type Writer interface {
	UpsertCandidate(ctx context.Context, candidate *Candidate) error
	DeleteCandidate(ctx context.Context, id string) error
	UpsertChunk(ctx context.Context, chunk *Chunk) error
	UpsertEmbedding(ctx context.Context, embedding *Embedding) error
}

// Storage is the complete catalog store
type Storage interface {
	Reader
	Writer

	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx represents a database transaction
type Tx interface {
	Writer
	Commit() error
	Rollback() error
}

// Candidate is a catalog product row with its facts
type Candidate struct {
	ID        string
	Name      string
	Vendor    string
	Category  string
	IsActive  bool
	Facts     []Fact
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Fact is a structured statement about a candidate
type Fact struct {
	CandidateID string
	Type        string
	Value       string
	EvidenceURL string
	Confidence  string
}

// Chunk is a retrievable document excerpt of one candidate
type Chunk struct {
	ID          string
	CandidateID string
	DocType     string
	Content     string
	SourceURL   string
	ContentHash [32]byte
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Embedding represents a vector embedding for a chunk
type Embedding struct {
	ID        int64
	ChunkID   string
	Vector    []byte // Serialized float32 array
	Dimension int
	Provider  string
	Model     string
	CreatedAt time.Time
}

// ListOptions narrows ListCandidates
type ListOptions struct {
	ActiveOnly bool
	Category   string   // Empty means all categories
	IDs        []string // Empty means all candidates
}

// Status contains statistics about the catalog
type Status struct {
	SchemaVersion   string
	CandidatesCount int
	ActiveCount     int
	FactsCount      int
	ChunksCount     int
	EmbeddingsCount int
	DatabaseSizeMB  float64
	BuildMode       string
	Health          HealthStatus
}

// HealthStatus represents the health of the catalog indexes
type HealthStatus struct {
	DatabaseAccessible  bool
	EmbeddingsAvailable bool
	FTSIndexBuilt       bool
}

// ToTypes converts a storage candidate into the ranking domain type
func (c *Candidate) ToTypes() types.Candidate {
	facts := make([]types.Fact, len(c.Facts))
	for i, f := range c.Facts {
		facts[i] = types.Fact{
			Type:        types.FactType(f.Type),
			Value:       f.Value,
			EvidenceURL: f.EvidenceURL,
			Confidence:  types.Confidence(f.Confidence),
		}
	}
	return types.Candidate{
		ID:       types.CandidateID(c.ID),
		Name:     c.Name,
		Vendor:   c.Vendor,
		Category: types.Category(c.Category),
		Facts:    facts,
	}
}

// ToTypesCandidates converts a list of storage candidates
func ToTypesCandidates(candidates []*Candidate) []types.Candidate {
	out := make([]types.Candidate, len(candidates))
	for i, c := range candidates {
		out[i] = c.ToTypes()
	}
	return out
}
