package indexer

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/saasrank/internal/embedder"
	"github.com/dshills/saasrank/internal/storage"
)

// DefaultBatchSize is the number of candidates committed per transaction
const DefaultBatchSize = 20

// ErrImportInProgress is returned when another import holds the lock
var ErrImportInProgress = errors.New("catalog import already in progress")

// Indexer loads a catalog document into storage: candidates and facts,
// chunks for lexical retrieval, and chunk embeddings for vector retrieval.
type Indexer struct {
	storage  storage.Storage
	embedder embedder.Embedder
	logger   *zap.Logger
	lock     ImportLock
}

// Config contains configuration for one import
type Config struct {
	BatchSize      int  // Candidates per transaction (default: DefaultBatchSize)
	SkipEmbeddings bool // Store chunks without generating embeddings
}

// Statistics contains statistics about the import
type Statistics struct {
	CandidatesIndexed int
	ChunksIndexed     int
	ChunksSkipped     int // Unchanged chunks that already had an embedding
	EmbeddingsCreated int
	EmbeddingsFailed  int
	Duration          time.Duration
	ErrorMessages     []string
}

// Option configures an Indexer
type Option func(*Indexer)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(idx *Indexer) {
		if logger != nil {
			idx.logger = logger
		}
	}
}

// New creates a new Indexer. emb may be nil, in which case chunks are
// stored for lexical retrieval only.
func New(store storage.Storage, emb embedder.Embedder, opts ...Option) *Indexer {
	idx := &Indexer{
		storage:  store,
		embedder: emb,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// IndexCatalog imports every candidate of doc. Embedding failures are
// recorded in the statistics and do not abort the import; storage errors do.
func (idx *Indexer) IndexCatalog(ctx context.Context, doc *Document, config *Config) (*Statistics, error) {
	if !idx.lock.TryAcquire() {
		return nil, ErrImportInProgress
	}
	defer idx.lock.Release()

	if config == nil {
		config = &Config{}
	}
	batchSize := config.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	if err := doc.Validate(); err != nil {
		return nil, err
	}

	startTime := time.Now()
	stats := &Statistics{
		ErrorMessages: make([]string, 0),
	}

	for i := 0; i < len(doc.Candidates); i += batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		end := min(i+batchSize, len(doc.Candidates))
		if err := idx.indexBatch(ctx, doc.Candidates[i:end], config, stats); err != nil {
			return nil, fmt.Errorf("failed to index candidates %d-%d: %w", i, end-1, err)
		}
	}

	stats.Duration = time.Since(startTime)
	idx.logger.Info("catalog import completed",
		zap.Int("candidates", stats.CandidatesIndexed),
		zap.Int("chunks", stats.ChunksIndexed),
		zap.Int("chunks_skipped", stats.ChunksSkipped),
		zap.Int("embeddings", stats.EmbeddingsCreated),
		zap.Int("embeddings_failed", stats.EmbeddingsFailed),
		zap.Duration("duration", stats.Duration))

	return stats, nil
}

// pendingChunk is a chunk staged for storage with its optional embedding
type pendingChunk struct {
	chunk     *storage.Chunk
	embed     bool
	embedding *embedder.Embedding
}

// indexBatch embeds and stores a batch of candidates within a transaction
func (idx *Indexer) indexBatch(ctx context.Context, batch []CandidateRecord, config *Config, stats *Statistics) error {
	pending := make([][]*pendingChunk, len(batch))
	for i := range batch {
		staged, err := idx.stageChunks(ctx, &batch[i], config, stats)
		if err != nil {
			return err
		}
		pending[i] = staged
	}

	// Embeddings are generated before the transaction opens so slow
	// provider calls do not hold the write lock.
	idx.embedPending(ctx, pending, stats)

	tx, err := idx.storage.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i := range batch {
		if err := idx.storeCandidate(ctx, tx, &batch[i], pending[i], stats); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// stageChunks converts chunk records and decides which need a new embedding
func (idx *Indexer) stageChunks(ctx context.Context, rec *CandidateRecord, config *Config, stats *Statistics) ([]*pendingChunk, error) {
	staged := make([]*pendingChunk, 0, len(rec.Chunks))
	for _, ch := range rec.Chunks {
		chunk := &storage.Chunk{
			ID:          ch.ID,
			CandidateID: rec.ID,
			DocType:     ch.DocType,
			Content:     ch.Content,
			SourceURL:   ch.SourceURL,
			ContentHash: sha256.Sum256([]byte(ch.Content)),
		}

		embed := idx.embedder != nil && !config.SkipEmbeddings
		if embed {
			unchanged, err := idx.checkChunkUnchanged(ctx, chunk)
			if err != nil {
				return nil, err
			}
			if unchanged {
				embed = false
				stats.ChunksSkipped++
			}
		}

		staged = append(staged, &pendingChunk{chunk: chunk, embed: embed})
	}
	return staged, nil
}

// checkChunkUnchanged reports whether the stored chunk has the same content
// and already carries an embedding
func (idx *Indexer) checkChunkUnchanged(ctx context.Context, chunk *storage.Chunk) (bool, error) {
	existing, err := idx.storage.GetChunk(ctx, chunk.ID)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check chunk %s: %w", chunk.ID, err)
	}
	if existing.ContentHash != chunk.ContentHash || existing.CandidateID != chunk.CandidateID {
		return false, nil
	}

	_, err = idx.storage.GetEmbedding(ctx, chunk.ID)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check embedding of chunk %s: %w", chunk.ID, err)
	}
	return true, nil
}

// embedPending generates embeddings in provider-sized batches
func (idx *Indexer) embedPending(ctx context.Context, pending [][]*pendingChunk, stats *Statistics) {
	var todo []*pendingChunk
	for _, group := range pending {
		for _, p := range group {
			if p.embed {
				todo = append(todo, p)
			}
		}
	}

	for i := 0; i < len(todo); i += embedder.MaxBatchSize {
		end := min(i+embedder.MaxBatchSize, len(todo))
		part := todo[i:end]

		texts := make([]string, len(part))
		for j, p := range part {
			texts[j] = p.chunk.Content
		}

		resp, err := idx.embedder.GenerateBatch(ctx, embedder.BatchEmbeddingRequest{Texts: texts})
		if err == nil && len(resp.Embeddings) != len(part) {
			err = fmt.Errorf("provider returned %d embeddings for %d texts", len(resp.Embeddings), len(part))
		}
		if err != nil {
			stats.EmbeddingsFailed += len(part)
			stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("embedding chunks %s..%s: %v",
				part[0].chunk.ID, part[len(part)-1].chunk.ID, err))
			idx.logger.Warn("embedding batch failed, chunks stored for lexical retrieval only",
				zap.Int("chunks", len(part)),
				zap.Error(err))
			continue
		}

		for j, p := range part {
			p.embedding = resp.Embeddings[j]
		}
	}
}

// storeCandidate writes one candidate, its chunks and their embeddings
func (idx *Indexer) storeCandidate(ctx context.Context, tx storage.Tx, rec *CandidateRecord, pending []*pendingChunk, stats *Statistics) error {
	candidate := &storage.Candidate{
		ID:       rec.ID,
		Name:     rec.Name,
		Vendor:   rec.Vendor,
		Category: rec.Category,
		IsActive: rec.IsActive(),
		Facts:    make([]storage.Fact, len(rec.Facts)),
	}
	for i, f := range rec.Facts {
		candidate.Facts[i] = storage.Fact{
			CandidateID: rec.ID,
			Type:        f.Type,
			Value:       f.Value,
			EvidenceURL: f.EvidenceURL,
			Confidence:  f.Confidence,
		}
	}

	if err := tx.UpsertCandidate(ctx, candidate); err != nil {
		return fmt.Errorf("failed to store candidate %s: %w", rec.ID, err)
	}
	stats.CandidatesIndexed++

	for _, p := range pending {
		if err := tx.UpsertChunk(ctx, p.chunk); err != nil {
			return fmt.Errorf("failed to store chunk %s: %w", p.chunk.ID, err)
		}
		stats.ChunksIndexed++

		if p.embedding == nil {
			continue
		}
		emb := &storage.Embedding{
			ChunkID:   p.chunk.ID,
			Vector:    storage.SerializeVector(p.embedding.Vector),
			Dimension: len(p.embedding.Vector),
			Provider:  p.embedding.Provider,
			Model:     p.embedding.Model,
		}
		if err := tx.UpsertEmbedding(ctx, emb); err != nil {
			return fmt.Errorf("failed to store embedding for chunk %s: %w", p.chunk.ID, err)
		}
		stats.EmbeddingsCreated++
	}

	return nil
}
