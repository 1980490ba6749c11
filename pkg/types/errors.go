package types

import "errors"

// Domain errors for type validation
var (
	ErrInvalidCandidateID = errors.New("invalid candidate ID")
	ErrInvalidContentID   = errors.New("invalid content ID")
	ErrUnknownCategory    = errors.New("unknown category")

	// Ranking result errors
	ErrInvalidRank           = errors.New("rank must be >= 1")
	ErrInvalidScore          = errors.New("final score must be between 0 and 100")
	ErrInvalidRelevanceScore = errors.New("relevance score must be between 0 and 1")
	ErrForeignChunk          = errors.New("matched chunk belongs to another candidate")
)
