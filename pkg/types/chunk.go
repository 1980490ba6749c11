package types

// Channel identifies a retrieval channel
type Channel string

const (
	ChannelLexical Channel = "lexical"
	ChannelVector  Channel = "vector"
)

// RetrievalHit is one content unit returned by a retrieval channel.
//
// RawScore semantics depend on the channel: lexical hits carry a
// higher-is-better unbounded rank, vector hits carry a cosine distance
// in [0, 2] where 0 means identical.
type RetrievalHit struct {
	ContentID   ContentID
	CandidateID CandidateID
	DocType     string
	Content     string
	SourceURL   string
	RawScore    float64
}

// NormalizedHit is a RetrievalHit whose raw score was replaced by a
// comparable score in [0, 1]
type NormalizedHit struct {
	ContentID   ContentID
	CandidateID CandidateID
	DocType     string
	Content     string
	SourceURL   string
	Score       float64
}

// NewNormalizedHit copies the identity and payload of hit with the given score
func NewNormalizedHit(hit RetrievalHit, score float64) NormalizedHit {
	return NormalizedHit{
		ContentID:   hit.ContentID,
		CandidateID: hit.CandidateID,
		DocType:     hit.DocType,
		Content:     hit.Content,
		SourceURL:   hit.SourceURL,
		Score:       score,
	}
}

// MatchedChunk is a content unit merged across both channels. It is the
// evidence unit attached to a candidate.
type MatchedChunk struct {
	ContentID     ContentID   `json:"chunk_id"`
	CandidateID   CandidateID `json:"candidate_id"`
	DocType       string      `json:"doc_type"`
	Content       string      `json:"content"`
	SourceURL     string      `json:"source_url,omitempty"`
	LexicalScore  float64     `json:"bm25_score"`
	VectorScore   float64     `json:"vector_score"`
	CombinedScore float64     `json:"combined_score"`
}

// Validate checks score ranges and identity
func (mc *MatchedChunk) Validate() error {
	if mc.ContentID == "" {
		return ErrInvalidContentID
	}
	if mc.CandidateID == "" {
		return ErrInvalidCandidateID
	}
	if !unitRange(mc.LexicalScore) || !unitRange(mc.VectorScore) || !unitRange(mc.CombinedScore) {
		return ErrInvalidRelevanceScore
	}
	return nil
}

func unitRange(v float64) bool {
	return v >= 0 && v <= 1
}
