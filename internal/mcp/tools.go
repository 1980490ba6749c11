package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/dshills/saasrank/internal/catalog"
	"github.com/dshills/saasrank/internal/ranker"
	"github.com/dshills/saasrank/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodeUnknownCategory    = -32001 // Category is not one of the catalog categories
	ErrorCodeCatalogUnavailable = -32002 // Catalog store could not be read
)

// RankInput is the argument set of rank_candidates
type RankInput struct {
	Category          string   `json:"category"`
	Problems          []string `json:"problems,omitempty"`
	ProblemFreeText   string   `json:"problem_free_text,omitempty"`
	RequireSSO        bool     `json:"require_sso"`
	RequireAuditLog   bool     `json:"require_audit_log"`
	DataResidency     string   `json:"data_residency,omitempty"`
	RequiredLanguages []string `json:"required_languages,omitempty"`
	TopK              int      `json:"top_k"`
	UseCache          bool     `json:"use_cache"`
}

// Query converts the input into a ranking query
func (in RankInput) Query() types.Query {
	return types.Query{
		Category:        types.Category(in.Category),
		Problems:        in.Problems,
		ProblemFreeText: in.ProblemFreeText,
		Constraints: types.Constraints{
			RequireSSO:        in.RequireSSO,
			RequireAuditLog:   in.RequireAuditLog,
			DataResidency:     in.DataResidency,
			RequiredLanguages: in.RequiredLanguages,
		},
	}
}

// RankOutput is the result of rank_candidates
type RankOutput struct {
	RunID              string                  `json:"run_id"`
	Mode               types.ScoringMode       `json:"mode"`
	QueryText          string                  `json:"query_text"`
	Results            []types.RankedCandidate `json:"results"`
	TotalCandidates    int                     `json:"total_candidates"`
	ExcludedCandidates int                     `json:"excluded_candidates"`
	Degradation        ranker.Degradation      `json:"degradation"`
	CacheHit           bool                    `json:"cache_hit"`
	DurationMS         int64                   `json:"duration_ms"`
}

// RankCandidates selects the admissible candidates for in and ranks them.
// The CLI uses it directly; the MCP handler wraps it. A category outside
// types.Categories fails with types.ErrUnknownCategory.
func (s *Server) RankCandidates(ctx context.Context, in RankInput) (*RankOutput, error) {
	if !types.Category(in.Category).Valid() {
		return nil, fmt.Errorf("%w %q (allowed: %v)", types.ErrUnknownCategory, in.Category, types.Categories)
	}

	start := time.Now()
	runID := uuid.NewString()
	q := in.Query()

	sel, err := catalog.Admissible(ctx, s.catalog, q.Constraints)
	if err != nil {
		return nil, err
	}

	req := ranker.Request{
		Query:      q,
		Candidates: sel.Candidates,
		TopK:       in.TopK,
		UseCache:   in.UseCache,
	}
	if req.UseCache {
		// An unknown revision could serve hits from replaced content
		req.Revision, err = s.catalog.Revision(ctx)
		if err != nil {
			s.logger.Warn("catalog revision unavailable, bypassing cache",
				zap.String("run_id", runID), zap.Error(err))
			req.UseCache = false
		}
	}

	resp, err := s.ranker.Rank(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("ranking failed: %w", err)
	}

	out := &RankOutput{
		RunID:              runID,
		Mode:               resp.Mode,
		QueryText:          resp.QueryText,
		Results:            resp.Results,
		TotalCandidates:    resp.TotalCandidates,
		ExcludedCandidates: sel.Excluded,
		Degradation:        resp.Degradation,
		CacheHit:           resp.CacheHit,
		DurationMS:         time.Since(start).Milliseconds(),
	}
	if out.Results == nil {
		out.Results = []types.RankedCandidate{}
	}

	s.logger.Info("rank request completed",
		zap.String("run_id", runID),
		zap.String("category", in.Category),
		zap.Int("admissible", sel.Active-sel.Excluded),
		zap.Int("excluded", sel.Excluded),
		zap.Int("returned", len(out.Results)),
		zap.String("mode", string(resp.Mode)),
		zap.Bool("degraded", resp.Degradation.Degraded()),
		zap.Bool("cache_hit", resp.CacheHit),
		zap.Int64("duration_ms", out.DurationMS))

	return out, nil
}

// Status reports catalog statistics, index health and the ranking setup
func (s *Server) Status(ctx context.Context) (map[string]interface{}, error) {
	status, err := s.catalog.GetStatus(ctx)
	if err != nil {
		return nil, err
	}

	response := map[string]interface{}{
		"schema_version": status.SchemaVersion,
		"build_mode":     status.BuildMode,
		"statistics": map[string]interface{}{
			"candidates_count":        status.CandidatesCount,
			"active_candidates_count": status.ActiveCount,
			"facts_count":             status.FactsCount,
			"chunks_count":            status.ChunksCount,
			"embeddings_count":        status.EmbeddingsCount,
			"database_size_mb":        fmt.Sprintf("%.2f", status.DatabaseSizeMB),
		},
		"health": map[string]interface{}{
			"database_accessible":  status.Health.DatabaseAccessible,
			"embeddings_available": status.Health.EmbeddingsAvailable,
			"fts_index_built":      status.Health.FTSIndexBuilt,
		},
		"ranker": map[string]interface{}{
			"cached_responses": s.ranker.CacheLen(),
		},
	}

	if s.embedder != nil {
		response["embedder"] = map[string]interface{}{
			"provider":  s.embedder.Provider(),
			"model":     s.embedder.Model(),
			"dimension": s.embedder.Dimension(),
		}
	}

	return response, nil
}

// handleRankCandidates handles the rank_candidates tool invocation
func (s *Server) handleRankCandidates(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	in, err := parseRankInput(args)
	if err != nil {
		return nil, err
	}

	out, err := s.RankCandidates(ctx, in)
	if err != nil {
		if errors.Is(err, types.ErrUnknownCategory) {
			return nil, unknownCategoryError(in.Category)
		}
		if errors.Is(err, catalog.ErrLoad) {
			return nil, newMCPError(ErrorCodeCatalogUnavailable, "failed to read catalog", map[string]interface{}{
				"error": err.Error(),
			})
		}
		return nil, newMCPError(ErrorCodeInternalError, "ranking failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	return mcp.NewToolResultText(formatJSON(out)), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	response, err := s.Status(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeCatalogUnavailable, "failed to get status", map[string]interface{}{
			"error": err.Error(),
		})
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// parseRankInput validates tool arguments and applies defaults
func parseRankInput(args map[string]interface{}) (RankInput, error) {
	category, ok := args["category"].(string)
	category = strings.TrimSpace(category)
	if !ok || category == "" {
		return RankInput{}, newMCPError(ErrorCodeInvalidParams, "category parameter is required", map[string]interface{}{
			"param":  "category",
			"reason": "missing or empty",
		})
	}
	if !types.Category(category).Valid() {
		return RankInput{}, unknownCategoryError(category)
	}

	problems, err := getStringSlice(args, "problems")
	if err != nil {
		return RankInput{}, newMCPError(ErrorCodeInvalidParams, "problems must be an array of strings", map[string]interface{}{
			"param":  "problems",
			"reason": err.Error(),
		})
	}

	languages, err := getStringSlice(args, "required_languages")
	if err != nil {
		return RankInput{}, newMCPError(ErrorCodeInvalidParams, "required_languages must be an array of strings", map[string]interface{}{
			"param":  "required_languages",
			"reason": err.Error(),
		})
	}

	topK := getIntDefault(args, "top_k", DefaultTopK)
	if topK < 1 || topK > MaxTopK {
		return RankInput{}, newMCPError(ErrorCodeInvalidParams, fmt.Sprintf("top_k must be between 1 and %d", MaxTopK), map[string]interface{}{
			"param": "top_k",
			"value": topK,
		})
	}

	return RankInput{
		Category:          category,
		Problems:          problems,
		ProblemFreeText:   getStringDefault(args, "problem_free_text", ""),
		RequireSSO:        getBoolDefault(args, "require_sso", false),
		RequireAuditLog:   getBoolDefault(args, "require_audit_log", false),
		DataResidency:     getStringDefault(args, "data_residency", types.DataResidencyAny),
		RequiredLanguages: languages,
		TopK:              topK,
		UseCache:          getBoolDefault(args, "use_cache", true),
	}, nil
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

func unknownCategoryError(category string) error {
	return newMCPError(ErrorCodeUnknownCategory, "unknown category", map[string]interface{}{
		"param":   "category",
		"value":   category,
		"allowed": types.Categories,
	})
}

// formatJSON formats a value as indented JSON
func formatJSON(data interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}

// getStringSlice extracts an optional array of strings. JSON decoding
// yields []interface{}, direct callers may pass []string.
func getStringSlice(args map[string]interface{}, key string) ([]string, error) {
	switch val := args[key].(type) {
	case nil:
		return nil, nil
	case []string:
		return val, nil
	case []interface{}:
		out := make([]string, 0, len(val))
		for i, item := range val {
			str, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: element %d", ErrNotString, i)
			}
			out = append(out, str)
		}
		return out, nil
	default:
		return nil, ErrNotArray
	}
}

// Validation helpers

var (
	ErrCatalogRequired = errors.New("catalog is required")
	ErrRankerRequired  = errors.New("ranker is required")
	ErrNotArray        = errors.New("value is not an array")
	ErrNotString       = errors.New("value is not a string")
)
