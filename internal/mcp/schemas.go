package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/saasrank/pkg/types"
)

// Bounds for the top_k argument
const (
	DefaultTopK = 5
	MaxTopK     = 50
)

// rankCandidatesTool returns the tool definition for rank_candidates
func rankCandidatesTool() mcp.Tool {
	categories := make([]string, len(types.Categories))
	for i, c := range types.Categories {
		categories[i] = string(c)
	}

	return mcp.Tool{
		Name:        "rank_candidates",
		Description: "Rank catalog SaaS products against a structured requirement using hybrid lexical and semantic retrieval",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"category": map[string]interface{}{
					"type":        "string",
					"description": "Business category the product should serve",
					"enum":        categories,
				},
				"problems": map[string]interface{}{
					"type":        "array",
					"description": "Problems the user wants the product to solve",
					"items": map[string]interface{}{
						"type": "string",
					},
				},
				"problem_free_text": map[string]interface{}{
					"type":        "string",
					"description": "Free-text description of the problem",
				},
				"require_sso": map[string]interface{}{
					"type":        "boolean",
					"description": "Exclude products without single sign-on",
					"default":     false,
				},
				"require_audit_log": map[string]interface{}{
					"type":        "boolean",
					"description": "Exclude products without an audit log",
					"default":     false,
				},
				"data_residency": map[string]interface{}{
					"type":        "string",
					"description": "Required data storage region (e.g., 'japan'), or 'any'",
					"default":     types.DataResidencyAny,
				},
				"required_languages": map[string]interface{}{
					"type":        "array",
					"description": "UI languages the product should support (e.g., 'ja', 'en')",
					"items": map[string]interface{}{
						"type": "string",
					},
				},
				"top_k": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of ranked products to return",
					"default":     DefaultTopK,
					"minimum":     1,
					"maximum":     MaxTopK,
				},
				"use_cache": map[string]interface{}{
					"type":        "boolean",
					"description": "Reuse a cached ranking for an identical request",
					"default":     true,
				},
			},
			Required: []string{"category"},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report catalog statistics and retrieval index health",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
