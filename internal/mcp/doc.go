// Package mcp implements the Model Context Protocol (MCP) server for saasrank.
//
// The MCP server exposes two tools to AI assistants:
//   - rank_candidates: Rank catalog products against a structured requirement
//   - get_status: Report catalog statistics and index health
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// # Basic Usage
//
// The MCP server is typically started via the serve command:
//
//	saasrank serve
//
// It then listens on stdin for MCP protocol messages and writes responses to stdout.
//
// # Tool: rank_candidates
//
// Hard constraints (require_sso, require_audit_log, data_residency) filter
// the active catalog first. The remaining candidates are ranked with
// hybrid lexical and vector retrieval:
//
//	Request:
//	{
//	  "name": "rank_candidates",
//	  "arguments": {
//	    "category": "expense",
//	    "problems": ["receipt scanning", "approval flow"],
//	    "problem_free_text": "paper receipts get lost",
//	    "require_sso": true,
//	    "top_k": 5
//	  }
//	}
//
//	Response:
//	{
//	  "run_id": "9f1c2e4a-...",
//	  "mode": "hybrid",
//	  "total_candidates": 12,
//	  "excluded_candidates": 3,
//	  "degradation": {"lexical": {"available": true}, "vector": {"available": true}},
//	  "results": [
//	    {
//	      "candidate_id": "acme-expense",
//	      "rank": 1,
//	      "score": 87.5,
//	      "breakdown": {...},
//	      "explain": {...}
//	    }
//	  ]
//	}
//
// When a retrieval channel fails the response still succeeds. The failed
// channel is marked unavailable in "degradation", and "mode" becomes
// "rule_based" when neither channel is available.
//
// # Tool: get_status
//
// Takes no arguments and returns candidate, fact, chunk and embedding
// counts, index health flags, the embedding provider and the number of
// cached ranking responses.
//
// # Error Handling
//
// Error codes:
//   - -32602: Invalid params (missing/invalid arguments)
//   - -32603: Internal error
//   - -32001: Unknown category
//   - -32002: Catalog unavailable
//
// # Logging
//
// The server logs to stderr through zap. Stdout is reserved for the protocol.
package mcp
