package mcp

import (
	"context"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/dshills/saasrank/internal/catalog"
	"github.com/dshills/saasrank/internal/embedder"
	"github.com/dshills/saasrank/internal/ranker"
	"github.com/dshills/saasrank/internal/storage"
)

const (
	// ServerName is the MCP server name
	ServerName = "saasrank"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Catalog is the store the server ranks against. Both the SQLite store
// and the Postgres store satisfy it.
type Catalog interface {
	catalog.Source
	ranker.LexicalRetriever
	ranker.VectorRetriever
	GetStatus(ctx context.Context) (*storage.Status, error)
	Revision(ctx context.Context) (string, error)
}

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp      *server.MCPServer
	catalog  Catalog
	ranker   *ranker.Ranker
	embedder embedder.Embedder
	logger   *zap.Logger
}

// NewServer creates a new MCP server instance. emb is only used to report
// the embedding provider in get_status and may be nil.
func NewServer(cat Catalog, rk *ranker.Ranker, emb embedder.Embedder, logger *zap.Logger) (*Server, error) {
	if cat == nil {
		return nil, ErrCatalogRequired
	}
	if rk == nil {
		return nil, ErrRankerRequired
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	mcpServer := server.NewMCPServer(
		ServerName,
		ServerVersion,
		server.WithToolCapabilities(false),
	)

	s := &Server{
		mcp:      mcpServer,
		catalog:  cat,
		ranker:   rk,
		embedder: emb,
		logger:   logger,
	}

	if err := s.registerTools(); err != nil {
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}

	return s, nil
}

// Serve runs the MCP server on stdio until ctx is cancelled or stdin closes
func (s *Server) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(zap.NewStdLog(s.logger.Named("stdio")))

	s.logger.Info("mcp server listening on stdio",
		zap.String("name", ServerName),
		zap.String("version", ServerVersion))

	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() error {
	s.mcp.AddTool(rankCandidatesTool(), s.handleRankCandidates)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
	return nil
}
