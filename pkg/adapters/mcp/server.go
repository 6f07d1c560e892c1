package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/lendflow/internal/logging"
	"github.com/aretw0/lendflow/pkg/domain"
	"github.com/aretw0/lendflow/pkg/rules"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"golang.org/x/sync/errgroup"
)

// RulesURI is the resource holding the active rule configuration.
const RulesURI = "lendflow://rules"

// Engine defines the conversation API the MCP server exposes.
type Engine interface {
	Start(ctx context.Context) (*domain.Session, error)
	Submit(ctx context.Context, conversationID, message string) (*domain.Reply, error)
	State(ctx context.Context, conversationID string) (*domain.Snapshot, error)
	Search(ctx context.Context, query string, limit int) ([]domain.KnowledgeHit, error)
	Rules() *rules.Engine
}

// SubmitArgs are the arguments of submit_message.
type SubmitArgs struct {
	ConversationID string `json:"conversation_id"`
	Message        string `json:"message"`
}

// StateArgs are the arguments of get_state.
type StateArgs struct {
	ConversationID string `json:"conversation_id"`
}

// SearchArgs are the arguments of search_knowledge.
type SearchArgs struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

// SearchResult is the output of search_knowledge.
type SearchResult struct {
	Query   string                `json:"query" jsonschema_description:"The query as received"`
	Results []domain.KnowledgeHit `json:"results" jsonschema_description:"Snippets ordered by decreasing relevance"`
}

// Server wraps the Engine and exposes it as an MCP Server.
type Server struct {
	engine    Engine
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(engine Engine, version string, opts ...Option) *Server {
	s := &Server{
		engine:    engine,
		mcpServer: server.NewMCPServer("lendflow-mcp", strings.TrimSpace(version)),
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying protocol server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the SSE transport on addr until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("MCP server listening (SSE)", "address", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("start_conversation",
		mcp.WithDescription("Start a new loan application conversation. Returns its state, including the conversation_id to pass to the other tools."),
		mcp.WithOutputSchema[domain.Snapshot](),
	), mcp.NewStructuredToolHandler(s.handleStart))

	s.mcpServer.AddTool(mcp.NewTool("submit_message",
		mcp.WithDescription("Send one customer message and get the resolved reply. Several stages may complete in one call."),
		mcp.WithString("conversation_id", mcp.Required(), mcp.Description("Conversation to continue")),
		mcp.WithString("message", mcp.Required(), mcp.Description("The customer's message")),
		mcp.WithOutputSchema[domain.Reply](),
	), mcp.NewStructuredToolHandler(s.handleSubmit))

	s.mcpServer.AddTool(mcp.NewTool("get_state",
		mcp.WithDescription("Read the stage and application record of a conversation."),
		mcp.WithString("conversation_id", mcp.Required(), mcp.Description("Conversation to read")),
		mcp.WithOutputSchema[domain.Snapshot](),
	), mcp.NewStructuredToolHandler(s.handleState))

	s.mcpServer.AddTool(mcp.NewTool("search_knowledge",
		mcp.WithDescription("Search the loan product knowledge base."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Free text query")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results (optional)")),
		mcp.WithOutputSchema[SearchResult](),
	), mcp.NewStructuredToolHandler(s.handleSearch))
}

func (s *Server) handleStart(ctx context.Context, _ mcp.CallToolRequest, _ struct{}) (domain.Snapshot, error) {
	session, err := s.engine.Start(ctx)
	if err != nil {
		return domain.Snapshot{}, err
	}
	return session.Snapshot(), nil
}

func (s *Server) handleSubmit(ctx context.Context, _ mcp.CallToolRequest, args SubmitArgs) (domain.Reply, error) {
	if args.ConversationID == "" {
		return domain.Reply{}, errors.New("conversation_id is required")
	}
	reply, err := s.engine.Submit(ctx, args.ConversationID, args.Message)
	if err != nil {
		s.logger.Warn("MCP submit_message failed", "conversation_id", args.ConversationID, "err", err)
		return domain.Reply{}, fmt.Errorf("submit failed: %w", err)
	}
	return *reply, nil
}

func (s *Server) handleState(ctx context.Context, _ mcp.CallToolRequest, args StateArgs) (domain.Snapshot, error) {
	snap, err := s.engine.State(ctx, args.ConversationID)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("get state failed: %w", err)
	}
	return *snap, nil
}

func (s *Server) handleSearch(ctx context.Context, _ mcp.CallToolRequest, args SearchArgs) (SearchResult, error) {
	hits, err := s.engine.Search(ctx, args.Query, args.Limit)
	if err != nil {
		return SearchResult{}, fmt.Errorf("search failed: %w", err)
	}
	if hits == nil {
		hits = []domain.KnowledgeHit{}
	}
	return SearchResult{Query: args.Query, Results: hits}, nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(RulesURI, "Active Rule Configuration",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		jsonBytes, err := json.Marshal(s.engine.Rules().Config())
		if err != nil {
			return nil, fmt.Errorf("failed to encode rules: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      RulesURI,
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}
