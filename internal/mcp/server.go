package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/DanielJandric/embeddingsall-sub000/internal/agentic"
	"github.com/DanielJandric/embeddingsall-sub000/internal/logging"
)

// ToolAgenticQuery is the name of the only tool the server offers.
const ToolAgenticQuery = "agentic_query"

// Querier answers agentic queries.
type Querier interface {
	Query(ctx context.Context, req agentic.Request) (*agentic.Result, error)
}

// Server wraps an MCP server bound to a Querier.
type Server struct {
	mcp     *mcp.Server
	service Querier
	metrics *Metrics
	logger  *logging.Logger
}

// Config configures the MCP server.
type Config struct {
	// Name is the server implementation name (default: "propertyrag")
	Name string
	// Version is the server version (default: "dev")
	Version string
	Logger  *logging.Logger
}

// DefaultConfig returns the defaults.
func DefaultConfig() *Config {
	return &Config{Name: "propertyrag", Version: "dev", Logger: logging.NewNop()}
}

// NewServer creates the MCP server and registers its tools.
func NewServer(cfg *Config, service Querier) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if service == nil {
		return nil, errors.New("query service is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNop()
	}

	s := &Server{
		mcp:     mcp.NewServer(&mcp.Implementation{Name: cfg.Name, Version: cfg.Version}, nil),
		service: service,
		metrics: NewMetrics(cfg.Logger),
		logger:  cfg.Logger.Named("mcp"),
	}
	s.registerTools()
	return s, nil
}

type agenticQueryInput struct {
	Query               string   `json:"query" jsonschema:"Natural-language question about the property portfolio"`
	ConfidenceThreshold *float64 `json:"confidence_threshold,omitempty" jsonschema:"Minimum confidence in [0,1] to accept an answer (default 0.75)"`
	MaxIterations       int      `json:"max_iterations,omitempty" jsonschema:"Maximum corrective iterations (default 3)"`
	EnableReflection    *bool    `json:"enable_reflection,omitempty" jsonschema:"Critique and replan low-confidence answers (default true)"`
	Intent              string   `json:"intent,omitempty" jsonschema:"Force an intent: factual, financial, comparative, land_registry, stakeholder, risk or synthesis"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name: ToolAgenticQuery,
		Description: "Answer a question about the Swiss property portfolio by planning tool calls, " +
			"validating the result and scoring its confidence. Returns the answer with sources, " +
			"warnings, applied corrections and the confidence breakdown.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args agenticQueryInput) (*mcp.CallToolResult, any, error) {
		res, err := s.query(ctx, args)
		if err != nil {
			return nil, nil, err
		}
		return nil, res, nil
	})
}

func (s *Server) query(ctx context.Context, args agenticQueryInput) (*agentic.Result, error) {
	start := time.Now()
	defer s.metrics.track(ctx, ToolAgenticQuery)()

	res, err := s.service.Query(ctx, agentic.Request{
		Query:               args.Query,
		ConfidenceThreshold: args.ConfidenceThreshold,
		MaxIterations:       args.MaxIterations,
		EnableReflection:    args.EnableReflection,
		Intent:              args.Intent,
	})
	s.metrics.RecordInvocation(ctx, ToolAgenticQuery, time.Since(start), res, err)
	if err != nil {
		s.logger.Warn(ctx, "agentic query failed", zap.String("code", agentic.Code(err)), zap.Error(err))
		return nil, fmt.Errorf("%s: %w", agentic.Code(err), err)
	}
	return res, nil
}

// Run serves MCP on stdio until ctx ends or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info(ctx, "starting MCP server on stdio transport")
	if err := s.mcp.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("server run failed: %w", err)
	}
	return nil
}

// Connect serves one session on t, mainly for in-process clients.
func (s *Server) Connect(ctx context.Context, t mcp.Transport) (*mcp.ServerSession, error) {
	return s.mcp.Connect(ctx, t, nil)
}
