// Package vector serves semantic_search over document passages stored in
// chromem-go.
package vector

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/DanielJandric/embeddingsall-sub000/internal/config"
	"github.com/DanielJandric/embeddingsall-sub000/internal/logging"
	"github.com/DanielJandric/embeddingsall-sub000/internal/plan"
	"github.com/DanielJandric/embeddingsall-sub000/internal/strategy"
	"github.com/DanielJandric/embeddingsall-sub000/internal/tools"
)

const defaultK = 5

var tracer = otel.Tracer("github.com/DanielJandric/embeddingsall-sub000/internal/tools/vector")

// ErrEmptyDocuments is returned by Index for an empty batch.
var ErrEmptyDocuments = errors.New("no documents to index")

// Document is one indexable passage.
type Document struct {
	ID       string
	FileName string
	Content  string
	Metadata map[string]string
}

// Store wraps one chromem collection.
type Store struct {
	db         *chromem.DB
	collection string
	embed      chromem.EmbeddingFunc
	logger     *logging.Logger

	mu  sync.Mutex
	col *chromem.Collection
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithEmbeddingFunc replaces the embedder.
func WithEmbeddingFunc(f chromem.EmbeddingFunc) Option {
	return func(s *Store) { s.embed = f }
}

// NewMemoryStore creates a store that lives only in memory.
func NewMemoryStore(collection string, opts ...Option) *Store {
	return newStore(chromem.NewDB(), collection, opts)
}

// New creates a store from config. An empty path keeps the index in memory.
func New(cfg config.VectorConfig, opts ...Option) (*Store, error) {
	embed, err := embeddingFunc(cfg)
	if err != nil {
		return nil, err
	}
	opts = append([]Option{WithEmbeddingFunc(embed)}, opts...)
	if cfg.Path == "" {
		return NewMemoryStore(cfg.Collection, opts...), nil
	}

	path, err := expandPath(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("expand vector path: %w", err)
	}
	if err := os.MkdirAll(path, 0o700); err != nil {
		return nil, fmt.Errorf("create vector dir %s: %w", path, err)
	}
	db, err := chromem.NewPersistentDB(path, cfg.Compress)
	if err != nil {
		return nil, fmt.Errorf("open vector db: %w", err)
	}
	return newStore(db, cfg.Collection, opts), nil
}

func embeddingFunc(cfg config.VectorConfig) (chromem.EmbeddingFunc, error) {
	switch cfg.Embedder {
	case "", "hash":
		return NewHashEmbedder(cfg.Dimensions).Func(), nil
	case "ollama":
		return chromem.NewEmbeddingFuncOllama(cfg.Model, cfg.BaseURL), nil
	default:
		return nil, fmt.Errorf("unknown embedder %q", cfg.Embedder)
	}
}

func newStore(db *chromem.DB, collection string, opts []Option) *Store {
	s := &Store{
		db:         db,
		collection: collection,
		embed:      NewHashEmbedder(0).Func(),
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("vector")
	return s
}

func expandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

func (s *Store) coll() (*chromem.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.col != nil {
		return s.col, nil
	}
	c, err := s.db.GetOrCreateCollection(s.collection, nil, s.embed)
	if err != nil {
		return nil, fmt.Errorf("open collection %s: %w", s.collection, err)
	}
	s.col = c
	return c, nil
}

// Count returns the number of indexed passages.
func (s *Store) Count() int {
	c, err := s.coll()
	if err != nil {
		return 0
	}
	return c.Count()
}

// Index embeds and stores docs. Documents without an ID get one derived
// from their file name and position.
func (s *Store) Index(ctx context.Context, docs []Document) error {
	ctx, span := tracer.Start(ctx, "vector.Index")
	defer span.End()
	span.SetAttributes(attribute.Int("document_count", len(docs)))

	if len(docs) == 0 {
		return ErrEmptyDocuments
	}
	c, err := s.coll()
	if err != nil {
		return err
	}

	out := make([]chromem.Document, len(docs))
	for i, d := range docs {
		id := d.ID
		if id == "" {
			id = fmt.Sprintf("%s#%d", d.FileName, i)
		}
		md := make(map[string]string, len(d.Metadata)+1)
		for k, v := range d.Metadata {
			md[k] = v
		}
		if d.FileName != "" {
			md["file_name"] = d.FileName
		}
		out[i] = chromem.Document{ID: id, Content: d.Content, Metadata: md}
	}

	if err := c.AddDocuments(ctx, out, 4); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("index documents: %w", err)
	}
	s.logger.Debug(ctx, "indexed documents", zap.String("collection", s.collection), zap.Int("count", len(docs)))
	return nil
}

// Register adds semantic_search to r.
func (s *Store) Register(r *tools.Registry) error {
	return r.Register(plan.MethodSemanticSearch, s.SemanticSearch)
}

// SemanticSearch returns up to k passages ranked by similarity. Filters
// match metadata exactly.
func (s *Store) SemanticSearch(ctx context.Context, params map[string]any) (any, error) {
	req, err := strategy.DecodeSemanticSearch(params)
	if err != nil {
		return nil, &plan.ToolError{Code: plan.CodeInvalidParams, Message: err.Error()}
	}

	ctx, span := tracer.Start(ctx, "vector.SemanticSearch")
	defer span.End()

	k := req.K
	if k <= 0 {
		k = defaultK
	}
	span.SetAttributes(attribute.String("collection", s.collection), attribute.Int("k", k))

	c, err := s.coll()
	if err != nil {
		return nil, err
	}
	count := c.Count()
	if count == 0 {
		env := plan.Success([]map[string]any{})
		env.Metadata.Warnings = []string{"document index is empty"}
		return env, nil
	}
	k = min(k, count)

	results, err := c.Query(ctx, req.Query, k, req.Filters, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("query collection %s: %w", s.collection, err)
	}

	rows := make([]map[string]any, 0, len(results))
	var sources []string
	seen := make(map[string]struct{})
	for _, r := range results {
		name := r.Metadata["file_name"]
		rows = append(rows, map[string]any{
			"id":         r.ID,
			"file_name":  name,
			"content":    r.Content,
			"similarity": float64(r.Similarity),
		})
		if _, dup := seen[name]; name != "" && !dup {
			seen[name] = struct{}{}
			sources = append(sources, name)
		}
	}
	span.SetAttributes(attribute.Int("results_count", len(rows)))

	env := plan.Success(rows)
	env.Metadata.Count = len(rows)
	env.Metadata.DataSources = sources
	return env, nil
}
