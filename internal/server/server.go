package server

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/ironsheep/map-image-tools/internal/acquire"
	"github.com/ironsheep/map-image-tools/internal/asset"
	"github.com/ironsheep/map-image-tools/internal/catalog"
	"github.com/ironsheep/map-image-tools/internal/config"
	"github.com/ironsheep/map-image-tools/internal/mapstyle"
	"github.com/ironsheep/map-image-tools/internal/pipeline"
	"github.com/ironsheep/map-image-tools/internal/registry"
)

// Version is reported in the initialize handshake.
const Version = "0.1.0"

// patternOwner is the Tracker owner key for catalog patterns.
const patternOwner = "patterns"

// Server handles MCP protocol communication
type Server struct {
	cfg     *config.Config
	logger  *slog.Logger
	table   *registry.MemoryTable
	loader  *pipeline.Loader
	tracker *mapstyle.Tracker
	assets  *asset.Client

	// mu serializes tool calls and catalog syncs, so a Wait never races
	// the Load that starts a new batch.
	mu      sync.Mutex
	catalog *catalog.Catalog
}

// MCPRequest represents an incoming JSON-RPC request
type MCPRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// MCPResponse represents an outgoing JSON-RPC response
type MCPResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *MCPError   `json:"error,omitempty"`
}

// MCPError represents a JSON-RPC error
type MCPError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// MCPNotification represents an outgoing notification (no ID)
type MCPNotification struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// New creates a server from cfg. A nil cfg uses config.Default and a nil
// logger discards output. The pattern catalog named by the configuration
// (or the built-in one) is loaded but not synced; see SyncPatterns.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	cat, err := loadCatalog(cfg.Patterns.Catalog)
	if err != nil {
		return nil, err
	}

	table := registry.NewMemoryTable(cfg.Table.MaxDimension)
	fetcher := acquire.NewHTTPFetcher(time.Duration(cfg.Fetch.Timeout), cfg.Fetch.MaxBytes)

	opts := []pipeline.Option{
		pipeline.WithDensity(cfg.PixelRatio),
		pipeline.WithLogger(logger),
		pipeline.WithMaxInFlight(cfg.Fetch.MaxInFlight),
	}
	if cfg.RevisionGuard {
		opts = append(opts, pipeline.WithRevisionGuard())
	}

	s := &Server{
		cfg:     cfg,
		logger:  logger,
		table:   table,
		loader:  pipeline.New(table, fetcher, opts...),
		tracker: mapstyle.NewTracker(),
		catalog: cat,
	}
	if cfg.Assets.BaseURL != "" {
		s.assets = asset.NewClient(cfg.Assets.BaseURL, cfg.Assets.Token, time.Duration(cfg.Fetch.Timeout))
	}
	return s, nil
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default()
	}
	return catalog.Load(path)
}

// SyncPatterns starts loading every pattern of the current catalog and
// returns the derived names.
func (s *Server) SyncPatterns() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.syncPatterns(s.catalog.Patterns, false)
}

// ReplaceCatalog swaps in a reloaded catalog, registers its patterns and
// removes patterns the new catalog no longer lists.
func (s *Server) ReplaceCatalog(c *catalog.Catalog) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.catalog = c
	return s.syncPatterns(c.Patterns, true)
}

// syncPatterns must be called with s.mu held.
func (s *Server) syncPatterns(patterns []mapstyle.Pattern, prune bool) []string {
	names := mapstyle.SyncPatterns(s.loader, patterns)
	if prune {
		if removed := s.tracker.Prune(s.table, patternOwner, names); len(removed) > 0 {
			s.logger.Info("removed stale patterns", "names", removed)
		}
	} else {
		s.tracker.Record(patternOwner, names)
	}
	s.logger.Debug("syncing patterns", "count", len(names))
	return names
}

// Run starts the MCP server, reading from stdin and writing to stdout
func (s *Server) Run() error {
	return s.Serve(os.Stdin, os.Stdout)
}

// Serve reads newline-delimited requests from r and writes responses to w
// until r is exhausted.
func (s *Server) Serve(r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	// Increase buffer size for large requests (base64 asset uploads)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 16*1024*1024)

	encoder := json.NewEncoder(w)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req MCPRequest
		if err := json.Unmarshal(line, &req); err != nil {
			s.logger.Warn("failed to parse request", "error", err)
			if err := encoder.Encode(s.errorResponse(nil, -32700, "Parse error", err.Error())); err != nil {
				s.logger.Error("failed to encode response", "error", err)
			}
			continue
		}

		resp := s.handleRequest(&req)
		if resp != nil {
			if err := encoder.Encode(resp); err != nil {
				s.logger.Error("failed to encode response", "error", err)
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanner error: %w", err)
	}

	// Catalog reloads may still start loads; hold mu so they cannot begin
	// a new batch while the final Wait runs.
	s.mu.Lock()
	err := s.loader.Wait()
	s.mu.Unlock()
	if err != nil {
		s.logger.Error("image loads rejected at shutdown", "error", err)
	}
	return nil
}

// handleRequest routes requests to appropriate handlers
func (s *Server) handleRequest(req *MCPRequest) *MCPResponse {
	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "notifications/initialized":
		// Client acknowledgment, no response needed
		return nil
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(req)
	case "ping":
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result:  map[string]interface{}{},
		}
	default:
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error: &MCPError{
				Code:    -32601,
				Message: fmt.Sprintf("Method not found: %s", req.Method),
			},
		}
	}
}

// handleInitialize responds to the initialize request
func (s *Server) handleInitialize(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"protocolVersion": "2024-11-05",
			"capabilities": map[string]interface{}{
				"tools": map[string]interface{}{},
			},
			"serverInfo": map[string]interface{}{
				"name":    "map-image-tools",
				"version": Version,
			},
		},
	}
}
