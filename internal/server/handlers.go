package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ironsheep/map-image-tools/internal/asset"
	"github.com/ironsheep/map-image-tools/internal/mapstyle"
	"github.com/ironsheep/map-image-tools/internal/pipeline"
	"github.com/ironsheep/map-image-tools/internal/preview"
	"github.com/ironsheep/map-image-tools/internal/raster"
	"github.com/ironsheep/map-image-tools/internal/registry"
)

// ErrAssetsNotConfigured is returned by asset tools when no asset API URL
// is configured.
var ErrAssetsNotConfigured = errors.New("asset API is not configured")

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "map_image_load").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}
	if len(params.Arguments) == 0 {
		params.Arguments = json.RawMessage("{}")
	}

	s.mu.Lock()
	result, err := s.executeTool(params.Name, params.Arguments)
	s.mu.Unlock()
	if err != nil {
		s.logger.Debug("tool failed", "tool", params.Name, "error", err)
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
// It must be called with s.mu held.
func (s *Server) executeTool(name string, args json.RawMessage) (interface{}, error) {
	switch name {
	// Loading
	case "map_image_load":
		return s.handleImageLoad(args)
	case "map_image_load_default":
		return s.handleImageLoadDefault(args)

	// Style drivers
	case "map_markers_sync":
		return s.handleMarkersSync(args)
	case "map_markers_prune":
		return s.handleMarkersPrune(args)
	case "map_patterns_sync":
		return s.handlePatternsSync(args)
	case "map_image_wait":
		return s.handleImageWait()

	// Registry
	case "map_image_list":
		return s.handleImageList(args)
	case "map_image_has":
		return s.handleImageHas(args)
	case "map_image_remove":
		return s.handleImageRemove(args)
	case "map_image_export":
		return s.handleImageExport(args)

	// Assets
	case "map_asset_validate":
		return s.handleAssetValidate(args)
	case "map_asset_upload":
		return s.handleAssetUpload(args)
	case "map_asset_list":
		return s.handleAssetList(args)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// Panics are suppressed; on marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// === Load Handlers ===

// loadFailure is the JSON form of a pipeline.LoadError.
type loadFailure struct {
	Name  string `json:"name"`
	URL   string `json:"url"`
	Fatal bool   `json:"fatal,omitempty"`
	Error string `json:"error"`
}

// LoadResult reports names queued for loading and, after a wait, what failed.
type LoadResult struct {
	Names    []string      `json:"names"`
	Removed  []string      `json:"removed,omitempty"`
	Density  float64       `json:"density"`
	Waited   bool          `json:"waited"`
	Pending  int           `json:"pending"`
	Failures []loadFailure `json:"failures,omitempty"`
}

// finish waits for pending loads when wait is set and fills in the
// outcome. Table rejections become the tool's error.
func (s *Server) finish(res *LoadResult, wait bool) (*LoadResult, error) {
	res.Density = s.loader.Density()
	if wait {
		err := s.loader.Wait()
		res.Waited = true
		res.Failures = s.takeFailures()
		if err != nil {
			return nil, err
		}
	}
	res.Pending = s.loader.Pending()
	return res, nil
}

func (s *Server) takeFailures() []loadFailure {
	errs := s.loader.TakeFailures()
	out := make([]loadFailure, 0, len(errs))
	for _, e := range errs {
		out = append(out, loadFailure{
			Name:  e.Ref.Name,
			URL:   e.Ref.URL,
			Fatal: e.Fatal,
			Error: e.Err.Error(),
		})
	}
	return out
}

type imageLoadArgs struct {
	URL    string `json:"url"`
	Name   string `json:"name"`
	SDF    bool   `json:"sdf"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Wait   bool   `json:"wait"`
}

func (s *Server) handleImageLoad(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	size := raster.DefaultSize
	if a.Width != 0 {
		size.Width = a.Width
	}
	if a.Height != 0 {
		size.Height = a.Height
	}

	ref := pipeline.Reference{URL: a.URL, Name: a.Name, SDF: a.SDF, Size: size}
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	s.loader.Load(ref)
	return s.finish(&LoadResult{Names: []string{ref.Name}}, a.Wait)
}

func (s *Server) handleImageLoadDefault(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if err := (pipeline.Reference{URL: a.URL, Name: a.Name, Size: raster.DefaultSize}).Validate(); err != nil {
		return nil, err
	}
	s.loader.LoadDefault(a.URL, a.Name, a.SDF)
	return s.finish(&LoadResult{Names: []string{a.Name}}, a.Wait)
}

// === Style Driver Handlers ===

type markersSyncArgs struct {
	FeatureID mapstyle.FeatureID  `json:"feature_id"`
	Style     mapstyle.PointStyle `json:"style"`
	Prune     bool                `json:"prune"`
	Wait      bool                `json:"wait"`
}

func (s *Server) handleMarkersSync(args json.RawMessage) (interface{}, error) {
	var a markersSyncArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}

	names := mapstyle.SyncMarkers(s.loader, a.FeatureID, a.Style)
	res := &LoadResult{Names: names}
	owner := mapstyle.MarkerOwner(a.FeatureID)
	if a.Prune {
		res.Removed = s.tracker.Prune(s.table, owner, names)
	} else {
		s.tracker.Record(owner, names)
	}
	return s.finish(res, a.Wait)
}

type markersPruneArgs struct {
	FeatureID mapstyle.FeatureID   `json:"feature_id"`
	Style     *mapstyle.PointStyle `json:"style,omitempty"`
}

// PruneResult lists the names a prune removed.
type PruneResult struct {
	Removed []string `json:"removed"`
	Kept    []string `json:"kept"`
}

func (s *Server) handleMarkersPrune(args json.RawMessage) (interface{}, error) {
	var a markersPruneArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}

	var keep []string
	if a.Style != nil {
		for _, ref := range mapstyle.MarkerReferences(a.FeatureID, *a.Style) {
			keep = append(keep, ref.Name)
		}
	}
	owner := mapstyle.MarkerOwner(a.FeatureID)
	removed := s.tracker.Prune(s.table, owner, keep)
	if removed == nil {
		removed = []string{}
	}
	return &PruneResult{Removed: removed, Kept: s.tracker.Owned(owner)}, nil
}

type patternsSyncArgs struct {
	Patterns []mapstyle.Pattern `json:"patterns"`
	Prune    bool               `json:"prune"`
	Wait     bool               `json:"wait"`
}

func (s *Server) handlePatternsSync(args json.RawMessage) (interface{}, error) {
	var a patternsSyncArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}

	patterns := a.Patterns
	if len(patterns) == 0 {
		patterns = s.catalog.Patterns
	}
	for _, p := range patterns {
		if p.Name == "" || p.URL == "" || p.Width <= 0 || p.Height <= 0 {
			return nil, fmt.Errorf("pattern %q needs a name, url and positive size", p.Name)
		}
	}

	res := &LoadResult{}
	res.Names = mapstyle.SyncPatterns(s.loader, patterns)
	if a.Prune {
		res.Removed = s.tracker.Prune(s.table, patternOwner, res.Names)
	} else {
		s.tracker.Record(patternOwner, res.Names)
	}
	return s.finish(res, a.Wait)
}

func (s *Server) handleImageWait() (interface{}, error) {
	return s.finish(&LoadResult{Names: []string{}}, true)
}

// === Registry Handlers ===

type imageListArgs struct {
	Prefix string `json:"prefix"`
}

// ListResult describes the image table.
type ListResult struct {
	Images  []registry.EntryInfo `json:"images"`
	Count   int                  `json:"count"`
	Pending int                  `json:"pending"`
	Density float64              `json:"density"`
}

func (s *Server) handleImageList(args json.RawMessage) (interface{}, error) {
	var a imageListArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}

	images := make([]registry.EntryInfo, 0, s.table.Len())
	for _, info := range s.table.List() {
		if strings.HasPrefix(info.Name, a.Prefix) {
			images = append(images, info)
		}
	}
	return &ListResult{
		Images:  images,
		Count:   len(images),
		Pending: s.loader.Pending(),
		Density: s.loader.Density(),
	}, nil
}

type imageNameArgs struct {
	Name string `json:"name"`
}

func (s *Server) handleImageHas(args json.RawMessage) (interface{}, error) {
	var a imageNameArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Name == "" {
		return nil, errors.New("name is required")
	}
	return map[string]interface{}{
		"name":       a.Name,
		"registered": s.table.HasImage(a.Name),
	}, nil
}

func (s *Server) handleImageRemove(args json.RawMessage) (interface{}, error) {
	var a imageNameArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Name == "" {
		return nil, errors.New("name is required")
	}
	existed := s.table.HasImage(a.Name)
	if existed {
		s.table.RemoveImage(a.Name)
	}
	return map[string]interface{}{
		"name":    a.Name,
		"removed": existed,
	}, nil
}

type imageExportArgs struct {
	Name string `json:"name"`
	Tint string `json:"tint"`
	Path string `json:"path"`
}

func (s *Server) handleImageExport(args json.RawMessage) (interface{}, error) {
	var a imageExportArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Tint == "" {
		a.Tint = preview.DefaultTint
	}
	tint, err := preview.ParseHexColor(a.Tint)
	if err != nil {
		return nil, err
	}
	entry, ok := s.table.Get(a.Name)
	if !ok {
		return nil, fmt.Errorf("image %q is not registered", a.Name)
	}

	if a.Path == "" {
		return preview.Export(entry, tint)
	}
	if err := preview.SaveFile(a.Path, entry, tint); err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"name":   entry.Name,
		"path":   a.Path,
		"width":  entry.Buffer.Width,
		"height": entry.Buffer.Height,
		"sdf":    entry.SDF,
	}, nil
}

// === Asset Handlers ===

type assetUploadArgs struct {
	Path        string     `json:"path"`
	DataBase64  string     `json:"data_base64"`
	FileName    string     `json:"file_name"`
	Kind        asset.Kind `json:"asset_type"`
	DisplayName string     `json:"display_name"`
	Category    string     `json:"category"`
}

func (a assetUploadArgs) upload() (asset.Upload, error) {
	u := asset.Upload{
		FileName:    a.FileName,
		Kind:        a.Kind,
		DisplayName: a.DisplayName,
		Category:    a.Category,
	}
	switch {
	case a.Path != "" && a.DataBase64 != "":
		return u, errors.New("give either path or data_base64, not both")
	case a.Path != "":
		data, err := os.ReadFile(a.Path)
		if err != nil {
			return u, fmt.Errorf("failed to read upload: %w", err)
		}
		u.Data = data
		if u.FileName == "" {
			u.FileName = filepath.Base(a.Path)
		}
	case a.DataBase64 != "":
		data, err := base64.StdEncoding.DecodeString(a.DataBase64)
		if err != nil {
			return u, fmt.Errorf("invalid data_base64: %w", err)
		}
		u.Data = data
	}
	return u, nil
}

func (s *Server) handleAssetValidate(args json.RawMessage) (interface{}, error) {
	var a assetUploadArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	u, err := a.upload()
	if err != nil {
		return nil, err
	}
	mt, err := asset.ValidateUpload(u)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"file_name": u.FileName,
		"mime_type": mt,
		"file_size": len(u.Data),
		"valid":     true,
	}, nil
}

func (s *Server) handleAssetUpload(args json.RawMessage) (interface{}, error) {
	if s.assets == nil {
		return nil, ErrAssetsNotConfigured
	}
	var a assetUploadArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	u, err := a.upload()
	if err != nil {
		return nil, err
	}
	stored, err := s.assets.Upload(context.Background(), u)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"asset":  stored,
		"marker": asset.MarkerFromAsset(*stored),
	}, nil
}

type assetListArgs struct {
	Kind asset.Kind `json:"asset_type"`
}

func (s *Server) handleAssetList(args json.RawMessage) (interface{}, error) {
	if s.assets == nil {
		return nil, ErrAssetsNotConfigured
	}
	var a assetListArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Kind != "" && !a.Kind.Valid() {
		return nil, fmt.Errorf("unknown asset type %q", a.Kind)
	}
	assets, err := s.assets.List(context.Background(), a.Kind)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"assets": assets,
		"count":  len(assets),
	}, nil
}
