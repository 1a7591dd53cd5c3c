package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

var markerSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"name": map[string]interface{}{"type": "string", "description": "Marker name, unique within the layer"},
		"url":  map[string]interface{}{"type": "string", "description": "Image URL (http, https, data or file)"},
		"source": map[string]interface{}{
			"type":        "string",
			"enum":        []string{"library", "custom"},
			"description": "library icons are single-color (SDF), custom uploads keep their colors",
		},
	},
	"required": []string{"name", "url"},
}

var pointStyleSchema = map[string]interface{}{
	"type":        "object",
	"description": "Point layer style",
	"properties": map[string]interface{}{
		"custom_marker": map[string]interface{}{
			"type":        "boolean",
			"description": "Markers are only loaded when this is true",
		},
		"marker": markerSchema,
		"marker_mapping": map[string]interface{}{
			"type":        "array",
			"description": "Data-driven markers as [value, marker] pairs",
			"items": map[string]interface{}{
				"type":     "array",
				"minItems": 2,
				"maxItems": 2,
			},
		},
	},
}

var patternSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"name":   map[string]interface{}{"type": "string"},
		"url":    map[string]interface{}{"type": "string"},
		"width":  map[string]interface{}{"type": "integer", "minimum": 1},
		"height": map[string]interface{}{"type": "integer", "minimum": 1},
	},
	"required": []string{"name", "url", "width", "height"},
}

var uploadProperties = map[string]interface{}{
	"path": map[string]interface{}{
		"type":        "string",
		"description": "Path of a local file to upload (alternative to data_base64)",
	},
	"data_base64": map[string]interface{}{
		"type":        "string",
		"description": "File content, base64-encoded (alternative to path)",
	},
	"file_name": map[string]interface{}{
		"type":        "string",
		"description": "File name sent to the API. Defaults to the base name of path",
	},
	"asset_type": map[string]interface{}{
		"type":        "string",
		"enum":        []string{"image", "icon"},
		"description": "Asset category",
	},
	"display_name": map[string]interface{}{
		"type":        "string",
		"description": "Display name (required for icons)",
	},
	"category": map[string]interface{}{
		"type":        "string",
		"description": "Optional icon category",
	},
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Loading
		{
			Name:        "map_image_load",
			Description: "Fetch an image, rasterize it to the target size at the configured pixel ratio and register it under a name, replacing any previous image with that name. Loading runs in the background unless wait is set.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"url": map[string]interface{}{
						"type":        "string",
						"description": "Image URL: http(s), data: URL, file:// URL or local path. SVG and raster formats are accepted",
					},
					"name": map[string]interface{}{
						"type":        "string",
						"description": "Resource name to register the image under",
					},
					"sdf": map[string]interface{}{
						"type":        "boolean",
						"description": "Register as a single-color (SDF) image that is tinted at draw time. Default false",
						"default":     false,
					},
					"width": map[string]interface{}{
						"type":        "integer",
						"description": "Target width in logical pixels. Default 200",
						"default":     200,
					},
					"height": map[string]interface{}{
						"type":        "integer",
						"description": "Target height in logical pixels. Default 200",
						"default":     200,
					},
					"wait": map[string]interface{}{
						"type":        "boolean",
						"description": "Wait for every pending load to finish and report failures. Default false",
						"default":     false,
					},
				},
				"required": []string{"url", "name"},
			},
		},
		{
			Name:        "map_image_load_default",
			Description: "Load an image at the default 200x200 target size.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"url":  map[string]interface{}{"type": "string", "description": "Image URL"},
					"name": map[string]interface{}{"type": "string", "description": "Resource name"},
					"sdf": map[string]interface{}{
						"type":        "boolean",
						"description": "Register as a single-color (SDF) image. Default false",
						"default":     false,
					},
				},
				"required": []string{"url", "name"},
			},
		},

		// Style drivers
		{
			Name:        "map_markers_sync",
			Description: "Load every marker a point layer's style references, named <feature_id>-<marker name>. Returns the derived names.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"feature_id": map[string]interface{}{
						"type":        "integer",
						"minimum":     0,
						"description": "Id of the layer that owns the markers",
					},
					"style": pointStyleSchema,
					"prune": map[string]interface{}{
						"type":        "boolean",
						"description": "Also remove markers this layer registered earlier that the style no longer uses. Default false",
						"default":     false,
					},
					"wait": map[string]interface{}{
						"type":        "boolean",
						"description": "Wait for the loads to finish. Default false",
						"default":     false,
					},
				},
				"required": []string{"feature_id", "style"},
			},
		},
		{
			Name:        "map_markers_prune",
			Description: "Remove markers a layer registered that its current style no longer uses. Without a style every marker of the layer is removed.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"feature_id": map[string]interface{}{
						"type":        "integer",
						"minimum":     0,
						"description": "Id of the layer that owns the markers",
					},
					"style": pointStyleSchema,
				},
				"required": []string{"feature_id"},
			},
		},
		{
			Name:        "map_patterns_sync",
			Description: "Load fill patterns, named mit-pattern-<name>. Without patterns the configured catalog is used.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"patterns": map[string]interface{}{
						"type":        "array",
						"items":       patternSchema,
						"description": "Patterns to load instead of the catalog",
					},
					"prune": map[string]interface{}{
						"type":        "boolean",
						"description": "Remove patterns registered earlier that are not in this set. Default false",
						"default":     false,
					},
					"wait": map[string]interface{}{
						"type":        "boolean",
						"description": "Wait for the loads to finish. Default false",
						"default":     false,
					},
				},
			},
		},
		{
			Name:        "map_image_wait",
			Description: "Wait for every pending load to finish. Returns the fetch and decode failures since the last wait; registry rejections fail the call.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},

		// Registry
		{
			Name:        "map_image_list",
			Description: "List registered images with their physical dimensions and SDF flag.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"prefix": map[string]interface{}{
						"type":        "string",
						"description": "Only list names starting with this prefix",
					},
				},
			},
		},
		{
			Name:        "map_image_has",
			Description: "Report whether an image is registered under a name.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"name": map[string]interface{}{"type": "string", "description": "Resource name"},
				},
				"required": []string{"name"},
			},
		},
		{
			Name:        "map_image_remove",
			Description: "Unregister an image. Removing an unknown name is not an error.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"name": map[string]interface{}{"type": "string", "description": "Resource name"},
				},
				"required": []string{"name"},
			},
		},
		{
			Name:        "map_image_export",
			Description: "Render a registered image as PNG. SDF images are painted with the tint color. Returns base64 PNG, or writes to path when given.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"name": map[string]interface{}{"type": "string", "description": "Resource name"},
					"tint": map[string]interface{}{
						"type":        "string",
						"description": "Hex color for SDF images (#RGB, #RRGGBB or #RRGGBBAA). Default #000000",
						"default":     "#000000",
					},
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Optional output file path",
					},
				},
				"required": []string{"name"},
			},
		},

		// Assets
		{
			Name:        "map_asset_validate",
			Description: "Check a file against the asset API's upload rules without sending it. Returns the detected MIME type.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": uploadProperties,
				"required":   []string{"asset_type"},
			},
		},
		{
			Name:        "map_asset_upload",
			Description: "Upload an icon or image to the asset API and return the stored asset and a custom marker for it.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": uploadProperties,
				"required":   []string{"asset_type"},
			},
		},
		{
			Name:        "map_asset_list",
			Description: "List assets stored in the asset API.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"asset_type": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"image", "icon"},
						"description": "Only list assets of this type",
					},
				},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
