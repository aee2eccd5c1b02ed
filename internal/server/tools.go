package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func sideFlagProperties(props map[string]interface{}) map[string]interface{} {
	props["land_mask"] = map[string]interface{}{
		"type":        "boolean",
		"description": "Zero the land side of the coastline. Defaults to the server configuration.",
	}
	props["maritime_mask"] = map[string]interface{}{
		"type":        "boolean",
		"description": "Zero the sea side of the coastline. Only consulted by the explicit closing policy.",
	}
	return props
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Raster inspection
		{
			Name:        "raster_info",
			Description: "Load a GeoTIFF and return its size, band count, bit depth, affine transform and geographic footprint.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Local path or s3://bucket/key of the raster",
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "raster_crop",
			Description: "Crop a pixel rectangle from a raster and return it as base64-encoded PNG.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Local path or s3://bucket/key of the raster",
					},
					"x1": map[string]interface{}{
						"type":        "integer",
						"description": "Left edge X coordinate (0-based)",
					},
					"y1": map[string]interface{}{
						"type":        "integer",
						"description": "Top edge Y coordinate (0-based)",
					},
					"x2": map[string]interface{}{
						"type":        "integer",
						"description": "Right edge X coordinate (exclusive)",
					},
					"y2": map[string]interface{}{
						"type":        "integer",
						"description": "Bottom edge Y coordinate (exclusive)",
					},
					"scale": map[string]interface{}{
						"type":        "number",
						"description": "Optional scale factor. Default 1.0",
						"default":     1.0,
					},
				},
				"required": []string{"path", "x1", "y1", "x2", "y2"},
			},
		},

		// Coastline geometry
		{
			Name:        "coastline_closing_edges",
			Description: "Compute the three segments that close a coastline trace against the region's bounding box, so the trace and the edges enclose the requested side.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": sideFlagProperties(map[string]interface{}{
					"lines": map[string]interface{}{
						"type":        "array",
						"description": "Coastline lines, each an array of [x, y] points",
						"items": map[string]interface{}{
							"type":  "array",
							"items": map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "number"}},
						},
					},
					"bbox": map[string]interface{}{
						"type":        "array",
						"description": "Region bounding box as [min_x, min_y, max_x, max_y]",
						"items":       map[string]interface{}{"type": "number"},
						"minItems":    4,
						"maxItems":    4,
					},
					"is_east_coast": map[string]interface{}{
						"type":        "boolean",
						"description": "Whether the region lies east of the reference meridian",
					},
					"policy": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"land-flag", "explicit"},
						"description": "How the side flags select the side. Default land-flag",
						"default":     "land-flag",
					},
				}),
				"required": []string{"lines", "bbox", "is_east_coast"},
			},
		},

		// Masking
		{
			Name:        "surface_mask",
			Description: "Mask one image: fetch the coastline for the region, close it, polygonize, rasterize and zero every pixel the enclosed side touches. Writes the masked GeoTIFF to output.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": sideFlagProperties(map[string]interface{}{
					"image": map[string]interface{}{
						"type":        "string",
						"description": "Local path or s3://bucket/key of the GeoTIFF to mask",
					},
					"region": map[string]interface{}{
						"type":        "string",
						"description": "GeoJSON file holding the region polygon",
					},
					"output": map[string]interface{}{
						"type":        "string",
						"description": "Destination of the masked GeoTIFF",
					},
					"coastline": map[string]interface{}{
						"type":        "string",
						"description": "Optional OSM XML extract used instead of querying Overpass",
					},
					"overlay": map[string]interface{}{
						"type":        "string",
						"description": "Optional local path for a PNG of the mask tinted over the image",
					},
				}),
				"required": []string{"image", "region", "output"},
			},
		},
		{
			Name:        "mask_preview",
			Description: "Run the masking pipeline without writing anything and return a down-scaled PNG of the masked image plus masked pixel statistics.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": sideFlagProperties(map[string]interface{}{
					"image": map[string]interface{}{
						"type":        "string",
						"description": "Local path or s3://bucket/key of the GeoTIFF to mask",
					},
					"region": map[string]interface{}{
						"type":        "string",
						"description": "GeoJSON file holding the region polygon",
					},
					"coastline": map[string]interface{}{
						"type":        "string",
						"description": "Optional OSM XML extract used instead of querying Overpass",
					},
					"max_width": map[string]interface{}{
						"type":        "integer",
						"description": "Largest preview width in pixels. Default 512",
						"default":     512,
					},
				}),
				"required": []string{"image", "region"},
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
