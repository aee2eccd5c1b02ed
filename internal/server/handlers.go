package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"

	"github.com/n1tecki/SAR-Sentinel1-Maritime-Surveillance/internal/coastline"
	"github.com/n1tecki/SAR-Sentinel1-Maritime-Surveillance/internal/metrics"
	"github.com/n1tecki/SAR-Sentinel1-Maritime-Surveillance/internal/pipeline"
	"github.com/n1tecki/SAR-Sentinel1-Maritime-Surveillance/internal/raster"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "raster_info", "surface_mask").
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
// Malformed or missing tool arguments return -32602. Tool execution errors
// return code -32000 whose data carries the error kind and message.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	var argErr *argumentError
	if errors.As(err, &argErr) {
		return s.errorResponse(req.ID, -32602, "Invalid params", argErr.Error())
	}
	if err != nil {
		s.logger.Warn("tool failed", "tool", params.Name, "error", err)
		return s.errorResponse(req.ID, -32000, "Tool execution failed", map[string]string{
			"kind":  metrics.Outcome(err),
			"error": err.Error(),
		})
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
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	switch name {
	case "raster_info":
		return s.handleRasterInfo(ctx, args)
	case "raster_crop":
		return s.handleRasterCrop(ctx, args)
	case "coastline_closing_edges":
		return s.handleClosingEdges(args)
	case "surface_mask":
		return s.handleSurfaceMask(ctx, args)
	case "mask_preview":
		return s.handleMaskPreview(ctx, args)
	default:
		return nil, invalidArgs("unknown tool: %s", name)
	}
}

// argumentError marks a tool call rejected before it ran.
type argumentError struct {
	msg string
}

func (e *argumentError) Error() string { return e.msg }

func invalidArgs(format string, a ...interface{}) error {
	return &argumentError{msg: fmt.Sprintf(format, a...)}
}

// decodeArgs unmarshals tool arguments, reporting failures as argument
// errors.
func decodeArgs(args json.RawMessage, v interface{}) error {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	if err := json.Unmarshal(args, v); err != nil {
		return invalidArgs("invalid arguments: %v", err)
	}
	return nil
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message string, data interface{}) *MCPResponse {
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
// On marshal failure it returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// === Raster Handlers ===

type rasterPathArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleRasterInfo(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a rasterPathArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, invalidArgs("path is required")
	}
	return raster.LoadRasterInfo(ctx, s.cache, a.Path)
}

type rasterCropArgs struct {
	Path  string  `json:"path"`
	X1    int     `json:"x1"`
	Y1    int     `json:"y1"`
	X2    int     `json:"x2"`
	Y2    int     `json:"y2"`
	Scale float64 `json:"scale"`
}

func (s *Server) handleRasterCrop(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a rasterCropArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, invalidArgs("path is required")
	}
	if a.Scale == 0 {
		a.Scale = 1.0
	}
	r, err := s.cache.Load(ctx, a.Path)
	if err != nil {
		return nil, err
	}
	return raster.PreviewRegion(r, a.X1, a.Y1, a.X2, a.Y2, a.Scale)
}

// === Coastline Handlers ===

type closingEdgesArgs struct {
	Lines        []orb.LineString `json:"lines"`
	BBox         [4]float64       `json:"bbox"`
	IsEastCoast  bool             `json:"is_east_coast"`
	LandMask     *bool            `json:"land_mask"`
	MaritimeMask *bool            `json:"maritime_mask"`
	Policy       string           `json:"policy"`
}

// ClosingEdgesResult is returned by coastline_closing_edges.
type ClosingEdgesResult struct {
	Edges [3]orb.LineString `json:"edges"`
	EdgeX float64           `json:"edge_x"`
	Side  string            `json:"side"`
	North orb.Point         `json:"north"`
	South orb.Point         `json:"south"`
	WKT   string            `json:"wkt"`
}

func (s *Server) handleClosingEdges(args json.RawMessage) (interface{}, error) {
	var a closingEdgesArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	policy, err := coastline.ParsePolicy(a.Policy)
	if err != nil {
		return nil, err
	}
	wantLand, wantMaritime := s.sideFlags(a.LandMask, a.MaritimeMask)

	box := orb.Bound{Min: orb.Point{a.BBox[0], a.BBox[1]}, Max: orb.Point{a.BBox[2], a.BBox[3]}}
	c, err := coastline.Close(a.Lines, box.ToPolygon(), coastline.CloseOptions{
		IsEastCoast:  a.IsEastCoast,
		WantLand:     wantLand,
		WantMaritime: wantMaritime,
		Policy:       policy,
	})
	if err != nil {
		return nil, err
	}
	return &ClosingEdgesResult{
		Edges: c.Edges,
		EdgeX: c.EdgeX,
		Side:  c.Side.String(),
		North: c.Extremes.North,
		South: c.Extremes.South,
		WKT:   wkt.MarshalString(orb.MultiLineString(c.Edges[:])),
	}, nil
}

// sideFlags fills unset flags from the processor's configuration.
func (s *Server) sideFlags(land, maritime *bool) (bool, bool) {
	wantLand, wantMaritime := s.proc.Options.WantLand, s.proc.Options.WantMaritime
	if land != nil {
		wantLand = *land
	}
	if maritime != nil {
		wantMaritime = *maritime
	}
	return wantLand, wantMaritime
}

// === Masking Handlers ===

type surfaceMaskArgs struct {
	Image        string `json:"image"`
	Region       string `json:"region"`
	Output       string `json:"output"`
	Coastline    string `json:"coastline"`
	Overlay      string `json:"overlay"`
	LandMask     *bool  `json:"land_mask"`
	MaritimeMask *bool  `json:"maritime_mask"`
	MaxWidth     int    `json:"max_width"`
}

func (a surfaceMaskArgs) job() pipeline.Job {
	return pipeline.Job{
		ImageURI:     a.Image,
		RegionURI:    a.Region,
		OutputURI:    a.Output,
		CoastlineURI: a.Coastline,
		OverlayPath:  a.Overlay,
		LandMask:     a.LandMask,
		MaritimeMask: a.MaritimeMask,
	}
}

func (s *Server) handleSurfaceMask(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a surfaceMaskArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Image == "" || a.Region == "" || a.Output == "" {
		return nil, invalidArgs("image, region and output are required")
	}
	res, err := s.proc.Process(ctx, a.job())
	if err != nil {
		return nil, err
	}
	// The output may be a raster read earlier through the cache.
	s.cache.Evict(a.Output)
	return res, nil
}

// MaskPreviewResult is returned by mask_preview.
type MaskPreviewResult struct {
	*raster.PreviewResult
	Stats       *raster.MaskStatsResult `json:"stats"`
	RegionID    string                  `json:"region_id"`
	Side        string                  `json:"side"`
	IsEastCoast bool                    `json:"is_east_coast"`
	Polygons    int                     `json:"polygons"`
}

func (s *Server) handleMaskPreview(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a surfaceMaskArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Image == "" || a.Region == "" {
		return nil, invalidArgs("image and region are required")
	}
	if a.MaxWidth <= 0 {
		a.MaxWidth = s.PreviewWidth
	}

	job := a.job()
	job.OutputURI, job.OverlayPath = "", ""
	res, err := s.proc.Process(ctx, job)
	if err != nil {
		return nil, err
	}
	preview, err := raster.Preview(res.Masked, a.MaxWidth)
	if err != nil {
		return nil, err
	}
	return &MaskPreviewResult{
		PreviewResult: preview,
		Stats:         res.Stats,
		RegionID:      res.RegionID,
		Side:          res.Side,
		IsEastCoast:   res.IsEastCoast,
		Polygons:      res.Polygons,
	}, nil
}
