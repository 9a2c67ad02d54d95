package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/image-token-encoder/internal/imaging"
	"github.com/ironsheep/image-token-encoder/internal/multimodal"
)

const (
	// defaultBatchConcurrency bounds image_encode_batch when the caller does not.
	defaultBatchConcurrency = 4

	defaultGridColor = "#FF0000"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "image_load", "image_encode").
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
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		s.logger.WarnContext(ctx, "tool call failed", "tool", params.Name, "error", err)
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
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	switch name {
	case "image_load":
		return s.handleImageLoad(args)
	case "image_dimensions":
		return s.handleImageDimensions(args)
	case "image_num_tokens":
		return s.handleImageNumTokens(args)
	case "image_encode":
		return s.handleImageEncode(ctx, args)
	case "image_encode_batch":
		return s.handleImageEncodeBatch(ctx, args)
	case "image_preview":
		return s.handleImagePreview(ctx, args)
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
// On marshal failure it returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// === Basic Image Information Handlers ===

type imageLoadArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleImageLoad(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return imaging.LoadImageInfo(s.cache, a.Path)
}

func (s *Server) handleImageDimensions(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return imaging.GetDimensions(s.cache, a.Path)
}

// === Tokenization Handlers ===

type imageNumTokensArgs struct {
	Path   string `json:"path"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// NumTokensResult describes the patch grid an image would be encoded to.
type NumTokensResult struct {
	Width       int `json:"width"`
	Height      int `json:"height"`
	PatchesWide int `json:"patches_wide"`
	PatchesTall int `json:"patches_tall"`
	NumTokens   int `json:"num_tokens"`
}

func (s *Server) handleImageNumTokens(args json.RawMessage) (interface{}, error) {
	var a imageNumTokensArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}

	width, height := a.Width, a.Height
	if a.Path != "" {
		dims, err := imaging.GetDimensions(s.cache, a.Path)
		if err != nil {
			return nil, err
		}
		width, height = dims.Width, dims.Height
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("need a path or a positive width and height, got %dx%d", width, height)
	}

	wide, tall := s.encoder.NumPatches(width, height)
	return &NumTokensResult{
		Width:       width,
		Height:      height,
		PatchesWide: wide,
		PatchesTall: tall,
		NumTokens:   (wide + 1) * tall,
	}, nil
}

type imageEncodeArgs struct {
	Path          string `json:"path"`
	URL           string `json:"url"`
	IncludeTokens bool   `json:"include_tokens"`
}

// EncodeResult summarizes one encoded image. The pixel tensor is reported by
// shape and absolute sum rather than in full.
type EncodeResult struct {
	Source      string  `json:"source"`
	PatchesWide int     `json:"patches_wide"`
	PatchesTall int     `json:"patches_tall"`
	NumTokens   int     `json:"num_tokens"`
	Shape       [3]int  `json:"shape"`
	AbsSum      float64 `json:"abs_sum"`
	Tokens      []int   `json:"tokens,omitempty"`
}

func (s *Server) handleImageEncode(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a imageEncodeArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return s.encodeOne(ctx, a)
}

// chunkFor turns tool arguments into an encoder chunk. Paths go through the
// server cache; URLs (remote or data:) go to the encoder untouched.
func (s *Server) chunkFor(a imageEncodeArgs) (multimodal.Chunk, string, error) {
	switch {
	case a.Path != "" && a.URL != "":
		return nil, "", errors.New("give either path or url, not both")
	case a.Path != "":
		img, err := s.cache.Load(a.Path)
		if err != nil {
			return nil, "", err
		}
		return multimodal.ImageChunk{Image: img}, a.Path, nil
	case a.URL != "":
		return multimodal.ImageURLChunk{ImageURL: a.URL}, shortSource(a.URL), nil
	default:
		return nil, "", errors.New("path or url is required")
	}
}

// maxSourceRunes bounds the source echoed back in results; data URLs run to
// megabytes.
const maxSourceRunes = 64

// shortSource cuts s to maxSourceRunes characters, never inside a UTF-8
// sequence.
func shortSource(s string) string {
	n := 0
	for i := range s {
		if n == maxSourceRunes {
			return s[:i] + "..."
		}
		n++
	}
	return s
}

func (s *Server) encodeOne(ctx context.Context, a imageEncodeArgs) (*EncodeResult, error) {
	chunk, source, err := s.chunkFor(a)
	if err != nil {
		return nil, err
	}

	enc, err := s.encoder.Encode(ctx, chunk)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", source, err)
	}

	res := &EncodeResult{
		Source:      source,
		PatchesWide: enc.PatchesWide,
		PatchesTall: enc.PatchesTall,
		NumTokens:   len(enc.Tokens),
		Shape:       enc.Image.Shape(),
		AbsSum:      enc.Image.AbsSum(),
	}
	if a.IncludeTokens {
		res.Tokens = enc.Tokens
	}

	s.logger.DebugContext(ctx, "encoded image",
		"source", source,
		"patches_wide", enc.PatchesWide,
		"patches_tall", enc.PatchesTall)

	return res, nil
}

type imageEncodeBatchArgs struct {
	Images      []imageEncodeArgs `json:"images"`
	Concurrency int               `json:"concurrency"`
}

// BatchResult holds encode results in request order.
type BatchResult struct {
	Results []*EncodeResult `json:"results"`
}

func (s *Server) handleImageEncodeBatch(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a imageEncodeBatchArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if len(a.Images) == 0 {
		return nil, errors.New("images must not be empty")
	}

	limit := a.Concurrency
	if limit <= 0 {
		limit = defaultBatchConcurrency
	}

	results := make([]*EncodeResult, len(a.Images))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, img := range a.Images {
		g.Go(func() error {
			res, err := s.encodeOne(gctx, img)
			if err != nil {
				return fmt.Errorf("image %d: %w", i, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &BatchResult{Results: results}, nil
}

type imagePreviewArgs struct {
	Path        string `json:"path"`
	URL         string `json:"url"`
	ShowPatches bool   `json:"show_patches"`
	GridColor   string `json:"grid_color"`
}

// PreviewResult is the bitmap the encoder normalizes, as PNG.
type PreviewResult struct {
	*imaging.PreviewResult
	PatchesWide int `json:"patches_wide"`
	PatchesTall int `json:"patches_tall"`
}

func (s *Server) handleImagePreview(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a imagePreviewArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.GridColor == "" {
		a.GridColor = defaultGridColor
	}

	chunk, source, err := s.chunkFor(imageEncodeArgs{Path: a.Path, URL: a.URL})
	if err != nil {
		return nil, err
	}

	prepared, err := s.encoder.Prepare(ctx, chunk)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare %s: %w", source, err)
	}

	p := s.encoder.Config().ImagePatchSize
	img := prepared
	if a.ShowPatches {
		gridColor, err := colorful.Hex(a.GridColor)
		if err != nil {
			return nil, fmt.Errorf("invalid grid color %q: %w", a.GridColor, err)
		}
		if img, err = imaging.PatchGrid(prepared, p, gridColor); err != nil {
			return nil, err
		}
	}

	preview, err := imaging.EncodePNG(img)
	if err != nil {
		return nil, err
	}

	b := prepared.Bounds()
	return &PreviewResult{
		PreviewResult: preview,
		PatchesWide:   b.Dx() / p,
		PatchesTall:   b.Dy() / p,
	}, nil
}
