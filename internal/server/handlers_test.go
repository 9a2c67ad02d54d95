package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"unicode/utf8"

	"github.com/ironsheep/image-token-encoder/internal/multimodal"
)

// createTestImageFile creates a solid test image file and returns its path
func createTestImageFile(t *testing.T, width, height int, c color.Color) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "handler-test.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	defer f.Close()

	if err := png.Encode(f, solidImage(width, height, c)); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}

	return path
}

func solidImage(width, height int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return buf.Bytes()
}

func pngDataURL(t *testing.T, img image.Image) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes(t, img))
}

type fetcherFunc func(ctx context.Context, url string) ([]byte, error)

func (f fetcherFunc) FetchBytes(ctx context.Context, url string) ([]byte, error) { return f(ctx, url) }

// callTool sends a tools/call request through handleRequest.
func callTool(t *testing.T, s *Server, name string, args interface{}) *MCPResponse {
	t.Helper()

	paramsJSON, err := json.Marshal(map[string]interface{}{
		"name":      name,
		"arguments": args,
	})
	if err != nil {
		t.Fatalf("failed to marshal params: %v", err)
	}

	resp := s.handleRequest(context.Background(), &MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/call",
		Params:  paramsJSON,
	})
	if resp == nil {
		t.Fatal("handleRequest returned nil")
	}
	return resp
}

// decodeToolResult unpacks the JSON text content of a successful tool call into v.
func decodeToolResult(t *testing.T, resp *MCPResponse, v interface{}) {
	t.Helper()

	if resp.Error != nil {
		t.Fatalf("Unexpected error: %+v", resp.Error)
	}
	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatal("Result should be a map")
	}
	content, ok := result["content"].([]map[string]interface{})
	if !ok || len(content) != 1 {
		t.Fatalf("content should hold one entry, got %v", result["content"])
	}
	if content[0]["type"] != "text" {
		t.Errorf("content type: got %v, want text", content[0]["type"])
	}
	if err := json.Unmarshal([]byte(content[0]["text"].(string)), v); err != nil {
		t.Fatalf("tool text is not JSON: %v", err)
	}
}

func wantToolError(t *testing.T, resp *MCPResponse, fragment string) {
	t.Helper()

	if resp.Error == nil {
		t.Fatal("Expected error response")
	}
	if resp.Error.Code != -32000 {
		t.Errorf("Error code: got %d, want -32000", resp.Error.Code)
	}
	data, _ := resp.Error.Data.(string)
	if !strings.Contains(data, fragment) {
		t.Errorf("Error data %q should contain %q", data, fragment)
	}
}

func TestHandleToolsCall_ImageLoad(t *testing.T) {
	s := newTestServer(t)
	imgPath := createTestImageFile(t, 100, 80, color.RGBA{255, 0, 0, 255})

	var info struct {
		Width    int    `json:"width"`
		Height   int    `json:"height"`
		Format   string `json:"format"`
		HasAlpha bool   `json:"has_alpha"`
	}
	decodeToolResult(t, callTool(t, s, "image_load", map[string]interface{}{"path": imgPath}), &info)

	if info.Width != 100 || info.Height != 80 {
		t.Errorf("dimensions: got %dx%d, want 100x80", info.Width, info.Height)
	}
	if info.Format != "png" {
		t.Errorf("format: got %s, want png", info.Format)
	}
	if info.HasAlpha {
		t.Error("opaque image reported alpha")
	}
	if s.cache.Len() != 1 {
		t.Errorf("cache size: got %d, want 1", s.cache.Len())
	}
}

func TestHandleToolsCall_ImageDimensions(t *testing.T) {
	s := newTestServer(t)
	imgPath := createTestImageFile(t, 200, 150, color.RGBA{0, 255, 0, 255})

	var dims struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	}
	decodeToolResult(t, callTool(t, s, "image_dimensions", map[string]interface{}{"path": imgPath}), &dims)

	if dims.Width != 200 || dims.Height != 150 {
		t.Errorf("dimensions: got %dx%d, want 200x150", dims.Width, dims.Height)
	}
}

func TestHandleToolsCall_NonExistentFile(t *testing.T) {
	s := newTestServer(t)

	resp := callTool(t, s, "image_load", map[string]interface{}{"path": "/nonexistent/image.png"})
	wantToolError(t, resp, "/nonexistent/image.png")
}

func TestHandleToolsCall_InvalidTool(t *testing.T) {
	s := newTestServer(t)

	resp := callTool(t, s, "nonexistent_tool", map[string]interface{}{})
	wantToolError(t, resp, "unknown tool")
}

func TestHandleToolsCall_InvalidParams(t *testing.T) {
	s := newTestServer(t)

	resp := s.handleToolsCall(context.Background(), &MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Params:  json.RawMessage(`[1,2,3]`),
	})
	if resp.Error == nil {
		t.Fatal("Expected error for malformed params")
	}
	if resp.Error.Code != -32602 {
		t.Errorf("Error code: got %d, want -32602", resp.Error.Code)
	}
}

func TestHandleToolsCall_NumTokens(t *testing.T) {
	s := newTestServer(t)
	imgPath := createTestImageFile(t, 100, 80, color.Black)

	tests := []struct {
		name      string
		args      map[string]interface{}
		wantWide  int
		wantTall  int
		wantCount int
	}{
		{"from size", map[string]interface{}{"width": 386, "height": 111}, 24, 7, 175},
		{"clamped to max", map[string]interface{}{"width": 2048, "height": 1024}, 64, 32, 2080},
		{"tiny image", map[string]interface{}{"width": 1, "height": 1}, 1, 1, 2},
		{"from file", map[string]interface{}{"path": imgPath}, 6, 5, 35},
		{"path wins over size", map[string]interface{}{"path": imgPath, "width": 5000, "height": 5000}, 6, 5, 35},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var res NumTokensResult
			decodeToolResult(t, callTool(t, s, "image_num_tokens", tt.args), &res)

			if res.PatchesWide != tt.wantWide || res.PatchesTall != tt.wantTall {
				t.Errorf("patches: got %dx%d, want %dx%d", res.PatchesWide, res.PatchesTall, tt.wantWide, tt.wantTall)
			}
			if res.NumTokens != tt.wantCount {
				t.Errorf("num_tokens: got %d, want %d", res.NumTokens, tt.wantCount)
			}
		})
	}
}

func TestHandleToolsCall_NumTokens_MissingSize(t *testing.T) {
	s := newTestServer(t)

	resp := callTool(t, s, "image_num_tokens", map[string]interface{}{"width": 0, "height": 10})
	wantToolError(t, resp, "positive width and height")
}

func TestHandleToolsCall_EncodePath(t *testing.T) {
	s := newTestServer(t)
	imgPath := createTestImageFile(t, 100, 80, color.RGBA{255, 0, 0, 255})

	var res EncodeResult
	decodeToolResult(t, callTool(t, s, "image_encode", map[string]interface{}{
		"path":           imgPath,
		"include_tokens": true,
	}), &res)

	if res.PatchesWide != 6 || res.PatchesTall != 5 {
		t.Errorf("patches: got %dx%d, want 6x5", res.PatchesWide, res.PatchesTall)
	}
	if res.Shape != [3]int{3, 80, 96} {
		t.Errorf("shape: got %v, want [3 80 96]", res.Shape)
	}
	if res.NumTokens != 35 || len(res.Tokens) != 35 {
		t.Fatalf("tokens: got num_tokens=%d len=%d, want 35", res.NumTokens, len(res.Tokens))
	}
	if res.Tokens[6] != 12 {
		t.Errorf("first row break: got %d, want 12", res.Tokens[6])
	}
	if res.Tokens[34] != 13 {
		t.Errorf("last token: got %d, want 13", res.Tokens[34])
	}
	if res.AbsSum <= 0 {
		t.Errorf("abs_sum should be positive, got %v", res.AbsSum)
	}
}

func TestHandleToolsCall_EncodeOmitsTokensByDefault(t *testing.T) {
	s := newTestServer(t)
	imgPath := createTestImageFile(t, 32, 32, color.White)

	resp := callTool(t, s, "image_encode", map[string]interface{}{"path": imgPath})
	text := resp.Result.(map[string]interface{})["content"].([]map[string]interface{})[0]["text"].(string)

	if strings.Contains(text, `"tokens"`) {
		t.Errorf("tokens should be omitted unless requested: %s", text)
	}
}

func TestHandleToolsCall_EncodeDataURLMatchesPath(t *testing.T) {
	s := newTestServer(t)
	c := color.RGBA{30, 140, 220, 255}
	imgPath := createTestImageFile(t, 40, 24, c)

	var fromPath, fromURL EncodeResult
	decodeToolResult(t, callTool(t, s, "image_encode", map[string]interface{}{"path": imgPath}), &fromPath)
	decodeToolResult(t, callTool(t, s, "image_encode", map[string]interface{}{"url": pngDataURL(t, solidImage(40, 24, c))}), &fromURL)

	if fromPath.Shape != fromURL.Shape {
		t.Errorf("shape: path %v, data url %v", fromPath.Shape, fromURL.Shape)
	}
	if fromPath.AbsSum != fromURL.AbsSum {
		t.Errorf("abs_sum: path %v, data url %v", fromPath.AbsSum, fromURL.AbsSum)
	}
	if !strings.HasPrefix(fromURL.Source, "data:image/png;base64,") || !strings.HasSuffix(fromURL.Source, "...") {
		t.Errorf("long sources should be shortened, got %q", fromURL.Source)
	}
}

func TestHandleToolsCall_EncodeRemoteURL(t *testing.T) {
	data := pngBytes(t, solidImage(64, 16, color.Black))

	var gotURL string
	s := newTestServer(t, multimodal.WithFetcher(fetcherFunc(func(ctx context.Context, url string) ([]byte, error) {
		gotURL = url
		return data, nil
	})))

	var res EncodeResult
	decodeToolResult(t, callTool(t, s, "image_encode", map[string]interface{}{"url": "https://example.com/a.png"}), &res)

	if gotURL != "https://example.com/a.png" {
		t.Errorf("fetched url: got %q", gotURL)
	}
	if res.PatchesWide != 4 || res.PatchesTall != 1 {
		t.Errorf("patches: got %dx%d, want 4x1", res.PatchesWide, res.PatchesTall)
	}
}

func TestHandleToolsCall_EncodeErrors(t *testing.T) {
	errFetch := errors.New("connection refused")
	s := newTestServer(t, multimodal.WithFetcher(fetcherFunc(func(ctx context.Context, url string) ([]byte, error) {
		if strings.Contains(url, "down") {
			return nil, errFetch
		}
		return []byte("not an image"), nil
	})))
	imgPath := createTestImageFile(t, 8, 8, color.White)

	tests := []struct {
		name     string
		args     map[string]interface{}
		fragment string
	}{
		{"no source", map[string]interface{}{}, "path or url is required"},
		{"both sources", map[string]interface{}{"path": imgPath, "url": "https://example.com/a.png"}, "not both"},
		{"missing file", map[string]interface{}{"path": "/nonexistent/image.png"}, "/nonexistent/image.png"},
		{"bad data url", map[string]interface{}{"url": "data:image/png;base64"}, "data url"},
		{"undecodable bytes", map[string]interface{}{"url": "https://example.com/junk"}, "https://example.com/junk"},
		{"fetch failure", map[string]interface{}{"url": "https://down.example.com/a.png"}, "connection refused"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wantToolError(t, callTool(t, s, "image_encode", tt.args), tt.fragment)
		})
	}
}

func TestHandleToolsCall_EncodeBatch(t *testing.T) {
	s := newTestServer(t)
	wide := createTestImageFile(t, 100, 80, color.White)
	tall := createTestImageFile(t, 16, 64, color.Black)

	var res BatchResult
	decodeToolResult(t, callTool(t, s, "image_encode_batch", map[string]interface{}{
		"images": []map[string]interface{}{
			{"path": wide},
			{"url": pngDataURL(t, solidImage(32, 32, color.Gray{Y: 128}))},
			{"path": tall, "include_tokens": true},
		},
		"concurrency": 2,
	}), &res)

	if len(res.Results) != 3 {
		t.Fatalf("result count: got %d, want 3", len(res.Results))
	}

	want := []struct{ wide, tall int }{{6, 5}, {2, 2}, {1, 4}}
	for i, w := range want {
		got := res.Results[i]
		if got.PatchesWide != w.wide || got.PatchesTall != w.tall {
			t.Errorf("result %d: got %dx%d, want %dx%d", i, got.PatchesWide, got.PatchesTall, w.wide, w.tall)
		}
	}
	if res.Results[0].Source != wide || res.Results[2].Source != tall {
		t.Error("results are not in request order")
	}
	if len(res.Results[2].Tokens) != 8 || len(res.Results[0].Tokens) != 0 {
		t.Error("include_tokens should apply per image")
	}
}

func TestHandleToolsCall_EncodeBatchConcurrencyLimit(t *testing.T) {
	var inFlight, peak atomic.Int32
	release := make(chan struct{})

	data := pngBytes(t, solidImage(16, 16, color.White))

	s := newTestServer(t, multimodal.WithFetcher(fetcherFunc(func(ctx context.Context, url string) ([]byte, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		<-release
		inFlight.Add(-1)
		return data, nil
	})))

	images := make([]map[string]interface{}, 6)
	for i := range images {
		images[i] = map[string]interface{}{"url": "https://example.com/img.png"}
	}

	done := make(chan *MCPResponse)
	go func() {
		done <- callTool(t, s, "image_encode_batch", map[string]interface{}{"images": images, "concurrency": 2})
	}()

	for i := 0; i < len(images); i++ {
		release <- struct{}{}
	}

	var res BatchResult
	decodeToolResult(t, <-done, &res)

	if len(res.Results) != len(images) {
		t.Errorf("result count: got %d, want %d", len(res.Results), len(images))
	}
	if peak.Load() > 2 {
		t.Errorf("peak concurrency: got %d, want at most 2", peak.Load())
	}
}

func TestHandleToolsCall_EncodeBatchFailure(t *testing.T) {
	s := newTestServer(t)
	ok := createTestImageFile(t, 16, 16, color.White)

	resp := callTool(t, s, "image_encode_batch", map[string]interface{}{
		"images": []map[string]interface{}{
			{"path": ok},
			{"path": "/nonexistent/image.png"},
		},
	})
	wantToolError(t, resp, "image 1")

	wantToolError(t, callTool(t, s, "image_encode_batch", map[string]interface{}{"images": []interface{}{}}), "must not be empty")
}

func TestExecuteTool_AllTools(t *testing.T) {
	s := newTestServer(t)
	imgPath := createTestImageFile(t, 100, 100, color.RGBA{128, 128, 128, 255})

	toolTests := []struct {
		name string
		args map[string]interface{}
	}{
		{"image_load", map[string]interface{}{"path": imgPath}},
		{"image_dimensions", map[string]interface{}{"path": imgPath}},
		{"image_num_tokens", map[string]interface{}{"path": imgPath}},
		{"image_encode", map[string]interface{}{"path": imgPath}},
		{"image_encode_batch", map[string]interface{}{"images": []map[string]interface{}{{"path": imgPath}}}},
		{"image_preview", map[string]interface{}{"path": imgPath, "show_patches": true}},
	}

	for _, tt := range toolTests {
		t.Run(tt.name, func(t *testing.T) {
			argsJSON, _ := json.Marshal(tt.args)
			result, err := s.executeTool(context.Background(), tt.name, argsJSON)
			if err != nil {
				t.Fatalf("executeTool(%s) failed: %v", tt.name, err)
			}
			if result == nil {
				t.Errorf("executeTool(%s) returned nil result", tt.name)
			}
		})
	}

	if len(toolTests) != len(GetToolDefinitions()) {
		t.Errorf("dispatch test covers %d tools, %d are defined", len(toolTests), len(GetToolDefinitions()))
	}
}

func TestExecuteTool_InvalidJSON(t *testing.T) {
	s := newTestServer(t)

	for _, name := range []string{"image_load", "image_num_tokens", "image_encode", "image_encode_batch", "image_preview"} {
		if _, err := s.executeTool(context.Background(), name, json.RawMessage(`{invalid`)); err == nil {
			t.Errorf("executeTool(%s) should fail for invalid JSON", name)
		}
	}
}

func TestHandleToolsCall_Preview(t *testing.T) {
	s := newTestServer(t)
	imgPath := createTestImageFile(t, 100, 80, color.White)

	tests := []struct {
		name        string
		showPatches bool
		wantLine    bool
	}{
		{"plain", false, false},
		{"with patches", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var res struct {
				Width       int    `json:"width"`
				Height      int    `json:"height"`
				ImageBase64 string `json:"image_base64"`
				MimeType    string `json:"mime_type"`
				PatchesWide int    `json:"patches_wide"`
				PatchesTall int    `json:"patches_tall"`
			}
			decodeToolResult(t, callTool(t, s, "image_preview", map[string]interface{}{
				"path":         imgPath,
				"show_patches": tt.showPatches,
				"grid_color":   "#0000FF",
			}), &res)

			if res.Width != 96 || res.Height != 80 {
				t.Errorf("dimensions: got %dx%d, want 96x80", res.Width, res.Height)
			}
			if res.PatchesWide != 6 || res.PatchesTall != 5 {
				t.Errorf("patches: got %dx%d, want 6x5", res.PatchesWide, res.PatchesTall)
			}
			if res.MimeType != "image/png" {
				t.Errorf("mime type: got %s", res.MimeType)
			}

			data, err := base64.StdEncoding.DecodeString(res.ImageBase64)
			if err != nil {
				t.Fatalf("failed to decode base64: %v", err)
			}
			img, err := png.Decode(bytes.NewReader(data))
			if err != nil {
				t.Fatalf("preview is not a PNG: %v", err)
			}

			r, g, b, _ := img.At(16, 40).RGBA()
			isLine := r == 0 && g == 0 && b == 0xffff
			if isLine != tt.wantLine {
				t.Errorf("pixel on patch boundary: got rgb(%d,%d,%d), want line=%v", r>>8, g>>8, b>>8, tt.wantLine)
			}
		})
	}
}

func TestHandleToolsCall_PreviewInvalidColor(t *testing.T) {
	s := newTestServer(t)
	imgPath := createTestImageFile(t, 32, 32, color.White)

	resp := callTool(t, s, "image_preview", map[string]interface{}{
		"path":         imgPath,
		"show_patches": true,
		"grid_color":   "red",
	})
	wantToolError(t, resp, "invalid grid color")
}

func TestShortSource(t *testing.T) {
	ascii := strings.Repeat("a", 64)
	wide := strings.Repeat("é", 70)

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"short", "https://example.com/a.png", "https://example.com/a.png"},
		{"exactly max", ascii, ascii},
		{"ascii over max", ascii + "bcd", ascii + "..."},
		{"multi-byte", wide, strings.Repeat("é", 64) + "..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := shortSource(tt.in)
			if got != tt.want {
				t.Errorf("shortSource: got %q, want %q", got, tt.want)
			}
			if !utf8.ValidString(got) {
				t.Errorf("shortSource produced invalid UTF-8: %q", got)
			}
		})
	}
}
