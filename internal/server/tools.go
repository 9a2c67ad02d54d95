package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// imageSourceProperties are the alternative inputs accepted by the encode tools.
func imageSourceProperties() map[string]interface{} {
	return map[string]interface{}{
		"path": map[string]interface{}{
			"type":        "string",
			"description": "Absolute path to the image file",
		},
		"url": map[string]interface{}{
			"type":        "string",
			"description": "http(s) URL or base64 data URL (data:image/png;base64,...) of the image",
		},
		"include_tokens": map[string]interface{}{
			"type":        "boolean",
			"description": "Include the full token id sequence in the result. Default false",
			"default":     false,
		},
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Basic Image Information
		{
			Name:        "image_load",
			Description: "Load an image file and return its dimensions, format and whether it has transparency. The decoded image is cached for later encode calls.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the image file",
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "image_dimensions",
			Description: "Get the width and height of an image file.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the image file",
					},
				},
				"required": []string{"path"},
			},
		},

		// Tokenization
		{
			Name:        "image_num_tokens",
			Description: "Compute the patch grid and token count an image would be encoded to, from a file or from a width and height, without resizing anything.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the image file. Takes precedence over width/height",
					},
					"width": map[string]interface{}{
						"type":        "integer",
						"description": "Image width in pixels",
					},
					"height": map[string]interface{}{
						"type":        "integer",
						"description": "Image height in pixels",
					},
				},
			},
		},
		{
			Name:        "image_encode",
			Description: "Encode one image into model input: resize to the patch grid, normalize pixels and build the image token span. Returns the grid, tensor shape, tensor absolute sum and optionally the tokens. Give exactly one of path or url.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": imageSourceProperties(),
			},
		},
		{
			Name:        "image_encode_batch",
			Description: "Encode several images concurrently. Results are returned in request order; the first failure fails the whole batch.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"images": map[string]interface{}{
						"type":        "array",
						"description": "Images to encode, each with a path or url",
						"items": map[string]interface{}{
							"type":       "object",
							"properties": imageSourceProperties(),
						},
					},
					"concurrency": map[string]interface{}{
						"type":        "integer",
						"description": "Maximum images encoded at once. Default 4",
						"default":     defaultBatchConcurrency,
					},
				},
				"required": []string{"images"},
			},
		},
		{
			Name:        "image_preview",
			Description: "Return the exact bitmap the encoder normalizes (transparency flattened, resized to the patch grid) as base64 PNG, optionally with patch boundaries drawn. Give exactly one of path or url.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the image file",
					},
					"url": map[string]interface{}{
						"type":        "string",
						"description": "http(s) URL or base64 data URL of the image",
					},
					"show_patches": map[string]interface{}{
						"type":        "boolean",
						"description": "Draw a line along every patch boundary. Default false",
						"default":     false,
					},
					"grid_color": map[string]interface{}{
						"type":        "string",
						"description": "Patch line color as #RRGGBB. Default #FF0000",
						"default":     defaultGridColor,
					},
				},
			},
		},
	}
}
