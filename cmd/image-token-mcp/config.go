package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/ironsheep/image-token-encoder/internal/fetch"
	"github.com/ironsheep/image-token-encoder/internal/multimodal"
)

// Defaults match the Pixtral-style vision encoder.
const (
	defaultPatchSize    = 16
	defaultMaxImageSize = 1024
	defaultImgID        = 10
	defaultImgBreakID   = 12
	defaultImgEndID     = 13
)

// flagValues holds raw flag values before validation.
type flagValues struct {
	LogLevel        string
	PatchSize       int64
	MaxImageSize    int64
	Rounding        string
	AlphaBackground string
	ImgID           int64
	ImgBreakID      int64
	ImgEndID        int64
	FetchTimeout    time.Duration
	BlockPrivate    bool
}

// settings is the validated server configuration.
type settings struct {
	LogLevel     slog.Level
	Config       multimodal.MultimodalConfig
	IDs          multimodal.SpecialImageIDs
	FetchTimeout time.Duration
	BlockPrivate bool
}

// serverFlags binds every setting to a flag and its environment variable.
func serverFlags(v *flagValues) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level: debug, info, warn, error",
			Value:       "info",
			Sources:     cli.EnvVars("IMAGE_MCP_LOG_LEVEL"),
			Destination: &v.LogLevel,
		},
		&cli.Int64Flag{
			Name:        "patch-size",
			Usage:       "patch edge in pixels",
			Value:       defaultPatchSize,
			Sources:     cli.EnvVars("IMAGE_PATCH_SIZE"),
			Destination: &v.PatchSize,
		},
		&cli.Int64Flag{
			Name:        "max-image-size",
			Usage:       "longest image edge after resizing",
			Value:       defaultMaxImageSize,
			Sources:     cli.EnvVars("MAX_IMAGE_SIZE"),
			Destination: &v.MaxImageSize,
		},
		&cli.StringFlag{
			Name:        "patch-rounding",
			Usage:       "edge quantization: nearest or up",
			Value:       multimodal.RoundNearest.String(),
			Sources:     cli.EnvVars("IMAGE_PATCH_ROUNDING"),
			Destination: &v.Rounding,
		},
		&cli.StringFlag{
			Name:        "alpha-background",
			Usage:       "#RRGGBB colour behind transparent pixels",
			Value:       multimodal.DefaultAlphaBackground,
			Sources:     cli.EnvVars("IMAGE_ALPHA_BACKGROUND"),
			Destination: &v.AlphaBackground,
		},
		&cli.Int64Flag{
			Name:        "img-token",
			Usage:       "patch token id",
			Value:       defaultImgID,
			Sources:     cli.EnvVars("IMAGE_TOKEN_IMG"),
			Destination: &v.ImgID,
		},
		&cli.Int64Flag{
			Name:        "img-break-token",
			Usage:       "row break token id",
			Value:       defaultImgBreakID,
			Sources:     cli.EnvVars("IMAGE_TOKEN_IMG_BREAK"),
			Destination: &v.ImgBreakID,
		},
		&cli.Int64Flag{
			Name:        "img-end-token",
			Usage:       "image end token id",
			Value:       defaultImgEndID,
			Sources:     cli.EnvVars("IMAGE_TOKEN_IMG_END"),
			Destination: &v.ImgEndID,
		},
		&cli.DurationFlag{
			Name:        "fetch-timeout",
			Usage:       "timeout for remote image URLs",
			Value:       fetch.DefaultTimeout,
			Sources:     cli.EnvVars("IMAGE_FETCH_TIMEOUT"),
			Destination: &v.FetchTimeout,
		},
		&cli.BoolFlag{
			Name:        "block-private",
			Usage:       "refuse image URLs that resolve to private networks",
			Sources:     cli.EnvVars("IMAGE_FETCH_BLOCK_PRIVATE"),
			Destination: &v.BlockPrivate,
		},
	}
}

// settings validates v.
func (v flagValues) settings() (*settings, error) {
	s := &settings{
		BlockPrivate: v.BlockPrivate,
	}

	if err := s.LogLevel.UnmarshalText([]byte(v.LogLevel)); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}

	s.Config = multimodal.NewMultimodalConfig(int(v.PatchSize), int(v.MaxImageSize))
	r, err := multimodal.ParsePatchRounding(v.Rounding)
	if err != nil {
		return nil, err
	}
	s.Config.Rounding = r
	s.Config.AlphaBackground = v.AlphaBackground
	if err := s.Config.Validate(); err != nil {
		return nil, err
	}

	s.IDs = multimodal.SpecialImageIDs{
		Img:      int(v.ImgID),
		ImgBreak: int(v.ImgBreakID),
		ImgEnd:   int(v.ImgEndID),
	}
	if err := s.IDs.Validate(); err != nil {
		return nil, err
	}

	if v.FetchTimeout <= 0 {
		return nil, fmt.Errorf("fetch timeout must be positive, got %s", v.FetchTimeout)
	}
	s.FetchTimeout = v.FetchTimeout

	return s, nil
}
