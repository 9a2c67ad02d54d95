package fetch

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

const dataURLPrefix = "data:"

// ErrMalformedDataURL is wrapped by every ParseDataURL failure.
var ErrMalformedDataURL = errors.New("malformed data url")

// DataURL is a parsed inline payload.
type DataURL struct {
	MediaType string
	Data      []byte
}

// IsDataURL reports whether s uses the data: scheme.
func IsDataURL(s string) bool {
	return len(s) >= len(dataURLPrefix) && strings.EqualFold(s[:len(dataURLPrefix)], dataURLPrefix)
}

// ParseDataURL decodes a base64 data URL, "data:image/png;base64,iVBOR...".
//
// Only base64 payloads are accepted since images are binary. Both the
// standard and the URL-safe alphabets are tried, with or without padding.
func ParseDataURL(s string) (*DataURL, error) {
	if !IsDataURL(s) {
		return nil, fmt.Errorf("%w: missing data: scheme", ErrMalformedDataURL)
	}

	header, payload, ok := strings.Cut(s[len(dataURLPrefix):], ",")
	if !ok {
		return nil, fmt.Errorf("%w: missing comma", ErrMalformedDataURL)
	}

	params := strings.Split(header, ";")
	if !strings.EqualFold(params[len(params)-1], "base64") {
		return nil, fmt.Errorf("%w: payload is not base64", ErrMalformedDataURL)
	}

	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil, fmt.Errorf("%w: empty payload", ErrMalformedDataURL)
	}

	data, err := decodeBase64(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDataURL, err)
	}

	mediaType := params[0]
	if mediaType == "" || len(params) == 1 {
		mediaType = "text/plain"
	}

	return &DataURL{MediaType: strings.ToLower(mediaType), Data: data}, nil
}

func decodeBase64(s string) ([]byte, error) {
	encodings := []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	}

	var firstErr error
	for _, enc := range encodings {
		data, err := enc.DecodeString(s)
		if err == nil {
			return data, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, firstErr
}
