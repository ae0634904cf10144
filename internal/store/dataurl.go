package store

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// EncodeDataURL renders data as a base64 data URI. An empty mime type is
// sniffed from the content.
func EncodeDataURL(mime string, data []byte) string {
	if mime == "" {
		mime = SniffType(data)
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// SniffType detects the MIME type of data without parameters.
func SniffType(data []byte) string {
	mt := mimetype.Detect(data)
	base, _, _ := strings.Cut(mt.String(), ";")
	return base
}

// DecodeDataURL decodes a base64 data URI and returns its bytes and media
// type. fallbackType is used when the URI names no media type.
func DecodeDataURL(s, fallbackType string) ([]byte, string, error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return nil, "", errors.New("data url: missing data: prefix")
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", errors.New("data url: missing comma")
	}

	mediaType, params, _ := strings.Cut(header, ";")
	if !strings.Contains(";"+params+";", ";base64;") {
		return nil, "", errors.New("data url: only base64 encoding is supported")
	}
	if mediaType == "" {
		mediaType = fallbackType
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("data url: %w", err)
	}
	return data, mediaType, nil
}
