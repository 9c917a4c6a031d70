package imageprep

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/disintegration/imaging"
)

// MaxDimension bounds the longest edge of an image we forward upstream.
// Provider vision pricing scales with pixel count.
const MaxDimension = 2000

const jpegQuality = 85

// ErrInvalidImage marks client payloads that are not decodable images.
var ErrInvalidImage = errors.New("invalid image payload")

// IsValidPayload reports whether a submitted screenshot is plausibly an
// image: a base64 string, optionally wrapped in a data URL.
func IsValidPayload(s string) bool {
	raw := stripDataURL(s)
	if raw == "" {
		return false
	}
	_, err := base64.StdEncoding.DecodeString(raw)
	return err == nil
}

// Prepare normalizes a batch of submitted screenshots: decode, fix EXIF
// orientation, downscale oversized images and re-encode as JPEG data URLs.
// Undecodable entries fail the whole batch so the caller can reject the
// request before spending an upstream call.
func Prepare(images []string) ([]string, error) {
	out := make([]string, 0, len(images))
	for i, img := range images {
		prepared, err := prepareOne(img)
		if err != nil {
			return nil, fmt.Errorf("image %d: %w", i, err)
		}
		out = append(out, prepared)
	}
	return out, nil
}

func prepareOne(payload string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(stripDataURL(payload))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	src, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	bounds := src.Bounds()
	if bounds.Dx() > MaxDimension || bounds.Dy() > MaxDimension {
		src = imaging.Fit(src, MaxDimension, MaxDimension, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, src, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return "", err
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func stripDataURL(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "data:") {
		return s
	}
	if idx := strings.Index(s, ","); idx >= 0 {
		return s[idx+1:]
	}
	return ""
}
