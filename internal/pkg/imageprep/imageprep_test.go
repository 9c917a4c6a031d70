package imageprep

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
)

func encodePNG(t *testing.T, width, height int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		t.Fatal(err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestIsValidPayload(t *testing.T) {
	valid := encodePNG(t, 4, 4)

	tests := []struct {
		name    string
		payload string
		want    bool
	}{
		{name: "bare base64", payload: valid, want: true},
		{name: "data url", payload: "data:image/png;base64," + valid, want: true},
		{name: "empty", payload: "", want: false},
		{name: "not base64", payload: "!!!not-base64!!!", want: false},
		{name: "data url without payload", payload: "data:image/png;base64", want: false},
	}

	for _, tt := range tests {
		if got := IsValidPayload(tt.payload); got != tt.want {
			t.Errorf("%s: IsValidPayload = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestPrepareReturnsJPEGDataURL(t *testing.T) {
	out, err := Prepare([]string{encodePNG(t, 10, 10)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("len(out) = %d", len(out))
	}
	if !strings.HasPrefix(out[0], "data:image/jpeg;base64,") {
		t.Fatalf("out[0] = %q", out[0][:40])
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(out[0], "data:image/jpeg;base64,"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := imaging.Decode(bytes.NewReader(raw)); err != nil {
		t.Fatalf("re-encoded payload does not decode: %v", err)
	}
}

func TestPrepareDownscalesOversizedImages(t *testing.T) {
	out, err := Prepare([]string{encodePNG(t, MaxDimension+500, 100)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	raw, _ := base64.StdEncoding.DecodeString(strings.TrimPrefix(out[0], "data:image/jpeg;base64,"))
	img, err := imaging.Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() > MaxDimension || img.Bounds().Dy() > MaxDimension {
		t.Fatalf("image not downscaled: %v", img.Bounds())
	}
}

func TestPrepareRejectsGarbage(t *testing.T) {
	_, err := Prepare([]string{encodePNG(t, 4, 4), base64.StdEncoding.EncodeToString([]byte("not an image"))})
	if !errors.Is(err, ErrInvalidImage) {
		t.Fatalf("err = %v, want ErrInvalidImage", err)
	}
}
