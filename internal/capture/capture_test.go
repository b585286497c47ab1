package capture

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"

	"github.com/andresmejia3/checkpoint/internal/types"
)

type stubSource struct {
	frame []byte
	w, h  int
	err   error
}

func (s stubSource) Snapshot() ([]byte, error) { return s.frame, s.err }
func (s stubSource) Dimensions() (int, int)   { return s.w, s.h }

func jpegFrame(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// TestCapture_RoundTripKeepsNativeSize checks that a captured frame decodes
// back to the native video resolution.
func TestCapture_RoundTripKeepsNativeSize(t *testing.T) {
	sizes := []struct{ w, h int }{{1280, 720}, {640, 480}, {17, 9}}

	for _, sz := range sizes {
		src := stubSource{frame: jpegFrame(t, sz.w, sz.h), w: sz.w, h: sz.h}
		img, err := NewEncoder(DefaultQuality).Capture(src)
		if err != nil {
			t.Fatalf("Capture(%dx%d) failed: %v", sz.w, sz.h, err)
		}
		if img.ContentType() != "image/jpeg" {
			t.Errorf("Expected image/jpeg, got %s", img.ContentType())
		}

		w, h, err := DecodeDimensions(img)
		if err != nil {
			t.Fatalf("DecodeDimensions failed: %v", err)
		}
		if w != sz.w || h != sz.h {
			t.Errorf("Round trip changed size: want %dx%d, got %dx%d", sz.w, sz.h, w, h)
		}
		if img.Width() != sz.w || img.Height() != sz.h {
			t.Errorf("CapturedImage reports %dx%d", img.Width(), img.Height())
		}
	}
}

func TestCapture_ScalesToNativeWhenFrameDiffers(t *testing.T) {
	// Display-size frame, native size reported by the stream differs.
	src := stubSource{frame: jpegFrame(t, 320, 240), w: 640, h: 480}
	img, err := NewEncoder(90).Capture(src)
	if err != nil {
		t.Fatalf("Capture failed: %v", err)
	}
	w, h, _ := DecodeDimensions(img)
	if w != 640 || h != 480 {
		t.Errorf("Expected native 640x480, got %dx%d", w, h)
	}
}

func TestCapture_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  stubSource
		want types.Kind
	}{
		{
			name: "Zero sized video",
			src:  stubSource{frame: []byte{0xFF, 0xD8}, w: 0, h: 0},
			want: types.EncodingError,
		},
		{
			name: "Undecodable frame",
			src:  stubSource{frame: []byte("not an image"), w: 10, h: 10},
			want: types.EncodingError,
		},
		{
			name: "Unclassified snapshot failure",
			src:  stubSource{err: errors.New("boom"), w: 10, h: 10},
			want: types.EncodingError,
		},
		{
			name: "Classified snapshot failure passes through",
			src:  stubSource{err: types.Errorf(types.PlaybackError, "stream ended"), w: 10, h: 10},
			want: types.PlaybackError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEncoder(DefaultQuality).Capture(tt.src)
			if types.KindOf(err) != tt.want {
				t.Errorf("Capture() error = %v, want kind %v", err, tt.want)
			}
		})
	}
}

func TestNewEncoder_ClampsQuality(t *testing.T) {
	if q := NewEncoder(0).Quality; q != DefaultQuality {
		t.Errorf("Expected default quality for 0, got %d", q)
	}
	if q := NewEncoder(101).Quality; q != DefaultQuality {
		t.Errorf("Expected default quality for 101, got %d", q)
	}
	if q := NewEncoder(75).Quality; q != 75 {
		t.Errorf("Expected 75 to be kept, got %d", q)
	}
}

func TestDataURL(t *testing.T) {
	img, err := NewEncoder(DefaultQuality).Capture(stubSource{frame: jpegFrame(t, 40, 30), w: 40, h: 30})
	if err != nil {
		t.Fatal(err)
	}

	url := DataURL(img)
	if !strings.HasPrefix(url, "data:image/jpeg;base64,") {
		t.Fatalf("Unexpected data URL prefix: %.40s", url)
	}

	back, err := ParseDataURL(url)
	if err != nil {
		t.Fatalf("ParseDataURL failed: %v", err)
	}
	if !bytes.Equal(back.Bytes(), img.Bytes()) {
		t.Error("Data URL did not preserve the image bytes")
	}
	if back.Width() != 40 || back.Height() != 30 {
		t.Errorf("Expected 40x30, got %dx%d", back.Width(), back.Height())
	}

	// Bare base64 without the data: prefix is accepted too.
	if _, err := ParseDataURL(strings.TrimPrefix(url, "data:image/jpeg;base64,")); err != nil {
		t.Errorf("Bare base64 rejected: %v", err)
	}
}

func TestParseDataURL_RejectsNonJPEG(t *testing.T) {
	var buf bytes.Buffer
	png.Encode(&buf, image.NewGray(image.Rect(0, 0, 2, 2)))

	url := "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
	if _, err := ParseDataURL(url); err == nil {
		t.Error("Expected PNG payload to be rejected")
	}
	if _, err := ParseDataURL("data:image/jpeg,plain"); err == nil {
		t.Error("Expected non-base64 data URL to be rejected")
	}
}
