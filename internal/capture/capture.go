// Package capture turns the current camera frame into an encoded still image.
package capture

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"strings"

	"github.com/andresmejia3/checkpoint/internal/types"
	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/image/draw"
)

// DefaultQuality is the JPEG quality (0.9) used by both workflows.
const DefaultQuality = 90

// FrameSource is anything that exposes the current frame of a playing stream.
type FrameSource interface {
	Snapshot() ([]byte, error)
	Dimensions() (int, int)
}

// Encoder snapshots frames into JPEG stills.
type Encoder struct {
	Quality int
}

func NewEncoder(quality int) Encoder {
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}
	return Encoder{Quality: quality}
}

// Capture copies the current frame into an offscreen raster at the stream's
// native resolution and encodes it.
func (e Encoder) Capture(src FrameSource) (types.CapturedImage, error) {
	width, height := src.Dimensions()
	if width <= 0 || height <= 0 {
		return types.CapturedImage{}, types.Errorf(types.EncodingError, "video dimensions unknown (%dx%d)", width, height)
	}

	frame, err := src.Snapshot()
	if err != nil {
		if types.KindOf(err) != types.KindUnknown {
			return types.CapturedImage{}, err
		}
		return types.CapturedImage{}, types.Wrap(types.EncodingError, "could not read the current frame", err)
	}

	img, _, err := image.Decode(bytes.NewReader(frame))
	if err != nil {
		return types.CapturedImage{}, types.Wrap(types.EncodingError, "could not decode the current frame", err)
	}

	raster := image.NewRGBA(image.Rect(0, 0, width, height))
	if b := img.Bounds(); b.Dx() == width && b.Dy() == height {
		draw.Copy(raster, image.Point{}, img, b, draw.Src, nil)
	} else {
		// The device changed resolution mid-stream; fill the native-size surface anyway.
		draw.ApproxBiLinear.Scale(raster, raster.Bounds(), img, b, draw.Src, nil)
	}

	data, err := e.encode(raster)
	if err != nil {
		return types.CapturedImage{}, err
	}
	return types.NewCapturedImage(data, types.JPEGContentType, width, height), nil
}

func (e Encoder) encode(img image.Image) ([]byte, error) {
	quality := e.Quality
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, types.Wrap(types.EncodingError, "jpeg encoding failed", err)
	}
	if buf.Len() == 0 {
		return nil, types.Errorf(types.EncodingError, "jpeg encoding produced no data")
	}
	if mt := mimetype.Detect(buf.Bytes()); !mt.Is(types.JPEGContentType) {
		return nil, types.Errorf(types.EncodingError, "encoder produced %s instead of %s", mt.String(), types.JPEGContentType)
	}
	return buf.Bytes(), nil
}

// DecodeDimensions decodes img and returns its pixel size.
func DecodeDimensions(img types.CapturedImage) (int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(img.Bytes()))
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}

const dataURLPrefix = "data:" + types.JPEGContentType + ";base64,"

// DataURL embeds img as a base64 data URL for traditional form fields.
func DataURL(img types.CapturedImage) string {
	return dataURLPrefix + base64.StdEncoding.EncodeToString(img.Bytes())
}

// ParseDataURL accepts either a full data URL or a bare base64 payload.
func ParseDataURL(s string) (types.CapturedImage, error) {
	payload := s
	if strings.HasPrefix(s, "data:") {
		_, after, ok := strings.Cut(s, "base64,")
		if !ok {
			return types.CapturedImage{}, fmt.Errorf("data URL is not base64 encoded")
		}
		payload = after
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return types.CapturedImage{}, fmt.Errorf("invalid base64 image: %w", err)
	}
	if mt := mimetype.Detect(data); !mt.Is(types.JPEGContentType) {
		return types.CapturedImage{}, fmt.Errorf("unsupported image format %s", mt.String())
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return types.CapturedImage{}, fmt.Errorf("invalid jpeg: %w", err)
	}
	return types.NewCapturedImage(data, types.JPEGContentType, cfg.Width, cfg.Height), nil
}
