package raster

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"

	"github.com/disintegration/imaging"
)

// PreviewResult contains a PNG rendering of a raster
type PreviewResult struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// Preview renders r as a PNG no wider than maxWidth, keeping the aspect
// ratio. maxWidth <= 0 keeps the original size.
func Preview(r *Raster, maxWidth int) (*PreviewResult, error) {
	img, err := r.Image()
	if err != nil {
		return nil, err
	}
	return encodePreview(img, maxWidth)
}

// PreviewRegion renders the pixel window (x1,y1)-(x2,y2) of r, scaled by
// scale.
func PreviewRegion(r *Raster, x1, y1, x2, y2 int, scale float64) (*PreviewResult, error) {
	if x1 < 0 || y1 < 0 || x2 > r.Width || y2 > r.Height {
		return nil, fmt.Errorf("preview region (%d,%d)-(%d,%d) outside raster bounds (0,0)-(%d,%d)",
			x1, y1, x2, y2, r.Width, r.Height)
	}
	if x1 >= x2 || y1 >= y2 {
		return nil, fmt.Errorf("invalid preview region: x1 must be < x2, y1 must be < y2")
	}

	img, err := r.Image()
	if err != nil {
		return nil, err
	}
	var out image.Image = imaging.Crop(img, image.Rect(x1, y1, x2, y2))

	if scale != 1.0 && scale > 0 {
		newWidth := int(float64(out.Bounds().Dx()) * scale)
		newHeight := int(float64(out.Bounds().Dy()) * scale)
		out = imaging.Resize(out, newWidth, newHeight, imaging.Lanczos)
	}
	return encodePreview(out, 0)
}

func encodePreview(img image.Image, maxWidth int) (*PreviewResult, error) {
	if maxWidth > 0 && img.Bounds().Dx() > maxWidth {
		img = imaging.Resize(img, maxWidth, 0, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode preview: %w", err)
	}

	return &PreviewResult{
		Width:       img.Bounds().Dx(),
		Height:      img.Bounds().Dy(),
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
	}, nil
}
