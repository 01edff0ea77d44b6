// Package scanner drives the entry gate: it pulls frames from a camera,
// decodes QR codes, debounces them and hands identifiers to redemption.
package scanner

import (
	"errors"
	"image"
	"image/draw"
	"strings"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
)

// Frame is one RGBA camera image, 4 bytes per pixel, row-major.
type Frame struct {
	Pix    []byte
	Width  int
	Height int
}

// Decoder extracts a code from a frame. ok is false when nothing usable was found.
type Decoder interface {
	Decode(f Frame) (text string, ok bool)
}

// QRDecoder decodes QR codes with gozxing.
type QRDecoder struct {
	hints map[gozxing.DecodeHintType]interface{}
}

// NewQRDecoder returns a decoder that tries hard on low-contrast frames.
func NewQRDecoder() *QRDecoder {
	return &QRDecoder{hints: map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_TRY_HARDER: true,
	}}
}

// Decode never fails: malformed buffers, frames without a code and codes
// that fail their checksum all report ok=false.
func (d *QRDecoder) Decode(f Frame) (string, bool) {
	if f.Width <= 0 || f.Height <= 0 || len(f.Pix) < f.Width*f.Height*4 {
		return "", false
	}
	img := &image.RGBA{
		Pix:    f.Pix,
		Stride: f.Width * 4,
		Rect:   image.Rect(0, 0, f.Width, f.Height),
	}
	return d.DecodeImage(img)
}

// DecodeImage decodes an already decoded still image, such as an uploaded PNG.
func (d *QRDecoder) DecodeImage(img image.Image) (text string, ok bool) {
	if img == nil || img.Bounds().Empty() {
		return "", false
	}
	defer func() {
		if recover() != nil {
			text, ok = "", false
		}
	}()

	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", false
	}
	// QRCodeReader keeps per-call state, so each decode gets its own.
	result, err := qrcode.NewQRCodeReader().Decode(bmp, d.hints)
	if err != nil {
		return "", false
	}
	text = strings.TrimSpace(result.GetText())
	return text, text != ""
}

// FrameFromImage copies img into an RGBA frame.
func FrameFromImage(img image.Image) Frame {
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return Frame{Pix: rgba.Pix, Width: b.Dx(), Height: b.Dy()}
}

// Encode renders text as a square QR code of size pixels.
func Encode(text string, size int) (image.Image, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("empty QR payload")
	}
	if size <= 0 {
		size = 256
	}
	matrix, err := qrcode.NewQRCodeWriter().Encode(text, gozxing.BarcodeFormat_QR_CODE, size, size, nil)
	if err != nil {
		return nil, err
	}
	return matrix, nil
}
