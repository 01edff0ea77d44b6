package scanner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"sync"
)

var (
	// ErrCameraUnavailable means the camera could not be acquired. The session stays idle.
	ErrCameraUnavailable = errors.New("camera unavailable")
	// ErrFrameTooLarge means the image header declares more pixels than allowed.
	ErrFrameTooLarge = errors.New("frame too large")
	// ErrFrameUnreadable means the bytes are not a supported image.
	ErrFrameUnreadable = errors.New("unsupported frame image")
)

// DefaultMaxFramePixels caps frame area, about 2000x2000.
const DefaultMaxFramePixels = 4_000_000

// ReadFrame decodes a PNG or JPEG still into a frame. The header is checked
// before any pixel is decoded, so a small file declaring huge dimensions is
// rejected without allocating its buffer.
func ReadFrame(data []byte, maxPixels int) (Frame, error) {
	if maxPixels <= 0 {
		maxPixels = DefaultMaxFramePixels
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrFrameUnreadable, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width > maxPixels/cfg.Height {
		return Frame{}, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrFrameTooLarge, cfg.Width, cfg.Height, maxPixels)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrFrameUnreadable, err)
	}
	return FrameFromImage(img), nil
}

// Camera yields frames until closed.
type Camera interface {
	Frame(ctx context.Context) (Frame, error)
	Close() error
}

// CameraSource acquires a camera stream.
type CameraSource func(ctx context.Context) (Camera, error)

// FileCamera re-reads a still image each tick. Snapshot tools such as
// fswebcam or libcamera-still can overwrite the file in place.
type FileCamera struct {
	path      string
	maxPixels int
	mu        sync.Mutex
	closed    bool
}

// FileCameraSource opens path as a camera. Acquisition fails when the file
// does not exist. Frames above maxPixels are skipped.
func FileCameraSource(path string, maxPixels int) CameraSource {
	return func(_ context.Context) (Camera, error) {
		if path == "" {
			return nil, fmt.Errorf("%w: no camera path configured", ErrCameraUnavailable)
		}
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCameraUnavailable, err)
		}
		return &FileCamera{path: path, maxPixels: maxPixels}, nil
	}
}

// Frame reads and decodes the current image.
func (c *FileCamera) Frame(_ context.Context) (Frame, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return Frame{}, errors.New("camera closed")
	}

	data, err := os.ReadFile(c.path)
	if err != nil {
		return Frame{}, fmt.Errorf("read frame: %w", err)
	}
	return ReadFrame(data, c.maxPixels)
}

// Close releases the camera. Safe to call more than once.
func (c *FileCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}
