package scanner

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQRDecoder_RoundTrip(t *testing.T) {
	img, err := Encode("T-LZ1ABCDE-7QK2ZX", 240)
	require.NoError(t, err)

	text, ok := NewQRDecoder().Decode(FrameFromImage(img))
	require.True(t, ok)
	assert.Equal(t, "T-LZ1ABCDE-7QK2ZX", text)
}

func TestQRDecoder_DecodeImage(t *testing.T) {
	img, err := Encode("T-ABC-123456", 200)
	require.NoError(t, err)

	text, ok := NewQRDecoder().DecodeImage(img)
	require.True(t, ok)
	assert.Equal(t, "T-ABC-123456", text)
}

func TestQRDecoder_NothingFound(t *testing.T) {
	d := NewQRDecoder()

	blank := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for i := range blank.Pix {
		blank.Pix[i] = 0xff
	}
	_, ok := d.Decode(FrameFromImage(blank))
	assert.False(t, ok)

	_, ok = d.Decode(Frame{})
	assert.False(t, ok)

	_, ok = d.Decode(Frame{Pix: []byte{1, 2, 3}, Width: 10, Height: 10})
	assert.False(t, ok)

	noisy := image.NewGray(image.Rect(0, 0, 50, 50))
	for y := 0; y < 50; y++ {
		for x := 0; x < 50; x++ {
			if (x*7+y*13)%3 == 0 {
				noisy.SetGray(x, y, color.Gray{Y: 0})
			} else {
				noisy.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	_, ok = d.DecodeImage(noisy)
	assert.False(t, ok)

	_, ok = d.DecodeImage(nil)
	assert.False(t, ok)
}

func TestEncode_RejectsEmptyPayload(t *testing.T) {
	_, err := Encode("  ", 100)
	assert.Error(t, err)
}
