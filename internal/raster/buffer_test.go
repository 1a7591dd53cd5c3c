package raster

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuffer_Validate(t *testing.T) {
	tests := []struct {
		name    string
		buf     *Buffer
		wantErr bool
	}{
		{"valid", NewBuffer(3, 2), false},
		{"nil", nil, true},
		{"zero width", &Buffer{Width: 0, Height: 2}, true},
		{"short pixels", &Buffer{Width: 2, Height: 2, Pix: make([]byte, 15)}, true},
		{"long pixels", &Buffer{Width: 2, Height: 2, Pix: make([]byte, 17)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.buf.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedBuffer)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBuffer_Clone(t *testing.T) {
	b := NewBuffer(2, 1)
	b.Pix[0] = 7
	c := b.Clone()
	c.Pix[0] = 9
	assert.Equal(t, byte(7), b.Pix[0])
	assert.Equal(t, b.Width, c.Width)
	assert.Equal(t, b.Height, c.Height)
}

func TestFromNRGBA_SubImage(t *testing.T) {
	img := quadrantImage(8, 8)
	sub := img.SubImage(image.Rect(4, 4, 8, 8)).(*image.NRGBA)

	buf := fromNRGBA(sub)
	require.NoError(t, buf.Validate())
	assert.Equal(t, 4, buf.Width)
	// Bottom-right quadrant is white.
	for i := 0; i < buf.Len(); i++ {
		assert.Equal(t, byte(255), buf.Pix[i])
	}
}

func TestBuffer_Image(t *testing.T) {
	b := NewBuffer(3, 2)
	img := b.Image()
	assert.Equal(t, image.Rect(0, 0, 3, 2), img.Bounds())
	assert.Equal(t, 12, img.Stride)
}
