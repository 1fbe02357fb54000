package processor

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yokitheyo/backdrop/internal/config"
	"github.com/yokitheyo/backdrop/internal/domain"
)

func newCompositor() *Compositor {
	return NewCompositor(&config.ProcessingConfig{MaxConcurrent: 2})
}

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

// gradient returns an opaque image whose pixels all differ.
func gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 7), G: uint8(y * 11), B: uint8(x + y), A: 255})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

func decodePNG(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img
}

func nrgbaAt(img image.Image, x, y int) color.NRGBA {
	return color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
}

func TestCompositor_OutputMatchesBackgroundSize(t *testing.T) {
	fg := encodeJPEG(t, solid(400, 300, color.NRGBA{R: 200, G: 10, B: 10, A: 255}))
	bg := encodePNG(t, gradient(1920, 1080))

	res, err := newCompositor().Composite(context.Background(), fg, bg)
	require.NoError(t, err)
	assert.Equal(t, "image/png", res.ContentType)
	assert.Equal(t, 1920, res.Width)
	assert.Equal(t, 1080, res.Height)

	out := decodePNG(t, res.Data)
	assert.Equal(t, image.Rect(0, 0, 1920, 1080), out.Bounds())
}

func TestCompositor_TransparentForegroundKeepsBackground(t *testing.T) {
	bgImg := gradient(64, 48)
	fg := encodePNG(t, solid(32, 24, color.NRGBA{R: 255, G: 255, B: 255, A: 0}))

	res, err := newCompositor().Composite(context.Background(), fg, encodePNG(t, bgImg))
	require.NoError(t, err)

	out := decodePNG(t, res.Data)
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			require.Equal(t, bgImg.NRGBAAt(x, y), nrgbaAt(out, x, y), "pixel %d,%d", x, y)
		}
	}
}

func TestCompositor_OpaqueForegroundOverwritesBackground(t *testing.T) {
	bgImg := gradient(40, 30)
	fgImg := image.NewNRGBA(image.Rect(0, 0, 40, 30))
	blue := color.NRGBA{R: 0, G: 40, B: 250, A: 255}
	for y := 0; y < 30; y++ {
		for x := 20; x < 40; x++ {
			fgImg.SetNRGBA(x, y, blue)
		}
	}

	res, err := newCompositor().Composite(context.Background(), encodePNG(t, fgImg), encodePNG(t, bgImg))
	require.NoError(t, err)

	out := decodePNG(t, res.Data)
	for y := 0; y < 30; y++ {
		for x := 0; x < 40; x++ {
			if x < 20 {
				require.Equal(t, bgImg.NRGBAAt(x, y), nrgbaAt(out, x, y), "transparent pixel %d,%d", x, y)
			} else {
				require.Equal(t, blue, nrgbaAt(out, x, y), "opaque pixel %d,%d", x, y)
			}
		}
	}
}

func TestCompositor_Deterministic(t *testing.T) {
	fg := encodePNG(t, gradient(50, 20))
	bg := encodePNG(t, gradient(120, 90))
	c := newCompositor()

	first, err := c.Composite(context.Background(), fg, bg)
	require.NoError(t, err)
	second, err := c.Composite(context.Background(), fg, bg)
	require.NoError(t, err)

	assert.Equal(t, first.Data, second.Data)
}

func TestCompositor_Undecodable(t *testing.T) {
	valid := encodePNG(t, gradient(10, 10))

	tests := []struct {
		name      string
		fg, bg    []byte
		wantWhich domain.ImageSide
	}{
		{name: "foreground", fg: []byte("not an image"), bg: valid, wantWhich: domain.SideForeground},
		{name: "background", fg: valid, bg: []byte{0x00, 0x01}, wantWhich: domain.SideBackground},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newCompositor().Composite(context.Background(), tt.fg, tt.bg)
			var imgErr *domain.ImageError
			require.True(t, errors.As(err, &imgErr))
			assert.Equal(t, domain.ImageUndecodable, imgErr.Kind)
			assert.Equal(t, tt.wantWhich, imgErr.Which)
		})
	}
}

func TestCompositor_CanceledContext(t *testing.T) {
	c := NewCompositor(&config.ProcessingConfig{MaxConcurrent: 1})
	require.True(t, c.sem.TryAcquire(1))
	defer c.sem.Release(1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Composite(ctx, nil, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOverlay_DimensionMismatch(t *testing.T) {
	dst := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	err := overlay(dst, image.NewNRGBA(image.Rect(0, 0, 5, 10)))

	var imgErr *domain.ImageError
	require.True(t, errors.As(err, &imgErr))
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestCompositor_TransparentForegroundKeepsTranslucentBackground(t *testing.T) {
	tests := []struct {
		name string
		bg   color.NRGBA
	}{
		{"half alpha", color.NRGBA{R: 200, G: 100, B: 51, A: 128}},
		{"low alpha", color.NRGBA{R: 7, G: 250, B: 33, A: 3}},
		{"zero alpha keeps colour", color.NRGBA{R: 10, G: 20, B: 30, A: 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fg := encodePNG(t, solid(8, 8, color.NRGBA{}))
			bg := encodePNG(t, solid(8, 8, tt.bg))

			res, err := newCompositor().Composite(context.Background(), fg, bg)
			require.NoError(t, err)

			out := decodePNG(t, res.Data)
			for y := 0; y < 8; y++ {
				for x := 0; x < 8; x++ {
					require.Equal(t, tt.bg, nrgbaAt(out, x, y), "pixel %d,%d", x, y)
				}
			}
		})
	}
}

func TestOverlay_Blend(t *testing.T) {
	tests := []struct {
		name   string
		dst    color.NRGBA
		fg     color.NRGBA
		expect color.NRGBA
	}{
		{"transparent over translucent", color.NRGBA{R: 200, G: 100, B: 51, A: 128}, color.NRGBA{R: 255, A: 0}, color.NRGBA{R: 200, G: 100, B: 51, A: 128}},
		{"opaque replaces", color.NRGBA{R: 1, G: 2, B: 3, A: 40}, color.NRGBA{R: 9, G: 8, B: 7, A: 255}, color.NRGBA{R: 9, G: 8, B: 7, A: 255}},
		{"half over opaque", color.NRGBA{R: 100, G: 100, B: 100, A: 255}, color.NRGBA{R: 200, A: 128}, color.NRGBA{R: 150, G: 50, B: 50, A: 255}},
		{"half over empty", color.NRGBA{}, color.NRGBA{R: 200, G: 60, B: 10, A: 128}, color.NRGBA{R: 200, G: 60, B: 10, A: 128}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dst := solid(2, 2, tt.dst)
			require.NoError(t, overlay(dst, solid(2, 2, tt.fg)))
			assert.Equal(t, tt.expect, dst.NRGBAAt(1, 1))
		})
	}
}

func TestNewCompositor_DoesNotMutateConfig(t *testing.T) {
	cfg := &config.ProcessingConfig{MaxConcurrent: 0}
	c := NewCompositor(cfg)

	require.NotNil(t, c)
	assert.Zero(t, cfg.MaxConcurrent)
}
