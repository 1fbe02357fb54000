package processor

import (
	"bytes"
	"context"
	"image"
	"time"

	"github.com/disintegration/imaging"
	"github.com/wb-go/wbf/zlog"
	"github.com/yokitheyo/backdrop/internal/config"
	"github.com/yokitheyo/backdrop/internal/domain"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/semaphore"
)

// ResampleFilter is used for every foreground resize so composites are
// byte-for-byte reproducible for a given imaging version.
var ResampleFilter = imaging.Lanczos

const defaultMaxConcurrent = 4

// Compositor blends a cut-out over a background and encodes the result as
// PNG. Decode, resize and encode are CPU bound and limited to
// processing.max_concurrent at a time.
type Compositor struct {
	sem *semaphore.Weighted
}

func NewCompositor(cfg *config.ProcessingConfig) *Compositor {
	limit := cfg.MaxConcurrent
	if limit <= 0 {
		zlog.Logger.Warn().
			Int("max_concurrent", limit).
			Msg("Invalid compositor concurrency, using default")
		limit = defaultMaxConcurrent
	}
	zlog.Logger.Info().
		Int("max_concurrent", limit).
		Str("filter", "lanczos").
		Msg("Compositor initialized")
	return &Compositor{sem: semaphore.NewWeighted(int64(limit))}
}

func (c *Compositor) Composite(ctx context.Context, foreground, background []byte) (*domain.CompositeResult, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.sem.Release(1)

	start := time.Now()

	bg, err := decode(background, domain.SideBackground)
	if err != nil {
		return nil, err
	}
	fg, err := decode(foreground, domain.SideForeground)
	if err != nil {
		return nil, err
	}

	width, height := GetImageDimensions(bg)
	canvas := imaging.Clone(bg)

	resized := imaging.Resize(fg, width, height, ResampleFilter)
	if rw, rh := GetImageDimensions(resized); rw != width || rh != height {
		zlog.Logger.Error().
			Int("resized_width", rw).
			Int("resized_height", rh).
			Int("background_width", width).
			Int("background_height", height).
			Msg("resized foreground does not match background")
		return nil, &domain.ImageError{Kind: domain.ImageResize, Which: domain.SideForeground, Cause: domain.ErrDimensionMismatch}
	}

	if err := overlay(canvas, resized); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, canvas, imaging.PNG); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to encode composite")
		return nil, &domain.ImageError{Kind: domain.ImageEncode, Which: domain.SideComposite, Cause: err}
	}

	zlog.Logger.Info().
		Int("foreground_width", fg.Bounds().Dx()).
		Int("foreground_height", fg.Bounds().Dy()).
		Int("width", width).
		Int("height", height).
		Int("bytes", buf.Len()).
		Dur("duration", time.Since(start)).
		Msg("composite encoded")

	return &domain.CompositeResult{
		Data:        buf.Bytes(),
		ContentType: "image/png",
		Width:       width,
		Height:      height,
	}, nil
}

// overlay alpha-blends fg over dst anchored at (0,0) in non-premultiplied
// space. Pixels with zero foreground alpha leave dst untouched and opaque
// ones replace it. Both must share the same dimensions.
func overlay(dst, fg *image.NRGBA) error {
	if dst.Bounds().Size() != fg.Bounds().Size() {
		return &domain.ImageError{Kind: domain.ImageResize, Which: domain.SideForeground, Cause: domain.ErrDimensionMismatch}
	}
	w, h := dst.Bounds().Dx(), dst.Bounds().Dy()
	for y := 0; y < h; y++ {
		d := dst.Pix[y*dst.Stride : y*dst.Stride+w*4]
		f := fg.Pix[y*fg.Stride : y*fg.Stride+w*4]
		for i := 0; i < len(d); i += 4 {
			fa := f[i+3]
			switch fa {
			case 0:
				continue
			case 255:
				copy(d[i:i+4], f[i:i+4])
				continue
			}
			a2 := float64(fa) / 255
			a1 := float64(d[i+3]) / 255 * (1 - a2)
			outA := a2 + a1
			for k := 0; k < 3; k++ {
				d[i+k] = clamp((float64(f[i+k])*a2 + float64(d[i+k])*a1) / outA)
			}
			d[i+3] = clamp(outA * 255)
		}
	}
	return nil
}

func clamp(v float64) uint8 {
	v += 0.5
	if v > 255 {
		return 255
	}
	if v < 0 {
		return 0
	}
	return uint8(v)
}

func decode(data []byte, side domain.ImageSide) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		zlog.Logger.Error().Err(err).Str("side", string(side)).Int("bytes", len(data)).Msg("failed to decode image")
		return nil, &domain.ImageError{Kind: domain.ImageUndecodable, Which: side, Cause: err}
	}
	if img.Bounds().Dx() == 0 || img.Bounds().Dy() == 0 {
		zlog.Logger.Error().Str("side", string(side)).Msg("decoded image is empty")
		return nil, &domain.ImageError{Kind: domain.ImageEmpty, Which: side}
	}
	return img, nil
}

func GetImageDimensions(img image.Image) (width, height int) {
	bounds := img.Bounds()
	return bounds.Dx(), bounds.Dy()
}

var _ domain.Compositor = (*Compositor)(nil)
