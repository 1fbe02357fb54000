package usecase

import (
	"context"
	"time"

	"github.com/wb-go/wbf/zlog"
	"golang.org/x/sync/errgroup"

	"github.com/yokitheyo/backdrop/internal/domain"
	"github.com/yokitheyo/backdrop/internal/metrics"
)

const (
	stageFetch     = "fetch"
	stageRemoval   = "removal"
	stageComposite = "composite"
	stageUpload    = "upload"
)

// PipelineUsecase fetches both inputs concurrently, cuts the subject out of
// the foreground and composites it over the background. A failed step fails
// the whole run; nothing is retried.
type PipelineUsecase struct {
	fetcher    domain.ImageFetcher
	remover    domain.BackgroundRemover
	compositor domain.Compositor
	metrics    *metrics.Metrics
}

func NewPipelineUsecase(
	fetcher domain.ImageFetcher,
	remover domain.BackgroundRemover,
	compositor domain.Compositor,
	m *metrics.Metrics,
) *PipelineUsecase {
	return &PipelineUsecase{
		fetcher:    fetcher,
		remover:    remover,
		compositor: compositor,
		metrics:    m,
	}
}

func (u *PipelineUsecase) Process(ctx context.Context, req domain.ProcessingRequest) (*domain.CompositeResult, error) {
	if err := req.Validate(); err != nil {
		zlog.Logger.Warn().Err(err).Msg("rejected processing request")
		return nil, err
	}

	start := time.Now()
	zlog.Logger.Info().
		Str("image_url", req.ImageURL).
		Str("background_url", req.BackgroundURL).
		Str("position", string(req.Position)).
		Msg("pipeline started")

	foreground, background, err := u.fetchBoth(ctx, req)
	if err != nil {
		return nil, err
	}

	stageStart := time.Now()
	cutout, err := u.remover.RemoveBackground(ctx, foreground)
	u.metrics.ObserveStage(stageRemoval, stageStart, err)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("image_url", req.ImageURL).Msg("background removal failed")
		return nil, err
	}

	stageStart = time.Now()
	result, err := u.compositor.Composite(ctx, cutout, background)
	u.metrics.ObserveStage(stageComposite, stageStart, err)
	if err != nil {
		zlog.Logger.Error().Err(err).Msg("compositing failed")
		return nil, err
	}

	zlog.Logger.Info().
		Int("width", result.Width).
		Int("height", result.Height).
		Int("bytes", len(result.Data)).
		Dur("duration", time.Since(start)).
		Msg("pipeline completed")

	return result, nil
}

// fetchBoth downloads both inputs concurrently. The first failure cancels
// the other fetch.
func (u *PipelineUsecase) fetchBoth(ctx context.Context, req domain.ProcessingRequest) ([]byte, []byte, error) {
	var foreground, background []byte
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		data, err := u.fetcher.Fetch(gctx, req.ImageURL)
		if err != nil {
			return err
		}
		foreground = data
		return nil
	})
	g.Go(func() error {
		data, err := u.fetcher.Fetch(gctx, req.BackgroundURL)
		if err != nil {
			return err
		}
		background = data
		return nil
	})

	err := g.Wait()
	u.metrics.ObserveStage(stageFetch, start, err)
	if err != nil {
		zlog.Logger.Error().Err(err).Msg("image fetch failed")
		return nil, nil, err
	}
	return foreground, background, nil
}

var _ domain.PipelineService = (*PipelineUsecase)(nil)
