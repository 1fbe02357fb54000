// Package app holds the wiring shared by the API and worker binaries.
package app

import (
	"net/http"
	"time"

	"github.com/yokitheyo/backdrop/internal/config"
	"github.com/yokitheyo/backdrop/internal/infrastructure/fetcher"
	"github.com/yokitheyo/backdrop/internal/infrastructure/processor"
	"github.com/yokitheyo/backdrop/internal/infrastructure/removal"
	"github.com/yokitheyo/backdrop/internal/metrics"
	"github.com/yokitheyo/backdrop/internal/usecase"
)

// NewPipeline builds the fetch, removal and composite chain. The removal
// profile is resolved here so an invalid mode fails at startup.
func NewPipeline(cfg *config.Config, m *metrics.Metrics) (*usecase.PipelineUsecase, error) {
	profile, err := cfg.Removal.Profile()
	if err != nil {
		return nil, err
	}

	client := &http.Client{Transport: http.DefaultTransport.(*http.Transport).Clone()}

	return usecase.NewPipelineUsecase(
		fetcher.NewHTTPFetcher(&cfg.Fetch, client),
		removal.NewClient(profile, time.Duration(cfg.Removal.TimeoutSec)*time.Second, client),
		processor.NewCompositor(&cfg.Processing),
		m,
	), nil
}
