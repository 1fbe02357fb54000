package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"

	"github.com/yokitheyo/backdrop/internal/domain"
	"github.com/yokitheyo/backdrop/internal/helpers"
	"github.com/yokitheyo/backdrop/internal/metrics"
)

const (
	defaultListLimit = 10
	maxListLimit     = 100
	cleanupTimeout   = 10 * time.Second

	defaultStaleAfter = 10 * time.Minute
)

// CompositeUsecase runs the pipeline for authenticated callers, persists the
// output and keeps a record of every composite.
type CompositeUsecase struct {
	pipeline domain.PipelineService
	storage  domain.StorageService
	repo     domain.CompositeRepository
	queue    domain.QueueService
	metrics  *metrics.Metrics
	newID    func() string

	staleAfter time.Duration
}

func NewCompositeUsecase(
	pipeline domain.PipelineService,
	storage domain.StorageService,
	repo domain.CompositeRepository,
	queue domain.QueueService,
	m *metrics.Metrics,
) *CompositeUsecase {
	return &CompositeUsecase{
		pipeline: pipeline,
		storage:  storage,
		repo:     repo,
		queue:    queue,
		metrics:  m,
		newID:    func() string { return uuid.New().String() },

		staleAfter: defaultStaleAfter,
	}
}

// SetStaleAfter sets how long a job may sit in processing before another
// delivery is allowed to take it over.
func (u *CompositeUsecase) SetStaleAfter(d time.Duration) {
	if d > 0 {
		u.staleAfter = d
	}
}

// ObjectKey builds {user}/{stem}_{id}.png from the foreground URL.
func ObjectKey(userID, imageURL, id string) string {
	user := helpers.SanitizeStem(userID, "anonymous")
	stem := helpers.SanitizeStem(helpers.URLStem(imageURL), "image")
	return fmt.Sprintf("%s/%s_%s.png", user, stem, id)
}

func (u *CompositeUsecase) ProcessAndUpload(ctx context.Context, userID string, req domain.ProcessingRequest) (*domain.Composite, error) {
	result, err := u.pipeline.Process(ctx, req)
	if err != nil {
		return nil, err
	}

	id := u.newID()
	upload, err := u.upload(ctx, userID, req.ImageURL, id, result)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	composite := &domain.Composite{
		ID:            id,
		UserID:        userID,
		ImageURL:      req.ImageURL,
		BackgroundURL: req.BackgroundURL,
		Position:      req.Position,
		CreatedAt:     now,
	}
	composite.MarkAsCompleted(upload, result.Width, result.Height)

	if err := u.repo.Create(ctx, composite); err != nil {
		u.discard(ctx, upload.ObjectKey)
		zlog.Logger.Error().Err(err).Str("composite_id", id).Msg("failed to record composite")
		return nil, fmt.Errorf("record composite: %w", err)
	}

	zlog.Logger.Info().
		Str("composite_id", id).
		Str("user_id", userID).
		Str("public_url", upload.PublicURL).
		Msg("composite uploaded")

	return composite, nil
}

func (u *CompositeUsecase) SubmitJob(ctx context.Context, userID string, req domain.ProcessingRequest) (*domain.Composite, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := time.Now()
	composite := &domain.Composite{
		ID:            u.newID(),
		UserID:        userID,
		ImageURL:      req.ImageURL,
		BackgroundURL: req.BackgroundURL,
		Position:      req.Position,
		Status:        domain.StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := u.repo.Create(ctx, composite); err != nil {
		zlog.Logger.Error().Err(err).Str("composite_id", composite.ID).Msg("failed to create composite job")
		return nil, fmt.Errorf("create composite job: %w", err)
	}

	if err := u.queue.PublishCompositeTask(ctx, composite.ID); err != nil {
		composite.MarkAsFailed("failed to enqueue job")
		if updErr := u.repo.Update(ctx, composite); updErr != nil {
			zlog.Logger.Error().Err(updErr).Str("composite_id", composite.ID).Msg("failed to mark unqueued job as failed")
		}
		return nil, fmt.Errorf("enqueue composite job: %w", err)
	}

	zlog.Logger.Info().
		Str("composite_id", composite.ID).
		Str("user_id", userID).
		Msg("composite job submitted")

	return composite, nil
}

// GetComposite hides records owned by other users behind ErrCompositeNotFound.
func (u *CompositeUsecase) GetComposite(ctx context.Context, userID, id string) (*domain.Composite, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrCompositeNotFound
	}
	composite, err := u.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if composite.UserID != userID {
		zlog.Logger.Warn().Str("composite_id", id).Str("user_id", userID).Msg("composite requested by non-owner")
		return nil, domain.ErrCompositeNotFound
	}
	return composite, nil
}

func (u *CompositeUsecase) ListComposites(ctx context.Context, userID string, limit, offset int) ([]*domain.Composite, error) {
	limit, offset = ClampPage(limit, offset)

	composites, err := u.repo.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("user_id", userID).Msg("failed to list composites")
		return nil, err
	}
	return composites, nil
}

// ClampPage applies the default and maximum page size.
func ClampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// ProcessJob runs a queued composite. Completed jobs and jobs another worker
// is still processing are skipped; a processing job older than staleAfter is
// taken over. A pipeline failure is recorded on the job and is not returned,
// so the message is still acknowledged.
func (u *CompositeUsecase) ProcessJob(ctx context.Context, compositeID string) error {
	composite, err := u.repo.FindByID(ctx, compositeID)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("composite_id", compositeID).Msg("failed to find composite job")
		if errors.Is(err, domain.ErrCompositeNotFound) {
			return nil
		}
		return fmt.Errorf("find composite: %w", err)
	}

	if !composite.CanBeProcessed() && !composite.IsStale(time.Now(), u.staleAfter) {
		zlog.Logger.Warn().
			Str("composite_id", compositeID).
			Str("status", string(composite.Status)).
			Msg("composite job cannot be processed in current status")
		return nil
	}

	composite.MarkAsProcessing()
	if err := u.repo.Update(ctx, composite); err != nil {
		zlog.Logger.Error().Err(err).Str("composite_id", compositeID).Msg("failed to update status to processing")
		return fmt.Errorf("update status to processing: %w", err)
	}

	result, err := u.pipeline.Process(ctx, composite.Request())
	if err != nil {
		return u.fail(ctx, composite, err)
	}

	upload, err := u.upload(ctx, composite.UserID, composite.ImageURL, composite.ID, result)
	if err != nil {
		return u.fail(ctx, composite, err)
	}

	composite.MarkAsCompleted(upload, result.Width, result.Height)
	if err := u.repo.Update(ctx, composite); err != nil {
		zlog.Logger.Error().Err(err).Str("composite_id", compositeID).Msg("failed to update status to completed")
		u.discard(ctx, upload.ObjectKey)
		composite.Upload = domain.UploadRecord{}
		composite.CompletedAt = nil
		composite.Width, composite.Height = 0, 0
		if ferr := u.fail(ctx, composite, err); ferr != nil {
			return errors.Join(fmt.Errorf("update status to completed: %w", err), ferr)
		}
		return fmt.Errorf("update status to completed: %w", err)
	}

	zlog.Logger.Info().
		Str("composite_id", compositeID).
		Str("public_url", upload.PublicURL).
		Int("width", result.Width).
		Int("height", result.Height).
		Msg("composite job completed")

	return nil
}

func (u *CompositeUsecase) fail(ctx context.Context, composite *domain.Composite, cause error) error {
	zlog.Logger.Error().
		Err(cause).
		Str("composite_id", composite.ID).
		Str("stage", domain.Stage(cause)).
		Msg("composite job failed")

	// The job context may already be spent by the time a failure is known.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	composite.MarkAsFailed(cause.Error())
	if err := u.repo.Update(ctx, composite); err != nil {
		zlog.Logger.Error().Err(err).Str("composite_id", composite.ID).Msg("failed to update status to failed")
		return fmt.Errorf("update status to failed: %w", err)
	}
	return nil
}

func (u *CompositeUsecase) upload(ctx context.Context, userID, imageURL, id string, result *domain.CompositeResult) (domain.UploadRecord, error) {
	key := ObjectKey(userID, imageURL, id)
	start := time.Now()

	publicURL, err := u.storage.Save(ctx, key, bytes.NewReader(result.Data), int64(len(result.Data)), result.ContentType)
	u.metrics.ObserveStage(stageUpload, start, err)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("key", key).Msg("failed to upload composite")
		return domain.UploadRecord{}, &domain.UploadError{Bucket: u.storage.Bucket(), Key: key, Cause: err}
	}

	return domain.UploadRecord{
		Bucket:    u.storage.Bucket(),
		ObjectKey: key,
		PublicURL: publicURL,
	}, nil
}

// discard removes an uploaded object whose record could not be written.
func (u *CompositeUsecase) discard(ctx context.Context, key string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()
	if err := u.storage.Delete(ctx, key); err != nil {
		zlog.Logger.Error().Err(err).Str("key", key).Msg("failed to remove orphaned object")
	}
}

var (
	_ domain.CompositeService = (*CompositeUsecase)(nil)
	_ domain.JobProcessor     = (*CompositeUsecase)(nil)
)
