package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yokitheyo/backdrop/internal/dto"
)

type fakeProcessor struct {
	ids         []string
	hadDeadline bool
	err         error
}

func (p *fakeProcessor) ProcessJob(ctx context.Context, id string) error {
	p.ids = append(p.ids, id)
	_, p.hadDeadline = ctx.Deadline()
	return p.err
}

func TestCompositeWorker_Handle(t *testing.T) {
	p := &fakeProcessor{}
	w := NewCompositeWorker(p, time.Minute)
	id := uuid.NewString()

	require.NoError(t, w.HandleCompositeTask(context.Background(), &dto.CompositeTask{CompositeID: id}))
	assert.Equal(t, []string{id}, p.ids)
	assert.True(t, p.hadDeadline)
}

func TestCompositeWorker_DropsInvalidID(t *testing.T) {
	p := &fakeProcessor{}
	w := NewCompositeWorker(p, 0)

	require.NoError(t, w.HandleCompositeTask(context.Background(), &dto.CompositeTask{CompositeID: "../../etc"}))
	assert.Empty(t, p.ids)
}

func TestCompositeWorker_PropagatesErrors(t *testing.T) {
	boom := errors.New("db down")
	w := NewCompositeWorker(&fakeProcessor{err: boom}, 0)

	err := w.HandleCompositeTask(context.Background(), &dto.CompositeTask{CompositeID: uuid.NewString()})
	assert.ErrorIs(t, err, boom)
}
