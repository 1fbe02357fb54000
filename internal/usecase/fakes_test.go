package usecase

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"github.com/yokitheyo/backdrop/internal/domain"
)

type fakeFetcher struct {
	mu      sync.Mutex
	bodies  map[string][]byte
	status  map[string]int
	calls   map[string]int
	blockOn string
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		bodies: map[string][]byte{},
		status: map[string]int{},
		calls:  map[string]int{},
	}
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	f.calls[url]++
	body, ok := f.bodies[url]
	status := f.status[url]
	block := f.blockOn == url
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, &domain.FetchError{URL: url, Cause: ctx.Err()}
	}
	if status != 0 {
		return nil, &domain.FetchError{URL: url, Status: status}
	}
	if !ok {
		return nil, &domain.FetchError{URL: url, Status: 404}
	}
	return body, nil
}

func (f *fakeFetcher) count(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

type fakeRemover struct {
	calls atomic.Int32
	out   []byte
	err   error
}

func (r *fakeRemover) RemoveBackground(_ context.Context, image []byte) ([]byte, error) {
	r.calls.Add(1)
	if r.err != nil {
		return nil, r.err
	}
	if r.out != nil {
		return r.out, nil
	}
	return append([]byte("cutout:"), image...), nil
}

type fakeCompositor struct {
	calls  atomic.Int32
	lastFG []byte
	lastBG []byte
	err    error
	result *domain.CompositeResult
}

func (c *fakeCompositor) Composite(_ context.Context, fg, bg []byte) (*domain.CompositeResult, error) {
	c.calls.Add(1)
	c.lastFG, c.lastBG = fg, bg
	if c.err != nil {
		return nil, c.err
	}
	if c.result != nil {
		return c.result, nil
	}
	return &domain.CompositeResult{Data: []byte("png"), ContentType: "image/png", Width: 1920, Height: 1080}, nil
}

type fakePipeline struct {
	calls  atomic.Int32
	result *domain.CompositeResult
	err    error
}

func (p *fakePipeline) Process(_ context.Context, req domain.ProcessingRequest) (*domain.CompositeResult, error) {
	p.calls.Add(1)
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if p.err != nil {
		return nil, p.err
	}
	if p.result != nil {
		return p.result, nil
	}
	return &domain.CompositeResult{Data: []byte("png-bytes"), ContentType: "image/png", Width: 800, Height: 600}, nil
}

type fakeStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
	saveErr error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: map[string][]byte{}}
}

func (s *fakeStorage) Save(_ context.Context, key string, r io.Reader, _ int64, _ string) (string, error) {
	if s.saveErr != nil {
		return "", s.saveErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return s.PublicURL(key), nil
}

func (s *fakeStorage) Get(_ context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, domain.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *fakeStorage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	s.deleted = append(s.deleted, key)
	return nil
}

func (s *fakeStorage) PublicURL(key string) string {
	return "https://files.example/storage/v1/object/public/images/" + key
}

func (s *fakeStorage) Bucket() string { return "images" }

type fakeRepo struct {
	mu        sync.Mutex
	items     map[string]*domain.Composite
	createErr error
	updateErr error
	updates   []domain.CompositeStatus
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{items: map[string]*domain.Composite{}}
}

func (r *fakeRepo) Create(_ context.Context, c *domain.Composite) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	r.items[c.ID] = &cp
	return nil
}

func (r *fakeRepo) FindByID(_ context.Context, id string) (*domain.Composite, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.items[id]
	if !ok {
		return nil, domain.ErrCompositeNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *fakeRepo) Update(_ context.Context, c *domain.Composite) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, c.Status)
	if r.updateErr != nil {
		return r.updateErr
	}
	if _, ok := r.items[c.ID]; !ok {
		return domain.ErrCompositeNotFound
	}
	cp := *c
	r.items[c.ID] = &cp
	return nil
}

func (r *fakeRepo) ListByUser(_ context.Context, userID string, limit, offset int) ([]*domain.Composite, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Composite
	for _, c := range r.items {
		if c.UserID == userID {
			cp := *c
			out = append(out, &cp)
		}
	}
	if offset >= len(out) {
		return []*domain.Composite{}, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeQueue struct {
	mu        sync.Mutex
	published []string
	err       error
}

func (q *fakeQueue) PublishCompositeTask(_ context.Context, id string) error {
	if q.err != nil {
		return q.err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.published = append(q.published, id)
	return nil
}

func (q *fakeQueue) Close() error { return nil }

var errBoom = errors.New("boom")
