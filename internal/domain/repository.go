package domain

import "context"

type CompositeRepository interface {
	Create(ctx context.Context, composite *Composite) error
	FindByID(ctx context.Context, id string) (*Composite, error)
	Update(ctx context.Context, composite *Composite) error
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*Composite, error)
}
