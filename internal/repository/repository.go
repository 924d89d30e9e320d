package repository

import (
	"context"
	"errors"
	"regexp"

	"github.com/istominvi/shaurmaniya/internal/cart"
	"github.com/istominvi/shaurmaniya/internal/entity"
)

var (
	ErrCartNotFound     = errors.New("cart not found")
	ErrInvalidSessionID = errors.New("invalid session id")
)

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// ValidSessionID reports whether id can be used as a storage key.
func ValidSessionID(id string) bool {
	return sessionIDPattern.MatchString(id)
}

// CartRepository handles persistence for cart snapshots, one per session.
type CartRepository interface {
	Load(ctx context.Context, sessionID string) (*entity.Cart, error)
	Save(ctx context.Context, sessionID string, c entity.Cart) error
	Delete(ctx context.Context, sessionID string) error
}

type boundCart struct {
	repo      CartRepository
	sessionID string
}

// Bind scopes repo to a single session so it can back a cart.Store.
// A missing snapshot loads as (nil, nil).
func Bind(repo CartRepository, sessionID string) cart.Persister {
	return &boundCart{repo: repo, sessionID: sessionID}
}

func (b *boundCart) Load(ctx context.Context) (*entity.Cart, error) {
	c, err := b.repo.Load(ctx, b.sessionID)
	if errors.Is(err, ErrCartNotFound) {
		return nil, nil
	}
	return c, err
}

func (b *boundCart) Save(ctx context.Context, c entity.Cart) error {
	return b.repo.Save(ctx, b.sessionID, c)
}
