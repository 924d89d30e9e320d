// Package cart implements the cart store: the single owner of cart items and
// the fulfillment location, with totals derived on every read.
//
// A Store is not safe for concurrent use. It has exactly one logical owner per
// session; callers that share it across goroutines must serialize access.
package cart

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/istominvi/shaurmaniya/internal/entity"
	"github.com/istominvi/shaurmaniya/internal/pricing"
)

// Persister is the durable storage port for one cart.
// Load returns (nil, nil) when nothing has been stored yet.
type Persister interface {
	Load(ctx context.Context) (*entity.Cart, error)
	Save(ctx context.Context, cart entity.Cart) error
}

// Option configures a Store.
type Option func(*Store)

// WithPersister sets the storage port used for rehydration and saves.
func WithPersister(p Persister) Option {
	return func(s *Store) { s.persister = p }
}

// WithDeliveryFee overrides the flat delivery fee.
func WithDeliveryFee(fee int64) Option {
	return func(s *Store) { s.deliveryFee = fee }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithIDGenerator replaces the random part of generated cart item ids.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) { s.newID = gen }
}

// WithPersistTimeout bounds each Load and Save call.
func WithPersistTimeout(d time.Duration) Option {
	return func(s *Store) { s.persistTimeout = d }
}

// Store holds the cart of one session.
type Store struct {
	items    []entity.CartItem
	location *entity.LocationInfo
	hydrated bool

	deliveryFee    int64
	persister      Persister
	persistTimeout time.Duration
	newID          func() string
	logger         *slog.Logger
}

// Open creates a Store and rehydrates it from the persister before returning,
// so totals can never be read from an unhydrated cart.
func Open(ctx context.Context, opts ...Option) *Store {
	s := &Store{
		deliveryFee:    pricing.DefaultDeliveryFee,
		persistTimeout: 5 * time.Second,
		newID:          uuid.NewString,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.rehydrate(ctx)
	return s
}

func (s *Store) rehydrate(ctx context.Context) {
	defer func() { s.hydrated = true }()

	if s.persister == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, s.persistTimeout)
	defer cancel()

	stored, err := s.persister.Load(ctx)
	if err != nil {
		s.logger.Warn("Failed to rehydrate cart, starting empty", "err", err)
		return
	}
	if stored == nil {
		return
	}

	items := make([]entity.CartItem, 0, len(stored.Items))
	for _, item := range stored.Items {
		if item.Quantity <= 0 {
			continue
		}
		item.Quantity = min(item.Quantity, pricing.MaxQuantity)
		if item.UnitPrice == 0 && item.TotalPrice != 0 {
			// Carts saved before unit prices were stored only carry line totals.
			item.UnitPrice = item.TotalPrice / int64(item.Quantity)
		}
		item.TotalPrice = pricing.LineTotal(item.UnitPrice, item.Quantity)
		items = append(items, cloneItem(item))
	}
	s.items = items
	s.location = cloneLocation(stored.Location)

	s.logger.Debug("Cart rehydrated", "items", len(s.items), "total", s.Total())
}

// Hydrated reports whether rehydration has completed.
func (s *Store) Hydrated() bool {
	return s.hydrated
}

// AddItem appends a new line for the configured product and returns it.
// Identical configurations are never merged; every call creates its own line.
// The quantity is clamped to [1, pricing.MaxQuantity].
func (s *Store) AddItem(product entity.Product, variant *entity.ProductVariant, modifiers []entity.CartItemModifier, quantity int) entity.CartItem {
	quantity = max(1, min(quantity, pricing.MaxQuantity))

	variantID := "default"
	if variant != nil {
		v := *variant
		variant = &v
		variantID = v.ID
	}

	mods := cloneModifiers(modifiers)
	if mods == nil {
		mods = []entity.CartItemModifier{}
	}

	unit := pricing.UnitPrice(product, variant, mods)
	item := entity.CartItem{
		CartItemID: product.ID + "-" + variantID + "-" + s.newID(),
		Product:    product,
		Variant:    variant,
		Modifiers:  mods,
		Quantity:   quantity,
		UnitPrice:  unit,
		TotalPrice: pricing.LineTotal(unit, quantity),
	}
	s.items = append(s.items, item)
	s.save()

	return cloneItem(item)
}

// RemoveItem deletes a line. Unknown ids are ignored.
func (s *Store) RemoveItem(cartItemID string) {
	i := s.indexOf(cartItemID)
	if i < 0 {
		return
	}
	s.items = append(s.items[:i:i], s.items[i+1:]...)
	s.save()
}

// UpdateQuantity sets a line's quantity. A quantity of zero or less removes
// the line; larger values are capped at pricing.MaxQuantity. Unknown ids are
// ignored.
func (s *Store) UpdateQuantity(cartItemID string, quantity int) {
	if quantity <= 0 {
		s.RemoveItem(cartItemID)
		return
	}
	quantity = min(quantity, pricing.MaxQuantity)
	i := s.indexOf(cartItemID)
	if i < 0 {
		return
	}
	s.items[i].Quantity = quantity
	s.items[i].TotalPrice = pricing.LineTotal(s.items[i].UnitPrice, quantity)
	s.save()
}

// SetLocation replaces the fulfillment location.
func (s *Store) SetLocation(location entity.LocationInfo) {
	s.location = cloneLocation(&location)
	s.save()
}

// ClearCart removes every line. The location is kept.
func (s *Store) ClearCart() {
	s.items = nil
	s.save()
}

// Items returns a copy of the cart lines in insertion order.
func (s *Store) Items() []entity.CartItem {
	out := make([]entity.CartItem, len(s.items))
	for i, item := range s.items {
		out[i] = cloneItem(item)
	}
	return out
}

// Item returns one line by id.
func (s *Store) Item(cartItemID string) (entity.CartItem, bool) {
	i := s.indexOf(cartItemID)
	if i < 0 {
		return entity.CartItem{}, false
	}
	return cloneItem(s.items[i]), true
}

// Location returns the current fulfillment location, or nil if none is set.
func (s *Store) Location() *entity.LocationInfo {
	return cloneLocation(s.location)
}

// Totals derives subtotal, delivery fee and total from the current state.
func (s *Store) Totals() pricing.Totals {
	return pricing.Calculate(s.items, s.location, s.deliveryFee)
}

func (s *Store) Subtotal() int64    { return s.Totals().Subtotal }
func (s *Store) DeliveryFee() int64 { return s.Totals().DeliveryFee }
func (s *Store) Total() int64       { return s.Totals().Total }

// Len returns the number of lines.
func (s *Store) Len() int {
	return len(s.items)
}

// Snapshot returns the serializable cart with freshly computed totals.
func (s *Store) Snapshot() entity.Cart {
	t := s.Totals()
	return entity.Cart{
		Items:       s.Items(),
		Subtotal:    t.Subtotal,
		DeliveryFee: t.DeliveryFee,
		Total:       t.Total,
		Location:    s.Location(),
	}
}

// save is called at the end of every mutation.
func (s *Store) save() {
	if s.persister == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.persistTimeout)
	defer cancel()

	if err := s.persister.Save(ctx, s.Snapshot()); err != nil {
		s.logger.Error("Failed to persist cart", "err", err)
	}
}

func (s *Store) indexOf(cartItemID string) int {
	for i, item := range s.items {
		if item.CartItemID == cartItemID {
			return i
		}
	}
	return -1
}

func cloneItem(item entity.CartItem) entity.CartItem {
	if item.Variant != nil {
		v := *item.Variant
		item.Variant = &v
	}
	item.Modifiers = cloneModifiers(item.Modifiers)
	if item.Modifiers == nil {
		item.Modifiers = []entity.CartItemModifier{}
	}
	return item
}

func cloneModifiers(mods []entity.CartItemModifier) []entity.CartItemModifier {
	if mods == nil {
		return nil
	}
	out := make([]entity.CartItemModifier, len(mods))
	for i, m := range mods {
		m.Options = append([]entity.CartItemOption(nil), m.Options...)
		out[i] = m
	}
	return out
}

func cloneLocation(l *entity.LocationInfo) *entity.LocationInfo {
	if l == nil {
		return nil
	}
	c := *l
	if l.Coordinates != nil {
		coords := *l.Coordinates
		c.Coordinates = &coords
	}
	return &c
}
