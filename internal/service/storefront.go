package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/istominvi/shaurmaniya/internal/catalog"
	"github.com/istominvi/shaurmaniya/internal/checkout"
	"github.com/istominvi/shaurmaniya/internal/configurator"
	"github.com/istominvi/shaurmaniya/internal/entity"
	"github.com/istominvi/shaurmaniya/internal/pricing"
	"github.com/istominvi/shaurmaniya/internal/repository"
)

// Options configures a Storefront.
type Options struct {
	DeliveryFee int64
	RequireAck  bool
	ClearDelay  time.Duration
	AsyncWrites bool
	// Schedule runs fn after d. Defaults to time.AfterFunc.
	Schedule func(d time.Duration, fn func())
	Logger   *slog.Logger
}

// Storefront serves catalog reads and per-session cart operations.
type Storefront struct {
	catalog  *catalog.Catalog
	branches []entity.Branch
	repo     repository.CartRepository
	sink     checkout.Sink
	opts     Options
	logger   *slog.Logger
	now      func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
}

func NewStorefront(cat *catalog.Catalog, branches []entity.Branch, repo repository.CartRepository, sink checkout.Sink, opts Options) *Storefront {
	if opts.Schedule == nil {
		opts.Schedule = func(d time.Duration, fn func()) { time.AfterFunc(d, fn) }
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.DeliveryFee < 0 {
		opts.DeliveryFee = pricing.DefaultDeliveryFee
	}
	return &Storefront{
		catalog:  cat,
		branches: branches,
		repo:     repo,
		sink:     sink,
		opts:     opts,
		logger:   opts.Logger,
		now:      time.Now,
		sessions: make(map[string]*session),
	}
}

// OptionChoice picks one option of one modifier.
type OptionChoice struct {
	ModifierID string `json:"modifierId" validate:"required"`
	OptionID   string `json:"optionId" validate:"required"`
}

// Selection is a configurator state expressed as ids.
type Selection struct {
	ProductID string         `json:"productId" validate:"required"`
	VariantID string         `json:"variantId"`
	Options   []OptionChoice `json:"options" validate:"dive"`
	Quantity  int            `json:"quantity" validate:"gte=0,lte=99"`
}

// Quote is the live configurator view of a Selection.
type Quote struct {
	ProductID       string                    `json:"productId"`
	VariantID       string                    `json:"variantId,omitempty"`
	Modifiers       []entity.CartItemModifier `json:"modifiers"`
	Quantity        int                       `json:"quantity"`
	UnitPrice       int64                     `json:"unitPrice"`
	TotalPrice      int64                     `json:"totalPrice"`
	CanAddToCart    bool                      `json:"canAddToCart"`
	MissingRequired []string                  `json:"missingRequired,omitempty"`
}

// CartView is the cart snapshot together with the checkout state.
type CartView struct {
	entity.Cart
	Hydrated      bool   `json:"hydrated"`
	CheckoutState string `json:"checkoutState"`
}

func (s *Storefront) Products(category string) []entity.Product {
	return s.catalog.ByCategory(category)
}

func (s *Storefront) Categories() []string {
	return s.catalog.Categories()
}

func (s *Storefront) Branches() []entity.Branch {
	return slices.Clone(s.branches)
}

func (s *Storefront) Cart(ctx context.Context, sessionID string) (CartView, error) {
	var view CartView
	err := s.withSession(ctx, sessionID, func(sess *session) error {
		view = sess.view()
		return nil
	})
	return view, err
}

func (s *Storefront) Quote(_ context.Context, sel Selection) (Quote, error) {
	c, err := s.configure(sel)
	if err != nil {
		return Quote{}, err
	}
	return quoteOf(c), nil
}

// AddToCart configures the product as selected and adds it as a new line.
func (s *Storefront) AddToCart(ctx context.Context, sessionID string, sel Selection) (entity.CartItem, CartView, error) {
	c, err := s.configure(sel)
	if err != nil {
		return entity.CartItem{}, CartView{}, err
	}
	if !c.Product().Available {
		return entity.CartItem{}, CartView{}, ErrProductUnavailable
	}
	if missing := c.MissingRequired(); len(missing) > 0 {
		return entity.CartItem{}, CartView{}, fmt.Errorf("%w: %v", ErrIncompleteConfiguration, missing)
	}

	var (
		item entity.CartItem
		view CartView
	)
	err = s.withSession(ctx, sessionID, func(sess *session) error {
		var ok bool
		item, ok = c.Confirm(sess.cart)
		if !ok {
			return ErrIncompleteConfiguration
		}
		view = sess.view()
		return nil
	})
	if err != nil {
		return entity.CartItem{}, CartView{}, err
	}

	s.logger.Info("Item added to cart", "session", sessionID, "item", item.CartItemID, "unit_price", item.UnitPrice, "quantity", item.Quantity)
	return item, view, nil
}

// UpdateQuantity sets a line's quantity. Zero or less removes the line. An
// unknown id leaves the cart unchanged.
func (s *Storefront) UpdateQuantity(ctx context.Context, sessionID, cartItemID string, quantity int) (CartView, error) {
	var view CartView
	err := s.withSession(ctx, sessionID, func(sess *session) error {
		sess.cart.UpdateQuantity(cartItemID, quantity)
		view = sess.view()
		return nil
	})
	return view, err
}

func (s *Storefront) RemoveItem(ctx context.Context, sessionID, cartItemID string) (CartView, error) {
	var view CartView
	err := s.withSession(ctx, sessionID, func(sess *session) error {
		sess.cart.RemoveItem(cartItemID)
		view = sess.view()
		return nil
	})
	return view, err
}

func (s *Storefront) ClearCart(ctx context.Context, sessionID string) (CartView, error) {
	var view CartView
	err := s.withSession(ctx, sessionID, func(sess *session) error {
		sess.cart.ClearCart()
		view = sess.view()
		return nil
	})
	return view, err
}

// SetLocation replaces the fulfillment location. Delivery needs an address;
// pickup must name one of the known branches.
func (s *Storefront) SetLocation(ctx context.Context, sessionID string, loc entity.LocationInfo) (CartView, error) {
	if err := s.checkLocation(loc); err != nil {
		return CartView{}, err
	}

	var view CartView
	err := s.withSession(ctx, sessionID, func(sess *session) error {
		sess.cart.SetLocation(loc)
		view = sess.view()
		return nil
	})
	return view, err
}

// Checkout submits the session's cart. The cart is cleared after the
// confirmation delay, not before Checkout returns. The session stays readable
// while the order is in flight and reports the submitting state.
func (s *Storefront) Checkout(ctx context.Context, sessionID string, form checkout.Form) (*checkout.Result, error) {
	sess, err := s.session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return sess.checkout.Submit(ctx, form)
}

// Close flushes pending cart writes of every open session.
func (s *Storefront) Close(ctx context.Context) error {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*session)
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.closePersister(ctx, s.logger)
	}
	return ctx.Err()
}

func (s *Storefront) configure(sel Selection) (*configurator.Configurator, error) {
	product, ok := s.catalog.Product(sel.ProductID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProductNotFound, sel.ProductID)
	}

	c := configurator.New(product)
	if sel.VariantID != "" && !c.SelectVariant(sel.VariantID) {
		return nil, fmt.Errorf("%w: %s", ErrVariantNotFound, sel.VariantID)
	}
	for _, choice := range sel.Options {
		mod, ok := product.Modifier(choice.ModifierID)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrOptionNotFound, choice.ModifierID)
		}
		if _, ok := mod.Option(choice.OptionID); !ok {
			return nil, fmt.Errorf("%w: %s/%s", ErrOptionNotFound, choice.ModifierID, choice.OptionID)
		}
		c.SetOption(choice.ModifierID, choice.OptionID, true)
	}
	c.SetQuantity(sel.Quantity)
	return c, nil
}

func (s *Storefront) checkLocation(loc entity.LocationInfo) error {
	switch loc.Type {
	case entity.LocationDelivery:
		if loc.Address == "" {
			return fmt.Errorf("%w: delivery address is required", ErrInvalidLocation)
		}
	case entity.LocationPickup:
		if !slices.Contains(catalog.BranchAddresses(s.branches), loc.Address) {
			return fmt.Errorf("%w: unknown pickup branch %q", ErrInvalidLocation, loc.Address)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidLocation, loc.Type)
	}
	return nil
}

func quoteOf(c *configurator.Configurator) Quote {
	q := Quote{
		ProductID:       c.Product().ID,
		Modifiers:       c.Modifiers(),
		Quantity:        c.Quantity(),
		UnitPrice:       c.UnitPrice(),
		TotalPrice:      c.TotalPrice(),
		CanAddToCart:    c.CanAddToCart(),
		MissingRequired: c.MissingRequired(),
	}
	if v := c.Variant(); v != nil {
		q.VariantID = v.ID
	}
	return q
}

func (sess *session) view() CartView {
	return CartView{
		Cart:          sess.cart.Snapshot(),
		Hydrated:      sess.cart.Hydrated(),
		CheckoutState: sess.checkout.State().String(),
	}
}
