package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/istominvi/shaurmaniya/internal/catalog"
	"github.com/istominvi/shaurmaniya/internal/checkout"
	"github.com/istominvi/shaurmaniya/internal/entity"
	"github.com/istominvi/shaurmaniya/internal/repository"
	"github.com/istominvi/shaurmaniya/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sid = "session-1"

type fakeSink struct {
	mu       sync.Mutex
	payloads []entity.OrderPayload
	err      error
}

func (f *fakeSink) Send(_ context.Context, p entity.OrderPayload) (checkout.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return checkout.Receipt{}, f.err
	}
	f.payloads = append(f.payloads, p)
	return checkout.Receipt{Opaque: true}, nil
}

type timers struct {
	mu  sync.Mutex
	fns []func()
}

func (t *timers) schedule(_ time.Duration, fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fns = append(t.fns, fn)
}

func (t *timers) fireAll() {
	t.mu.Lock()
	fns := t.fns
	t.fns = nil
	t.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func testCatalog() *catalog.Catalog {
	return catalog.New([]entity.Product{
		{ID: "classic", Name: "Классическая", Category: "shawarma", BasePrice: 280, Available: true},
		{ID: "cheese", Name: "Сырная", Category: "shawarma", BasePrice: 380, Available: true},
		{
			ID: "shawarma", Name: "Шаурма", Category: "shawarma", BasePrice: 300, Available: true,
			Variants: []entity.ProductVariant{
				{ID: "regular", Name: "Обычная", Price: 300},
				{ID: "large", Name: "Большая", Price: 350},
			},
			Modifiers: []entity.ProductModifier{
				{ID: "sauce", Name: "Соус", Type: entity.ModifierSingle, Required: true, Options: []entity.ModifierOption{
					{ID: "garlic", Name: "Чесночный", Price: 0},
				}},
				{ID: "extras", Name: "Добавки", Type: entity.ModifierMultiple, Options: []entity.ModifierOption{
					{ID: "cheese", Name: "Сыр", Price: 50},
					{ID: "jalapeno", Name: "Халапеньо", Price: 30},
				}},
			},
		},
		{ID: "kvass", Name: "Квас", Category: "drinks", BasePrice: 120, Available: false},
	})
}

var testBranches = []entity.Branch{{Address: "пр. Мира, 5", Name: "Центр"}}

func newStorefront(t *testing.T, opts Options) (*Storefront, *fakeSink, *timers, *memory.CartRepository) {
	t.Helper()
	sink := &fakeSink{}
	tm := &timers{}
	repo := memory.NewCartRepository()
	if opts.Schedule == nil {
		opts.Schedule = tm.schedule
	}
	if opts.DeliveryFee == 0 {
		opts.DeliveryFee = 100
	}
	sf := NewStorefront(testCatalog(), testBranches, repo, sink, opts)
	t.Cleanup(func() { sf.Close(context.Background()) })
	return sf, sink, tm, repo
}

func TestCatalogReads(t *testing.T) {
	sf, _, _, _ := newStorefront(t, Options{})

	assert.Equal(t, []string{"shawarma", "drinks"}, sf.Categories())
	assert.Len(t, sf.Products("drinks"), 1)
	assert.Len(t, sf.Products(""), 4)
	assert.Equal(t, testBranches, sf.Branches())
}

func TestQuote(t *testing.T) {
	sf, _, _, _ := newStorefront(t, Options{})

	q, err := sf.Quote(context.Background(), Selection{
		ProductID: "shawarma",
		VariantID: "large",
		Options:   []OptionChoice{{"extras", "cheese"}, {"extras", "jalapeno"}},
		Quantity:  2,
	})

	require.NoError(t, err)
	assert.Equal(t, int64(430), q.UnitPrice)
	assert.Equal(t, int64(860), q.TotalPrice)
	assert.False(t, q.CanAddToCart)
	assert.Equal(t, []string{"Соус"}, q.MissingRequired)
}

func TestQuote_Errors(t *testing.T) {
	sf, _, _, _ := newStorefront(t, Options{})
	ctx := context.Background()

	_, err := sf.Quote(ctx, Selection{ProductID: "missing"})
	assert.ErrorIs(t, err, ErrProductNotFound)

	_, err = sf.Quote(ctx, Selection{ProductID: "shawarma", VariantID: "huge"})
	assert.ErrorIs(t, err, ErrVariantNotFound)

	_, err = sf.Quote(ctx, Selection{ProductID: "shawarma", Options: []OptionChoice{{"extras", "bacon"}}})
	assert.ErrorIs(t, err, ErrOptionNotFound)
}

func TestAddToCart(t *testing.T) {
	sf, _, _, _ := newStorefront(t, Options{})
	ctx := context.Background()

	item, view, err := sf.AddToCart(ctx, sid, Selection{
		ProductID: "shawarma",
		VariantID: "large",
		Options:   []OptionChoice{{"sauce", "garlic"}, {"extras", "cheese"}, {"extras", "jalapeno"}},
		Quantity:  2,
	})

	require.NoError(t, err)
	assert.Equal(t, int64(430), item.UnitPrice)
	assert.Equal(t, int64(860), item.TotalPrice)
	assert.Equal(t, int64(860), view.Subtotal)
	assert.Equal(t, "idle", view.CheckoutState)
}

func TestAddToCart_Rejections(t *testing.T) {
	sf, _, _, _ := newStorefront(t, Options{})
	ctx := context.Background()

	_, _, err := sf.AddToCart(ctx, sid, Selection{ProductID: "shawarma"})
	assert.ErrorIs(t, err, ErrIncompleteConfiguration)

	_, _, err = sf.AddToCart(ctx, sid, Selection{ProductID: "kvass"})
	assert.ErrorIs(t, err, ErrProductUnavailable)

	_, _, err = sf.AddToCart(ctx, "../bad", Selection{ProductID: "classic"})
	assert.ErrorIs(t, err, ErrInvalidSession)

	view, err := sf.Cart(ctx, sid)
	require.NoError(t, err)
	assert.Empty(t, view.Items)
}

func TestEndToEndScenario(t *testing.T) {
	sf, _, _, _ := newStorefront(t, Options{})
	ctx := context.Background()

	_, view, err := sf.AddToCart(ctx, sid, Selection{ProductID: "classic"})
	require.NoError(t, err)
	assert.Equal(t, int64(280), view.Total)

	view, err = sf.SetLocation(ctx, sid, entity.LocationInfo{Type: entity.LocationDelivery, Address: "ул. Ленина, 1"})
	require.NoError(t, err)
	assert.Equal(t, int64(380), view.Total)

	cheese, view, err := sf.AddToCart(ctx, sid, Selection{ProductID: "cheese"})
	require.NoError(t, err)
	assert.Equal(t, int64(760), view.Total)

	view, err = sf.UpdateQuantity(ctx, sid, cheese.CartItemID, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1140), view.Total)

	view, err = sf.UpdateQuantity(ctx, sid, cheese.CartItemID, 0)
	require.NoError(t, err)
	assert.Len(t, view.Items, 1)

	view, err = sf.ClearCart(ctx, sid)
	require.NoError(t, err)
	assert.Zero(t, view.Total)
	require.NotNil(t, view.Location)
	assert.Equal(t, entity.LocationDelivery, view.Location.Type)
}

func TestUnknownItemIsNoOp(t *testing.T) {
	sf, _, _, _ := newStorefront(t, Options{})
	ctx := context.Background()
	_, before, err := sf.AddToCart(ctx, sid, Selection{ProductID: "classic", Quantity: 2})
	require.NoError(t, err)

	view, err := sf.UpdateQuantity(ctx, sid, "nope", 3)
	require.NoError(t, err)
	assert.Equal(t, before, view)

	view, err = sf.RemoveItem(ctx, sid, "nope")
	require.NoError(t, err)
	assert.Equal(t, before, view)
}

func TestSetLocation_Validation(t *testing.T) {
	sf, _, _, _ := newStorefront(t, Options{})
	ctx := context.Background()

	_, err := sf.SetLocation(ctx, sid, entity.LocationInfo{Type: entity.LocationDelivery})
	assert.ErrorIs(t, err, ErrInvalidLocation)

	_, err = sf.SetLocation(ctx, sid, entity.LocationInfo{Type: entity.LocationPickup, Address: "ул. Неизвестная"})
	assert.ErrorIs(t, err, ErrInvalidLocation)

	_, err = sf.SetLocation(ctx, sid, entity.LocationInfo{Type: "teleport", Address: "x"})
	assert.ErrorIs(t, err, ErrInvalidLocation)

	view, err := sf.SetLocation(ctx, sid, entity.LocationInfo{Type: entity.LocationPickup, Address: "пр. Мира, 5"})
	require.NoError(t, err)
	assert.Equal(t, "пр. Мира, 5", view.Location.Address)
}

func TestSessionsAreIsolatedAndPersisted(t *testing.T) {
	sf, _, _, repo := newStorefront(t, Options{})
	ctx := context.Background()

	_, _, err := sf.AddToCart(ctx, "a", Selection{ProductID: "classic", Quantity: 3})
	require.NoError(t, err)

	other, err := sf.Cart(ctx, "b")
	require.NoError(t, err)
	assert.Empty(t, other.Items)

	stored, err := repo.Load(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(840), stored.Subtotal)

	// A fresh storefront over the same repository rehydrates the cart.
	sf2 := NewStorefront(testCatalog(), testBranches, repo, &fakeSink{}, Options{DeliveryFee: 100})
	view, err := sf2.Cart(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(840), view.Total)
}

func TestCheckout_ClearsAfterTimer(t *testing.T) {
	sf, sink, tm, _ := newStorefront(t, Options{})
	ctx := context.Background()
	_, _, err := sf.AddToCart(ctx, sid, Selection{ProductID: "classic", Quantity: 2})
	require.NoError(t, err)
	_, err = sf.SetLocation(ctx, sid, entity.LocationInfo{Type: entity.LocationPickup, Address: "пр. Мира, 5"})
	require.NoError(t, err)

	res, err := sf.Checkout(ctx, sid, checkout.Form{Name: "Иван", Phone: "+7900", PolicyAccepted: true})

	require.NoError(t, err)
	assert.Equal(t, "Самовывоз - пр. Мира, 5", res.Payload.Address)
	assert.Equal(t, "Классическая x2", res.Payload.Items)
	assert.Equal(t, int64(560), res.Payload.Total)
	require.Len(t, sink.payloads, 1)

	view, err := sf.Cart(ctx, sid)
	require.NoError(t, err)
	assert.Len(t, view.Items, 1)
	assert.Equal(t, "succeeded", view.CheckoutState)

	_, err = sf.Checkout(ctx, sid, checkout.Form{Name: "Иван", Phone: "+7900", PolicyAccepted: true})
	assert.ErrorIs(t, err, checkout.ErrSubmissionInProgress)

	tm.fireAll()

	view, err = sf.Cart(ctx, sid)
	require.NoError(t, err)
	assert.Empty(t, view.Items)
	assert.Equal(t, "idle", view.CheckoutState)
}

func TestCheckout_FailureKeepsCart(t *testing.T) {
	sf, sink, _, _ := newStorefront(t, Options{})
	sink.err = errors.New("network down")
	ctx := context.Background()
	_, _, err := sf.AddToCart(ctx, sid, Selection{ProductID: "classic"})
	require.NoError(t, err)

	_, err = sf.Checkout(ctx, sid, checkout.Form{Name: "Иван", Phone: "+7900", PolicyAccepted: true})

	assert.True(t, checkout.IsRetryable(err))
	view, err := sf.Cart(ctx, sid)
	require.NoError(t, err)
	assert.Len(t, view.Items, 1)
	assert.Equal(t, "idle", view.CheckoutState)
}

type gatedSink struct {
	started chan struct{}
	release chan struct{}
}

func (g *gatedSink) Send(ctx context.Context, _ entity.OrderPayload) (checkout.Receipt, error) {
	close(g.started)
	select {
	case <-g.release:
		return checkout.Receipt{Opaque: true}, nil
	case <-ctx.Done():
		return checkout.Receipt{}, ctx.Err()
	}
}

func TestCheckout_CartReadableWhileSubmitting(t *testing.T) {
	sink := &gatedSink{started: make(chan struct{}), release: make(chan struct{})}
	tm := &timers{}
	sf := NewStorefront(testCatalog(), testBranches, memory.NewCartRepository(), sink, Options{DeliveryFee: 100, Schedule: tm.schedule})
	t.Cleanup(func() { sf.Close(context.Background()) })
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, _, err := sf.AddToCart(ctx, sid, Selection{ProductID: "classic"})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := sf.Checkout(ctx, sid, checkout.Form{Name: "Иван", Phone: "+7900", PolicyAccepted: true})
		done <- err
	}()
	<-sink.started

	view, err := sf.Cart(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, "submitting", view.CheckoutState)
	assert.Len(t, view.Items, 1)

	_, err = sf.Checkout(ctx, sid, checkout.Form{Name: "Иван", Phone: "+7900", PolicyAccepted: true})
	assert.ErrorIs(t, err, checkout.ErrSubmissionInProgress)

	close(sink.release)
	require.NoError(t, <-done)

	view, err = sf.Cart(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, "succeeded", view.CheckoutState)
}

func TestAsyncWrites_FlushOnClose(t *testing.T) {
	sf, _, _, repo := newStorefront(t, Options{AsyncWrites: true})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, _, err := sf.AddToCart(ctx, sid, Selection{ProductID: "classic"})
		require.NoError(t, err)
	}
	require.NoError(t, sf.Close(ctx))

	stored, err := repo.Load(ctx, sid)
	require.NoError(t, err)
	assert.Len(t, stored.Items, 5)
}

func TestEvictIdle(t *testing.T) {
	sf, _, tm, _ := newStorefront(t, Options{})
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	sf.now = func() time.Time { return now }

	_, _, err := sf.AddToCart(ctx, "idle", Selection{ProductID: "classic"})
	require.NoError(t, err)
	_, _, err = sf.AddToCart(ctx, "busy", Selection{ProductID: "classic"})
	require.NoError(t, err)
	_, err = sf.Checkout(ctx, "busy", checkout.Form{Name: "Иван", Phone: "+7900", PolicyAccepted: true})
	require.NoError(t, err)

	now = now.Add(time.Hour)
	assert.Equal(t, 1, sf.EvictIdle(ctx, 30*time.Minute))

	view, err := sf.Cart(ctx, "idle")
	require.NoError(t, err)
	assert.Len(t, view.Items, 1)

	tm.fireAll()
}

func TestEvictIdle_DeletesEmptyCarts(t *testing.T) {
	sf, _, _, repo := newStorefront(t, Options{})
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	sf.now = func() time.Time { return now }

	_, _, err := sf.AddToCart(ctx, "emptied", Selection{ProductID: "classic"})
	require.NoError(t, err)
	_, err = sf.ClearCart(ctx, "emptied")
	require.NoError(t, err)

	_, err = sf.SetLocation(ctx, "located", entity.LocationInfo{Type: entity.LocationPickup, Address: "пр. Мира, 5"})
	require.NoError(t, err)
	_, err = sf.ClearCart(ctx, "located")
	require.NoError(t, err)
	require.Equal(t, 2, repo.Len())

	now = now.Add(time.Hour)
	assert.Equal(t, 2, sf.EvictIdle(ctx, 30*time.Minute))

	_, err = repo.Load(ctx, "emptied")
	assert.ErrorIs(t, err, repository.ErrCartNotFound)
	stored, err := repo.Load(ctx, "located")
	require.NoError(t, err)
	assert.Equal(t, "пр. Мира, 5", stored.Location.Address)
}

func TestCartView_Hydrated(t *testing.T) {
	sf, _, _, _ := newStorefront(t, Options{})

	view, err := sf.Cart(context.Background(), sid)

	require.NoError(t, err)
	assert.True(t, view.Hydrated)
}
