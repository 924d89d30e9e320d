// Package configurator tracks an in-progress product configuration (variant,
// modifier options, quantity) and turns it into a priced cart line.
package configurator

import (
	"github.com/istominvi/shaurmaniya/internal/entity"
	"github.com/istominvi/shaurmaniya/internal/pricing"
)

// CartAdder receives confirmed configurations.
type CartAdder interface {
	AddItem(product entity.Product, variant *entity.ProductVariant, modifiers []entity.CartItemModifier, quantity int) entity.CartItem
}

// Configurator is single-owner state for one product at a time.
//
// Invariant: a modifier id is present in selected only while it has at least
// one option; HasSelection and CanAddToCart rely on presence alone.
type Configurator struct {
	product  entity.Product
	variant  *entity.ProductVariant
	selected map[string]*entity.CartItemModifier
	quantity int
}

// New returns a configurator opened on product.
func New(product entity.Product) *Configurator {
	c := &Configurator{}
	c.Open(product)
	return c
}

// Open switches to another product, discarding every prior selection.
func (c *Configurator) Open(product entity.Product) {
	c.product = product
	c.Reset()
}

// Reset restores the defaults for the current product: first variant, no
// modifier options, quantity 1.
func (c *Configurator) Reset() {
	c.variant = nil
	if c.product.HasVariants() {
		v := c.product.Variants[0]
		c.variant = &v
	}
	c.selected = make(map[string]*entity.CartItemModifier)
	c.quantity = 1
}

// Product returns the product being configured.
func (c *Configurator) Product() entity.Product {
	return c.product
}

// Variant returns the selected variant, or nil for products without variants.
func (c *Configurator) Variant() *entity.ProductVariant {
	if c.variant == nil {
		return nil
	}
	v := *c.variant
	return &v
}

// SelectVariant selects a variant by id. Unknown ids are ignored.
func (c *Configurator) SelectVariant(id string) bool {
	v, ok := c.product.Variant(id)
	if !ok {
		return false
	}
	c.variant = &v
	return true
}

// SetOption applies a selection change. For single-type modifiers the option
// replaces any prior choice and checked is ignored. For multiple-type
// modifiers checked adds the option and !checked removes it.
// Unknown modifier or option ids are ignored.
func (c *Configurator) SetOption(modifierID, optionID string, checked bool) {
	mod, ok := c.product.Modifier(modifierID)
	if !ok {
		return
	}
	opt, ok := mod.Option(optionID)
	if !ok {
		return
	}
	choice := entity.CartItemOption{OptionID: opt.ID, OptionName: opt.Name, Price: opt.Price}

	if mod.Type != entity.ModifierMultiple {
		c.selected[mod.ID] = &entity.CartItemModifier{
			ModifierID:   mod.ID,
			ModifierName: mod.Name,
			Options:      []entity.CartItemOption{choice},
		}
		return
	}

	existing, has := c.selected[mod.ID]
	switch {
	case checked && !has:
		c.selected[mod.ID] = &entity.CartItemModifier{
			ModifierID:   mod.ID,
			ModifierName: mod.Name,
			Options:      []entity.CartItemOption{choice},
		}
	case checked && !containsOption(existing.Options, opt.ID):
		existing.Options = append(existing.Options, choice)
	case !checked && has:
		existing.Options = removeOption(existing.Options, opt.ID)
		if len(existing.Options) == 0 {
			delete(c.selected, mod.ID)
		}
	}
}

// ToggleOption selects a single-type option, or flips a multiple-type option.
func (c *Configurator) ToggleOption(modifierID, optionID string) {
	mod, ok := c.product.Modifier(modifierID)
	if !ok {
		return
	}
	if mod.Type != entity.ModifierMultiple {
		c.SetOption(modifierID, optionID, true)
		return
	}
	c.SetOption(modifierID, optionID, !c.IsSelected(modifierID, optionID))
}

// IsSelected reports whether the option is currently selected.
func (c *Configurator) IsSelected(modifierID, optionID string) bool {
	m, ok := c.selected[modifierID]
	return ok && containsOption(m.Options, optionID)
}

// HasSelection reports whether the modifier has at least one option selected.
func (c *Configurator) HasSelection(modifierID string) bool {
	_, ok := c.selected[modifierID]
	return ok
}

// Quantity returns the quantity counter.
func (c *Configurator) Quantity() int {
	return c.quantity
}

// Increment raises the quantity by one, up to pricing.MaxQuantity.
func (c *Configurator) Increment() {
	if c.quantity < pricing.MaxQuantity {
		c.quantity++
	}
}

// Decrement lowers the quantity by one, never below 1.
func (c *Configurator) Decrement() {
	if c.quantity > 1 {
		c.quantity--
	}
}

// SetQuantity sets the quantity, clamped to [1, pricing.MaxQuantity].
func (c *Configurator) SetQuantity(q int) {
	c.quantity = max(1, min(q, pricing.MaxQuantity))
}

// CanAddToCart reports whether the product is purchasable and every required
// modifier has a selection. Variants need no check: one is always selected
// when the product has any.
func (c *Configurator) CanAddToCart() bool {
	if !c.product.Available {
		return false
	}
	for _, m := range c.product.Modifiers {
		if m.Required && !c.HasSelection(m.ID) {
			return false
		}
	}
	return true
}

// MissingRequired lists the names of required modifiers without a selection.
func (c *Configurator) MissingRequired() []string {
	var out []string
	for _, m := range c.product.Modifiers {
		if m.Required && !c.HasSelection(m.ID) {
			out = append(out, m.Name)
		}
	}
	return out
}

// Modifiers returns the selection snapshots in the product's modifier order.
func (c *Configurator) Modifiers() []entity.CartItemModifier {
	out := make([]entity.CartItemModifier, 0, len(c.selected))
	for _, m := range c.product.Modifiers {
		sel, ok := c.selected[m.ID]
		if !ok {
			continue
		}
		out = append(out, entity.CartItemModifier{
			ModifierID:   sel.ModifierID,
			ModifierName: sel.ModifierName,
			Options:      append([]entity.CartItemOption(nil), sel.Options...),
		})
	}
	return out
}

// UnitPrice is the live price of one item with the current selection.
func (c *Configurator) UnitPrice() int64 {
	return pricing.UnitPrice(c.product, c.variant, c.Modifiers())
}

// TotalPrice is UnitPrice × Quantity.
func (c *Configurator) TotalPrice() int64 {
	return pricing.LineTotal(c.UnitPrice(), c.quantity)
}

// Confirm hands the configuration to the cart and resets. It returns false
// without touching the cart or the selection when CanAddToCart is false.
func (c *Configurator) Confirm(cart CartAdder) (entity.CartItem, bool) {
	if !c.CanAddToCart() {
		return entity.CartItem{}, false
	}
	item := cart.AddItem(c.product, c.Variant(), c.Modifiers(), c.quantity)
	c.Reset()
	return item, true
}

func containsOption(opts []entity.CartItemOption, id string) bool {
	for _, o := range opts {
		if o.OptionID == id {
			return true
		}
	}
	return false
}

func removeOption(opts []entity.CartItemOption, id string) []entity.CartItemOption {
	out := opts[:0]
	for _, o := range opts {
		if o.OptionID != id {
			out = append(out, o)
		}
	}
	return out
}
