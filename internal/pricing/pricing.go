// Package pricing holds the price rules shared by the configurator and the cart.
package pricing

import "github.com/istominvi/shaurmaniya/internal/entity"

// DefaultDeliveryFee is the flat delivery fee in minor currency units.
const DefaultDeliveryFee int64 = 100

// MaxQuantity caps the quantity of a single cart line.
const MaxQuantity = 99

// Totals are the order-level amounts derived from items and location.
type Totals struct {
	Subtotal    int64 `json:"subtotal"`
	DeliveryFee int64 `json:"deliveryFee"`
	Total       int64 `json:"total"`
}

// UnitPrice returns the price of one configured item: the variant price when a
// variant is selected (it replaces the base price), plus every selected option.
func UnitPrice(product entity.Product, variant *entity.ProductVariant, modifiers []entity.CartItemModifier) int64 {
	price := product.BasePrice
	if variant != nil {
		price = variant.Price
	}
	for _, m := range modifiers {
		for _, o := range m.Options {
			price += o.Price
		}
	}
	return price
}

// LineTotal returns unitPrice × quantity.
func LineTotal(unitPrice int64, quantity int) int64 {
	return unitPrice * int64(quantity)
}

// DeliveryFee returns flatFee when a non-empty cart is to be delivered and
// zero otherwise. An empty cart never carries a fee, even with a delivery
// location set, so a cleared cart always totals zero. The storefront this
// replaces charged the fee on an empty delivery cart.
func DeliveryFee(items []entity.CartItem, location *entity.LocationInfo, flatFee int64) int64 {
	if len(items) == 0 {
		return 0
	}
	if location != nil && location.Type == entity.LocationDelivery {
		return flatFee
	}
	return 0
}

// Calculate derives the order totals. It is a pure function of its inputs.
func Calculate(items []entity.CartItem, location *entity.LocationInfo, flatFee int64) Totals {
	var subtotal int64
	for _, item := range items {
		subtotal += item.TotalPrice
	}
	fee := DeliveryFee(items, location, flatFee)
	return Totals{
		Subtotal:    subtotal,
		DeliveryFee: fee,
		Total:       subtotal + fee,
	}
}
