package pricing

import (
	"testing"

	"github.com/istominvi/shaurmaniya/internal/entity"
	"github.com/stretchr/testify/assert"
)

func TestUnitPrice_VariantReplacesBaseModifiersAdd(t *testing.T) {
	product := entity.Product{ID: "shawarma", BasePrice: 300}
	variant := &entity.ProductVariant{ID: "large", Price: 350}
	modifiers := []entity.CartItemModifier{
		{ModifierID: "extras", Options: []entity.CartItemOption{
			{OptionID: "cheese", Price: 50},
			{OptionID: "jalapeno", Price: 30},
		}},
	}

	assert.Equal(t, int64(430), UnitPrice(product, variant, modifiers))
}

func TestUnitPrice_NoVariantUsesBase(t *testing.T) {
	product := entity.Product{ID: "classic", BasePrice: 280}

	assert.Equal(t, int64(280), UnitPrice(product, nil, nil))
}

func TestUnitPrice_NegativeOptionIsDiscount(t *testing.T) {
	product := entity.Product{ID: "classic", BasePrice: 280}
	modifiers := []entity.CartItemModifier{
		{ModifierID: "promo", Options: []entity.CartItemOption{{OptionID: "no-onion", Price: -20}}},
	}

	assert.Equal(t, int64(260), UnitPrice(product, nil, modifiers))
}

func TestCalculate(t *testing.T) {
	items := []entity.CartItem{
		{CartItemID: "a", Quantity: 2, UnitPrice: 280, TotalPrice: 560},
		{CartItemID: "b", Quantity: 1, UnitPrice: 150, TotalPrice: 150},
	}

	tests := []struct {
		name     string
		location *entity.LocationInfo
		want     Totals
	}{
		{"no location", nil, Totals{Subtotal: 710, DeliveryFee: 0, Total: 710}},
		{"pickup", &entity.LocationInfo{Type: entity.LocationPickup, Address: "Branch X"}, Totals{Subtotal: 710, DeliveryFee: 0, Total: 710}},
		{"delivery", &entity.LocationInfo{Type: entity.LocationDelivery, Address: "ул. Ленина, 1"}, Totals{Subtotal: 710, DeliveryFee: 100, Total: 810}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Calculate(items, tt.location, DefaultDeliveryFee))
		})
	}
}

func TestCalculate_Empty(t *testing.T) {
	got := Calculate(nil, &entity.LocationInfo{Type: entity.LocationDelivery}, DefaultDeliveryFee)

	assert.Equal(t, Totals{}, got)
}
