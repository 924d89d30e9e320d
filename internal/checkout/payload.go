package checkout

import (
	"strconv"
	"strings"

	"github.com/istominvi/shaurmaniya/internal/entity"
)

const (
	pickupLabel   = "Самовывоз"
	deliveryLabel = "Доставка"
)

// Form is the contact data entered at checkout.
type Form struct {
	Name           string `json:"name" validate:"required,max=100"`
	Phone          string `json:"phone" validate:"required,max=32"`
	Comment        string `json:"comment" validate:"max=1000"`
	PolicyAccepted bool   `json:"policyAccepted"`
}

func (f Form) normalized() Form {
	f.Name = strings.TrimSpace(f.Name)
	f.Phone = strings.TrimSpace(f.Phone)
	f.Comment = strings.TrimSpace(f.Comment)
	return f
}

// BuildPayload flattens the cart and the form into the order sink document.
func BuildPayload(cart entity.Cart, form Form) entity.OrderPayload {
	form = form.normalized()
	return entity.OrderPayload{
		Name:    form.Name,
		Phone:   form.Phone,
		Address: FormatAddress(cart.Location),
		Items:   SummarizeItems(cart.Items),
		Total:   cart.Total,
		Comment: form.Comment,
	}
}

// SummarizeItems renders lines as "Name (Variant) xN" joined by ", ".
func SummarizeItems(items []entity.CartItem) string {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		parts = append(parts, item.DisplayName()+" x"+strconv.Itoa(item.Quantity))
	}
	return strings.Join(parts, ", ")
}

// FormatAddress prefixes the address with the fulfillment method. Without an
// address the order is treated as pickup.
func FormatAddress(location *entity.LocationInfo) string {
	if location == nil || location.Address == "" {
		return pickupLabel
	}
	switch location.Type {
	case entity.LocationPickup:
		return pickupLabel + " - " + location.Address
	case entity.LocationDelivery:
		return deliveryLabel + " - " + location.Address
	default:
		return location.Address
	}
}
