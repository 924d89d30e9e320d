package entity

// Product represents a catalog entry in the storefront.
type Product struct {
	ID          string            `json:"id" yaml:"id"`
	Name        string            `json:"name" yaml:"name"`
	Description string            `json:"description" yaml:"description"`
	Category    string            `json:"category" yaml:"category"`
	Image       string            `json:"image" yaml:"image"`
	BasePrice   int64             `json:"basePrice" yaml:"basePrice"`
	Available   bool              `json:"available" yaml:"available"`
	Variants    []ProductVariant  `json:"variants,omitempty" yaml:"variants,omitempty"`
	Modifiers   []ProductModifier `json:"modifiers,omitempty" yaml:"modifiers,omitempty"`
}

// HasVariants reports whether the product offers a size/type choice.
func (p Product) HasVariants() bool {
	return len(p.Variants) > 0
}

// Variant looks up a variant by id.
func (p Product) Variant(id string) (ProductVariant, bool) {
	for _, v := range p.Variants {
		if v.ID == id {
			return v, true
		}
	}
	return ProductVariant{}, false
}

// Modifier looks up a modifier group by id.
func (p Product) Modifier(id string) (ProductModifier, bool) {
	for _, m := range p.Modifiers {
		if m.ID == id {
			return m, true
		}
	}
	return ProductModifier{}, false
}

// ProductVariant is a mutually exclusive choice. Its price replaces the base price.
type ProductVariant struct {
	ID    string `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Price int64  `json:"price" yaml:"price"`
}

// ModifierType controls how options of a modifier group are selected.
type ModifierType string

const (
	ModifierSingle   ModifierType = "single"
	ModifierMultiple ModifierType = "multiple"
)

// ProductModifier is a named group of add-ons.
type ProductModifier struct {
	ID       string           `json:"id" yaml:"id"`
	Name     string           `json:"name" yaml:"name"`
	Type     ModifierType     `json:"type" yaml:"type"`
	Required bool             `json:"required" yaml:"required"`
	Options  []ModifierOption `json:"options" yaml:"options"`
}

// Option looks up an option by id.
func (m ProductModifier) Option(id string) (ModifierOption, bool) {
	for _, o := range m.Options {
		if o.ID == id {
			return o, true
		}
	}
	return ModifierOption{}, false
}

// ModifierOption is a single add-on. Price is always added to the unit price.
type ModifierOption struct {
	ID    string `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Price int64  `json:"price" yaml:"price"`
}

// CartItemOption is a copy of a selected option taken when the item was added.
type CartItemOption struct {
	OptionID   string `json:"optionId"`
	OptionName string `json:"optionName"`
	Price      int64  `json:"price"`
}

// CartItemModifier is a self-describing snapshot of one modifier's selection.
type CartItemModifier struct {
	ModifierID   string           `json:"modifierId"`
	ModifierName string           `json:"modifierName"`
	Options      []CartItemOption `json:"options"`
}

// CartItem is one configured, priced line in the cart.
type CartItem struct {
	CartItemID string             `json:"cartItemId"`
	Product    Product            `json:"product"`
	Variant    *ProductVariant    `json:"variant,omitempty"`
	Modifiers  []CartItemModifier `json:"modifiers"`
	Quantity   int                `json:"quantity"`
	UnitPrice  int64              `json:"unitPrice"`
	TotalPrice int64              `json:"totalPrice"`
}

// DisplayName is the product name with the variant in parentheses, if any.
func (i CartItem) DisplayName() string {
	if i.Variant != nil {
		return i.Product.Name + " (" + i.Variant.Name + ")"
	}
	return i.Product.Name
}

// LocationType is the fulfillment method.
type LocationType string

const (
	LocationDelivery LocationType = "delivery"
	LocationPickup   LocationType = "pickup"
)

// Coordinates are kept for clients that send them; pricing ignores them.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// LocationInfo is the fulfillment selection. Address holds either a delivery
// address or the chosen branch address, depending on Type.
type LocationInfo struct {
	Type        LocationType `json:"type"`
	Address     string       `json:"address,omitempty"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
}

// Cart is the serialized cart state. Totals are informational; they are
// always recomputed from Items and Location on load.
type Cart struct {
	Items       []CartItem    `json:"items"`
	Subtotal    int64         `json:"subtotal"`
	DeliveryFee int64         `json:"deliveryFee"`
	Total       int64         `json:"total"`
	Location    *LocationInfo `json:"location,omitempty"`
}

// Branch is a pickup point from the branch directory.
type Branch struct {
	Address string `json:"address" yaml:"address"`
	Name    string `json:"name,omitempty" yaml:"name,omitempty"`
	Phone   string `json:"phone,omitempty" yaml:"phone,omitempty"`
}

// OrderPayload is the flat document accepted by the order sink.
type OrderPayload struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	Items   string `json:"items"`
	Total   int64  `json:"total"`
	Comment string `json:"comment"`
}
