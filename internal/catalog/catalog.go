// Package catalog provides read-only access to the product list and the
// pickup branch directory. Both are loaded once at startup from static files
// produced by the offline spreadsheet sync.
package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/istominvi/shaurmaniya/internal/entity"
	"gopkg.in/yaml.v3"
)

// AllCategories selects every product in ByCategory.
const AllCategories = "all"

// Catalog is an immutable, ordered product list.
type Catalog struct {
	products []entity.Product
	byID     map[string]int
}

// New creates a Catalog from already validated products. The slice is copied.
func New(products []entity.Product) *Catalog {
	c := &Catalog{
		products: make([]entity.Product, len(products)),
		byID:     make(map[string]int, len(products)),
	}
	for i, p := range products {
		c.products[i] = cloneProduct(p)
		if _, dup := c.byID[p.ID]; !dup {
			c.byID[p.ID] = i
		}
	}
	return c
}

// Load reads a catalog data file. JSON and YAML are supported; the document
// may be either a bare list of products or an object with a "products" key.
func Load(path string) (*Catalog, error) {
	var products []entity.Product
	if err := decodeFile(path, "products", &products); err != nil {
		return nil, fmt.Errorf("failed to load catalog %s: %w", path, err)
	}
	return New(products), nil
}

// WithAssetBase returns a copy whose product images are resolved through
// AssetPath against basePath.
func (c *Catalog) WithAssetBase(basePath string) *Catalog {
	products := c.All()
	for i := range products {
		if products[i].Image != "" {
			products[i].Image = AssetPath(products[i].Image, basePath)
		}
	}
	return New(products)
}

// All returns every product in data-file order.
func (c *Catalog) All() []entity.Product {
	out := make([]entity.Product, len(c.products))
	for i, p := range c.products {
		out[i] = cloneProduct(p)
	}
	return out
}

// ByCategory returns the products of one category. An empty category or
// AllCategories returns all products.
func (c *Catalog) ByCategory(category string) []entity.Product {
	if category == "" || category == AllCategories {
		return c.All()
	}
	var out []entity.Product
	for _, p := range c.products {
		if p.Category == category {
			out = append(out, cloneProduct(p))
		}
	}
	return out
}

// Categories returns the distinct category labels in first-seen order.
func (c *Catalog) Categories() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, p := range c.products {
		if _, ok := seen[p.Category]; ok {
			continue
		}
		seen[p.Category] = struct{}{}
		out = append(out, p.Category)
	}
	return out
}

// Product looks up a product by id.
func (c *Catalog) Product(id string) (entity.Product, bool) {
	i, ok := c.byID[id]
	if !ok {
		return entity.Product{}, false
	}
	return cloneProduct(c.products[i]), true
}

// Len returns the number of products.
func (c *Catalog) Len() int {
	return len(c.products)
}

// LoadBranches reads the pickup branch directory (JSON or YAML), either a bare
// list or an object with a "branches" key.
func LoadBranches(path string) ([]entity.Branch, error) {
	var branches []entity.Branch
	if err := decodeFile(path, "branches", &branches); err != nil {
		return nil, fmt.Errorf("failed to load branches %s: %w", path, err)
	}
	return branches, nil
}

// BranchAddresses lists the addresses offered as pickup choices.
func BranchAddresses(branches []entity.Branch) []string {
	out := make([]string, 0, len(branches))
	for _, b := range branches {
		if b.Address != "" {
			out = append(out, b.Address)
		}
	}
	return out
}

func decodeFile[T any](path, key string, out *[]T) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return decodeYAML(data, key, out)
	default:
		return decodeJSON(data, key, out)
	}
}

func decodeJSON[T any](data []byte, key string, out *[]T) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		return json.Unmarshal(data, out)
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	raw, ok := doc[key]
	if !ok {
		return fmt.Errorf("missing %q key", key)
	}
	return json.Unmarshal(raw, out)
}

func decodeYAML[T any](data []byte, key string, out *[]T) error {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return err
	}
	if len(node.Content) == 0 {
		return nil
	}
	root := node.Content[0]
	if root.Kind == yaml.SequenceNode {
		return root.Decode(out)
	}
	var doc map[string]yaml.Node
	if err := root.Decode(&doc); err != nil {
		return err
	}
	list, ok := doc[key]
	if !ok {
		return fmt.Errorf("missing %q key", key)
	}
	return list.Decode(out)
}

func cloneProduct(p entity.Product) entity.Product {
	if p.Variants != nil {
		p.Variants = append([]entity.ProductVariant(nil), p.Variants...)
	}
	if p.Modifiers != nil {
		mods := make([]entity.ProductModifier, len(p.Modifiers))
		for i, m := range p.Modifiers {
			m.Options = append([]entity.ModifierOption(nil), m.Options...)
			mods[i] = m
		}
		p.Modifiers = mods
	}
	return p
}
