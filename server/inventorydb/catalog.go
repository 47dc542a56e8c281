package inventorydb

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// Product categories, as shown in the UI
const (
	CategoryOrganicChicken   = "Organic Chicken"
	CategoryMapleLeafChicken = "Maple Leaf Chicken"
	CategoryHalal            = "Halal"
	CategoryBeef             = "Beef"
	CategoryPork             = "Pork"
	CategorySeafood          = "Seafood"
)

var categoryMap = map[string]string{
	"organic chicken":    CategoryOrganicChicken,
	"maple leaf chicken": CategoryMapleLeafChicken,
	"halal":              CategoryHalal,
	"beef":               CategoryBeef,
	"pork":               CategoryPork,
	"seafood":            CategorySeafood,
}

// NormalizeCategory fixes the casing of known categories.
// Unknown categories are returned trimmed, but otherwise unchanged.
func NormalizeCategory(category string) string {
	category = strings.TrimSpace(category)
	if c, ok := categoryMap[strings.ToLower(category)]; ok {
		return c
	}
	return category
}

// The products that we populate an empty catalog with
var seedProducts = []DefinedProduct{
	{Name: "PRIME ORG WB", PID: 31396056, Pack: 6, Category: "Organic Chicken"},
	{Name: "ML WHOLE WING", PID: 31180986, Pack: 8, Category: "Maple Leaf Chicken"},
	{Name: "PRIME ORG SPLT WNG", PID: 30031863, Pack: 8, Category: "Organic Chicken"},
	{Name: "MINA HALAL CHN LG QT", PID: 30148922, Pack: 6, Category: "Halal"},
	{Name: "MINA HALAL CHN WHOLE", PID: 30148926, Pack: 6, Category: "Halal"},
	{Name: "MINA HALAL CHKN DRUM", PID: 30148672, Pack: 6, Category: "Halal"},
	{Name: "MINA HALAL CHN GRNDS", PID: 30212214, Pack: 12, Category: "Halal"},
	{Name: "MINA HALAL CHN BSB", PID: 31430278, Pack: 8, Category: "Halal"},
	{Name: "MINA HALAL BSB VP", PID: 31561685, Pack: 6, Category: "Halal"},
	{Name: "MINA HALAL CHN BST", PID: 30433243, Pack: 12, Category: "Halal"},
	{Name: "MINA HALAL CHN THIGH", PID: 30148828, Pack: 6, Category: "Halal"},
}

// SeedCatalog populates the catalog with our default products, but only if the catalog is empty.
// Returns the number of products inserted.
func (d *InventoryDB) SeedCatalog(ctx context.Context) (int, error) {
	inserted := 0
	err := d.write(ctx, func(tx *gorm.DB) error {
		count := int64(0)
		if err := tx.Model(&DefinedProduct{}).Count(&count).Error; err != nil {
			return err
		}
		if count != 0 {
			return nil
		}
		products := make([]DefinedProduct, len(seedProducts))
		copy(products, seedProducts)
		for i := range products {
			products[i].Category = NormalizeCategory(products[i].Category)
		}
		if err := tx.Create(&products).Error; err != nil {
			return err
		}
		inserted = len(products)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("Failed to seed catalog: %w", err)
	}
	if inserted != 0 {
		d.Log.Infof("Seeded catalog with %v products", inserted)
	}
	return inserted, nil
}

// LookupByPrimaryID returns all catalog entries with the given PID.
// We expect zero or one, but we return all of them so that the caller can detect a broken catalog.
func (d *InventoryDB) LookupByPrimaryID(ctx context.Context, pid int64) ([]DefinedProduct, error) {
	products := []DefinedProduct{}
	if err := d.DB.WithContext(ctx).Where("pid = ?", pid).Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

// AddProduct inserts a new catalog entry
func (d *InventoryDB) AddProduct(ctx context.Context, p *DefinedProduct) error {
	if p.PID <= 0 {
		return fmt.Errorf("Invalid product ID %v", p.PID)
	}
	p.Category = NormalizeCategory(p.Category)
	return d.write(ctx, func(tx *gorm.DB) error {
		return tx.Create(p).Error
	})
}

// Products returns the whole catalog, ordered by name
func (d *InventoryDB) Products(ctx context.Context) ([]DefinedProduct, error) {
	products := []DefinedProduct{}
	if err := d.DB.WithContext(ctx).Order("name, pid").Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}
