package inventorydb

import (
	"context"
	"fmt"
	"time"

	"github.com/cyclopcam/dbh"
	"gorm.io/gorm"
)

// AddSalesFloorCount records a unit count of a product on the sales floor
func (d *InventoryDB) AddSalesFloorCount(ctx context.Context, pid int64, name string, count int, expiry time.Time) (*SalesFloorEntry, error) {
	if count < 0 {
		return nil, fmt.Errorf("Invalid count %v", count)
	}
	e := &SalesFloorEntry{
		PID:        pid,
		Name:       name,
		Count:      &count,
		ExpiryDate: dbh.MakeIntTime(expiry),
	}
	if err := d.write(ctx, func(tx *gorm.DB) error { return tx.Create(e).Error }); err != nil {
		return nil, err
	}
	return e, nil
}

// AddSalesFloorWeights records one entry per weighed package of a product on the sales floor
func (d *InventoryDB) AddSalesFloorWeights(ctx context.Context, pid int64, name string, weights []float64, expiry time.Time) ([]SalesFloorEntry, error) {
	if len(weights) == 0 {
		return nil, nil
	}
	entries := make([]SalesFloorEntry, len(weights))
	for i, w := range weights {
		if w <= 0 {
			return nil, fmt.Errorf("Invalid weight %v", w)
		}
		entries[i] = SalesFloorEntry{
			PID:        pid,
			Name:       name,
			Weight:     &weights[i],
			ExpiryDate: dbh.MakeIntTime(expiry),
		}
	}
	if err := d.write(ctx, func(tx *gorm.DB) error { return tx.Create(&entries).Error }); err != nil {
		return nil, err
	}
	return entries, nil
}

// SalesFloor returns all sales floor entries for the given product, or for all products if pid is zero
func (d *InventoryDB) SalesFloor(ctx context.Context, pid int64) ([]SalesFloorEntry, error) {
	entries := []SalesFloorEntry{}
	q := d.DB.WithContext(ctx).Order("id")
	if pid != 0 {
		q = q.Where("pid = ?", pid)
	}
	if err := q.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
