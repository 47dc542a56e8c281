package inventorydb

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/cyclopcam/dbh"
	"gorm.io/gorm"
)

// InsertRecord writes a new scanned item.
// Returns ErrDuplicateSerial if an item with the same serial already exists.
func (d *InventoryDB) InsertRecord(ctx context.Context, item *ScannedItem) error {
	err := d.write(ctx, func(tx *gorm.DB) error {
		return tx.Create(item).Error
	})
	if isUniqueViolation(err) {
		return ErrDuplicateSerial
	}
	return err
}

// FindBySerial returns the item with the given serial, or nil if there is no such item
func (d *InventoryDB) FindBySerial(ctx context.Context, serial string) (*ScannedItem, error) {
	item := ScannedItem{}
	err := d.DB.WithContext(ctx).Where("serial = ?", serial).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return &item, nil
}

// Items returns the most recently scanned items first.
// If limit is zero, all items are returned.
func (d *InventoryDB) Items(ctx context.Context, limit int) ([]ScannedItem, error) {
	items := []ScannedItem{}
	q := d.DB.WithContext(ctx).Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// DeleteItem is an administrative action, used to remove a bad scan
func (d *InventoryDB) DeleteItem(ctx context.Context, id int64) error {
	return d.write(ctx, func(tx *gorm.DB) error {
		res := tx.Delete(&ScannedItem{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// ExpiryAlerts groups items by how close they are to their best-before date
type ExpiryAlerts struct {
	Expired  []ScannedItem `json:"expired"`
	Today    []ScannedItem `json:"today"`
	Tomorrow []ScannedItem `json:"tomorrow"`
}

// DaysToExpiry counts calendar days from 'now' until the item's best-before date, in the location of 'now'.
// Negative values mean the item has already expired.
func DaysToExpiry(item *ScannedItem, now time.Time) int {
	loc := now.Location()
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, loc)
	by, bm, bd := item.BestBefore.Get().In(loc).Date()
	bb := time.Date(by, bm, bd, 0, 0, 0, 0, loc)
	// Round, because DST transitions make some days 23 or 25 hours long
	return int(math.Round(bb.Sub(today).Hours() / 24))
}

// GetExpiryAlerts returns all items that are expired, or expire today or tomorrow
func (d *InventoryDB) GetExpiryAlerts(ctx context.Context, now time.Time) (*ExpiryAlerts, error) {
	y, m, day := now.Date()
	endOfTomorrow := time.Date(y, m, day+2, 0, 0, 0, 0, now.Location())

	items := []ScannedItem{}
	if err := d.DB.WithContext(ctx).Where("best_before IS NOT NULL AND best_before < ?", dbh.MakeIntTime(endOfTomorrow)).Order("best_before").Find(&items).Error; err != nil {
		return nil, err
	}

	alerts := &ExpiryAlerts{
		Expired:  []ScannedItem{},
		Today:    []ScannedItem{},
		Tomorrow: []ScannedItem{},
	}
	for _, item := range items {
		switch days := DaysToExpiry(&item, now); {
		case days < 0:
			alerts.Expired = append(alerts.Expired, item)
		case days == 0:
			alerts.Today = append(alerts.Today, item)
		case days == 1:
			alerts.Tomorrow = append(alerts.Tomorrow, item)
		}
	}
	return alerts, nil
}

// GetSyncQueue returns items and sales floor entries that have not yet been sent to the sync endpoint
func (d *InventoryDB) GetSyncQueue(ctx context.Context, limit int) ([]ScannedItem, []SalesFloorEntry, error) {
	items := []ScannedItem{}
	if err := d.DB.WithContext(ctx).Where("synced_at IS NULL").Order("id").Limit(limit).Find(&items).Error; err != nil {
		return nil, nil, err
	}
	floor := []SalesFloorEntry{}
	if err := d.DB.WithContext(ctx).Where("synced_at IS NULL").Order("id").Limit(limit).Find(&floor).Error; err != nil {
		return nil, nil, err
	}
	return items, floor, nil
}

// MarkSynced records that the given items and sales floor entries were accepted by the sync endpoint
func (d *InventoryDB) MarkSynced(ctx context.Context, itemIDs, floorIDs []int64, at time.Time) error {
	if len(itemIDs) == 0 && len(floorIDs) == 0 {
		return nil
	}
	return d.write(ctx, func(tx *gorm.DB) error {
		if len(itemIDs) != 0 {
			if err := tx.Model(&ScannedItem{}).Where("id IN ?", itemIDs).Update("synced_at", dbh.MakeIntTime(at)).Error; err != nil {
				return err
			}
		}
		if len(floorIDs) != 0 {
			if err := tx.Model(&SalesFloorEntry{}).Where("id IN ?", floorIDs).Update("synced_at", dbh.MakeIntTime(at)).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
