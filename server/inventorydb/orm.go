package inventorydb

import (
	"github.com/cyclopcam/dbh"
)

// BaseModel is our base class for a GORM model.
// The default GORM Model uses int, but we prefer int64
type BaseModel struct {
	ID int64 `gorm:"primaryKey" json:"id"`
}

// DefinedProduct is a catalog entry. The PID is the number printed on the label
// after "ID:", and is the key that the scanner reads off the label.
type DefinedProduct struct {
	BaseModel
	PID       int64       `gorm:"column:pid" json:"pid"`
	Name      string      `json:"name"`
	Category  string      `json:"category"` // eg "Beef", "Organic Chicken". See NormalizeCategory.
	Pack      int         `json:"pack"`     // Number of units in one case
	CreatedAt dbh.IntTime `gorm:"autoCreateTime:milli" json:"createdAt"`
	UpdatedAt dbh.IntTime `gorm:"autoUpdateTime:milli" json:"updatedAt"`
}

// ScannedItem is one case of product that was scanned in the cooler
type ScannedItem struct {
	BaseModel
	PID        int64       `gorm:"column:pid" json:"pid"`
	Serial     string      `json:"serial"` // Unique. Read off the label, or synthesized from the scan time.
	Name       string      `json:"name"`
	Count      int         `json:"count"`
	NetKg      float64     `json:"netKg"`
	PackedOn   dbh.IntTime `json:"packedOn"`
	BestBefore dbh.IntTime `json:"bestBefore"`
	SyncedAt   dbh.IntTime `json:"syncedAt,omitempty"` // Zero until sent to the sync endpoint
	CreatedAt  dbh.IntTime `gorm:"autoCreateTime:milli" json:"createdAt"`
	UpdatedAt  dbh.IntTime `gorm:"autoUpdateTime:milli" json:"updatedAt"`
}

// SalesFloorEntry is a manual count of product that is out on the sales floor.
// Either Count or Weight is populated, depending on how the product is sold.
type SalesFloorEntry struct {
	BaseModel
	PID        int64       `gorm:"column:pid" json:"pid"`
	Name       string      `json:"name"`
	Count      *int        `json:"count,omitempty"`
	Weight     *float64    `json:"weight,omitempty"`
	ExpiryDate dbh.IntTime `json:"expiryDate,omitempty"`
	SyncedAt   dbh.IntTime `json:"syncedAt,omitempty"`
	CreatedAt  dbh.IntTime `gorm:"autoCreateTime:milli" json:"createdAt"`
	UpdatedAt  dbh.IntTime `gorm:"autoUpdateTime:milli" json:"updatedAt"`
}
