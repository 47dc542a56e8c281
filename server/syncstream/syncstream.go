// Package syncstream sends scanned items and sales floor counts to the cloud sync endpoint.
package syncstream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/google/uuid"
	"github.com/vizcount/vizcount/pkg/requests"
	"github.com/vizcount/vizcount/server/inventorydb"
)

// Headers sent with every batch
const (
	HeaderAppCheck = "X-Firebase-AppCheck"
	HeaderBatchID  = "X-Batch-ID"
)

var ErrNotConfigured = errors.New("Sync endpoint is not configured")

// Source is the database that we sync from
type Source interface {
	GetSyncQueue(ctx context.Context, limit int) ([]inventorydb.ScannedItem, []inventorydb.SalesFloorEntry, error)
	MarkSynced(ctx context.Context, itemIDs, floorIDs []int64, at time.Time) error
}

// ScannedItemRow is the wire format of a scanned item. Dates are unix milliseconds.
type ScannedItemRow struct {
	PID            int64   `json:"pid"`
	SN             string  `json:"sn"`
	Name           string  `json:"name"`
	BestBeforeDate int64   `json:"best_before_date,omitempty"`
	PackedOnDate   int64   `json:"packed_on_date,omitempty"`
	NetKg          float64 `json:"net_kg"`
	Count          int     `json:"count"`
}

// SalesFloorRow is the wire format of a sales floor entry
type SalesFloorRow struct {
	PID        int64    `json:"pid"`
	Name       string   `json:"name"`
	Count      *int     `json:"count,omitempty"`
	Weight     *float64 `json:"weight,omitempty"`
	ExpiryDate int64    `json:"expiry_date,omitempty"`
}

type Batch struct {
	ScannedItems []ScannedItemRow `json:"scanned_items"`
	SalesFloor   []SalesFloorRow  `json:"sales_floor"`
}

// Response is what the sync endpoint returns on success
type Response struct {
	Status              string `json:"status"`
	ScannedItemsWritten int    `json:"scanned_items_written"`
	SalesFloorUpserted  int    `json:"sales_floor_upserted"`
}

// Result is a summary of one Push
type Result struct {
	BatchID      string `json:"batchID,omitempty"`
	ScannedItems int    `json:"scannedItems"`
	SalesFloor   int    `json:"salesFloor"`
}

type Client struct {
	Log       logs.Log
	URL       string
	Token     string
	BatchSize int
	HTTP      *http.Client

	pushLock sync.Mutex // Only one push at a time, so that we never send a record twice
}

func NewClient(log logs.Log, url, token string, batchSize int) *Client {
	if batchSize <= 0 {
		batchSize = 200
	}
	return &Client{
		Log:       log,
		URL:       url,
		Token:     token,
		BatchSize: batchSize,
		HTTP:      &http.Client{Timeout: 30 * time.Second},
	}
}

// MakeBatch converts database records into the wire format
func MakeBatch(items []inventorydb.ScannedItem, floor []inventorydb.SalesFloorEntry) *Batch {
	b := &Batch{
		ScannedItems: make([]ScannedItemRow, 0, len(items)),
		SalesFloor:   make([]SalesFloorRow, 0, len(floor)),
	}
	for _, it := range items {
		b.ScannedItems = append(b.ScannedItems, ScannedItemRow{
			PID:            it.PID,
			SN:             it.Serial,
			Name:           it.Name,
			BestBeforeDate: int64(it.BestBefore),
			PackedOnDate:   int64(it.PackedOn),
			NetKg:          it.NetKg,
			Count:          it.Count,
		})
	}
	for _, f := range floor {
		b.SalesFloor = append(b.SalesFloor, SalesFloorRow{
			PID:        f.PID,
			Name:       f.Name,
			Count:      f.Count,
			Weight:     f.Weight,
			ExpiryDate: int64(f.ExpiryDate),
		})
	}
	return b
}

// Push sends one batch of unsynced records, and marks them as synced if the endpoint accepts them.
// If there is nothing to send, no request is made.
func (c *Client) Push(ctx context.Context, src Source) (*Result, error) {
	if c.URL == "" {
		return nil, ErrNotConfigured
	}
	c.pushLock.Lock()
	defer c.pushLock.Unlock()

	items, floor, err := src.GetSyncQueue(ctx, c.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("Failed to read sync queue: %w", err)
	}
	if len(items) == 0 && len(floor) == 0 {
		return &Result{}, nil
	}

	batchID := uuid.NewString()
	start := time.Now()
	resp, err := requests.RequestJSON[Response](ctx, requests.Request{
		Client: c.HTTP,
		Method: "POST",
		URL:    c.URL,
		Headers: map[string]string{
			HeaderAppCheck: c.Token,
			HeaderBatchID:  batchID,
		},
		Body: MakeBatch(items, floor),
	})
	if err != nil {
		return nil, fmt.Errorf("Sync batch %v failed: %w", batchID, err)
	}
	if resp.ScannedItemsWritten != len(items) || resp.SalesFloorUpserted != len(floor) {
		c.Log.Warnf("Sync batch %v: sent %v items and %v floor entries, but endpoint reports %v and %v",
			batchID, len(items), len(floor), resp.ScannedItemsWritten, resp.SalesFloorUpserted)
	}

	itemIDs := make([]int64, len(items))
	for i := range items {
		itemIDs[i] = items[i].ID
	}
	floorIDs := make([]int64, len(floor))
	for i := range floor {
		floorIDs[i] = floor[i].ID
	}
	if err := src.MarkSynced(ctx, itemIDs, floorIDs, time.Now()); err != nil {
		// The endpoint has the records, but we'll send them again next time
		return nil, fmt.Errorf("Sync batch %v was accepted, but marking it failed: %w", batchID, err)
	}
	c.Log.Infof("Sync batch %v: %v items, %v floor entries in %v", batchID, len(items), len(floor), time.Since(start).Round(time.Millisecond))
	return &Result{
		BatchID:      batchID,
		ScannedItems: len(items),
		SalesFloor:   len(floor),
	}, nil
}

// PushAll pushes batches until the queue is empty
func (c *Client) PushAll(ctx context.Context, src Source) (*Result, error) {
	total := &Result{}
	for {
		r, err := c.Push(ctx, src)
		if err != nil {
			return total, err
		}
		if r.ScannedItems == 0 && r.SalesFloor == 0 {
			return total, nil
		}
		total.BatchID = r.BatchID
		total.ScannedItems += r.ScannedItems
		total.SalesFloor += r.SalesFloor
	}
}

// Run pushes periodically until ctx is cancelled. Errors are logged, and retried on the next tick.
func (c *Client) Run(ctx context.Context, src Source, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	var lastErrAt time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := c.PushAll(ctx, src); err != nil && time.Since(lastErrAt) > 5*time.Minute {
				c.Log.Errorf("%v", err)
				lastErrAt = time.Now()
			}
		}
	}
}
