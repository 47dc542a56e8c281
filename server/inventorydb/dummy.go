package inventorydb

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/cyclopcam/dbh"
	"gorm.io/gorm"
)

type dummyProduct struct {
	name      string
	pid       int64
	minWeight float64
	maxWeight float64
	count     int
}

var dummyCatalog = []dummyProduct{
	{"Chk Drumsticks", 74818, 15, 20, 6},
	{"Chk Drumsticks", 74819, 5, 10, 8},
	{"Chk Breasts", 74820, 10, 15, 10},
	{"Chk Thighs", 74821, 10, 15, 12},
	{"Beef Ribeye", 85910, 20, 25, 4},
	{"Beef Ribeye", 85911, 10, 15, 6},
	{"Beef Sirloin", 85912, 15, 20, 5},
	{"Beef Chuck", 85913, 25, 30, 3},
	{"Pork Chops", 96020, 15, 20, 8},
	{"Pork Chops", 96021, 8, 12, 12},
	{"Pork Ribs", 96022, 10, 15, 10},
	{"Pork Belly", 96023, 20, 25, 4},
	{"COHO 2PC PORTIONS", 50571637, 8, 14, 6},
	{"YFM BASA FILLET", 31237250, 6, 12, 6},
	{"GOAT CUBES BONE IN", 31710966, 10, 18, 12},
	{"AA STRIPLOIN STEAK", 50772502, 18, 26, 8},
	{"AA TRI TIP", 50772503, 14, 22, 8},
	{"AA BLADE STEAK", 50772504, 12, 20, 8},
	{"BF TRI TIP SIRLOIN", 50158149, 14, 22, 8},
	{"PKSSG BR MAPLE 900ML", 31439394, 8, 14, 6},
	{"PKSSG BR ORIG 375JV", 50576421, 4, 8, 12},
	{"JVL BWN SUG HON", 50576373, 2, 5, 12},
}

const dummyBatchSize = 100

// GenerateDummyData wipes all scanned items and replaces them with 'count' random items.
// Best-before dates are skewed towards the near future, so that expiry alerts have something to show.
func (d *InventoryDB) GenerateDummyData(ctx context.Context, count int, now time.Time, rng *rand.Rand) error {
	if rng == nil {
		rng = rand.New(rand.NewPCG(uint64(now.UnixNano()), 0))
	}
	randInt := func(min, max int) int {
		return min + rng.IntN(max-min+1)
	}
	day := 24 * time.Hour

	err := d.write(ctx, func(tx *gorm.DB) error {
		res := tx.Where("1 = 1").Delete(&ScannedItem{})
		if res.Error != nil {
			return res.Error
		}
		d.Log.Infof("Dummy data: wiped %v scanned items", res.RowsAffected)

		serial := int64(randInt(1000000, 9000000))
		batch := make([]ScannedItem, 0, dummyBatchSize)
		for i := 0; i < count; i++ {
			p := dummyCatalog[rng.IntN(len(dummyCatalog))]
			weight := p.minWeight + rng.Float64()*(p.maxWeight-p.minWeight)

			var daysToExpiry int
			switch r := rng.Float64(); {
			case r < 0.1:
				daysToExpiry = 1
			case r < 0.3:
				daysToExpiry = randInt(2, 3)
			case r < 0.6:
				daysToExpiry = randInt(4, 7)
			default:
				daysToExpiry = randInt(8, 30)
			}

			serial++
			batch = append(batch, ScannedItem{
				PID:        p.pid,
				Serial:     strconv.FormatInt(serial, 10),
				Name:       p.name,
				Count:      p.count,
				NetKg:      math.Round(weight*100) / 100,
				PackedOn:   dbh.MakeIntTime(now.Add(-time.Duration(randInt(1, 30)) * day)),
				BestBefore: dbh.MakeIntTime(now.Add(time.Duration(daysToExpiry) * day)),
			})
			if len(batch) == dummyBatchSize || i == count-1 {
				if err := tx.Create(&batch).Error; err != nil {
					return err
				}
				batch = batch[:0]
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("Failed to generate dummy data: %w", err)
	}
	d.Log.Infof("Dummy data: generated %v scanned items", count)
	return nil
}
