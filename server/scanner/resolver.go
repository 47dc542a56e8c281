package scanner

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/logs"
	"github.com/vizcount/vizcount/pkg/gen"
	"github.com/vizcount/vizcount/pkg/perfstats"
	"github.com/vizcount/vizcount/server/inventorydb"
)

// Catalog is the product catalog
type Catalog interface {
	LookupByPrimaryID(ctx context.Context, pid int64) ([]inventorydb.DefinedProduct, error)
}

// Store is where scanned items are persisted.
// FindBySerial returns (nil, nil) if there is no such item.
type Store interface {
	InsertRecord(ctx context.Context, item *inventorydb.ScannedItem) error
	FindBySerial(ctx context.Context, serial string) (*inventorydb.ScannedItem, error)
}

// ResolveJob is handed from the scan worker to the resolver.
// It is a value type, and the resolver owns it once it has been sent.
type ResolveJob struct {
	PrimaryID string
	Weight    string
	Lines     []string
	Detected  time.Time
}

const resolveTimeout = 10 * time.Second

// Resolver turns a stable (primary ID, weight) pair into a ScannedItem.
// It runs on its own goroutine, because it talks to the database.
type Resolver struct {
	log      logs.Log
	catalog  Catalog
	store    Store
	location *time.Location
	stats    *perfstats.PipelineStats
	now      func() time.Time
	publish  func(ev *Event)

	queue   chan ResolveJob
	results chan *Event // Read by the scan worker
	stop    chan struct{}
	done    chan struct{}
}

func NewResolver(log logs.Log, catalog Catalog, store Store, settings *Settings, stats *perfstats.PipelineStats, now func() time.Time, publish func(ev *Event)) *Resolver {
	r := &Resolver{
		log:      log,
		catalog:  catalog,
		store:    store,
		location: settings.Location,
		stats:    stats,
		now:      now,
		publish:  publish,
		queue:    make(chan ResolveJob, settings.ResolveQueueSize),
		results:  make(chan *Event, settings.ResolveQueueSize*2),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go r.run()
	return r
}

// Submit queues a job without blocking. Returns false if the queue is full.
func (r *Resolver) Submit(job ResolveJob) bool {
	return gen.TrySend(r.queue, job)
}

// Close stops the resolver, after finishing any jobs that are already queued
func (r *Resolver) Close() {
	select {
	case <-r.stop:
	default:
		close(r.stop)
	}
	<-r.done
}

func (r *Resolver) run() {
	defer close(r.done)
	for {
		select {
		case job := <-r.queue:
			r.handle(job)
		case <-r.stop:
			// Jobs that were submitted just before we were stopped still get written
			for {
				select {
				case job := <-r.queue:
					r.handle(job)
				default:
					return
				}
			}
		}
	}
}

func (r *Resolver) handle(job ResolveJob) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
	ev := r.resolve(ctx, &job)
	cancel()
	perfstats.Update(&r.stats.ResolveNanoseconds, time.Since(start))

	if !gen.TrySend(r.results, ev) {
		r.log.Warnf("Resolver result queue is full. Dropping result for %v", job.PrimaryID)
	}
	if r.publish != nil {
		r.publish(ev)
	}
}

func (r *Resolver) resolve(ctx context.Context, job *ResolveJob) *Event {
	now := r.now()

	pid, err := strconv.ParseInt(job.PrimaryID, 10, 64)
	if err != nil {
		// The extractor only produces digits, so this is a bug
		r.log.Errorf("Resolver: invalid primary ID '%v'", job.PrimaryID)
		return newEvent(EventCatalogError, job, now)
	}

	products, err := r.catalog.LookupByPrimaryID(ctx, pid)
	if err != nil {
		r.log.Errorf("Resolver: catalog lookup of %v failed: %v", pid, err)
		return newEvent(EventCatalogError, job, now)
	}
	if len(products) == 0 {
		r.log.Infof("Resolver: product %v is not in the catalog", pid)
		return newEvent(EventNotInCatalog, job, now)
	} else if len(products) > 1 {
		r.log.Errorf("Resolver: product %v has %v catalog entries", pid, len(products))
		return newEvent(EventCatalogError, job, now)
	}
	product := &products[0]

	kind := SerialKindFor(product.Category)
	serial, found := ExtractSerial(kind, job.Lines, now)
	if !found {
		r.log.Warnf("Resolver: no %v serial found on label of %v. Using synthesized serial %v", kind, pid, serial)
	}

	if _, ok := serialAsInt(serial); ok {
		existing, err := r.store.FindBySerial(ctx, serial)
		if err != nil {
			r.log.Errorf("Resolver: serial lookup of %v failed: %v", serial, err)
			return newEvent(EventStoreFailed, job, now)
		}
		if existing != nil {
			return r.duplicate(job, serial, now)
		}
	}

	weight, err := strconv.ParseFloat(job.Weight, 64)
	if err != nil {
		r.log.Errorf("Resolver: invalid weight '%v'", job.Weight)
		return newEvent(EventStoreFailed, job, now)
	}

	packedOn, bestBefore := AssignDates(ExtractDates(job.Lines, r.location), now)

	item := &inventorydb.ScannedItem{
		PID:        pid,
		Serial:     serial,
		Name:       product.Name,
		Count:      product.Pack,
		NetKg:      weight,
		PackedOn:   dbh.MakeIntTime(packedOn),
		BestBefore: dbh.MakeIntTime(bestBefore),
	}
	if err := r.store.InsertRecord(ctx, item); err != nil {
		if errors.Is(err, inventorydb.ErrDuplicateSerial) {
			return r.duplicate(job, serial, now)
		}
		r.log.Errorf("Resolver: failed to save %v (serial %v): %v", pid, serial, err)
		return newEvent(EventStoreFailed, job, now)
	}

	r.log.Infof("Resolver: saved %v '%v', serial %v, %.2f kg", pid, product.Name, serial, weight)
	ev := newEvent(EventSaved, job, now)
	ev.Serial = serial
	ev.Item = item
	ev.Message = fmt.Sprintf("Saved %v (%v kg)", product.Name, job.Weight)
	return ev
}

func (r *Resolver) duplicate(job *ResolveJob, serial string, now time.Time) *Event {
	r.log.Infof("Resolver: serial %v is already recorded", serial)
	ev := newEvent(EventDuplicate, job, now)
	ev.Serial = serial
	ev.Message = fmt.Sprintf("Already recorded: serial %v", serial)
	return ev
}
