package scanner

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/bmharper/cimg/v2"
	"github.com/cyclopcam/logs"
	"github.com/stretchr/testify/require"
	"github.com/vizcount/vizcount/pkg/ocr"
	"github.com/vizcount/vizcount/pkg/quality"
	"github.com/vizcount/vizcount/server/inventorydb"
)

const (
	screenW = 400
	screenH = 800
)

var baseTime = time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

type fakeCatalog struct {
	lock     sync.Mutex
	products map[int64][]inventorydb.DefinedProduct
	err      error
	entered  chan int64    // If not nil, receives the PID of every lookup
	block    chan struct{} // If not nil, every lookup waits for this to be closed
}

func newFakeCatalog(products ...inventorydb.DefinedProduct) *fakeCatalog {
	c := &fakeCatalog{products: map[int64][]inventorydb.DefinedProduct{}}
	for _, p := range products {
		c.products[p.PID] = append(c.products[p.PID], p)
	}
	return c
}

func (c *fakeCatalog) LookupByPrimaryID(ctx context.Context, pid int64) ([]inventorydb.DefinedProduct, error) {
	if c.entered != nil {
		c.entered <- pid
	}
	if c.block != nil {
		<-c.block
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.products[pid], c.err
}

type fakeStore struct {
	lock  sync.Mutex
	items map[string]*inventorydb.ScannedItem
	err   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{items: map[string]*inventorydb.ScannedItem{}}
}

func (s *fakeStore) InsertRecord(ctx context.Context, item *inventorydb.ScannedItem) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.err != nil {
		return s.err
	}
	if _, ok := s.items[item.Serial]; ok {
		return inventorydb.ErrDuplicateSerial
	}
	s.items[item.Serial] = item
	return nil
}

func (s *fakeStore) FindBySerial(ctx context.Context, serial string) (*inventorydb.ScannedItem, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.items[serial], nil
}

func (s *fakeStore) count() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return len(s.items)
}

func testSettings() Settings {
	s := DefaultSettings(screenW, screenH)
	s.Location = time.UTC
	return s
}

func newTestScanner(t *testing.T, settings Settings, catalog Catalog, store Store, recognizer ocr.Recognizer) *Scanner {
	t.Helper()
	s := NewScanner(logs.NewTestingLog(t), settings, catalog, store, Options{
		Recognizer: recognizer,
		Primitive:  &quality.LaplacianPrimitive{},
		Clock:      func() time.Time { return baseTime },
	})
	t.Cleanup(s.Close)
	return s
}

// Build a frame whose text lines are stacked vertically in the middle of the screen,
// which is inside the default ROI.
func labelFrame(at time.Duration, texts ...string) *Frame {
	res := &ocr.Result{}
	for i, txt := range texts {
		res.Lines = append(res.Lines, ocr.TextLine{
			Text:       txt,
			CenterX:    200,
			CenterY:    300 + float32(i)*40,
			Width:      200,
			Height:     30,
			Confidence: ocr.Confidence(0.95),
		})
	}
	return &Frame{
		Width:  screenW,
		Height: screenH,
		Text:   res,
		Time:   baseTime.Add(at),
	}
}

func waitEvent(t *testing.T, ch chan *Event) *Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for resolver event")
	}
	return nil
}

var beefLabel = []string{"ID: 50191456", "net6.42kg", "SN 201234567890"}

func TestEndToEnd(t *testing.T) {
	os.Remove("test-scanner.sqlite")
	db, err := inventorydb.NewInventoryDB(logs.NewTestingLog(t), "test-scanner.sqlite")
	require.NoError(t, err)
	defer func() {
		db.Close()
		os.Remove("test-scanner.sqlite")
		os.Remove("test-scanner.sqlite-shm")
		os.Remove("test-scanner.sqlite-wal")
	}()
	ctx := context.Background()
	require.NoError(t, db.AddProduct(ctx, &inventorydb.DefinedProduct{PID: 50191456, Name: "AAA STRIPLOIN", Category: "beef", Pack: 1}))

	s := newTestScanner(t, testSettings(), db, db, nil)
	events := s.AddWatcher()
	defer s.RemoveWatcher(events)
	s.Activate()

	expect := []FrameOutcome{OutcomeUnstable, OutcomeUnstable, OutcomeFired, OutcomeLocked, OutcomeLocked}
	for i, want := range expect {
		got := s.ProcessFrame(labelFrame(time.Duration(i)*300*time.Millisecond, beefLabel...))
		require.Equal(t, want, got, "frame %v", i+1)
	}

	ev := waitEvent(t, events)
	require.Equal(t, EventSaved, ev.Kind)
	require.Equal(t, SeveritySuccess, ev.Severity)
	require.Equal(t, "201234567890", ev.Serial)

	item, err := db.FindBySerial(ctx, "201234567890")
	require.NoError(t, err)
	require.NotNil(t, item)
	require.Equal(t, int64(50191456), item.PID)
	require.Equal(t, 6.42, item.NetKg)
	require.Equal(t, "AAA STRIPLOIN", item.Name)
	require.Equal(t, 1, item.Count)
	// No dates on the label
	require.Equal(t, baseTime.UnixMilli(), item.PackedOn.Get().UnixMilli())
	require.Equal(t, baseTime.UnixMilli(), item.BestBefore.Get().UnixMilli())

	items, err := db.Items(ctx, 100)
	require.NoError(t, err)
	require.Len(t, items, 1)

	st := s.Status()
	require.True(t, st.Active)
	require.True(t, st.Locked)
	require.Equal(t, "50191456", st.LastSaved)
	require.Equal(t, "6.42", st.Stable["weight"])
	require.EqualValues(t, 1, st.Fires)
	require.EqualValues(t, 5, st.FramesAnalyzed)
	require.Len(t, s.RecentEvents(), 1)
}

// A beef label with no 12 digit serial printed on it gets a serial made from the scan time
func TestEndToEndWithoutPrintedSerial(t *testing.T) {
	catalog := newFakeCatalog(inventorydb.DefinedProduct{PID: 50191456, Name: "AAA STRIPLOIN", Category: "beef", Pack: 1})
	store := newFakeStore()
	s := newTestScanner(t, testSettings(), catalog, store, nil)
	events := s.AddWatcher()
	defer s.RemoveWatcher(events)
	s.Activate()

	expect := []FrameOutcome{OutcomeUnstable, OutcomeUnstable, OutcomeFired, OutcomeLocked, OutcomeLocked}
	for i, want := range expect {
		got := s.ProcessFrame(labelFrame(time.Duration(i)*300*time.Millisecond, "ID: 50191456", "net6.42kg"))
		require.Equal(t, want, got, "frame %v", i+1)
	}

	ev := waitEvent(t, events)
	require.Equal(t, EventSaved, ev.Kind)
	serial := "1741942800000"
	require.Equal(t, serial, ev.Serial)
	require.Len(t, serial, 13)

	require.EqualValues(t, 1, s.Status().Fires)

	// Close waits for the resolver, so nothing else can be written after this
	s.Close()
	require.Equal(t, 1, store.count())
	item, err := store.FindBySerial(context.Background(), serial)
	require.NoError(t, err)
	require.NotNil(t, item)
	require.Equal(t, int64(50191456), item.PID)
	require.Equal(t, 6.42, item.NetKg)
	require.Equal(t, baseTime.UnixMilli(), item.PackedOn.Get().UnixMilli())
}

func TestInactiveAndThrottled(t *testing.T) {
	s := newTestScanner(t, testSettings(), newFakeCatalog(), newFakeStore(), nil)
	require.Equal(t, OutcomeInactive, s.ProcessFrame(labelFrame(0, beefLabel...)))
	require.False(t, s.Status().Active)

	s.Activate()
	require.True(t, s.IsActive())
	require.Equal(t, OutcomeUnstable, s.ProcessFrame(labelFrame(0, beefLabel...)))
	require.Equal(t, OutcomeThrottled, s.ProcessFrame(labelFrame(100*time.Millisecond, beefLabel...)))
	require.Equal(t, OutcomeThrottled, s.ProcessFrame(labelFrame(299*time.Millisecond, beefLabel...)))
	require.Equal(t, OutcomeUnstable, s.ProcessFrame(labelFrame(300*time.Millisecond, beefLabel...)))
	require.EqualValues(t, 4, s.Status().FramesSeen)
	require.EqualValues(t, 2, s.Status().FramesAnalyzed)

	s.Deactivate()
	require.False(t, s.IsActive())
	require.Equal(t, OutcomeInactive, s.ProcessFrame(labelFrame(time.Second, beefLabel...)))
}

func TestCooldownClearsBuffers(t *testing.T) {
	catalog := newFakeCatalog(
		inventorydb.DefinedProduct{PID: 50191456, Name: "AAA STRIPLOIN", Category: "Beef", Pack: 1},
		inventorydb.DefinedProduct{PID: 50191457, Name: "AAA RIBEYE", Category: "Beef", Pack: 1},
	)
	store := newFakeStore()
	s := newTestScanner(t, testSettings(), catalog, store, nil)
	events := s.AddWatcher()
	s.Activate()

	ms := time.Millisecond
	for i := 0; i < 3; i++ {
		s.ProcessFrame(labelFrame(time.Duration(i)*300*ms, beefLabel...))
	}
	require.Equal(t, EventSaved, waitEvent(t, events).Kind)

	// Still locked, and the candidates keep accumulating
	require.Equal(t, OutcomeLocked, s.ProcessFrame(labelFrame(900*ms, beefLabel...)))
	require.Equal(t, OutcomeLocked, s.ProcessFrame(labelFrame(1800*ms, beefLabel...)))

	// Lock expires at 600+1500 = 2100ms. The buffers are emptied, so we need 3 fresh frames.
	next := []string{"ID: 50191457", "NET WT 3.10 kg", "SN 201234567891"}
	require.Equal(t, OutcomeUnstable, s.ProcessFrame(labelFrame(2100*ms, next...)))
	require.False(t, s.Status().Locked)
	require.Equal(t, []string{"50191457"}, s.Status().Candidates["primaryID"])
	require.Equal(t, OutcomeUnstable, s.ProcessFrame(labelFrame(2400*ms, next...)))
	require.Equal(t, OutcomeFired, s.ProcessFrame(labelFrame(2700*ms, next...)))
	require.Equal(t, EventSaved, waitEvent(t, events).Kind)
	require.Equal(t, 2, store.count())
}

func TestSameProductAfterCooldownIsNotResent(t *testing.T) {
	catalog := newFakeCatalog(inventorydb.DefinedProduct{PID: 50191456, Name: "AAA STRIPLOIN", Category: "Beef", Pack: 1})
	store := newFakeStore()
	s := newTestScanner(t, testSettings(), catalog, store, nil)
	events := s.AddWatcher()
	s.Activate()

	ms := time.Millisecond
	for i := 0; i < 3; i++ {
		s.ProcessFrame(labelFrame(time.Duration(i)*300*ms, beefLabel...))
	}
	require.Equal(t, EventSaved, waitEvent(t, events).Kind)

	for _, at := range []time.Duration{2100, 2400} {
		require.Equal(t, OutcomeUnstable, s.ProcessFrame(labelFrame(at*ms, beefLabel...)))
	}
	require.Equal(t, OutcomeDuplicateKey, s.ProcessFrame(labelFrame(2700*ms, beefLabel...)))
	require.Equal(t, 1, store.count())
}

func TestCatalogMissAllowsRescan(t *testing.T) {
	catalog := newFakeCatalog()
	store := newFakeStore()
	s := newTestScanner(t, testSettings(), catalog, store, nil)
	events := s.AddWatcher()
	s.Activate()

	ms := time.Millisecond
	for i := 0; i < 3; i++ {
		s.ProcessFrame(labelFrame(time.Duration(i)*300*ms, beefLabel...))
	}
	ev := waitEvent(t, events)
	require.Equal(t, EventNotInCatalog, ev.Kind)
	require.Equal(t, SeverityWarning, ev.Severity)
	require.Contains(t, ev.Message, "50191456")

	// The miss releases the last saved key, but not the lock
	require.Equal(t, OutcomeLocked, s.ProcessFrame(labelFrame(900*ms, beefLabel...)))
	require.Equal(t, "", s.Status().LastSaved)
	require.Equal(t, EventNotInCatalog, s.Status().LastEvent.Kind)

	// User defines the product, and scans the same label again
	catalog.lock.Lock()
	catalog.products[50191456] = []inventorydb.DefinedProduct{{PID: 50191456, Name: "AAA STRIPLOIN", Category: "Beef", Pack: 1}}
	catalog.lock.Unlock()

	require.Equal(t, OutcomeUnstable, s.ProcessFrame(labelFrame(2100*ms, beefLabel...)))
	require.Equal(t, OutcomeUnstable, s.ProcessFrame(labelFrame(2400*ms, beefLabel...)))
	require.Equal(t, OutcomeFired, s.ProcessFrame(labelFrame(2700*ms, beefLabel...)))
	require.Equal(t, EventSaved, waitEvent(t, events).Kind)
	require.Equal(t, 1, store.count())
}

func TestDuplicateSerial(t *testing.T) {
	catalog := newFakeCatalog(inventorydb.DefinedProduct{PID: 50191456, Name: "AAA STRIPLOIN", Category: "Beef", Pack: 1})
	store := newFakeStore()
	store.items["201234567890"] = &inventorydb.ScannedItem{PID: 50191456, Serial: "201234567890"}
	s := newTestScanner(t, testSettings(), catalog, store, nil)
	events := s.AddWatcher()
	s.Activate()

	for i := 0; i < 3; i++ {
		s.ProcessFrame(labelFrame(time.Duration(i)*300*time.Millisecond, beefLabel...))
	}
	ev := waitEvent(t, events)
	require.Equal(t, EventDuplicate, ev.Kind)
	require.Equal(t, "201234567890", ev.Serial)
	require.Equal(t, "Already recorded: serial 201234567890", ev.Message)
	require.Equal(t, 1, store.count())

	// A duplicate keeps the key, so the same label is not sent again
	s.ProcessFrame(labelFrame(900*time.Millisecond, beefLabel...))
	require.Equal(t, "50191456", s.Status().LastSaved)
}

func TestStoreFailure(t *testing.T) {
	catalog := newFakeCatalog(inventorydb.DefinedProduct{PID: 50191456, Name: "AAA STRIPLOIN", Category: "Beef", Pack: 1})
	store := newFakeStore()
	store.err = errors.New("disk full")
	s := newTestScanner(t, testSettings(), catalog, store, nil)
	events := s.AddWatcher()
	s.Activate()

	for i := 0; i < 3; i++ {
		s.ProcessFrame(labelFrame(time.Duration(i)*300*time.Millisecond, beefLabel...))
	}
	ev := waitEvent(t, events)
	require.Equal(t, EventStoreFailed, ev.Kind)
	require.Equal(t, SeverityError, ev.Severity)
	s.ProcessFrame(labelFrame(900*time.Millisecond, beefLabel...))
	require.Equal(t, "", s.Status().LastSaved)
}

func TestQueueFull(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.entered = make(chan int64, 10)
	catalog.block = make(chan struct{})
	settings := testSettings()
	settings.ResolveQueueSize = 1
	settings.LockDuration = time.Millisecond
	s := newTestScanner(t, settings, catalog, newFakeStore(), nil)
	events := s.AddWatcher()
	s.Activate()

	ms := time.Millisecond
	at := time.Duration(0)
	scan := func(pid string) FrameOutcome {
		var out FrameOutcome
		for i := 0; i < 3; i++ {
			out = s.ProcessFrame(labelFrame(at, "ID: "+pid, "2.50 kg"))
			at += 300 * ms
		}
		return out
	}

	require.Equal(t, OutcomeFired, scan("10000001"))
	// Wait until the resolver is stuck on the first job
	require.EqualValues(t, 10000001, <-catalog.entered)
	require.Equal(t, OutcomeFired, scan("10000002"))
	require.Equal(t, OutcomeQueueFull, scan("10000003"))

	ev := waitEvent(t, events)
	require.Equal(t, EventQueueOverflow, ev.Kind)
	require.Equal(t, "10000003", ev.PrimaryID)
	require.Equal(t, "10000002", s.Status().LastSaved)

	close(catalog.block)
	require.Equal(t, EventNotInCatalog, waitEvent(t, events).Kind)
	require.Equal(t, EventNotInCatalog, waitEvent(t, events).Kind)
}

func TestROIExcludesOutsideText(t *testing.T) {
	catalog := newFakeCatalog(inventorydb.DefinedProduct{PID: 50191456, Name: "AAA STRIPLOIN", Category: "Beef", Pack: 1})
	s := newTestScanner(t, testSettings(), catalog, newFakeStore(), nil)
	s.Activate()

	// The weight is printed far below the capture rectangle
	for i := 0; i < 5; i++ {
		f := labelFrame(time.Duration(i)*300*time.Millisecond, "ID: 50191456")
		f.Text.Lines = append(f.Text.Lines, ocr.TextLine{Text: "6.42 kg", CenterX: 200, CenterY: 700, Width: 100, Height: 30})
		require.Equal(t, OutcomeUnstable, s.ProcessFrame(f))
	}
	require.Equal(t, "50191456", s.Status().Stable["primaryID"])
	require.Empty(t, s.Status().Candidates["weight"])

	// Nothing at all inside the ROI
	f := labelFrame(1500 * time.Millisecond)
	f.Text.Lines = append(f.Text.Lines, ocr.TextLine{Text: "ID: 50191456", CenterX: 10, CenterY: 10, Width: 10, Height: 10})
	require.Equal(t, OutcomeNoLines, s.ProcessFrame(f))
}

func TestStallWarning(t *testing.T) {
	s := newTestScanner(t, testSettings(), newFakeCatalog(), newFakeStore(), nil)
	s.Activate()

	ms := time.Millisecond
	for at := time.Duration(0); at <= 3000*ms; at += 300 * ms {
		require.Equal(t, OutcomeUnstable, s.ProcessFrame(labelFrame(at, "KEEP REFRIGERATED")))
		require.Equal(t, "", s.Status().Warning, "at %v", at)
	}
	s.ProcessFrame(labelFrame(3300*ms, "KEEP REFRIGERATED"))
	require.Equal(t, WarnStall, s.Status().Warning)

	// Empty ROI also counts as a stall
	require.Equal(t, OutcomeNoLines, s.ProcessFrame(labelFrame(3600*ms)))
	require.Equal(t, WarnStall, s.Status().Warning)

	// Once any field is stable, the warning goes away
	for _, at := range []time.Duration{3900, 4200, 4500} {
		s.ProcessFrame(labelFrame(at*ms, "ID: 50191456"))
	}
	require.Equal(t, "", s.Status().Warning)
}

func checkerboard(width, height, square int, a, b uint8) *cimg.Image {
	img := cimg.NewImage(width, height, cimg.PixelFormatRGB)
	for y := 0; y < height; y++ {
		row := img.Pixels[y*img.Stride:]
		for x := 0; x < width; x++ {
			v := a
			if ((x/square)+(y/square))%2 == 1 {
				v = b
			}
			row[x*3] = v
			row[x*3+1] = v
			row[x*3+2] = v
		}
	}
	return img
}

func TestQualityGateAndRecognizer(t *testing.T) {
	label := labelFrame(0, beefLabel...).Text
	rec := ocr.NewScriptedRecognizer([]*ocr.Result{label})
	s := newTestScanner(t, testSettings(), newFakeCatalog(), newFakeStore(), rec)
	s.Activate()

	// A flat image is rejected before the recognizer sees it
	flat := &Frame{Image: checkerboard(screenW, screenH, 8, 128, 128), Time: baseTime}
	require.Equal(t, OutcomeRejected, s.ProcessFrame(flat))
	require.Equal(t, quality.WarnBlurry, s.Status().Warning)

	sharp := &Frame{Image: checkerboard(screenW, screenH, 8, 40, 200), Time: baseTime.Add(300 * time.Millisecond)}
	require.Equal(t, OutcomeUnstable, s.ProcessFrame(sharp))
	require.Equal(t, "", s.Status().Warning)
	require.Equal(t, []string{"50191456"}, s.Status().Candidates["primaryID"])

	// Script is exhausted
	sharp.Time = baseTime.Add(600 * time.Millisecond)
	require.Equal(t, OutcomeRecognizeErr, s.ProcessFrame(sharp))
}

func TestOutcomeString(t *testing.T) {
	require.Equal(t, "fired", OutcomeFired.String())
	require.Equal(t, "duplicateKey", OutcomeDuplicateKey.String())
	require.Equal(t, "unknown", FrameOutcome(99).String())
}

type blockingRecognizer struct {
	entered chan struct{}
	release chan struct{}
	result  *ocr.Result
}

func (b *blockingRecognizer) Recognize(img *cimg.Image) (*ocr.Result, error) {
	b.entered <- struct{}{}
	<-b.release
	return b.result, nil
}

// A frame that is still being analyzed when the session ends must not publish an active status
func TestDeactivateDuringFrame(t *testing.T) {
	rec := &blockingRecognizer{
		entered: make(chan struct{}),
		release: make(chan struct{}),
		result:  labelFrame(0, beefLabel...).Text,
	}
	s := newTestScanner(t, testSettings(), newFakeCatalog(), newFakeStore(), rec)
	s.Activate()

	done := make(chan FrameOutcome)
	go func() {
		done <- s.ProcessFrame(&Frame{Image: checkerboard(screenW, screenH, 8, 40, 200), Time: baseTime})
	}()
	<-rec.entered
	s.Deactivate()
	close(rec.release)
	require.Equal(t, OutcomeUnstable, <-done)

	require.False(t, s.Status().Active)
	require.False(t, s.IsActive())
}
