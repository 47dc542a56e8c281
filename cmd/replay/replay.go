// replay feeds a captured scan session through the scanner, against a local sqlite database.
// This is how we tune the pipeline on real labels without standing in a cooler.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/akamensky/argparse"
	"github.com/bmharper/cimg/v2"
	"github.com/cyclopcam/logs"
	"github.com/vizcount/vizcount/pkg/gen"
	"github.com/vizcount/vizcount/pkg/ocr"
	"github.com/vizcount/vizcount/pkg/perfstats"
	"github.com/vizcount/vizcount/server/inventorydb"
	"github.com/vizcount/vizcount/server/scanner"
)

// Capture is a recorded scan session
type Capture struct {
	ScreenWidth  float32        `json:"screenWidth"`
	ScreenHeight float32        `json:"screenHeight"`
	Frames       []CaptureFrame `json:"frames"`
}

// CaptureFrame is one frame. If Image is set, the image goes through the quality check.
// Text is what the device recognized in the frame.
type CaptureFrame struct {
	TimeMS int64       `json:"timeMS"` // Relative to the start of the capture
	Width  int         `json:"width"`
	Height int         `json:"height"`
	Image  string      `json:"image"` // Path, relative to the capture file
	Text   *ocr.Result `json:"text"`
}

func check(err error) {
	if err != nil {
		fmt.Printf("%v\n", err)
		os.Exit(1)
	}
}

func printEvents(events chan *scanner.Event) {
	for _, ev := range gen.DrainChannelIntoSlice(events) {
		fmt.Printf("  %-8v %v\n", ev.Severity, ev.Message)
	}
}

// Replayer feeds captured frames through a scanner. The scanner's clock follows the capture.
type Replayer struct {
	Scanner   *scanner.Scanner
	Start     time.Time
	Dir       string // Image paths are relative to this
	LoadImage func(path string) (*cimg.Image, error)

	replayTime atomic.Int64
}

func NewReplayer(log logs.Log, settings scanner.Settings, catalog scanner.Catalog, store scanner.Store, start time.Time) *Replayer {
	r := &Replayer{
		Start:     start,
		LoadImage: cimg.ReadFile,
	}
	r.replayTime.Store(start.UnixMilli())
	r.Scanner = scanner.NewScanner(log, settings, catalog, store, scanner.Options{
		Clock: r.now,
	})
	return r
}

func (r *Replayer) now() time.Time {
	return time.UnixMilli(r.replayTime.Load())
}

// Process runs one captured frame through the scanner.
// The recognized text travels with the frame, so a frame that is throttled or
// rejected by the quality check never hands its text to a later frame.
func (r *Replayer) Process(cf *CaptureFrame) (scanner.FrameOutcome, error) {
	at := r.Start.Add(time.Duration(cf.TimeMS) * time.Millisecond)
	r.replayTime.Store(at.UnixMilli())
	frame := &scanner.Frame{
		Width:  cf.Width,
		Height: cf.Height,
		Text:   cf.Text,
		Time:   at,
	}
	if cf.Image != "" {
		img, err := r.LoadImage(filepath.Join(r.Dir, cf.Image))
		if err != nil {
			return scanner.OutcomeInactive, fmt.Errorf("Failed to load frame image %v: %w", cf.Image, err)
		}
		frame.Image = img
	}
	return r.Scanner.ProcessFrame(frame), nil
}

func main() {
	parser := argparse.NewParser("replay", "Replay a captured scan session through the scanner")
	captureFile := parser.String("i", "input", &argparse.Options{Help: "Capture file (JSON)", Required: true})
	dbFile := parser.String("", "db", &argparse.Options{Help: "Database file", Default: "replay.sqlite"})
	fresh := parser.Flag("", "fresh", &argparse.Options{Help: "Delete the database before starting", Default: false})
	verbose := parser.Flag("v", "verbose", &argparse.Options{Help: "Print the outcome of every frame", Default: false})
	err := parser.Parse(os.Args)
	if err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	logger, err := logs.NewLog()
	check(err)

	raw, err := os.ReadFile(*captureFile)
	check(err)
	capture := Capture{}
	check(json.Unmarshal(raw, &capture))
	if capture.ScreenWidth == 0 || capture.ScreenHeight == 0 {
		capture.ScreenWidth, capture.ScreenHeight = 400, 800
	}

	if *fresh {
		os.Remove(*dbFile)
	}
	db, err := inventorydb.NewInventoryDB(logger, *dbFile)
	check(err)
	defer db.Close()
	_, err = db.SeedCatalog(context.Background())
	check(err)

	r := NewReplayer(logger, scanner.DefaultSettings(capture.ScreenWidth, capture.ScreenHeight), db, db, time.Now())
	r.Dir = filepath.Dir(*captureFile)
	sc := r.Scanner
	events := sc.AddWatcher()
	sc.Activate()

	counts := map[scanner.FrameOutcome]int{}
	frameTime := perfstats.TimeAccumulator{}
	for i := range capture.Frames {
		cf := &capture.Frames[i]
		t0 := time.Now()
		outcome, err := r.Process(cf)
		check(err)
		frameTime.AddSample(time.Since(t0))
		counts[outcome]++
		if *verbose {
			st := sc.Status()
			fmt.Printf("%4d %6d ms %-14v %v\n", i, cf.TimeMS, outcome, st.Warning)
		}
		printEvents(events)
	}

	// Wait for the resolver to finish
	sc.Close()
	printEvents(events)

	fmt.Printf("Frames: %v\n", len(capture.Frames))
	for o := scanner.OutcomeInactive; o <= scanner.OutcomeFired; o++ {
		if counts[o] != 0 {
			fmt.Printf("  %-14v %v\n", o, counts[o])
		}
	}
	fmt.Printf("Average frame: %v\n", frameTime.Average())
	fmt.Printf("Pipeline: %v\n", sc.Stats())
}
