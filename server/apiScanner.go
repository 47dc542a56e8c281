package server

import (
	"net/http"
	"time"

	"github.com/bmharper/cimg/v2"
	"github.com/cyclopcam/www"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/vizcount/vizcount/pkg/ocr"
	"github.com/vizcount/vizcount/server/scanner"
)

// A frame sent by the device, which has already run text recognition.
// If Image is populated (JPEG), then it goes through the quality check, and if Text is nil,
// then it also goes through our own recognizer.
// SYNC-SCANNER-FRAME
type frameRequest struct {
	Width  int         `json:"width"`
	Height int         `json:"height"`
	TimeMS int64       `json:"timeMS"` // Capture time in unix milliseconds. Zero means "now".
	Text   *ocr.Result `json:"text"`
	Image  []byte      `json:"image"` // JPEG
}

type frameResponse struct {
	Outcome string          `json:"outcome"`
	Status  *scanner.Status `json:"status"`
}

type scannerStatusResponse struct {
	Status       *scanner.Status    `json:"status"`
	Stats        map[string]float64 `json:"stats"`
	RecentEvents []scanner.Event    `json:"recentEvents"`
}

func (s *Server) httpScannerStatus(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	www.SendJSON(w, &scannerStatusResponse{
		Status:       s.Scanner.Status(),
		Stats:        s.Scanner.Stats().Snapshot(),
		RecentEvents: s.Scanner.RecentEvents(),
	})
}

func (s *Server) httpScannerActivate(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	s.frameLock.Lock()
	s.Scanner.Activate()
	s.frameLock.Unlock()
	www.SendOK(w)
}

func (s *Server) httpScannerDeactivate(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	s.frameLock.Lock()
	s.Scanner.Deactivate()
	s.frameLock.Unlock()
	www.SendOK(w)
}

func (s *Server) httpScannerFrame(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	req := frameRequest{}
	www.ReadJSON(w, r, &req, 16*1024*1024)
	if req.Text == nil && len(req.Image) == 0 {
		www.PanicBadRequestf("Frame must include text or an image")
	}
	frame := &scanner.Frame{
		Width:  req.Width,
		Height: req.Height,
		Text:   req.Text,
	}
	if req.TimeMS != 0 {
		frame.Time = time.UnixMilli(req.TimeMS)
	}
	if len(req.Image) != 0 {
		img, err := cimg.Decompress(req.Image)
		if err != nil {
			www.PanicBadRequestf("Invalid image: %v", err)
		}
		frame.Image = img
		if frame.Width == 0 || frame.Height == 0 {
			frame.Width, frame.Height = img.Width, img.Height
		}
	}

	s.frameLock.Lock()
	outcome := s.Scanner.ProcessFrame(frame)
	s.frameLock.Unlock()

	www.SendJSON(w, &frameResponse{
		Outcome: outcome.String(),
		Status:  s.Scanner.Status(),
	})
}

// Stream resolver events to the client as JSON text messages, until the client disconnects.
// SYNC-SCANNER-EVENT
func (s *Server) httpScannerEvents(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	// Register before the upgrade, so that the client doesn't miss any events that happen
	// after it sees the connection succeed.
	events := s.Scanner.AddWatcher()
	defer s.Scanner.RemoveWatcher(events)

	c, err := s.wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Log.Errorf("Scanner events websocket upgrade failed: %v", err)
		return
	}
	defer c.Close()

	// We don't expect anything from the client, but we must read to notice when it goes away
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		c.SetReadLimit(512)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(30 * time.Second)
	defer ping.Stop()
	for {
		select {
		case <-closed:
			return
		case ev := <-events:
			c.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.WriteJSON(ev); err != nil {
				s.Log.Infof("Scanner events websocket closed: %v", err)
				return
			}
		case <-ping.C:
			if err := c.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
				return
			}
		}
	}
}
