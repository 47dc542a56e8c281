package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/vizcount/vizcount/server/config"
	"github.com/vizcount/vizcount/server/inventorydb"
	"github.com/vizcount/vizcount/server/scanner"
	"github.com/vizcount/vizcount/server/syncstream"
)

// How often we push new records to the sync endpoint, if one is configured
const syncInterval = 5 * time.Minute

type Server struct {
	Log              logs.Log
	Config           *config.Config
	DB               *inventorydb.InventoryDB
	Scanner          *scanner.Scanner
	Sync             *syncstream.Client // nil if no sync endpoint is configured
	ShutdownComplete chan error         // Receives one value when Shutdown finishes

	frameLock    sync.Mutex // ProcessFrame must only run on one thread at a time
	signalIn     chan os.Signal
	httpServer   *http.Server
	httpRouter   *httprouter.Router
	wsUpgrader   websocket.Upgrader
	shutdownOnce sync.Once
	syncCancel   context.CancelFunc
	syncDone     chan struct{}
}

// NewServer opens the database and creates the scanner, but does not start listening
func NewServer(logger logs.Log, cfg *config.Config, opts scanner.Options) (*Server, error) {
	settings, err := cfg.ScannerSettings()
	if err != nil {
		return nil, err
	}
	db, err := inventorydb.NewInventoryDB(logger, cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if cfg.SeedCatalog {
		if _, err := db.SeedCatalog(context.Background()); err != nil {
			db.Close()
			return nil, err
		}
	}

	s := &Server{
		Log:              logger,
		Config:           cfg,
		DB:               db,
		Scanner:          scanner.NewScanner(logger, settings, db, db, opts),
		ShutdownComplete: make(chan error, 1),
		wsUpgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	if cfg.SyncURL != "" {
		s.Sync = syncstream.NewClient(logger, cfg.SyncURL, cfg.SyncToken, cfg.SyncBatchSize)
	}
	s.setupHttpRoutes()
	return s, nil
}

// StartSync runs the background sync loop, if a sync endpoint is configured
func (s *Server) StartSync() {
	if s.Sync == nil {
		s.Log.Infof("No sync endpoint configured")
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.syncCancel = cancel
	s.syncDone = make(chan struct{})
	go func() {
		defer close(s.syncDone)
		s.Sync.Run(ctx, s.DB, syncInterval)
	}()
}

// Handler returns the HTTP router, for use with httptest
func (s *Server) Handler() http.Handler {
	return s.httpRouter
}

// addr example: ":8080"
func (s *Server) ListenHTTP(addr string) error {
	s.Log.Infof("Listening on %v", addr)
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.httpRouter,
	}
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) ListenForKillSignals() {
	s.signalIn = make(chan os.Signal, 1)
	signal.Notify(s.signalIn, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig, ok := <-s.signalIn
		if ok {
			s.Log.Infof("Received OS signal '%v'", sig.String())
			s.Shutdown()
		}
	}()
}

// Shutdown stops the HTTP server, waits for the resolver to finish its queued jobs, and closes the database.
// It is safe to call more than once.
func (s *Server) Shutdown() {
	s.shutdownOnce.Do(func() {
		s.Log.Infof("Shutdown")
		if s.signalIn != nil {
			signal.Stop(s.signalIn)
			close(s.signalIn)
		}
		var err error
		if s.httpServer != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			err = s.httpServer.Shutdown(ctx)
			cancel()
		}
		if s.syncCancel != nil {
			s.syncCancel()
			<-s.syncDone
		}
		s.Scanner.Close()
		s.DB.Close()
		if err != nil {
			s.Log.Warnf("Shutdown complete, with error: %v", err)
		} else {
			s.Log.Infof("Shutdown complete")
		}
		s.ShutdownComplete <- err
	})
}
