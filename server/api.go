package server

import (
	"net/http"
	"time"

	"github.com/cyclopcam/www"
	"github.com/go-chi/httprate"
	"github.com/julienschmidt/httprouter"
)

func (s *Server) setupHttpRoutes() {
	logEveryRequest := false
	router := httprouter.New()

	handle := func(method, route string, h httprouter.Handle) {
		www.Handle(s.Log, router, method, route, func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
			if logEveryRequest {
				s.Log.Infof("HTTP %v %v", method, r.URL.Path)
			}
			h(w, r, params)
		})
	}

	// A unique rate limiter per endpoint. These are the endpoints that do a lot of IO.
	ratelimited := func(method, route string, h httprouter.Handle, requestLimit int, windowLength time.Duration) {
		limited := httprate.Limit(requestLimit, windowLength, httprate.WithKeyFuncs(httprate.KeyByIP))
		www.Handle(s.Log, router, method, route, func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
			limited(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				h(w, r, params)
			})).ServeHTTP(w, r)
		})
	}

	handle("GET", "/api/ping", s.httpPing)

	handle("GET", "/api/scanner/status", s.httpScannerStatus)
	handle("GET", "/api/scanner/events", s.httpScannerEvents)
	handle("POST", "/api/scanner/frame", s.httpScannerFrame)
	handle("POST", "/api/scanner/activate", s.httpScannerActivate)
	handle("POST", "/api/scanner/deactivate", s.httpScannerDeactivate)

	handle("GET", "/api/products", s.httpProductsList)
	handle("POST", "/api/products", s.httpProductsAdd)

	handle("GET", "/api/items", s.httpItemsList)
	handle("GET", "/api/items/alerts", s.httpItemsAlerts)
	handle("DELETE", "/api/items/:id", s.httpItemsDelete)

	handle("GET", "/api/salesfloor/:pid", s.httpSalesFloorList)
	handle("POST", "/api/salesfloor", s.httpSalesFloorAdd)

	ratelimited("POST", "/api/sync", s.httpSync, 6, time.Minute)
	ratelimited("POST", "/api/dev/dummy", s.httpDevDummy, 2, time.Minute)

	s.httpRouter = router
}

func (s *Server) httpPing(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	www.SendJSON(w, map[string]any{
		"time":    time.Now().UnixMilli(),
		"scanner": s.Scanner.IsActive(),
	})
}
