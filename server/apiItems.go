package server

import (
	"errors"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/cyclopcam/www"
	"github.com/julienschmidt/httprouter"
	"github.com/vizcount/vizcount/server/inventorydb"
	"github.com/vizcount/vizcount/server/syncstream"
	"gorm.io/gorm"
)

func (s *Server) httpProductsList(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	products, err := s.DB.Products(r.Context())
	www.Check(err)
	www.SendJSON(w, products)
}

func (s *Server) httpProductsAdd(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	p := inventorydb.DefinedProduct{}
	www.ReadJSON(w, r, &p, 64*1024)
	if p.Name == "" {
		www.PanicBadRequestf("Product name may not be empty")
	}
	if p.PID <= 0 {
		www.PanicBadRequestf("Invalid product ID %v", p.PID)
	}
	p.ID = 0
	www.Check(s.DB.AddProduct(r.Context(), &p))
	www.SendID(w, p.ID)
}

func (s *Server) httpItemsList(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	limit := www.QueryInt(r, "limit")
	if limit <= 0 || limit > 10000 {
		limit = 1000
	}
	items, err := s.DB.Items(r.Context(), limit)
	www.Check(err)
	www.SendJSON(w, items)
}

func (s *Server) httpItemsAlerts(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	alerts, err := s.DB.GetExpiryAlerts(r.Context(), time.Now())
	www.Check(err)
	www.SendJSON(w, alerts)
}

func (s *Server) httpItemsDelete(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	id := www.ParseID(params.ByName("id"))
	err := s.DB.DeleteItem(r.Context(), id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		www.PanicNotFound()
	}
	www.Check(err)
	www.SendOK(w)
}

// SYNC-SALES-FLOOR-REQUEST
type salesFloorRequest struct {
	PID        int64     `json:"pid"`
	Name       string    `json:"name"`
	Count      *int      `json:"count"`   // Products sold by the unit
	Weights    []float64 `json:"weights"` // Products sold by weight. One entry per package.
	ExpiryDate int64     `json:"expiryDate"`
}

func (s *Server) httpSalesFloorList(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	entries, err := s.DB.SalesFloor(r.Context(), www.ParseID(params.ByName("pid")))
	www.Check(err)
	www.SendJSON(w, entries)
}

func (s *Server) httpSalesFloorAdd(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	req := salesFloorRequest{}
	www.ReadJSON(w, r, &req, 64*1024)
	if req.PID <= 0 {
		www.PanicBadRequestf("Invalid product ID %v", req.PID)
	}
	var expiry time.Time
	if req.ExpiryDate != 0 {
		expiry = time.UnixMilli(req.ExpiryDate)
	}
	if req.Count != nil {
		if *req.Count <= 0 {
			www.PanicBadRequestf("Count must be positive")
		}
		entry, err := s.DB.AddSalesFloorCount(r.Context(), req.PID, req.Name, *req.Count, expiry)
		www.Check(err)
		www.SendJSON(w, []inventorydb.SalesFloorEntry{*entry})
		return
	}
	if len(req.Weights) == 0 {
		www.PanicBadRequestf("Either count or weights must be specified")
	}
	entries, err := s.DB.AddSalesFloorWeights(r.Context(), req.PID, req.Name, req.Weights, expiry)
	www.Check(err)
	www.SendJSON(w, entries)
}

func (s *Server) httpSync(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	if s.Sync == nil {
		www.PanicBadRequestf("%v", syncstream.ErrNotConfigured)
	}
	result, err := s.Sync.PushAll(r.Context(), s.DB)
	www.Check(err)
	www.SendJSON(w, result)
}

// Replace all scanned items with fake data, for demos
func (s *Server) httpDevDummy(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	count := www.QueryInt(r, "count")
	if count <= 0 {
		count = 50
	}
	if count > 5000 {
		www.PanicBadRequestf("count may not exceed 5000")
	}
	rng := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
	www.Check(s.DB.GenerateDummyData(r.Context(), count, time.Now(), rng))
	www.SendJSON(w, map[string]int{"count": count})
}
