package peerrpc

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/sirupsen/logrus"

	"github.com/skirmishlabs/vault/domain"
	"github.com/skirmishlabs/vault/internal/logging"
)

// Server exposes a Handler over HTTP, one route per RPC, per spec.md §4.2.
type Server struct {
	handler   Handler
	validator PeerValidator
	router    *httprouter.Router
	cache     *idempotenceCache
	log       *logrus.Entry
}

// NewServer builds a Server. The idempotence LRU holds 4096 entries;
// spec.md doesn't name a value, 4096 comfortably covers several minutes of
// traffic at the kind of rate a card-collection backend sees.
func NewServer(handler Handler, validator PeerValidator) *Server {
	s := &Server{
		handler:   handler,
		validator: validator,
		cache:     newIdempotenceCache(4096),
		log:       logging.New("peerrpc.server"),
	}
	r := httprouter.New()
	r.POST("/prepare", s.servePrepare)
	r.POST("/decide", s.serveDecide)
	r.POST("/status", s.serveStatus)
	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) authenticate(w http.ResponseWriter, r *http.Request) (peerID string, ok bool) {
	peerID = r.Header.Get(headerPeerID)
	if peerID == "" || !s.validator.IsPeer(peerID) {
		http.Error(w, "unknown peer", http.StatusUnauthorized)
		return "", false
	}
	return peerID, true
}

func (s *Server) servePrepare(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	peerID, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	var req domain.PrepareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if cached, ok := s.cache.get(req.TxID, phasePrepare); ok {
		writeJSON(w, cached)
		return
	}
	resp, err := s.handler.HandlePrepare(r.Context(), req)
	if err != nil {
		s.log.WithFields(logrus.Fields{"peer": peerID, "tx": req.TxID, "err": err}).Warn("prepare failed")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.cache.put(req.TxID, phasePrepare, resp)
	writeJSON(w, resp)
}

func (s *Server) serveDecide(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	peerID, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	var req domain.DecideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if cached, ok := s.cache.get(req.TxID, phaseDecide); ok {
		writeJSON(w, cached)
		return
	}
	resp, err := s.handler.HandleDecide(r.Context(), req)
	if err != nil {
		s.log.WithFields(logrus.Fields{"peer": peerID, "tx": req.TxID, "err": err}).Warn("decide failed")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.cache.put(req.TxID, phaseDecide, resp)
	writeJSON(w, resp)
}

func (s *Server) serveStatus(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if _, ok := s.authenticate(w, r); !ok {
		return
	}
	var req domain.StatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	// STATUS is read-only and always re-evaluated; nothing to cache.
	resp, err := s.handler.HandleStatus(r.Context(), req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, resp)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
