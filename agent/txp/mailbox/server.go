// Package mailbox is the HTTP mailbox server the txp.HTTPClient talks to.
// Messages are kept in memory and purged after their TTL.
package mailbox

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/findy-network/findy-vcx/agent/txp"
	"github.com/go-co-op/gocron"
	"github.com/golang/glog"
	"github.com/gorilla/mux"
)

const maxMessageSize = 1 << 20

// Server serves the mailbox routes:
//
//	POST   /mailbox/{did}       store a message
//	GET    /mailbox/{did}       list waiting messages
//	DELETE /mailbox/{did}/{id}  ack a message
type Server struct {
	Box *txp.Mem
	TTL time.Duration

	router *mux.Router
	cron   *gocron.Scheduler
	srv    *http.Server
}

// New creates a server. A zero TTL keeps messages until they are acked.
func New(ttl time.Duration, opts ...txp.Option) *Server {
	s := &Server{
		Box:    txp.NewMem(opts...),
		TTL:    ttl,
		router: mux.NewRouter(),
	}
	r := s.router.PathPrefix(txp.MailboxPath).Subrouter()
	r.HandleFunc("/{did}", s.post).Methods(http.MethodPost)
	r.HandleFunc("/{did}", s.get).Methods(http.MethodGet)
	r.HandleFunc("/{did}/{id}", s.ack).Methods(http.MethodDelete)
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) post(w http.ResponseWriter, r *http.Request) {
	did := mux.Vars(r)["did"]
	data, err := io.ReadAll(io.LimitReader(r.Body, maxMessageSize+1))
	if err != nil || len(data) == 0 || len(data) > maxMessageSize {
		http.Error(w, "bad message", http.StatusBadRequest)
		return
	}
	if err := s.Box.Send(r.Context(), did, data); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	did := mux.Vars(r)["did"]
	msgs, err := s.Box.Receive(r.Context(), did)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(msgs); err != nil {
		glog.Warningln("mailbox write:", err)
	}
}

func (s *Server) ack(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := s.Box.Ack(r.Context(), vars["did"], vars["id"]); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// StartPurge schedules the TTL purge. It's a no-op without a TTL.
func (s *Server) StartPurge() error {
	if s.TTL <= 0 {
		return nil
	}
	interval := s.TTL / 2
	if interval < time.Second {
		interval = time.Second
	}
	s.cron = gocron.NewScheduler(time.Now().Location())
	_, err := s.cron.Every(interval).Do(func() {
		if n := s.Box.Purge(s.TTL); n > 0 {
			glog.V(1).Infof("purged %d expired messages", n)
		}
	})
	if err != nil {
		return err
	}
	s.cron.StartAsync()
	return nil
}

// ListenAndServe serves until Shutdown.
func (s *Server) ListenAndServe(addr string) error {
	if err := s.StartPurge(); err != nil {
		return err
	}
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	glog.V(1).Infoln("mailbox listening", addr)
	err := s.srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.cron != nil {
		s.cron.Stop()
	}
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
