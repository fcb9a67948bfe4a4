package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	sse "github.com/alexandrevicenzi/go-sse"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/ikastra/dlprun/machine"
)

// engineAPI is the slice of machine.Engine the monitor needs.
type engineAPI interface {
	Snapshot() machine.Snapshot
	Updates() <-chan machine.Snapshot
}

type monitor struct {
	http.Handler
	eng    engineAPI
	cancel context.CancelFunc
	sse    *sse.Server
	log    zerolog.Logger
}

// newMonitor serves run state over HTTP: a JSON snapshot, a cancel
// hook, a state event stream, and the image directory.
func newMonitor(eng engineAPI, cancel context.CancelFunc, imageDir string, logger zerolog.Logger) *monitor {
	r := mux.NewRouter()
	m := &monitor{
		Handler: r,
		eng:     eng,
		cancel:  cancel,
		log:     logger.With().Str("component", "monitor").Logger(),
		sse: sse.NewServer(&sse.Options{
			Logger: log.New(io.Discard, "", 0),
		}),
	}

	r.HandleFunc("/api/status", m.status).Methods("GET")
	r.HandleFunc("/api/cancel", m.cancelRun).Methods("POST")
	r.PathPrefix("/events/").Handler(m.sse)
	r.PathPrefix("/images/").Handler(http.StripPrefix("/images", http.FileServer(http.Dir(imageDir))))

	go m.pump()

	return m
}

// pump forwards engine snapshots to SSE subscribers until the run ends.
func (m *monitor) pump() {
	for snap := range m.eng.Updates() {
		data, err := json.Marshal(snap)
		if err != nil {
			m.log.Error().Err(err).Msg("marshal snapshot")
			continue
		}
		m.sse.SendMessage("/events/state", sse.SimpleMessage(string(data)))
	}
}

func (m *monitor) status(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(m.eng.Snapshot()); err != nil {
		m.log.Error().Err(err).Msg("encode snapshot")
	}
}

func (m *monitor) cancelRun(w http.ResponseWriter, req *http.Request) {
	m.log.Info().Str("from", req.RemoteAddr).Msg("cancel requested")
	m.cancel()
	w.WriteHeader(http.StatusNoContent)
}

// startMonitor binds the monitor on addr and serves in the background.
func startMonitor(addr string, eng engineAPI, cancel context.CancelFunc, imageDir string, logger zerolog.Logger) *http.Server {
	m := newMonitor(eng, cancel, imageDir, logger)
	srv := &http.Server{
		Addr: addr,
		Handler: http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			m.log.Debug().Str("method", req.Method).Str("path", req.URL.Path).Str("from", req.RemoteAddr).Msg("request")
			m.ServeHTTP(w, req)
		}),
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.log.Error().Err(err).Msg("monitor server")
		}
	}()
	m.log.Info().Str("addr", addr).Msg("monitor listening")
	return srv
}
