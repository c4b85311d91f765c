package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"emotionbank.games/internal/persistence/indexdb"
	"emotionbank.games/internal/sim/world"
	"emotionbank.games/internal/transport/observer"
	"emotionbank.games/internal/transport/ws"
)

type routerDeps struct {
	world  *world.World
	index  *indexdb.SQLiteIndex
	logger *log.Logger

	enableAdmin bool
}

func newRouter(d routerDeps) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("ok"))
	}).Methods("GET")
	r.HandleFunc("/metrics", metricsHandler(d.world, d.index)).Methods("GET")

	r.HandleFunc("/v1/ws", ws.NewServer(d.world, d.logger).Handler())
	obsSrv := observer.NewServer(d.world, d.logger)
	r.HandleFunc("/v1/observer/bootstrap", obsSrv.BootstrapHandler())
	r.HandleFunc("/v1/observer/ws", obsSrv.WSHandler())

	if !d.enableAdmin {
		d.logger.Printf("admin endpoints disabled (EB_ENABLE_ADMIN_HTTP=false)")
		return r
	}

	// Local-only admin endpoints (do not affect simulation determinism).
	admin := r.PathPrefix("/admin/v1").Subrouter()
	admin.Use(loopbackOnly)
	admin.HandleFunc("/frame", func(rw http.ResponseWriter, r *http.Request) {
		writeJSON(rw, http.StatusOK, d.world.Frame())
	}).Methods("GET")
	admin.HandleFunc("/entities/{id}", func(rw http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		f := d.world.Frame()
		for _, e := range f.Entities {
			if e.ID == id {
				writeJSON(rw, http.StatusOK, map[string]any{"tick": f.Tick, "entity": e})
				return
			}
		}
		writeJSON(rw, http.StatusNotFound, map[string]any{"tick": f.Tick, "error": "unknown entity"})
	}).Methods("GET")
	admin.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		resp := struct {
			Tick    uint64             `json:"tick"`
			Metrics world.WorldMetrics `json:"metrics"`
			Index   indexdb.Stats      `json:"index"`
		}{
			Tick:    d.world.CurrentTick(),
			Metrics: d.world.Metrics(),
			Index:   d.index.Stats(),
		}
		writeJSON(rw, http.StatusOK, resp)
	}).Methods("GET")
	admin.HandleFunc("/snapshot", func(rw http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		tick, err := d.world.RequestSnapshot(ctx)
		if err != nil {
			writeJSON(rw, http.StatusServiceUnavailable, map[string]any{"ok": false, "tick": tick, "error": err.Error()})
			return
		}
		writeJSON(rw, http.StatusOK, map[string]any{"ok": true, "tick": tick})
	}).Methods("POST")
	admin.HandleFunc("/snapshots", func(rw http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		snaps, err := d.index.Snapshots(r.Context(), limit)
		if err != nil {
			writeJSON(rw, http.StatusServiceUnavailable, map[string]any{"error": err.Error()})
			return
		}
		writeJSON(rw, http.StatusOK, snaps)
	}).Methods("GET")
	admin.HandleFunc("/audits", func(rw http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		from, _ := strconv.ParseUint(q.Get("from_tick"), 10, 64)
		limit, _ := strconv.Atoi(q.Get("limit"))
		audits, err := d.index.Audits(r.Context(), indexdb.AuditQuery{
			Magnet:   q.Get("magnet"),
			Host:     q.Get("host"),
			FromTick: from,
			Limit:    limit,
		})
		if err != nil {
			writeJSON(rw, http.StatusServiceUnavailable, map[string]any{"error": err.Error()})
			return
		}
		writeJSON(rw, http.StatusOK, audits)
	}).Methods("GET")
	return r
}

// metricsHandler writes a minimal Prometheus exposition.
func metricsHandler(w *world.World, idx *indexdb.SQLiteIndex) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

		m := w.Metrics()
		tick := w.CurrentTick()
		if m.Tick != 0 {
			tick = m.Tick
		}

		gauge(rw, "emotionbank_world_tick", "Current world tick.")
		fmt.Fprintf(rw, "emotionbank_world_tick %d\n", tick)

		gauge(rw, "emotionbank_world_entities", "Tracked entities by kind.")
		fmt.Fprintf(rw, "emotionbank_world_entities{kind=%q} %d\n", "player", m.Players)
		fmt.Fprintf(rw, "emotionbank_world_entities{kind=%q} %d\n", "box", m.Boxes)
		fmt.Fprintf(rw, "emotionbank_world_entities{kind=%q} %d\n", "magnet", m.Magnets)

		gauge(rw, "emotionbank_world_observers", "Connected observer sessions.")
		fmt.Fprintf(rw, "emotionbank_world_observers %d\n", m.Observers)

		gauge(rw, "emotionbank_world_queue_depth", "Channel backlog depth.")
		fmt.Fprintf(rw, "emotionbank_world_queue_depth{queue=%q} %d\n", "inbox", m.QueueDepths.Inbox)
		fmt.Fprintf(rw, "emotionbank_world_queue_depth{queue=%q} %d\n", "join", m.QueueDepths.Join)
		fmt.Fprintf(rw, "emotionbank_world_queue_depth{queue=%q} %d\n", "leave", m.QueueDepths.Leave)
		fmt.Fprintf(rw, "emotionbank_world_queue_depth{queue=%q} %d\n", "contacts", m.QueueDepths.Contacts)

		fmt.Fprintf(rw, "# HELP emotionbank_contacts_dropped_total Collision events dropped on a full queue.\n")
		fmt.Fprintf(rw, "# TYPE emotionbank_contacts_dropped_total counter\n")
		fmt.Fprintf(rw, "emotionbank_contacts_dropped_total %d\n", m.ContactsDropped)

		gauge(rw, "emotionbank_world_step_ms", "Last tick step duration in milliseconds.")
		fmt.Fprintf(rw, "emotionbank_world_step_ms %.3f\n", m.StepMS)

		if idx == nil {
			return
		}
		s := idx.Stats()
		gauge(rw, "emotionbank_index_queue_depth", "Index writer backlog.")
		fmt.Fprintf(rw, "emotionbank_index_queue_depth %d\n", s.QueueDepth)
		fmt.Fprintf(rw, "# HELP emotionbank_index_dropped_total Index writes dropped on a full queue.\n")
		fmt.Fprintf(rw, "# TYPE emotionbank_index_dropped_total counter\n")
		fmt.Fprintf(rw, "emotionbank_index_dropped_total{kind=%q} %d\n", "tick", s.DropTickTotal)
		fmt.Fprintf(rw, "emotionbank_index_dropped_total{kind=%q} %d\n", "audit", s.DropAuditTotal)
		fmt.Fprintf(rw, "emotionbank_index_dropped_total{kind=%q} %d\n", "snapshot", s.DropSnapshotTotal)
	}
}

func gauge(rw http.ResponseWriter, name, help string) {
	fmt.Fprintf(rw, "# HELP %s %s\n", name, help)
	fmt.Fprintf(rw, "# TYPE %s gauge\n", name)
}

func loopbackOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(rw, r)
	})
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
