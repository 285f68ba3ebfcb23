package net

import (
	"encoding/json"
	nethttp "net/http"
	"net/http/pprof"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/process"

	"routesim/server"
	"routesim/server/internal/net/ws"
	"routesim/server/internal/observability"
	"routesim/server/internal/routes"
	"routesim/server/internal/telemetry"
	"routesim/server/logging"
)

type HTTPHandlerConfig struct {
	ClientDir     string
	Logger        telemetry.Logger
	Publisher     logging.Publisher
	Routes        routes.Repository
	Observability observability.Config
}

func NewHTTPHandler(hub *server.Hub, cfg HTTPHandlerConfig) nethttp.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.WrapLogger(nil)
	}

	mux := nethttp.NewServeMux()

	mux.HandleFunc("GET /health", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})

	if cfg.Observability.EnableDiagnostics {
		stats := newProcessStats()
		mux.HandleFunc("GET /diagnostics", func(w nethttp.ResponseWriter, r *nethttp.Request) {
			payload := struct {
				Status       string               `json:"status"`
				ServerTime   int64                `json:"serverTime"`
				TickInterval int64                `json:"tickIntervalMillis"`
				Sessions     int                  `json:"sessions"`
				Rooms        []server.RoomSummary `json:"rooms"`
				Telemetry    map[string]uint64    `json:"telemetry"`
				Process      processSnapshot      `json:"process"`
			}{
				Status:       "ok",
				ServerTime:   time.Now().UnixMilli(),
				TickInterval: hub.Config().TickInterval.Milliseconds(),
				Sessions:     hub.SessionCount(),
				Rooms:        hub.Snapshot(),
				Telemetry:    hub.Telemetry(),
				Process:      stats.snapshot(),
			}
			writeJSON(w, nethttp.StatusOK, payload)
		})
	}

	if cfg.Observability.EnablePprofTrace {
		mux.HandleFunc("GET /debug/pprof/", pprof.Index)
		mux.HandleFunc("GET /debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("GET /debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("GET /debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("GET /debug/pprof/trace", pprof.Trace)
	}

	if cfg.Routes != nil {
		api := &routeAPI{repo: cfg.Routes, logger: logger}
		mux.HandleFunc("GET /api/routes", api.list)
		mux.HandleFunc("POST /api/routes", api.create)
		mux.HandleFunc("POST /api/routes/import", api.importGeoJSON)
		mux.HandleFunc("GET /api/routes/{id}", api.get)
		mux.HandleFunc("PUT /api/routes/{id}", api.update)
		mux.HandleFunc("DELETE /api/routes/{id}", api.delete)
	}

	rooms := &roomAPI{hub: hub}
	mux.HandleFunc("GET /api/simulate/rooms", rooms.list)
	mux.HandleFunc("POST /api/simulate/{routeId}/{action}", rooms.control)

	wsHandler := ws.NewHandler(hub, ws.HandlerConfig{Logger: logger, Publisher: cfg.Publisher})
	mux.HandleFunc("GET /ws", wsHandler.Handle)

	if cfg.ClientDir != "" {
		fs := nethttp.FileServer(nethttp.Dir(cfg.ClientDir))
		mux.Handle("/", fs)
	}

	return mux
}

type processSnapshot struct {
	PID        int     `json:"pid"`
	RSSBytes   uint64  `json:"rssBytes"`
	CPUPercent float64 `json:"cpuPercent"`
	Threads    int32   `json:"threads"`
	Goroutines int     `json:"goroutines"`
	Error      string  `json:"error,omitempty"`
}

type processStats struct {
	proc *process.Process
	err  error
}

func newProcessStats() *processStats {
	proc, err := process.NewProcess(int32(os.Getpid()))
	return &processStats{proc: proc, err: err}
}

func (p *processStats) snapshot() processSnapshot {
	snap := processSnapshot{PID: os.Getpid(), Goroutines: runtime.NumGoroutine()}
	if p.err != nil {
		snap.Error = p.err.Error()
		return snap
	}
	if mem, err := p.proc.MemoryInfo(); err == nil {
		snap.RSSBytes = mem.RSS
	} else {
		snap.Error = err.Error()
	}
	if cpu, err := p.proc.CPUPercent(); err == nil {
		snap.CPUPercent = cpu
	}
	if threads, err := p.proc.NumThreads(); err == nil {
		snap.Threads = threads
	}
	return snap
}

func writeJSON(w nethttp.ResponseWriter, status int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		httpError(w, "failed to encode", nethttp.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError renders the JSON error body used by the REST API.
func writeError(w nethttp.ResponseWriter, status int, message string) {
	writeJSON(w, status, struct {
		Error string `json:"error"`
	}{Error: message})
}

func httpError(w nethttp.ResponseWriter, msg string, code int) {
	nethttp.Error(w, msg, code)
}
