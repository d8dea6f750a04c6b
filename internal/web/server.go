// Package web serves the live fix state to display clients as JSON.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"satscope/internal/mapproj"
	"satscope/internal/metrics"
	"satscope/internal/statebus"
)

// Deps are the server's collaborators. Only Bus is required.
type Deps struct {
	Bus    *statebus.Bus
	GNSS   GNSSStatus
	Status *Status
	Logs   *LogBuffer
	Map    MapConfig

	Metrics *metrics.Collector
	// Gatherer backs /metrics; nil serves the default registry.
	Gatherer prometheus.Gatherer
}

func Handler(d Deps) http.Handler {
	if d.Bus == nil {
		d.Bus = statebus.New(nil)
	}
	if d.Status == nil {
		d.Status = NewStatus()
	}
	mux := http.NewServeMux()

	mux.HandleFunc("/api/status", getOnly(func(w http.ResponseWriter, r *http.Request) {
		st, v := d.Bus.Snapshot()
		writeJSON(w, d.Status.Snapshot(time.Now().UTC(), d.GNSS, v, len(st.Satellites)))
	}))

	mux.HandleFunc("/api/state", getOnly(func(w http.ResponseWriter, r *http.Request) {
		st, v := d.Bus.Snapshot()
		writeJSON(w, BuildState(st, v, d.Map))
	}))

	mux.HandleFunc("/api/trails", getOnly(func(w http.ResponseWriter, r *http.Request) {
		st, v := d.Bus.Snapshot()
		writeJSON(w, BuildTrails(st, v, d.Map))
	}))

	mux.HandleFunc("/api/viewport", getOnly(func(w http.ResponseWriter, r *http.Request) {
		opts, available, err := viewportQuery(r, d.Map)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		vp, err := mapproj.ComputeViewport(opts, d.Map.base(), available)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, mapproj.ErrInvalidScaleMethod) {
				status = http.StatusBadRequest
			}
			http.Error(w, err.Error(), status)
			return
		}
		writeJSON(w, ViewportResponse{Viewport: vp, ViewBox: vp.ViewBox(), Base: d.Map.base()})
	}))

	mux.Handle("/api/stream", streamHandler(d.Bus, d.Map))

	if d.Logs != nil {
		mux.Handle("/api/logs", d.Logs.Handler())
	}

	if d.Gatherer != nil {
		mux.Handle("/metrics", metrics.HandlerFor(d.Gatherer))
	} else {
		mux.Handle("/metrics", metrics.Handler())
	}

	mux.HandleFunc("/", getOnly(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		st, v := d.Bus.Snapshot()
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = fmt.Fprintf(w, "<!doctype html><html><head><meta charset=\"utf-8\"><title>satscope</title></head><body>")
		_, _ = fmt.Fprintf(w, "<h1>satscope</h1>")
		_, _ = fmt.Fprintf(w, "<pre>version=%d\nfix_utc=%s\nsatellites=%d\ninterference=%v</pre>",
			v, st.Date.UTC().Format(time.RFC3339), len(st.Satellites), st.Interference,
		)
		_, _ = fmt.Fprintf(w, "<ul>")
		for _, p := range []string{"/api/state", "/api/trails", "/api/viewport", "/api/stream", "/api/status", "/api/logs", "/metrics"} {
			_, _ = fmt.Fprintf(w, "<li><a href=\"%s\">%s</a></li>", p, p)
		}
		_, _ = fmt.Fprintf(w, "</ul></body></html>")
	}))

	return d.Metrics.Middleware(mux)
}

type ViewportResponse struct {
	Viewport mapproj.Viewport `json:"viewport"`
	ViewBox  string           `json:"view_box"`
	Base     mapproj.Size     `json:"base"`
}

// viewportQuery overlays query parameters on the configured view:
// scale_factor, scale_method, focus_lat, focus_long, width, height, hide_key.
func viewportQuery(r *http.Request, m MapConfig) (mapproj.Options, mapproj.Size, error) {
	q := r.URL.Query()
	opts := m.View
	available := m.Available

	floats := []struct {
		key string
		dst *float64
	}{
		{"scale_factor", &opts.ScaleFactor},
		{"focus_lat", &opts.FocusLat},
		{"focus_long", &opts.FocusLong},
		{"width", &available.Width},
		{"height", &available.Height},
	}
	for _, f := range floats {
		s := strings.TrimSpace(q.Get(f.key))
		if s == "" {
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return opts, available, fmt.Errorf("%s must be a finite number", f.key)
		}
		*f.dst = v
	}
	if s := strings.TrimSpace(q.Get("scale_method")); s != "" {
		opts.ScaleMethod = mapproj.ScaleMethod(s)
	}
	if s := strings.TrimSpace(q.Get("hide_key")); s != "" {
		v, err := strconv.ParseBool(s)
		if err != nil {
			return opts, available, fmt.Errorf("hide_key must be a boolean")
		}
		opts.HideKey = v
	}

	if opts.ScaleFactor <= 0 {
		return opts, available, fmt.Errorf("scale_factor must be > 0")
	}
	if available.Width <= 0 || available.Height <= 0 {
		return opts, available, fmt.Errorf("width and height must be > 0")
	}
	return opts, available, nil
}

func getOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h(w, r)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		http.Error(w, "marshal failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(b)
	_, _ = w.Write([]byte("\n"))
}

func Serve(ctx context.Context, listenAddr string, d Deps) error {
	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           Handler(d),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// /api/stream clears its own write deadline.
		WriteTimeout:   10 * time.Second,
		IdleTimeout:    30 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1 MiB
		// Streams end when ctx does, so Shutdown is not held open by them.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
