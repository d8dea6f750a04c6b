package web

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"satscope/internal/fix"
	"satscope/internal/gps"
	"satscope/internal/mapproj"
	"satscope/internal/metrics"
	"satscope/internal/satellite"
	"satscope/internal/statebus"
)

var fixTime = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func testState() *fix.State {
	st := fix.New()
	st.Date = fixTime
	st.Interference = 20
	st.Satellites = satellite.Set{
		{PRN: 11, Constellation: "GA"}: {
			ID:        satellite.ID{PRN: 11, Constellation: "GA"},
			Elevation: 45,
			Azimuth:   0,
			SNR:       38,
			LastSeen:  fixTime,
			History:   []satellite.Sample{{At: fixTime, Elevation: 45, Azimuth: 0}},
		},
		{PRN: 3, Constellation: "GP"}: {
			ID:        satellite.ID{PRN: 3, Constellation: "GP"},
			Elevation: 90,
			LastSeen:  fixTime,
		},
	}
	return st
}

func getJSON(t *testing.T, url string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
			t.Fatalf("content-type=%q", ct)
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode json: %v", err)
		}
	}
	return resp
}

func TestAPIState(t *testing.T) {
	ts := httptest.NewServer(Handler(Deps{Bus: statebus.New(testState())}))
	defer ts.Close()

	var got StateResponse
	resp := getJSON(t, ts.URL+"/api/state", &got)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code=%d", resp.StatusCode)
	}
	if got.Interference != 20 || got.DateUTC != "2024-05-01T10:00:00Z" {
		t.Fatalf("state=%+v", got)
	}
	if len(got.Satellites) != 2 {
		t.Fatalf("satellites=%d want 2", len(got.Satellites))
	}

	// Sorted by constellation then PRN: GA before GP.
	ga := got.Satellites[0]
	if ga.PRN != 11 || ga.Network != "Galileo" || ga.HistoryLen != 1 {
		t.Fatalf("first satellite=%+v", ga)
	}
	if math.Abs(ga.Lat-33.8157) > 1e-3 || math.Abs(ga.Long) > 1e-9 {
		t.Fatalf("ground point=(%v,%v)", ga.Lat, ga.Long)
	}
	want := mapproj.ProjectToMap(ga.Lat, ga.Long, BaseMapSize)
	if math.Abs(ga.Map.X-want.X) > 1e-9 || math.Abs(ga.Map.Y-want.Y) > 1e-9 {
		t.Fatalf("map=%+v want %+v", ga.Map, want)
	}

	// Zenith satellite sits on the observer.
	gp := got.Satellites[1]
	if gp.Lat != 0 || gp.Long != 0 || gp.Map != got.ObserverMap {
		t.Fatalf("zenith satellite=%+v observer=%+v", gp, got.ObserverMap)
	}
	if got.MarkerRadius != 30 {
		t.Fatalf("marker radius=%v", got.MarkerRadius)
	}
}

func TestBuildState_SharedPRNs(t *testing.T) {
	st := testState()
	st.Satellites[satellite.ID{PRN: 11, Constellation: "GP"}] = satellite.Tracked{
		ID:        satellite.ID{PRN: 11, Constellation: "GP"},
		Elevation: 30,
		LastSeen:  fixTime,
	}
	got := BuildState(st.Clone(), 1, MapConfig{})
	if len(got.SharedPRNs) != 1 {
		t.Fatalf("shared prns=%v", got.SharedPRNs)
	}
	if nets := got.SharedPRNs[11]; len(nets) != 2 || nets[0] != "Galileo" || nets[1] != "GPS" {
		t.Fatalf("prn 11 networks=%v", nets)
	}
}

func TestAPITrails(t *testing.T) {
	bus := statebus.New(testState())
	ts := httptest.NewServer(Handler(Deps{Bus: bus, Map: MapConfig{View: mapproj.Options{ScaleFactor: 2}}}))
	defer ts.Close()

	var got TrailsResponse
	getJSON(t, ts.URL+"/api/trails", &got)
	if got.Hidden || got.StrokeWidth != 5 {
		t.Fatalf("trails=%+v", got)
	}
	// Only satellites with sampled history get a trail.
	if len(got.Trails) != 1 || got.Trails[0].PRN != 11 {
		t.Fatalf("trails=%+v", got.Trails)
	}
	lines := got.Trails[0].Polylines
	if len(lines) != 1 || len(lines[0]) != 2 {
		t.Fatalf("polylines=%+v", lines)
	}
	// Sampled at the fix time, so no rotation: both points coincide.
	if math.Abs(lines[0][0].X-lines[0][1].X) > 1e-9 {
		t.Fatalf("points=%+v", lines[0])
	}

	hidden := httptest.NewServer(Handler(Deps{Bus: bus, Map: MapConfig{HideTrails: true}}))
	defer hidden.Close()
	var none TrailsResponse
	getJSON(t, hidden.URL+"/api/trails", &none)
	if !none.Hidden || len(none.Trails) != 0 {
		t.Fatalf("hidden trails=%+v", none)
	}
}

func TestBuildTrails_OlderSamplesDriftWest(t *testing.T) {
	st := testState()
	id := satellite.ID{PRN: 11, Constellation: "GA"}
	sat := st.Satellites[id]
	sat.History = []satellite.Sample{{At: fixTime.Add(-time.Hour), Elevation: 45, Azimuth: 0}}
	st.Satellites[id] = sat

	resp := BuildTrails(*st, 1, MapConfig{})
	pts := resp.Trails[0].Polylines[0]
	if len(pts) != 2 {
		t.Fatalf("points=%+v", pts)
	}
	// One hour of Earth rotation is about 15 degrees of longitude.
	degPerUnit := 360 / BaseMapSize.Width
	if d := (pts[1].X - pts[0].X) * degPerUnit; math.Abs(d-15.04) > 0.05 {
		t.Fatalf("drift=%v degrees", d)
	}
}

func TestAPIViewport(t *testing.T) {
	m := MapConfig{
		Base:      mapproj.Size{Width: 2000, Height: 1000},
		Available: mapproj.Size{Width: 1000, Height: 500},
		View: mapproj.Options{
			ScaleFactor: 1,
			ScaleMethod: mapproj.Fit,
			FocusLong:   10,
			HideKey:     true,
		},
	}
	ts := httptest.NewServer(Handler(Deps{Map: m}))
	defer ts.Close()

	var got ViewportResponse
	getJSON(t, ts.URL+"/api/viewport", &got)
	if got.ViewBox != "0 0 2000 1000" || got.Viewport.Legend != nil {
		t.Fatalf("viewport=%+v", got)
	}

	getJSON(t, ts.URL+"/api/viewport?scale_factor=2", &got)
	if got.ViewBox != "500 250 1000 500" {
		t.Fatalf("zoomed view box=%q", got.ViewBox)
	}

	getJSON(t, ts.URL+"/api/viewport?hide_key=false&scale_factor=2", &got)
	if got.Viewport.Legend == nil || got.Viewport.Legend.Scale != 0.5 {
		t.Fatalf("legend=%+v", got.Viewport.Legend)
	}

	tests := []struct {
		name  string
		query string
	}{
		{"bad method", "scale_method=zoom"},
		{"bad number", "focus_lat=north"},
		{"zero scale", "scale_factor=0"},
		{"bad bool", "hide_key=maybe"},
		{"no area", "width=0"},
		{"nan scale", "scale_factor=NaN"},
		{"infinite focus", "focus_long=Inf"},
		{"infinite width", "width=-Inf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := getJSON(t, ts.URL+"/api/viewport?"+tt.query, nil)
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status code=%d want 400", resp.StatusCode)
			}
		})
	}
}

func TestAPI_MethodNotAllowed(t *testing.T) {
	ts := httptest.NewServer(Handler(Deps{}))
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/state", "application/json", strings.NewReader("{}"))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed || resp.Header.Get("Allow") != http.MethodGet {
		t.Fatalf("status code=%d allow=%q", resp.StatusCode, resp.Header.Get("Allow"))
	}
}

type fakeGNSS struct{ st gps.Status }

func (f fakeGNSS) Status() gps.Status { return f.st }

func TestAPIStatus(t *testing.T) {
	st := NewStatus()
	st.SetStatic(map[string]any{"interference_date": "2024-05-01"})
	ts := httptest.NewServer(Handler(Deps{
		Bus:    statebus.New(testState()),
		GNSS:   fakeGNSS{gps.Status{Enabled: true, Source: "replay", Sentences: 5}},
		Status: st,
	}))
	defer ts.Close()

	var got StatusSnapshot
	getJSON(t, ts.URL+"/api/status", &got)
	if got.Service != "satscope" || got.Satellites != 2 {
		t.Fatalf("status=%+v", got)
	}
	if got.GNSS.Source != "replay" || got.GNSS.Sentences != 5 {
		t.Fatalf("gnss=%+v", got.GNSS)
	}
	if got.Static["interference_date"] != "2024-05-01" {
		t.Fatalf("static=%+v", got.Static)
	}
}

func TestAPILogs(t *testing.T) {
	logs := NewLogBuffer(10)
	l := log.New(logs, "", 0)
	l.Printf("gps enabled source=replay")
	l.Printf("web listening addr=:8080")
	l.Printf("gps replay finished")

	ts := httptest.NewServer(Handler(Deps{Logs: logs}))
	defer ts.Close()

	var got LogsResponse
	getJSON(t, ts.URL+"/api/logs?match=gps", &got)
	if len(got.Lines) != 2 || got.Lines[0] != "gps enabled source=replay" || got.Lines[1] != "gps replay finished" {
		t.Fatalf("lines=%q", got.Lines)
	}

	getJSON(t, ts.URL+"/api/logs?tail=1", &got)
	if len(got.Lines) != 1 || got.Lines[0] != "gps replay finished" {
		t.Fatalf("tail lines=%q", got.Lines)
	}

	resp := getJSON(t, ts.URL+"/api/logs?tail=0", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status code=%d want 400", resp.StatusCode)
	}
}

func TestLogBuffer_PartialWritesAndDrops(t *testing.T) {
	b := NewLogBuffer(2)
	_, _ = b.Write([]byte("one\ntw"))
	_, _ = b.Write([]byte("o\nthree\n"))

	lines, dropped := b.Snapshot(10, "")
	if dropped != 1 || len(lines) != 2 || lines[0] != "two" || lines[1] != "three" {
		t.Fatalf("lines=%q dropped=%d", lines, dropped)
	}
}

func TestAPIStream(t *testing.T) {
	bus := statebus.New(nil)
	ts := httptest.NewServer(Handler(Deps{Bus: bus}))
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/stream", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get stream: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content-type=%q", ct)
	}

	r := bufio.NewReader(resp.Body)
	nextState := func() StateResponse {
		t.Helper()
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				t.Fatalf("read stream: %v", err)
			}
			if data, ok := strings.CutPrefix(strings.TrimSpace(line), "data: "); ok {
				var st StateResponse
				if err := json.Unmarshal([]byte(data), &st); err != nil {
					t.Fatalf("decode event: %v", err)
				}
				return st
			}
		}
	}

	if first := nextState(); first.Version != 0 {
		t.Fatalf("first version=%d want 0", first.Version)
	}

	bus.Update(func(st *fix.State) bool {
		st.Interference = 42
		return true
	})
	next := nextState()
	if next.Version != 1 || next.Interference != 42 {
		t.Fatalf("next=%+v", next)
	}
}

func TestMetricsEndpointAndMiddleware(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	if err != nil {
		t.Fatalf("metrics.New error: %v", err)
	}
	ts := httptest.NewServer(Handler(Deps{Metrics: m, Gatherer: reg}))
	defer ts.Close()

	getJSON(t, ts.URL+"/api/state", nil)

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `satscope_http_requests_total{code="200",method="GET",path="/api/state"} 1`) {
		t.Fatalf("metrics body missing request counter:\n%s", body)
	}
}

func TestRootPage(t *testing.T) {
	ts := httptest.NewServer(Handler(Deps{}))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("get root: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "/api/state") {
		t.Fatalf("status code=%d body=%s", resp.StatusCode, body)
	}

	resp = getJSON(t, ts.URL+"/nope", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status code=%d want 404", resp.StatusCode)
	}
}
