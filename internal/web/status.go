package web

import (
	"sync/atomic"
	"time"

	"satscope/internal/gps"
)

// GNSSStatus reports on the ingest service.
type GNSSStatus interface {
	Status() gps.Status
}

type Status struct {
	startUnixNano int64
	static        atomic.Value // map[string]any
}

func NewStatus() *Status {
	s := &Status{}
	atomic.StoreInt64(&s.startUnixNano, time.Now().UTC().UnixNano())
	s.static.Store(map[string]any{})
	return s
}

// SetStatic records facts fixed at startup, e.g. the interference table date.
func (s *Status) SetStatic(info map[string]any) {
	if info != nil {
		s.static.Store(info)
	}
}

type StatusSnapshot struct {
	Service      string         `json:"service"`
	NowUTC       string         `json:"now_utc"`
	UptimeSec    int64          `json:"uptime_sec"`
	StateVersion uint64         `json:"state_version"`
	Satellites   int            `json:"satellites"`
	GNSS         gps.Status     `json:"gnss"`
	Static       map[string]any `json:"static"`
}

func (s *Status) Snapshot(nowUTC time.Time, gnss GNSSStatus, version uint64, satellites int) StatusSnapshot {
	if nowUTC.IsZero() {
		nowUTC = time.Now().UTC()
	}
	start := time.Unix(0, atomic.LoadInt64(&s.startUnixNano)).UTC()

	snap := StatusSnapshot{
		Service:      "satscope",
		NowUTC:       nowUTC.UTC().Format(time.RFC3339Nano),
		UptimeSec:    int64(nowUTC.Sub(start).Seconds()),
		StateVersion: version,
		Satellites:   satellites,
		Static:       s.static.Load().(map[string]any),
	}
	if gnss != nil {
		snap.GNSS = gnss.Status()
	}
	return snap
}
