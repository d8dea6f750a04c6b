// Package fix accumulates the receiver's fix from a stream of decoded NMEA
// sentences.
//
// Each sentence kind carries a subset of the fix (position, date/time, DOP,
// altitude, quality); applying a sentence only touches the fields it carries.
// Satellite-in-view sentences are merged into the live satellite set.
package fix

import (
	"log"
	"time"

	"satscope/internal/interference"
	"satscope/internal/satellite"
	"satscope/internal/sentence"
)

const (
	DefaultTTL          = 3600 * time.Second
	DefaultHistoryEvery = 20 * time.Minute
)

// Options control how sentences are applied.
type Options struct {
	// TTL is how long a satellite stays in the live set without reports.
	TTL time.Duration
	// HistoryEvery is the fix-time interval between trail samples.
	HistoryEvery time.Duration
	// Interference, when non-empty, is consulted on every RMC position.
	Interference *interference.Table
}

func (o Options) withDefaults() Options {
	if o.TTL <= 0 {
		o.TTL = DefaultTTL
	}
	if o.HistoryEvery <= 0 {
		o.HistoryEvery = DefaultHistoryEvery
	}
	return o
}

// State is the receiver fix plus the satellites currently in view.
type State struct {
	LatDeg float64
	LonDeg float64
	// Date is the latest fix date-time (UTC). It is the clock used for
	// satellite eviction, never the wall clock.
	Date time.Time

	Altitude            float64
	AltitudeUnit        string
	GeoidSeparation     float64
	GeoidSeparationUnit string

	PDOP float64
	HDOP float64
	VDOP float64
	// FixQuality is the GGA quality indicator: 0 invalid, 1 GPS, 2 DGPS.
	FixQuality int
	// Interference is the percentage of aircraft reporting degraded GNSS in
	// the current cell.
	Interference float64

	Satellites satellite.Set
	// LastHistorySample is the fix time at which trails were last sampled.
	LastHistorySample time.Time
}

// New returns the state at session start.
func New() *State {
	epoch := time.Unix(0, 0).UTC()
	return &State{
		Date:                epoch,
		LastHistorySample:   epoch,
		AltitudeUnit:        "M",
		GeoidSeparationUnit: "M",
		Satellites:          satellite.Set{},
	}
}

// Clone returns a deep copy safe to hand to readers.
func (st *State) Clone() State {
	out := *st
	out.Satellites = st.Satellites.Clone()
	return out
}

// Apply updates the state from one sentence and reports whether anything was
// recorded. Unknown kinds are logged and ignored.
func (st *State) Apply(s sentence.Sentence, opts Options) bool {
	opts = opts.withDefaults()

	switch s.Kind {
	case sentence.KindGSV:
		st.applySatellites(s, opts)
	case sentence.KindGLL:
		st.LatDeg = s.LatDeg
		st.LonDeg = s.LonDeg
		if s.Time.Valid {
			st.Date = combine(st.Date, s.Time)
		}
	case sentence.KindRMC:
		st.LatDeg = s.LatDeg
		st.LonDeg = s.LonDeg
		if dt, ok := s.DateTime(); ok {
			st.Date = dt
		} else if s.Time.Valid {
			st.Date = combine(st.Date, s.Time)
		}
		st.applyInterference(opts.Interference)
	case sentence.KindGGA:
		st.LatDeg = s.LatDeg
		st.LonDeg = s.LonDeg
		st.GeoidSeparation = s.GeoidSeparation
		st.GeoidSeparationUnit = s.GeoidSeparationUnit
		st.Altitude = s.AltitudeM
		st.AltitudeUnit = s.AltitudeUnit
		st.HDOP = s.HDOP
		st.FixQuality = s.FixQuality
	case sentence.KindGSA:
		st.PDOP = s.PDOP
		st.HDOP = s.HDOP
		st.VDOP = s.VDOP
	case sentence.KindVTG:
		// Course and speed are not used.
		return false
	default:
		log.Printf("fix ignoring sentence talker=%s type=%s", s.Talker, s.Type)
		return false
	}
	return true
}

func (st *State) applySatellites(s sentence.Sentence, opts Options) {
	reports := make([]satellite.Report, 0, len(s.Satellites))
	for _, info := range s.Satellites {
		reports = append(reports, satellite.Report{
			PRN:           info.PRN,
			Constellation: s.Talker,
			Elevation:     info.Elevation,
			Azimuth:       info.Azimuth,
			SNR:           info.SNR,
			SeenAt:        st.Date,
		})
	}
	st.Satellites = satellite.Merge(st.Satellites, reports, st.Date, opts.TTL)

	if st.Date.Sub(st.LastHistorySample) > opts.HistoryEvery {
		st.LastHistorySample = st.Date
		st.Satellites = satellite.AppendHistorySample(st.Satellites, st.Date)
	}
}

func (st *State) applyInterference(tbl *interference.Table) {
	if tbl.Len() == 0 {
		return
	}
	counts, ok := tbl.Lookup(st.LatDeg, st.LonDeg)
	if !ok {
		return
	}
	if pct, ok := counts.Percent(); ok {
		st.Interference = pct
	}
}

// combine keeps the calendar date of d and replaces its time of day.
func combine(d time.Time, t sentence.TimeOfDay) time.Time {
	y, m, day := d.UTC().Date()
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC).Add(t.Duration())
}
