// Package satellite keeps the live set of satellites in view.
//
// Satellites are keyed by (PRN, constellation). A merge replaces the current
// elevation/azimuth/SNR of known satellites, adds unseen ones and evicts any
// that have not been reported within the TTL. Trail history is recorded by a
// separate, coarser sampling call so that high-rate updates do not bloat it.
package satellite

import (
	"sort"
	"time"
)

// ID identifies a satellite. It never changes for a tracked entry.
type ID struct {
	PRN           int
	Constellation string
}

// Report is one satellite observation from a GSV sentence.
type Report struct {
	PRN           int
	Constellation string
	Elevation     float64
	Azimuth       float64
	SNR           float64
	SeenAt        time.Time
}

func (r Report) ID() ID {
	return ID{PRN: r.PRN, Constellation: r.Constellation}
}

// Sample is one trail point.
type Sample struct {
	At        time.Time `json:"at"`
	Elevation float64   `json:"elevation"`
	Azimuth   float64   `json:"azimuth"`
}

// Tracked is a satellite in the live set.
type Tracked struct {
	ID
	Elevation float64
	Azimuth   float64
	SNR       float64
	LastSeen  time.Time
	// History is append-only.
	History []Sample
}

// Set maps identity to the tracked satellite.
type Set map[ID]Tracked

// Merge applies reports to set and evicts every entry with lastSeen+ttl <= now.
// The input set is not modified.
func Merge(set Set, reports []Report, now time.Time, ttl time.Duration) Set {
	out := make(Set, len(set)+len(reports))
	for k, v := range set {
		out[k] = v
	}

	for _, r := range reports {
		id := r.ID()
		var history []Sample
		if old, ok := out[id]; ok {
			history = old.History
		}
		out[id] = Tracked{
			ID:        id,
			Elevation: r.Elevation,
			Azimuth:   r.Azimuth,
			SNR:       r.SNR,
			LastSeen:  r.SeenAt,
			History:   history,
		}
	}

	for id, v := range out {
		if !v.LastSeen.Add(ttl).After(now) {
			delete(out, id)
		}
	}
	return out
}

// AppendHistorySample records the current position of every satellite in set.
// Samples are stamped with the time the position was observed; now is used
// only for entries that were never stamped. The input set is not modified.
func AppendHistorySample(set Set, now time.Time) Set {
	out := make(Set, len(set))
	for id, v := range set {
		at := v.LastSeen
		if at.IsZero() {
			at = now
		}
		h := make([]Sample, len(v.History), len(v.History)+1)
		copy(h, v.History)
		v.History = append(h, Sample{At: at, Elevation: v.Elevation, Azimuth: v.Azimuth})
		out[id] = v
	}
	return out
}

// Clone returns a deep copy of the set.
func (s Set) Clone() Set {
	if s == nil {
		return nil
	}
	out := make(Set, len(s))
	for id, v := range s {
		if v.History != nil {
			v.History = append([]Sample(nil), v.History...)
		}
		out[id] = v
	}
	return out
}

// Sorted returns the tracked satellites ordered by constellation then PRN.
func (s Set) Sorted() []Tracked {
	out := make([]Tracked, 0, len(s))
	for _, v := range s {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Constellation != out[j].Constellation {
			return out[i].Constellation < out[j].Constellation
		}
		return out[i].PRN < out[j].PRN
	})
	return out
}

// GroupByPRN groups satellites sharing a PRN across constellations.
func GroupByPRN(sats []Tracked) map[int][]Tracked {
	out := make(map[int][]Tracked)
	for _, s := range sats {
		out[s.PRN] = append(out[s.PRN], s)
	}
	return out
}
