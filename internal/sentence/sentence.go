// Package sentence turns raw NMEA 0183 text into the decoded records consumed
// by the fix state.
//
// Framing, checksum validation and talker/type splitting are delegated to
// github.com/adrianmo/go-nmea. Field extraction is lenient: a malformed number
// becomes 0 and the sentence is still delivered.
package sentence

import "time"

// Kind identifies which decoded fields of a Sentence are meaningful.
type Kind int

const (
	KindUnknown Kind = iota
	KindGSV          // satellites in view
	KindGLL          // position + time of day
	KindRMC          // position + date + time
	KindGGA          // fix quality, altitude, geoid separation
	KindGSA          // dilution of precision
	KindVTG          // course and speed (recognized, unused)
)

func (k Kind) String() string {
	switch k {
	case KindGSV:
		return "GSV"
	case KindGLL:
		return "GLL"
	case KindRMC:
		return "RMC"
	case KindGGA:
		return "GGA"
	case KindGSA:
		return "GSA"
	case KindVTG:
		return "VTG"
	default:
		return "unknown"
	}
}

// SatelliteInfo is one (prn, elevation, azimuth, snr) block of a GSV sentence.
type SatelliteInfo struct {
	PRN       int
	Elevation float64
	Azimuth   float64
	SNR       float64
}

// TimeOfDay is a UTC clock reading without a date.
type TimeOfDay struct {
	Valid       bool
	Hour        int
	Minute      int
	Second      int
	Millisecond int
}

// Duration returns the offset of the time of day from midnight.
func (t TimeOfDay) Duration() time.Duration {
	return time.Duration(t.Hour)*time.Hour +
		time.Duration(t.Minute)*time.Minute +
		time.Duration(t.Second)*time.Second +
		time.Duration(t.Millisecond)*time.Millisecond
}

// Sentence is a decoded NMEA sentence. Only the fields belonging to Kind are
// populated; the others keep their zero value.
type Sentence struct {
	Kind Kind
	// Talker is the two-letter constellation/talker code, e.g. "GP" or "GA".
	Talker string
	// Type is the raw three-letter sentence type, kept for logging of unknown kinds.
	Type string
	Raw  string

	// GSV
	Satellites []SatelliteInfo

	// GLL, RMC, GGA
	LatDeg float64
	LonDeg float64
	Time   TimeOfDay

	// RMC
	Date     time.Time // midnight UTC of the fix date; zero when absent
	GroundKt float64
	TrackDeg float64

	// GGA
	FixQuality          int
	NumSatellites       int
	AltitudeM           float64
	AltitudeUnit        string
	GeoidSeparation     float64
	GeoidSeparationUnit string

	// GGA, GSA
	HDOP float64

	// GSA
	PDOP float64
	VDOP float64
}

// DateTime combines Date and Time. ok is false when the sentence carried no date.
func (s Sentence) DateTime() (time.Time, bool) {
	if s.Date.IsZero() {
		return time.Time{}, false
	}
	return s.Date.Add(s.Time.Duration()), true
}
