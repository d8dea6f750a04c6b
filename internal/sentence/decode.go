package sentence

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	nmea "github.com/adrianmo/go-nmea"
)

// Decode parses one raw NMEA line. An error is returned only for framing or
// checksum problems; malformed numeric fields decode as 0 and unknown sentence
// types decode with KindUnknown.
func Decode(raw string) (Sentence, error) {
	raw = strings.TrimSpace(raw)
	base, err := parseBase(raw)
	if err != nil {
		return Sentence{}, fmt.Errorf("nmea: %w", err)
	}

	s := Sentence{
		Talker: base.Talker,
		Type:   strings.ToUpper(base.Type),
		Raw:    raw,
	}
	f := fields(base.Fields)

	switch s.Type {
	case nmea.TypeGSV:
		s.Kind = KindGSV
		s.Satellites = decodeGSV(f)
	case nmea.TypeGLL:
		s.Kind = KindGLL
		// 0: lat, 1: N/S, 2: lon, 3: E/W, 4: time, 5: status
		s.LatDeg = f.latLon(0, 1)
		s.LonDeg = f.latLon(2, 3)
		s.Time = f.time(4)
	case nmea.TypeRMC:
		s.Kind = KindRMC
		// 0: time, 1: status, 2: lat, 3: N/S, 4: lon, 5: E/W,
		// 6: speed (kt), 7: course, 8: date (ddmmyy)
		s.Time = f.time(0)
		s.LatDeg = f.latLon(2, 3)
		s.LonDeg = f.latLon(4, 5)
		s.GroundKt = f.float(6)
		s.TrackDeg = f.float(7)
		s.Date = f.date(8)
	case nmea.TypeGGA:
		s.Kind = KindGGA
		// 0: time, 1: lat, 2: N/S, 3: lon, 4: E/W, 5: quality, 6: sats,
		// 7: HDOP, 8: altitude, 9: unit, 10: geoid separation, 11: unit
		s.Time = f.time(0)
		s.LatDeg = f.latLon(1, 2)
		s.LonDeg = f.latLon(3, 4)
		s.FixQuality = f.int(5)
		s.NumSatellites = f.int(6)
		s.HDOP = f.float(7)
		s.AltitudeM = f.float(8)
		s.AltitudeUnit = f.str(9)
		s.GeoidSeparation = f.float(10)
		s.GeoidSeparationUnit = f.str(11)
	case nmea.TypeGSA:
		s.Kind = KindGSA
		// 0: mode, 1: fix type, 2-13: SV ids, 14: PDOP, 15: HDOP, 16: VDOP
		s.PDOP = f.float(14)
		s.HDOP = f.float(15)
		s.VDOP = f.float(16)
	case nmea.TypeVTG:
		s.Kind = KindVTG
	default:
		s.Kind = KindUnknown
	}
	return s, nil
}

// errBaseParsed stops go-nmea once framing and checksum are validated, so
// types it has no parser for still reach the Kind switch.
var errBaseParsed = errors.New("base sentence parsed")

func parseBase(raw string) (nmea.BaseSentence, error) {
	var base nmea.BaseSentence
	p := nmea.SentenceParser{
		OnBaseSentence: func(b *nmea.BaseSentence) error {
			base = *b
			return errBaseParsed
		},
	}
	if _, err := p.Parse(raw); err != nil && !errors.Is(err, errBaseParsed) {
		return nmea.BaseSentence{}, err
	}
	return base, nil
}

// GSV: 0: total messages, 1: message number, 2: satellites in view, then up
// to four blocks of (prn, elevation, azimuth, snr).
func decodeGSV(f fields) []SatelliteInfo {
	var out []SatelliteInfo
	// NMEA 4.10 appends a signal id after the last block; i+3 keeps it from
	// being read as a satellite.
	for i := 3; i+3 < len(f); i += 4 {
		if f.str(i) == "" {
			continue
		}
		out = append(out, SatelliteInfo{
			PRN:       f.int(i),
			Elevation: f.float(i + 1),
			Azimuth:   f.float(i + 2),
			SNR:       f.float(i + 3),
		})
	}
	return out
}

type fields []string

func (f fields) str(i int) string {
	if i < 0 || i >= len(f) {
		return ""
	}
	return strings.TrimSpace(f[i])
}

func (f fields) float(i int) float64 {
	v, _ := parseFloat(f.str(i))
	return v
}

func (f fields) int(i int) int {
	s := f.str(i)
	if s == "" {
		return 0
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	// Some receivers pad integer fields with a fraction.
	v, _ := parseFloat(s)
	return int(v)
}

// latLon parses a (d)ddmm.mmmm field plus its hemisphere; anything malformed
// is 0.
func (f fields) latLon(i, hemi int) float64 {
	v, h := f.str(i), strings.ToUpper(f.str(hemi))
	if v == "" || (h != "N" && h != "S" && h != "E" && h != "W") {
		return 0
	}
	deg, err := nmea.ParseGPS(v + " " + h)
	if err != nil {
		return 0
	}
	return deg
}

func (f fields) time(i int) TimeOfDay {
	t, err := nmea.ParseTime(f.str(i))
	if err != nil || !t.Valid {
		return TimeOfDay{}
	}
	return TimeOfDay{
		Valid:       true,
		Hour:        t.Hour,
		Minute:      t.Minute,
		Second:      t.Second,
		Millisecond: t.Millisecond,
	}
}

func (f fields) date(i int) time.Time {
	d, err := nmea.ParseDate(f.str(i))
	if err != nil || !d.Valid {
		return time.Time{}
	}
	year := d.YY
	switch {
	case year >= 100:
	case year >= 80:
		// GPS week zero is 1980.
		year += 1900
	default:
		year += 2000
	}
	return time.Date(year, time.Month(d.MM), d.DD, 0, 0, 0, 0, time.UTC)
}

func parseFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
