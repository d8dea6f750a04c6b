// Package sim produces NMEA output of a made-up GNSS receiver, for demos and
// tests without hardware.
package sim

import (
	"fmt"
	"math"
	"sort"
	"time"

	nmea "github.com/adrianmo/go-nmea"
)

// Satellite is one simulated space vehicle. Elevation and Azimuth are its
// position at phase 0 of the receiver period.
type Satellite struct {
	PRN           int
	Constellation string
	Elevation     float64
	Azimuth       float64
	SNR           float64
}

// Receiver describes the simulated antenna and its sky.
type Receiver struct {
	CenterLatDeg float64
	CenterLonDeg float64
	AltM         float64
	// RadiusM is how far the antenna wanders from the centre.
	RadiusM float64
	// Period is the time for every satellite to sweep a full turn of azimuth.
	Period     time.Duration
	Satellites []Satellite
}

// DefaultSatellites is a plausible mixed-constellation sky.
func DefaultSatellites() []Satellite {
	return []Satellite{
		{PRN: 2, Constellation: "GP", Elevation: 62, Azimuth: 40, SNR: 44},
		{PRN: 5, Constellation: "GP", Elevation: 31, Azimuth: 130, SNR: 38},
		{PRN: 13, Constellation: "GP", Elevation: 18, Azimuth: 250, SNR: 30},
		{PRN: 20, Constellation: "GP", Elevation: 45, Azimuth: 310, SNR: 41},
		{PRN: 30, Constellation: "GP", Elevation: 9, Azimuth: 190, SNR: 24},
		{PRN: 4, Constellation: "GA", Elevation: 55, Azimuth: 80, SNR: 43},
		{PRN: 11, Constellation: "GA", Elevation: 27, Azimuth: 220, SNR: 35},
		{PRN: 36, Constellation: "GA", Elevation: 14, Azimuth: 350, SNR: 28},
		{PRN: 68, Constellation: "GL", Elevation: 38, Azimuth: 100, SNR: 36},
		{PRN: 77, Constellation: "GL", Elevation: 21, Azimuth: 280, SNR: 31},
		{PRN: 19, Constellation: "GB", Elevation: 49, Azimuth: 160, SNR: 39},
	}
}

func (r Receiver) period() time.Duration {
	if r.Period <= 0 {
		return 12 * time.Hour
	}
	return r.Period
}

func (r Receiver) phase(now time.Time) float64 {
	p := r.period()
	return float64(now.UnixNano()%p.Nanoseconds()) / float64(p.Nanoseconds())
}

// Position returns the antenna position: a small figure-eight around the
// centre so the fix is not perfectly static.
func (r Receiver) Position(now time.Time) (latDeg, lonDeg float64) {
	radiusDeg := r.RadiusM / 111_320.0
	w := 2 * math.Pi * r.phase(now)
	x := math.Cos(w)
	y := 0.5 * math.Sin(2*w)

	latDeg = r.CenterLatDeg + radiusDeg*y
	lonDeg = r.CenterLonDeg + (radiusDeg*x)/math.Cos(r.CenterLatDeg*math.Pi/180.0)
	return latDeg, lonDeg
}

// Sky returns every satellite moved to its position at now. Azimuth turns
// once per period; elevation swings ±15° and stays within [1, 89].
func (r Receiver) Sky(now time.Time) []Satellite {
	w := 2 * math.Pi * r.phase(now)
	out := make([]Satellite, 0, len(r.Satellites))
	for _, s := range r.Satellites {
		s.Azimuth = math.Mod(s.Azimuth+360*r.phase(now), 360)
		s.Elevation = math.Max(1, math.Min(89, s.Elevation+15*math.Sin(w+float64(s.PRN))))
		out = append(out, s)
	}
	return out
}

// Sentences renders one receiver epoch: RMC, GGA, GSA then GSV pages per
// constellation.
func (r Receiver) Sentences(now time.Time) []string {
	now = now.UTC()
	lat, lon := r.Position(now)
	latStr, ns := formatLatLon(lat, 2, "N", "S")
	lonStr, ew := formatLatLon(lon, 3, "E", "W")
	hms := now.Format("150405") + fmt.Sprintf(".%02d", now.Nanosecond()/1e7)
	sky := r.Sky(now)

	out := []string{
		withChecksum(fmt.Sprintf("GNRMC,%s,A,%s,%s,%s,%s,0.0,0.0,%s,,,A", hms, latStr, ns, lonStr, ew, now.Format("020106"))),
		withChecksum(fmt.Sprintf("GNGGA,%s,%s,%s,%s,%s,1,%02d,0.9,%.1f,M,47.0,M,,", hms, latStr, ns, lonStr, ew, len(sky), r.AltM)),
		withChecksum("GNGSA,A,3,,,,,,,,,,,,,1.6,0.9,1.3"),
	}

	byTalker := map[string][]Satellite{}
	for _, s := range sky {
		byTalker[s.Constellation] = append(byTalker[s.Constellation], s)
	}
	talkers := make([]string, 0, len(byTalker))
	for t := range byTalker {
		talkers = append(talkers, t)
	}
	sort.Strings(talkers)
	for _, t := range talkers {
		out = append(out, gsvPages(t, byTalker[t])...)
	}
	return out
}

func gsvPages(talker string, sats []Satellite) []string {
	total := (len(sats) + 3) / 4
	out := make([]string, 0, total)
	for page := 0; page < total; page++ {
		payload := fmt.Sprintf("%sGSV,%d,%d,%02d", talker, total, page+1, len(sats))
		for i := page * 4; i < len(sats) && i < (page+1)*4; i++ {
			s := sats[i]
			payload += fmt.Sprintf(",%02d,%02d,%03d,%02d", s.PRN, int(math.Round(s.Elevation)), int(math.Round(s.Azimuth))%360, int(math.Round(s.SNR)))
		}
		out = append(out, withChecksum(payload))
	}
	return out
}

// formatLatLon renders decimal degrees as NMEA (d)ddmm.mmmm plus hemisphere.
func formatLatLon(deg float64, degDigits int, pos, neg string) (string, string) {
	hemi := pos
	if deg < 0 {
		hemi = neg
		deg = -deg
	}
	whole := math.Floor(deg)
	minutes := math.Round((deg-whole)*60*1e4) / 1e4
	if minutes >= 60 {
		whole++
		minutes -= 60
	}
	return fmt.Sprintf("%0*d%07.4f", degDigits, int(whole), minutes), hemi
}

func withChecksum(payload string) string {
	return fmt.Sprintf("$%s*%s", payload, nmea.Checksum(payload))
}
