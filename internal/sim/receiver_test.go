package sim

import (
	"math"
	"strings"
	"testing"
	"time"

	"satscope/internal/sentence"
)

func TestReceiver_SentencesDecode(t *testing.T) {
	r := Receiver{CenterLatDeg: 54.6, CenterLonDeg: -6.0, AltM: 120, RadiusM: 50, Satellites: DefaultSatellites()}
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	lines := r.Sentences(now)
	var sats int
	kinds := map[sentence.Kind]int{}
	for _, line := range lines {
		s, err := sentence.Decode(line)
		if err != nil {
			t.Fatalf("Decode(%q) error: %v", line, err)
		}
		kinds[s.Kind]++
		sats += len(s.Satellites)
		if s.Kind == sentence.KindRMC {
			dt, ok := s.DateTime()
			if !ok || !dt.Equal(now) {
				t.Fatalf("rmc date=%s ok=%v", dt, ok)
			}
			lat, lon := r.Position(now)
			if math.Abs(s.LatDeg-lat) > 1e-5 || math.Abs(s.LonDeg-lon) > 1e-5 {
				t.Fatalf("rmc position=(%v,%v) want (%v,%v)", s.LatDeg, s.LonDeg, lat, lon)
			}
		}
	}
	if kinds[sentence.KindRMC] != 1 || kinds[sentence.KindGGA] != 1 || kinds[sentence.KindGSA] != 1 {
		t.Fatalf("kinds=%v", kinds)
	}
	// GP has 5 satellites: two pages. GA, GL, GB one page each.
	if kinds[sentence.KindGSV] != 5 {
		t.Fatalf("gsv pages=%d want 5", kinds[sentence.KindGSV])
	}
	if sats != len(DefaultSatellites()) {
		t.Fatalf("satellites=%d want %d", sats, len(DefaultSatellites()))
	}
}

func TestReceiver_SkyBoundsAndMotion(t *testing.T) {
	r := Receiver{Period: time.Hour, Satellites: DefaultSatellites()}
	t0 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 60; i++ {
		for _, s := range r.Sky(t0.Add(time.Duration(i) * time.Minute)) {
			if s.Elevation < 1 || s.Elevation > 89 {
				t.Fatalf("elevation out of range: %+v", s)
			}
			if s.Azimuth < 0 || s.Azimuth >= 360 {
				t.Fatalf("azimuth out of range: %+v", s)
			}
		}
	}

	a := r.Sky(t0)[0]
	b := r.Sky(t0.Add(15 * time.Minute))[0]
	if d := math.Mod(b.Azimuth-a.Azimuth+360, 360); math.Abs(d-90) > 1e-6 {
		t.Fatalf("azimuth moved %v want 90 in a quarter period", d)
	}
}

func TestReceiver_DeterministicForNow(t *testing.T) {
	r := Receiver{CenterLatDeg: 1, CenterLonDeg: 2, RadiusM: 100, Satellites: DefaultSatellites()}
	now := time.Date(2025, 12, 20, 19, 0, 0, 123, time.UTC)
	a := strings.Join(r.Sentences(now), "\n")
	b := strings.Join(r.Sentences(now), "\n")
	if a != b {
		t.Fatalf("expected deterministic output")
	}
}

func TestFormatLatLon(t *testing.T) {
	tests := []struct {
		deg    float64
		digits int
		want   string
		hemi   string
	}{
		{54.6, 2, "5436.0000", "N"},
		{-6.0, 3, "00600.0000", "W"},
		{-33.5, 2, "3330.0000", "S"},
	}
	for _, tt := range tests {
		got, hemi := formatLatLon(tt.deg, tt.digits, "N", "S")
		if tt.digits == 3 {
			got, hemi = formatLatLon(tt.deg, tt.digits, "E", "W")
		}
		if got != tt.want || hemi != tt.hemi {
			t.Fatalf("formatLatLon(%v)=%s,%s want %s,%s", tt.deg, got, hemi, tt.want, tt.hemi)
		}
	}
}
