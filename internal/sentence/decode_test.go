package sentence

import (
	"fmt"
	"math"
	"testing"
	"time"

	nmea "github.com/adrianmo/go-nmea"
)

func nmeaLine(payload string) string {
	return fmt.Sprintf("$%s*%s", payload, nmea.Checksum(payload))
}

func TestDecode_ChecksumMismatch(t *testing.T) {
	good := nmeaLine("GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W")
	bad := good[:len(good)-2] + "00"
	if _, err := Decode(bad); err == nil {
		t.Fatalf("expected error")
	}
}

func TestDecode_RMC(t *testing.T) {
	s, err := Decode(nmeaLine("GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W"))
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if s.Kind != KindRMC {
		t.Fatalf("kind=%s want RMC", s.Kind)
	}
	if s.Talker != "GP" {
		t.Fatalf("talker=%q", s.Talker)
	}
	if math.Abs(s.LatDeg-48.1173) > 1e-4 || math.Abs(s.LonDeg-11.516666) > 1e-4 {
		t.Fatalf("lat/lon=%v,%v", s.LatDeg, s.LonDeg)
	}
	dt, ok := s.DateTime()
	if !ok {
		t.Fatalf("expected date")
	}
	want := time.Date(1994, 3, 23, 12, 35, 19, 0, time.UTC)
	if !dt.Equal(want) {
		t.Fatalf("datetime=%s want %s", dt, want)
	}
}

func TestDecode_GSVSatellites(t *testing.T) {
	s, err := Decode(nmeaLine("GAGSV,3,1,11,05,45,030,40,07,,,35,12,10,200,"))
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if s.Kind != KindGSV {
		t.Fatalf("kind=%s", s.Kind)
	}
	if s.Talker != "GA" {
		t.Fatalf("talker=%q", s.Talker)
	}
	if len(s.Satellites) != 3 {
		t.Fatalf("satellites=%d want 3", len(s.Satellites))
	}
	first := s.Satellites[0]
	if first.PRN != 5 || first.Elevation != 45 || first.Azimuth != 30 || first.SNR != 40 {
		t.Fatalf("first=%+v", first)
	}
	// Missing numbers default to zero rather than dropping the block.
	second := s.Satellites[1]
	if second.PRN != 7 || second.Elevation != 0 || second.Azimuth != 0 || second.SNR != 35 {
		t.Fatalf("second=%+v", second)
	}
	if s.Satellites[2].SNR != 0 {
		t.Fatalf("third snr=%v", s.Satellites[2].SNR)
	}
}

func TestDecode_GGA(t *testing.T) {
	s, err := Decode(nmeaLine("GNGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,"))
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if s.Kind != KindGGA {
		t.Fatalf("kind=%s", s.Kind)
	}
	if s.FixQuality != 1 || s.NumSatellites != 8 {
		t.Fatalf("quality=%d sats=%d", s.FixQuality, s.NumSatellites)
	}
	if math.Abs(s.HDOP-0.9) > 1e-9 || math.Abs(s.AltitudeM-545.4) > 1e-9 || math.Abs(s.GeoidSeparation-46.9) > 1e-9 {
		t.Fatalf("hdop=%v alt=%v sep=%v", s.HDOP, s.AltitudeM, s.GeoidSeparation)
	}
	if s.AltitudeUnit != "M" || s.GeoidSeparationUnit != "M" {
		t.Fatalf("units=%q/%q", s.AltitudeUnit, s.GeoidSeparationUnit)
	}
}

func TestDecode_GSAMalformedNumberIsZero(t *testing.T) {
	s, err := Decode(nmeaLine("GPGSA,A,3,04,05,,09,12,,,24,,,,,2.5,abc,2.1"))
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if s.Kind != KindGSA {
		t.Fatalf("kind=%s", s.Kind)
	}
	if s.PDOP != 2.5 || s.HDOP != 0 || s.VDOP != 2.1 {
		t.Fatalf("pdop=%v hdop=%v vdop=%v", s.PDOP, s.HDOP, s.VDOP)
	}
}

func TestDecode_UnknownKind(t *testing.T) {
	s, err := Decode(nmeaLine("GPZDA,201530.00,04,07,2002,00,00"))
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if s.Kind != KindUnknown {
		t.Fatalf("kind=%s want unknown", s.Kind)
	}
	if s.Type != "ZDA" {
		t.Fatalf("type=%q", s.Type)
	}
}

func TestDecode_UnsupportedTypeIsNotAnError(t *testing.T) {
	for _, payload := range []string{"GPTXT,01,01,02,ANTSTATUS=OK", "GNGNS,014035.00,4332.69262,S,17235.48549,E,RR,13,0.9,25.63,11.24,,"} {
		s, err := Decode(nmeaLine(payload))
		if err != nil {
			t.Fatalf("Decode(%q) error: %v", payload, err)
		}
		if s.Kind != KindUnknown {
			t.Fatalf("Decode(%q) kind=%s want unknown", payload, s.Kind)
		}
	}
}

func TestDecode_GSVSignalIDIsNotASatellite(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		want    []SatelliteInfo
	}{
		{
			name:    "two blocks",
			payload: "GAGSV,1,1,02,05,45,030,40,07,20,100,35,7",
			want:    []SatelliteInfo{{PRN: 5, Elevation: 45, Azimuth: 30, SNR: 40}, {PRN: 7, Elevation: 20, Azimuth: 100, SNR: 35}},
		},
		{
			name:    "four blocks",
			payload: "GPGSV,3,1,11,02,62,040,44,05,31,130,38,13,18,250,30,20,45,310,41,1",
			want: []SatelliteInfo{
				{PRN: 2, Elevation: 62, Azimuth: 40, SNR: 44},
				{PRN: 5, Elevation: 31, Azimuth: 130, SNR: 38},
				{PRN: 13, Elevation: 18, Azimuth: 250, SNR: 30},
				{PRN: 20, Elevation: 45, Azimuth: 310, SNR: 41},
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, err := Decode(nmeaLine(tc.payload))
			if err != nil {
				t.Fatalf("Decode() error: %v", err)
			}
			if len(s.Satellites) != len(tc.want) {
				t.Fatalf("satellites=%+v want %+v", s.Satellites, tc.want)
			}
			for i := range tc.want {
				if s.Satellites[i] != tc.want[i] {
					t.Fatalf("satellites[%d]=%+v want %+v", i, s.Satellites[i], tc.want[i])
				}
			}
		})
	}
}

func TestFieldsLatLon(t *testing.T) {
	cases := []struct {
		v, hemi string
		want    float64
	}{
		{"5436.000", "N", 54.6},
		{"00600.000", "W", -6.0},
		{"4807.038", "S", -48.1173},
		{"4807.038", "n", 48.1173},
		{"", "N", 0},
		{"4807.038", "X", 0},
		{"48a7.038", "N", 0},
	}
	for _, tc := range cases {
		got := fields{tc.v, tc.hemi}.latLon(0, 1)
		if math.Abs(got-tc.want) > 1e-4 {
			t.Fatalf("latLon(%q,%q)=%v want %v", tc.v, tc.hemi, got, tc.want)
		}
	}
}
