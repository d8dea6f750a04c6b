package web

import (
	"time"

	"satscope/internal/fix"
	"satscope/internal/mapproj"
	"satscope/internal/orbit"
	"satscope/internal/satellite"
)

// BaseMapSize is the size of the world map artwork, in map units.
var BaseMapSize = mapproj.Size{Width: 3213.05005, Height: 2468.23999}

// MapConfig describes the map the API projects onto.
type MapConfig struct {
	// Base is the full world map size. Zero means BaseMapSize.
	Base mapproj.Size
	// Available is the default screen area used by /api/viewport.
	Available  mapproj.Size
	View       mapproj.Options
	HideTrails bool
}

func (m MapConfig) base() mapproj.Size {
	if m.Base.Width <= 0 || m.Base.Height <= 0 {
		return BaseMapSize
	}
	return m.Base
}

// markerRadius keeps satellite dots the same size on screen at every zoom.
func (m MapConfig) markerRadius() float64 {
	if m.View.ScaleFactor <= 0 {
		return 30
	}
	return 30 / m.View.ScaleFactor
}

type SatelliteView struct {
	PRN           int     `json:"prn"`
	Constellation string  `json:"constellation"`
	Network       string  `json:"network"`
	Elevation     float64 `json:"elevation"`
	Azimuth       float64 `json:"azimuth"`
	SNR           float64 `json:"snr"`
	LastSeenUTC   string  `json:"last_seen_utc"`

	// Sub-satellite point.
	Lat  float64       `json:"lat"`
	Long float64       `json:"long"`
	Map  mapproj.Point `json:"map"`

	HistoryLen int `json:"history_len"`
}

type StateResponse struct {
	Version uint64 `json:"version"`
	DateUTC string `json:"date_utc"`

	LatDeg      float64       `json:"lat_deg"`
	LonDeg      float64       `json:"lon_deg"`
	ObserverMap mapproj.Point `json:"observer_map"`

	Altitude            float64 `json:"altitude"`
	AltitudeUnit        string  `json:"altitude_unit"`
	GeoidSeparation     float64 `json:"geoid_separation"`
	GeoidSeparationUnit string  `json:"geoid_separation_unit"`
	PDOP                float64 `json:"pdop"`
	HDOP                float64 `json:"hdop"`
	VDOP                float64 `json:"vdop"`
	FixQuality          int     `json:"fix_quality"`
	Interference        float64 `json:"interference"`

	MarkerRadius float64         `json:"marker_radius"`
	Satellites   []SatelliteView `json:"satellites"`
	// SharedPRNs lists, per PRN, the networks when more than one reports it.
	SharedPRNs map[int][]string `json:"shared_prns"`
}

func BuildState(st fix.State, version uint64, m MapConfig) StateResponse {
	base := m.base()
	resp := StateResponse{
		Version:             version,
		DateUTC:             st.Date.UTC().Format(time.RFC3339Nano),
		LatDeg:              st.LatDeg,
		LonDeg:              st.LonDeg,
		ObserverMap:         mapproj.ProjectToMap(st.LatDeg, st.LonDeg, base),
		Altitude:            st.Altitude,
		AltitudeUnit:        st.AltitudeUnit,
		GeoidSeparation:     st.GeoidSeparation,
		GeoidSeparationUnit: st.GeoidSeparationUnit,
		PDOP:                st.PDOP,
		HDOP:                st.HDOP,
		VDOP:                st.VDOP,
		FixQuality:          st.FixQuality,
		Interference:        st.Interference,
		MarkerRadius:        m.markerRadius(),
		Satellites:          []SatelliteView{},
		SharedPRNs:          map[int][]string{},
	}
	sorted := st.Satellites.Sorted()
	for prn, group := range satellite.GroupByPRN(sorted) {
		if len(group) < 2 {
			continue
		}
		for _, sat := range group {
			resp.SharedPRNs[prn] = append(resp.SharedPRNs[prn], satellite.NetworkName(sat.Constellation))
		}
	}
	for _, sat := range sorted {
		lat, long := orbit.GroundPoint(sat.Azimuth, sat.Elevation, sat.Constellation, st.LatDeg, st.LonDeg)
		resp.Satellites = append(resp.Satellites, SatelliteView{
			PRN:           sat.PRN,
			Constellation: sat.Constellation,
			Network:       satellite.NetworkName(sat.Constellation),
			Elevation:     sat.Elevation,
			Azimuth:       sat.Azimuth,
			SNR:           sat.SNR,
			LastSeenUTC:   sat.LastSeen.UTC().Format(time.RFC3339Nano),
			Lat:           lat,
			Long:          long,
			Map:           mapproj.ProjectToMap(lat, long, base),
			HistoryLen:    len(sat.History),
		})
	}
	return resp
}

type Trail struct {
	PRN           int               `json:"prn"`
	Constellation string            `json:"constellation"`
	Network       string            `json:"network"`
	Polylines     [][]mapproj.Point `json:"polylines"`
}

type TrailsResponse struct {
	Version     uint64  `json:"version"`
	DateUTC     string  `json:"date_utc"`
	Hidden      bool    `json:"hidden"`
	StrokeWidth float64 `json:"stroke_width"`
	Trails      []Trail `json:"trails"`
}

// BuildTrails projects each satellite's sampled history plus its current
// position. Every sample is placed from the current observer position and then
// turned with the Earth from its sample time to the fix time, so older samples
// drift west of where the satellite was seen.
func BuildTrails(st fix.State, version uint64, m MapConfig) TrailsResponse {
	base := m.base()
	resp := TrailsResponse{
		Version:     version,
		DateUTC:     st.Date.UTC().Format(time.RFC3339Nano),
		Hidden:      m.HideTrails,
		StrokeWidth: m.markerRadius() / 3,
		Trails:      []Trail{},
	}
	if m.HideTrails {
		return resp
	}
	for _, sat := range st.Satellites.Sorted() {
		if len(sat.History) == 0 {
			continue
		}
		samples := append(append([]satellite.Sample(nil), sat.History...), satellite.Sample{
			At:        sat.LastSeen,
			Elevation: sat.Elevation,
			Azimuth:   sat.Azimuth,
		})
		points := make([]mapproj.Point, 0, len(samples))
		for _, sm := range samples {
			lat, long := orbit.GroundPoint(sm.Azimuth, sm.Elevation, sat.Constellation, st.LatDeg, st.LonDeg)
			lat, long = orbit.RotateByTime(lat, long, sm.At, st.Date)
			points = append(points, mapproj.ProjectToMap(lat, long, base))
		}
		resp.Trails = append(resp.Trails, Trail{
			PRN:           sat.PRN,
			Constellation: sat.Constellation,
			Network:       satellite.NetworkName(sat.Constellation),
			Polylines:     mapproj.SplitTrail(points, base),
		})
	}
	return resp
}
