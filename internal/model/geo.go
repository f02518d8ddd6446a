package model

import "fmt"

// Geo is a best-effort geolocation snapshot taken when a scan is accepted.
// A nil *Geo means the location service denied permission or timed out;
// formatting degrades to a placeholder instead of failing.
type Geo struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Altitude  *float64 `json:"altitude,omitempty"`
}

// RoomLocation formats the snapshot as the free-text location string stored
// with a door selection: "lat, lon, alt" with six decimal places for the
// coordinates and one for altitude. Missing altitude renders as "n/a" and a
// nil snapshot as "Unknown".
func (g *Geo) RoomLocation() string {
	if g == nil {
		return "Unknown"
	}
	alt := "n/a"
	if g.Altitude != nil {
		alt = fmt.Sprintf("%.1f", *g.Altitude)
	}
	return fmt.Sprintf("%.6f, %.6f, %s", g.Latitude, g.Longitude, alt)
}
