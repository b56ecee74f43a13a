// Package geo routes a reported location to the nearest station.
package geo

import (
	"math"
)

const (
	// EarthRadiusKm is the mean Earth radius used for great-circle distances.
	EarthRadiusKm = 6371.0

	// Unassigned marks a complaint no station could be resolved for.
	Unassigned = "Unassigned"
	// AllStations is the pseudo-station of officers who see every jurisdiction.
	AllStations = "All Stations"

	tieEpsilon = 1e-9
)

// Station is a jurisdiction with a fixed position.
type Station struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Code     string  `json:"code,omitempty"`
	Address  string  `json:"address,omitempty"`
	Zone     string  `json:"zone,omitempty"`
	Division string  `json:"division,omitempty"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
}

// Location is a reported position. Either coordinate may be missing.
type Location struct {
	Lat     *float64 `json:"lat,omitempty"`
	Lng     *float64 `json:"lng,omitempty"`
	Address string   `json:"address,omitempty"`
}

// Point returns the coordinates when both are present and valid.
func (l *Location) Point() (lat, lng float64, ok bool) {
	if l == nil || l.Lat == nil || l.Lng == nil {
		return 0, 0, false
	}
	if !ValidCoordinate(*l.Lat, *l.Lng) {
		return 0, 0, false
	}
	return *l.Lat, *l.Lng, true
}

// ValidCoordinate reports whether lat/lng are finite and within range.
func ValidCoordinate(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lng) {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

func toRad(d float64) float64 { return d * math.Pi / 180 }

// HaversineKm returns the great-circle distance in kilometres.
func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)
	a := math.Pow(math.Sin(dLat/2), 2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Pow(math.Sin(dLng/2), 2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusKm * c
}

// Assignment is the outcome of a successful resolution.
type Assignment struct {
	Station    Station
	DistanceKm float64
}

// Resolve picks the station nearest to (lat, lng). Stations with invalid
// coordinates are skipped. Distances within 1e-9 km of the current best are
// ties, broken by the lexicographically smaller name.
func Resolve(stations []Station, lat, lng float64) (Assignment, bool) {
	if !ValidCoordinate(lat, lng) {
		return Assignment{}, false
	}
	var (
		best    Assignment
		found   bool
		nearest = math.Inf(1)
	)
	for _, s := range stations {
		if !ValidCoordinate(s.Lat, s.Lng) {
			continue
		}
		d := HaversineKm(lat, lng, s.Lat, s.Lng)
		if d < nearest-tieEpsilon || (found && math.Abs(d-nearest) < tieEpsilon && s.Name < best.Station.Name) {
			nearest = d
			best = Assignment{Station: s, DistanceKm: d}
			found = true
		}
	}
	return best, found
}
