package geo

import (
	"context"
	"strings"
)

// Routing is where a complaint ends up.
type Routing struct {
	Station    string
	StationID  string
	DistanceKm *float64
}

// Routed reports whether a real station was chosen.
func (r Routing) Routed() bool { return r.Station != Unassigned }

// Resolver routes complaints against the stations in a StationStore.
type Resolver struct {
	stations StationStore
}

func NewResolver(stations StationStore) *Resolver {
	return &Resolver{stations: stations}
}

// Route honours a non-empty explicit station verbatim. Otherwise the nearest
// station to loc is chosen, falling back to Unassigned.
func (r *Resolver) Route(ctx context.Context, explicit string, loc *Location) (Routing, error) {
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		return Routing{Station: explicit}, nil
	}
	lat, lng, ok := loc.Point()
	if !ok {
		return Routing{Station: Unassigned}, nil
	}
	stations, err := r.stations.List(ctx)
	if err != nil {
		return Routing{}, err
	}
	a, ok := Resolve(stations, lat, lng)
	if !ok {
		return Routing{Station: Unassigned}, nil
	}
	d := a.DistanceKm
	return Routing{Station: a.Station.Name, StationID: a.Station.ID, DistanceKm: &d}, nil
}

// Stations lists every known station.
func (r *Resolver) Stations(ctx context.Context) ([]Station, error) {
	return r.stations.List(ctx)
}

// Upsert validates and writes stations.
func (r *Resolver) Upsert(ctx context.Context, inputs []StationInput) (UpsertResult, error) {
	return Upsert(ctx, r.stations, inputs)
}
