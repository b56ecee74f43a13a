package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

var (
	ErrNoStations     = errors.New("geo: no stations provided")
	ErrNoValidStation = errors.New("geo: no valid stations to upsert")
)

// StationStore persists station reference data.
type StationStore interface {
	// List returns all stations ordered by name.
	List(ctx context.Context) ([]Station, error)
	// BulkUpsert inserts or updates stations keyed by name.
	BulkUpsert(ctx context.Context, stations []Station) (UpsertResult, error)
	Count(ctx context.Context) (int, error)
}

// UpsertResult counts the effect of a bulk upsert.
type UpsertResult struct {
	Upserts  int `json:"upserts"`
	Modified int `json:"modified"`
}

// StationInput is a station as submitted by clients or seed files, before
// validation.
type StationInput struct {
	Name     string   `json:"name"`
	Code     string   `json:"code"`
	Address  string   `json:"address"`
	Zone     string   `json:"zone"`
	Division string   `json:"division"`
	Lat      *float64 `json:"lat"`
	Lng      *float64 `json:"lng"`
}

// ValidStations keeps the inputs that carry a name and valid coordinates.
func ValidStations(inputs []StationInput) []Station {
	out := make([]Station, 0, len(inputs))
	for _, in := range inputs {
		name := strings.TrimSpace(in.Name)
		if name == "" || in.Lat == nil || in.Lng == nil || !ValidCoordinate(*in.Lat, *in.Lng) {
			continue
		}
		out = append(out, Station{
			Name:     name,
			Code:     strings.TrimSpace(in.Code),
			Address:  strings.TrimSpace(in.Address),
			Zone:     strings.TrimSpace(in.Zone),
			Division: strings.TrimSpace(in.Division),
			Lat:      *in.Lat,
			Lng:      *in.Lng,
		})
	}
	return out
}

// Upsert validates inputs and writes the survivors.
func Upsert(ctx context.Context, store StationStore, inputs []StationInput) (UpsertResult, error) {
	if len(inputs) == 0 {
		return UpsertResult{}, ErrNoStations
	}
	valid := ValidStations(inputs)
	if len(valid) == 0 {
		return UpsertResult{}, ErrNoValidStation
	}
	return store.BulkUpsert(ctx, valid)
}

// DefaultStations is the built-in Navi Mumbai seed.
func DefaultStations() []Station {
	return []Station{
		{Name: "Vashi", Lat: 19.0634, Lng: 72.9981},
		{Name: "Turbhe", Lat: 19.0556, Lng: 73.0169},
		{Name: "Rabale", Lat: 19.1544, Lng: 73.0360},
		{Name: "Koparkhairane", Lat: 19.1036, Lng: 73.0074},
		{Name: "Ghansoli", Lat: 19.1200, Lng: 73.0088},
		{Name: "Digha", Lat: 19.1690, Lng: 73.0074},
		{Name: "Nerul", Lat: 19.0330, Lng: 73.0194},
		{Name: "Sanpada", Lat: 19.0657, Lng: 73.0025},
		{Name: "CBD Belapur", Lat: 19.0029, Lng: 73.0186},
		{Name: "APMC", Lat: 19.0609, Lng: 72.9989},
		{Name: "Kharghar", Lat: 19.0312, Lng: 73.0629},
		{Name: "Kamothe", Lat: 19.0122, Lng: 73.0957},
		{Name: "Kalamboli", Lat: 19.0128, Lng: 73.0997},
		{Name: "Taloja", Lat: 19.0830, Lng: 73.1165},
		{Name: "Khandeshwar", Lat: 19.0094, Lng: 73.1037},
		{Name: "Panvel City", Lat: 18.9896, Lng: 73.1198},
		{Name: "Panvel Taluka", Lat: 18.9500, Lng: 73.1500},
	}
}

// LoadSeedFile reads a JSON array of stations. Invalid entries are dropped.
func LoadSeedFile(path string) ([]Station, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read station seed: %w", err)
	}
	var inputs []StationInput
	if err := json.Unmarshal(data, &inputs); err != nil {
		return nil, fmt.Errorf("parse station seed: %w", err)
	}
	stations := ValidStations(inputs)
	if len(stations) == 0 {
		return nil, ErrNoValidStation
	}
	return stations, nil
}

// SeedIfEmpty writes seed when the store holds no stations yet. It reports
// whether seeding happened.
func SeedIfEmpty(ctx context.Context, store StationStore, seed []Station) (bool, error) {
	n, err := store.Count(ctx)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}
	if _, err := store.BulkUpsert(ctx, seed); err != nil {
		return false, err
	}
	return true, nil
}
