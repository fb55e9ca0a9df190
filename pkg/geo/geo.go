// Package geo resolves addresses to coordinates and measures distance between them.
package geo

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// EarthRadiusKm is the mean Earth radius used by Haversine
const EarthRadiusKm = 6371.0

// ErrNoMatch is returned by a Geocoder when an address resolves to nothing
var ErrNoMatch = errors.New("address could not be resolved")

// Coordinates is a point in decimal degrees
type Coordinates struct {
	Latitude  float64
	Longitude float64
}

func (c Coordinates) String() string {
	return fmt.Sprintf("(%.6f, %.6f)", c.Latitude, c.Longitude)
}

// Geocoder turns an address into coordinates
type Geocoder interface {
	Geocode(ctx context.Context, address string) (Coordinates, error)
}

// Haversine returns the great-circle distance in km between a and b
func Haversine(a, b Coordinates) float64 {
	lat1 := toRadians(a.Latitude)
	lat2 := toRadians(b.Latitude)
	dLat := lat2 - lat1
	dLon := toRadians(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * EarthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// Locator combines a Geocoder with distance calculation
type Locator struct {
	geocoder Geocoder
}

func NewLocator(g Geocoder) *Locator {
	return &Locator{geocoder: g}
}

// Geocode delegates to the wrapped Geocoder
func (l *Locator) Geocode(ctx context.Context, address string) (Coordinates, error) {
	return l.geocoder.Geocode(ctx, address)
}

// GreatCircleDistance geocodes both addresses and returns the distance between them in km
func (l *Locator) GreatCircleDistance(ctx context.Context, from, to string) (float64, error) {
	a, err := l.geocoder.Geocode(ctx, from)
	if err != nil {
		return 0, fmt.Errorf("failed to geocode %q: %w", from, err)
	}
	b, err := l.geocoder.Geocode(ctx, to)
	if err != nil {
		return 0, fmt.Errorf("failed to geocode %q: %w", to, err)
	}
	return Haversine(a, b), nil
}
