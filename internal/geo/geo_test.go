package geo

import (
	"math"
	"testing"

	"github.com/example/bus-tracking/internal/models"
)

func TestDistanceZeroForSamePoint(t *testing.T) {
	p := models.Coord{Lat: 12.971598, Lng: 77.594566}
	if d := DistanceKm(p, p); d != 0 {
		t.Fatalf("expected 0, got %f", d)
	}
}

func TestDistanceSymmetric(t *testing.T) {
	a := models.Coord{Lat: 12.971598, Lng: 77.594566}
	b := models.Coord{Lat: 12.935242, Lng: 77.624481}
	ab := DistanceKm(a, b)
	ba := DistanceKm(b, a)
	if math.Abs(ab-ba) > 1e-9 {
		t.Fatalf("distance not symmetric: %f vs %f", ab, ba)
	}
}

func TestDistanceKnownPair(t *testing.T) {
	// MG Road to Koramangala, roughly 5 km apart.
	a := models.Coord{Lat: 12.971598, Lng: 77.594566}
	b := models.Coord{Lat: 12.935242, Lng: 77.624481}
	d := DistanceKm(a, b)
	if math.Abs(d-5.0) > 0.2 {
		t.Fatalf("expected ~5.0 km, got %f", d)
	}
}

func TestValidCoord(t *testing.T) {
	cases := []struct {
		c  models.Coord
		ok bool
	}{
		{models.Coord{Lat: 0, Lng: 0}, true},
		{models.Coord{Lat: 90, Lng: 180}, true},
		{models.Coord{Lat: -90, Lng: -180}, true},
		{models.Coord{Lat: 91, Lng: 0}, false},
		{models.Coord{Lat: 0, Lng: -181}, false},
		{models.Coord{Lat: math.NaN(), Lng: 0}, false},
		{models.Coord{Lat: 0, Lng: math.Inf(1)}, false},
	}
	for _, tc := range cases {
		if got := ValidCoord(tc.c); got != tc.ok {
			t.Fatalf("ValidCoord(%v) = %v, want %v", tc.c, got, tc.ok)
		}
	}
}
