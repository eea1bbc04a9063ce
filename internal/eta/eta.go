package eta

import (
	"github.com/example/bus-tracking/internal/geo"
	"github.com/example/bus-tracking/internal/models"
)

// DefaultSpeedKmh is the assumed average bus speed. A fixed constant rather
// than a measured value: the result is an estimate, not a promise.
const DefaultSpeedKmh = 40.0

// Estimate is a derived arrival estimate. The zero value is "unavailable";
// callers must branch on Available before using Hours/Minutes.
type Estimate struct {
	Hours     int  `json:"hours"`
	Minutes   int  `json:"minutes"`
	Available bool `json:"available"`
}

// Unavailable is the sentinel returned when an input coordinate is absent.
var Unavailable = Estimate{}

// FromCoords estimates travel time between two points at the given average
// speed. Either coordinate being nil yields Unavailable rather than an error.
func FromCoords(from, to *models.Coord, speedKmh float64) Estimate {
	if from == nil || to == nil {
		return Unavailable
	}
	if speedKmh <= 0 {
		speedKmh = DefaultSpeedKmh
	}
	return fromDistance(geo.DistanceKm(*from, *to), speedKmh)
}

// FromSeconds converts a provider-reported travel duration into an Estimate.
// Negative durations yield Unavailable.
func FromSeconds(seconds float64) Estimate {
	if seconds < 0 {
		return Unavailable
	}
	total := int(seconds/60 + 0.5)
	return Estimate{Hours: total / 60, Minutes: total % 60, Available: true}
}

func fromDistance(distanceKm, speedKmh float64) Estimate {
	timeHours := distanceKm / speedKmh
	hours := int(timeHours)
	minutes := int((timeHours-float64(hours))*60 + 0.5)
	// rounding can land on a full hour
	if minutes == 60 {
		hours++
		minutes = 0
	}
	return Estimate{Hours: hours, Minutes: minutes, Available: true}
}
