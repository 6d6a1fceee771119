// Package units converts the distance flags of the CLI into the degree
// units the grid and snapping work in.
package units

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Unit suffixes accepted by ParseDistance.
const (
	Degrees    = "deg"
	Meters     = "m"
	Kilometers = "km"
	Feet       = "ft"
	Miles      = "mi"
)

// ValidUnits lists the accepted suffixes, longest first so that "mi" is
// not read as "m".
var ValidUnits = []string{Degrees, Kilometers, Miles, Feet, Meters}

// MetersPerDegreeLat is the length of one degree of latitude on the WGS84
// mean sphere.
const MetersPerDegreeLat = 111320.0

// IsValid reports whether unit is a known suffix.
func IsValid(unit string) bool {
	for _, u := range ValidUnits {
		if unit == u {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns the suffixes for error messages.
func GetValidUnitsString() string {
	return strings.Join(ValidUnits, ", ")
}

// Distance is a length with its unit.
type Distance struct {
	Value float64
	Unit  string
}

// ParseDistance reads "100m", "0.5 km", "0.001deg" or a bare number, which
// is taken as degrees.
func ParseDistance(s string) (Distance, error) {
	s = strings.TrimSpace(s)
	unit := Degrees
	num := s
	for _, u := range ValidUnits {
		if strings.HasSuffix(s, u) {
			unit = u
			num = strings.TrimSpace(strings.TrimSuffix(s, u))
			break
		}
	}
	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return Distance{}, fmt.Errorf("invalid distance %q (units: %s)", s, GetValidUnitsString())
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return Distance{}, fmt.Errorf("invalid distance %q: must be finite and non-negative", s)
	}
	return Distance{Value: v, Unit: unit}, nil
}

// Meters returns d in meters. Degrees are converted along the meridian.
func (d Distance) Meters() float64 {
	switch d.Unit {
	case Kilometers:
		return d.Value * 1000
	case Feet:
		return d.Value * 0.3048
	case Miles:
		return d.Value * 1609.344
	case Degrees:
		return d.Value * MetersPerDegreeLat
	default:
		return d.Value
	}
}

// Degrees returns d in degrees of latitude. Grid cells are square in
// degrees, so the meridian scale is used regardless of where they sit.
func (d Distance) Degrees() float64 {
	if d.Unit == Degrees {
		return d.Value
	}
	return d.Meters() / MetersPerDegreeLat
}

func (d Distance) String() string {
	return strconv.FormatFloat(d.Value, 'g', -1, 64) + d.Unit
}
