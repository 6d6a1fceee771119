package units

import (
	"math"
	"testing"
)

func TestParseDistance(t *testing.T) {
	tests := []struct {
		in      string
		want    Distance
		wantErr bool
	}{
		{"100m", Distance{100, Meters}, false},
		{"0.5 km", Distance{0.5, Kilometers}, false},
		{"0.001deg", Distance{0.001, Degrees}, false},
		{"0.001", Distance{0.001, Degrees}, false},
		{"2mi", Distance{2, Miles}, false},
		{"164ft", Distance{164, Feet}, false},
		{" 50 m ", Distance{50, Meters}, false},
		{"", Distance{}, true},
		{"m", Distance{}, true},
		{"ten m", Distance{}, true},
		{"-5m", Distance{}, true},
		{"NaN", Distance{}, true},
		{"Infm", Distance{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDistance(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseDistance(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseDistance(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestDistanceConversions(t *testing.T) {
	tests := []struct {
		d       Distance
		meters  float64
		degrees float64
	}{
		{Distance{111.32, Meters}, 111.32, 0.001},
		{Distance{1, Kilometers}, 1000, 1000 / MetersPerDegreeLat},
		{Distance{1, Miles}, 1609.344, 1609.344 / MetersPerDegreeLat},
		{Distance{1000, Feet}, 304.8, 304.8 / MetersPerDegreeLat},
		{Distance{0.0005, Degrees}, 55.66, 0.0005},
	}
	for _, tt := range tests {
		t.Run(tt.d.String(), func(t *testing.T) {
			if got := tt.d.Meters(); math.Abs(got-tt.meters) > 1e-9 {
				t.Errorf("Meters() = %v, want %v", got, tt.meters)
			}
			if got := tt.d.Degrees(); math.Abs(got-tt.degrees) > 1e-12 {
				t.Errorf("Degrees() = %v, want %v", got, tt.degrees)
			}
		})
	}
}

func TestIsValid(t *testing.T) {
	for _, u := range ValidUnits {
		if !IsValid(u) {
			t.Errorf("IsValid(%q) = false", u)
		}
	}
	for _, u := range []string{"", "M", "yd", "mps"} {
		if IsValid(u) {
			t.Errorf("IsValid(%q) = true", u)
		}
	}
	if got := GetValidUnitsString(); got != "deg, km, mi, ft, m" {
		t.Errorf("GetValidUnitsString() = %q", got)
	}
}
