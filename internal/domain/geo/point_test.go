package geo

import (
	"math"
	"testing"
)

func TestPointValidate(t *testing.T) {
	cases := []struct {
		name string
		p    Point
		want error
	}{
		{"origin", Point{0, 0}, nil},
		{"corners", Point{-90, 180}, nil},
		{"lat too high", Point{90.0001, 0}, ErrInvalidLatitude},
		{"lng too low", Point{0, -180.5}, ErrInvalidLongitude},
		{"nan lat", Point{math.NaN(), 0}, ErrInvalidLatitude},
		{"inf lng", Point{0, math.Inf(1)}, ErrInvalidLongitude},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.p.Validate(); got != tc.want {
				t.Fatalf("Validate() = %v, want %v", got, tc.want)
			}
		})
	}
}
