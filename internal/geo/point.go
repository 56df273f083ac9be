// Package geo implements the "(lng,lat)" point text form used both as the
// storage representation and on the read API. The longitude-first order
// matches the postgres point literal the schema originally used.
package geo

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

type Point struct {
	Longitude float64
	Latitude  float64
}

// ErrMalformedPoint marks input that does not parse as "(lng,lat)".
var ErrMalformedPoint = errors.New("malformed point")

func NewPoint(longitude, latitude float64) Point {
	return Point{Longitude: longitude, Latitude: latitude}
}

// String renders the round-trippable text form, e.g. "(85.33911,27.6558)".
func (p Point) String() string {
	return fmt.Sprintf("(%s,%s)",
		strconv.FormatFloat(p.Longitude, 'f', -1, 64),
		strconv.FormatFloat(p.Latitude, 'f', -1, 64))
}

// ParsePoint parses the text form produced by String (and by postgres point
// output). Enclosing parentheses are optional on input.
func ParsePoint(s string) (Point, error) {
	raw := strings.TrimSpace(s)
	raw = strings.TrimPrefix(raw, "(")
	raw = strings.TrimSuffix(raw, ")")

	parts := strings.Split(raw, ",")
	if len(parts) != 2 {
		return Point{}, errors.Wrapf(ErrMalformedPoint, "%q", s)
	}

	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return Point{}, errors.Wrapf(ErrMalformedPoint, "longitude in %q", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return Point{}, errors.Wrapf(ErrMalformedPoint, "latitude in %q", s)
	}

	return Point{Longitude: lng, Latitude: lat}, nil
}
