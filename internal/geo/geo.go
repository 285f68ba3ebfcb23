package geo

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r2"
)

// EarthRadius is the mean Earth radius in meters used by Distance.
const EarthRadius = 6_371_000.0

var (
	ErrTooFewPoints  = errors.New("polyline needs at least 2 points")
	ErrInvalidPoint  = errors.New("point outside valid longitude/latitude range")
	errPointEncoding = errors.New("point must be a [lon, lat] pair")
)

// Point is a WGS84 coordinate. On the wire it is a GeoJSON position: [lon, lat].
type Point struct {
	Lon float64
	Lat float64
}

func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{p.Lon, p.Lat})
}

func (p *Point) UnmarshalJSON(data []byte) error {
	var pair []float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return errPointEncoding
	}
	p.Lon, p.Lat = pair[0], pair[1]
	return nil
}

// Valid reports whether the point is finite and inside the lon/lat domain.
func (p Point) Valid() bool {
	if math.IsNaN(p.Lon) || math.IsNaN(p.Lat) || math.IsInf(p.Lon, 0) || math.IsInf(p.Lat, 0) {
		return false
	}
	return p.Lon >= -180 && p.Lon <= 180 && p.Lat >= -90 && p.Lat <= 90
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}

// Distance returns the haversine great-circle distance between a and b in meters.
func Distance(a, b Point) float64 {
	dLat := toRad(b.Lat - a.Lat)
	dLon := toRad(b.Lon - a.Lon)
	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	h := sinLat*sinLat + math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*sinLon*sinLon
	// Rounding can leave h just outside [0,1] for near-antipodal points.
	h = math.Max(0, math.Min(1, h))
	return 2 * EarthRadius * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Interpolate moves linearly from a towards b by fraction t, treating lon/lat as
// planar coordinates. Callers clamp t to [0,1].
func Interpolate(a, b Point, t float64) Point {
	from := r2.Vec{X: a.Lon, Y: a.Lat}
	to := r2.Vec{X: b.Lon, Y: b.Lat}
	v := r2.Add(from, r2.Scale(t, r2.Sub(to, from)))
	return Point{Lon: v.X, Lat: v.Y}
}

// Polyline is an ordered path of points.
type Polyline []Point

// Validate checks the length and coordinate invariants of a traversable path.
func (p Polyline) Validate() error {
	if len(p) < 2 {
		return ErrTooFewPoints
	}
	for i, point := range p {
		if !point.Valid() {
			return fmt.Errorf("point %d (%v,%v): %w", i, point.Lon, point.Lat, ErrInvalidPoint)
		}
	}
	return nil
}

// Length returns the total path length in meters.
func (p Polyline) Length() float64 {
	if len(p) < 2 {
		return 0
	}
	segments := make([]float64, 0, len(p)-1)
	for i := 0; i+1 < len(p); i++ {
		segments = append(segments, Distance(p[i], p[i+1]))
	}
	return floats.Sum(segments)
}

// Clone returns an independent copy.
func (p Polyline) Clone() Polyline {
	if p == nil {
		return nil
	}
	cloned := make(Polyline, len(p))
	copy(cloned, p)
	return cloned
}

// FromPairs converts GeoJSON coordinate pairs into a polyline. Pairs that are not
// exactly two values long are rejected.
func FromPairs(pairs [][]float64) (Polyline, error) {
	line := make(Polyline, 0, len(pairs))
	for i, pair := range pairs {
		if len(pair) != 2 {
			return nil, fmt.Errorf("coordinate %d: %w", i, errPointEncoding)
		}
		line = append(line, Point{Lon: pair[0], Lat: pair[1]})
	}
	return line, nil
}

// Pairs converts the polyline into GeoJSON coordinate pairs.
func (p Polyline) Pairs() [][]float64 {
	pairs := make([][]float64, 0, len(p))
	for _, point := range p {
		pairs = append(pairs, []float64{point.Lon, point.Lat})
	}
	return pairs
}
