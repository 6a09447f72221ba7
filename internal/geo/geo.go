package geo

import (
	"math"

	"github.com/pkg/errors"
)

const earthRadiusKm = 6371.0

var ErrTooFar = errors.New("distance exceeds service area")

type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (p Point) IsZero() bool {
	return p.Lat == 0 && p.Lng == 0
}

// DistanceKm is the great-circle distance between a and b.
func DistanceKm(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

func KmToMeters(km float64) float64 {
	return km * 1000
}

type Pricing struct {
	Hub           Point
	BaseFee       float64
	PerKmFee      float64
	MaxDistanceKm float64
}

type Quote struct {
	DistanceKm float64 `json:"distanceKm"`
	Price      float64 `json:"price"`
}

// Quote prices a visit from the hub to dest. A zero MaxDistanceKm means unbounded.
func (p Pricing) Quote(dest Point) (Quote, error) {
	d := DistanceKm(p.Hub, dest)
	if p.MaxDistanceKm > 0 && d > p.MaxDistanceKm {
		return Quote{}, errors.Wrapf(ErrTooFar, "%.2fkm > %.2fkm", d, p.MaxDistanceKm)
	}
	return Quote{
		DistanceKm: round2(d),
		Price:      round2(p.BaseFee + p.PerKmFee*d),
	}, nil
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
