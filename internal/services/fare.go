package services

import (
	"context"
	"fmt"
	"math"

	"github.com/chachabrian/mooveit-dispatch/internal/models"
	"github.com/chachabrian/mooveit-dispatch/pkg/utils"
)

// DistanceProvider estimates how far a trip is. Units are whatever the rate is priced in.
type DistanceProvider interface {
	Distance(ctx context.Context, pickup, dropoff string) (float64, error)
}

// FixedDistance always reports the same distance.
type FixedDistance float64

func (d FixedDistance) Distance(context.Context, string, string) (float64, error) {
	return float64(d), nil
}

// CoordinateDistance measures haversine kilometres when both locations are
// written as "lat,lng", and returns Fallback otherwise.
type CoordinateDistance struct {
	Fallback float64
}

func (d CoordinateDistance) Distance(_ context.Context, pickup, dropoff string) (float64, error) {
	lat1, lng1, ok1 := utils.ParseCoordinate(pickup)
	lat2, lng2, ok2 := utils.ParseCoordinate(dropoff)
	if !ok1 || !ok2 {
		return d.Fallback, nil
	}
	return utils.HaversineDistance(lat1, lng1, lat2, lng2), nil
}

const (
	defaultBaseFare   = 5.00
	defaultMultiplier = 1.0
	defaultRate       = 1.50
)

// FareQuote is a computed fare with its breakdown.
type FareQuote struct {
	ServiceCategory models.ServiceCategory `json:"serviceCategory"`
	Distance        float64                `json:"distance"`
	BaseFare        float64                `json:"baseFare"`
	DistanceFare    float64                `json:"distanceFare"`
	Multiplier      float64                `json:"multiplier"`
	Total           float64                `json:"total"`
}

// FareCalculator prices trips as round((base + distance*rate) * multiplier, 2).
type FareCalculator struct {
	distance    DistanceProvider
	rate        float64
	baseFares   map[models.ServiceCategory]float64
	multipliers map[models.ServiceCategory]float64
}

// NewFareCalculator creates a calculator with the standard rate card.
func NewFareCalculator(distance DistanceProvider) *FareCalculator {
	if distance == nil {
		distance = FixedDistance(0)
	}
	return &FareCalculator{
		distance: distance,
		rate:     defaultRate,
		baseFares: map[models.ServiceCategory]float64{
			models.ServiceRide:      5.00,
			models.ServiceCorporate: 10.00,
			models.ServiceParcel:    3.00,
		},
		multipliers: map[models.ServiceCategory]float64{
			models.ServiceCorporate: 1.5,
			models.ServiceParcel:    0.8,
		},
	}
}

// Quote prices a trip for the given distance.
func (fc *FareCalculator) Quote(category models.ServiceCategory, distance float64) (FareQuote, error) {
	if distance < 0 || math.IsNaN(distance) || math.IsInf(distance, 0) {
		return FareQuote{}, fmt.Errorf("%w: distance must be a non-negative number, got %v", models.ErrValidation, distance)
	}

	base, ok := fc.baseFares[category]
	if !ok {
		base = defaultBaseFare
	}
	multiplier, ok := fc.multipliers[category]
	if !ok {
		multiplier = defaultMultiplier
	}

	distanceFare := distance * fc.rate
	return FareQuote{
		ServiceCategory: category,
		Distance:        distance,
		BaseFare:        base,
		DistanceFare:    distanceFare,
		Multiplier:      multiplier,
		Total:           utils.RoundMoney((base + distanceFare) * multiplier),
	}, nil
}

// Estimate asks the distance provider and prices the result.
func (fc *FareCalculator) Estimate(ctx context.Context, pickup, dropoff string, category models.ServiceCategory) (FareQuote, error) {
	distance, err := fc.distance.Distance(ctx, pickup, dropoff)
	if err != nil {
		return FareQuote{}, fmt.Errorf("distance estimate: %w", err)
	}
	return fc.Quote(category, distance)
}

// CalculateFare is Quote's total.
func (fc *FareCalculator) CalculateFare(category models.ServiceCategory, distance float64) (float64, error) {
	q, err := fc.Quote(category, distance)
	if err != nil {
		return 0, err
	}
	return q.Total, nil
}
