package services

import (
	"math"

	"github.com/wakemetravel/wakeme-backend/internal/config"
	"github.com/wakemetravel/wakeme-backend/internal/models"
	"github.com/wakemetravel/wakeme-backend/pkg/rail"
)

// earthRadiusKm is the spherical-earth radius used by the haversine formula
const earthRadiusKm = 6371.0

// Zone classifies how close a trip is to its destination
type Zone string

const (
	ZoneUnknown Zone = "unknown" // Position could not be resolved
	ZoneFar     Zone = "far"     // Outside all notification zones
	ZoneInfo    Zone = "info"    // Informational notification zone
	ZoneWarn    Zone = "warn"    // Warning notification zone
	ZoneAlert   Zone = "alert"   // Wake-up call threshold crossed
)

// Evaluation is the outcome of one proximity check. ShouldAlert is true
// only when the alert threshold is crossed AND the trip has not alerted
// before; the softer zones drive notifications only.
type Evaluation struct {
	ShouldAlert       bool
	Zone              Zone
	DistanceKm        float64
	ETAMinutes        int
	StationsRemaining int // Train only
	DelayMinutes      int // Train only
}

// ProximityService decides when a trip has crossed its alert threshold.
// Evaluations are pure: the same snapshot always yields the same result.
type ProximityService struct {
	cfg config.AlertConfig
}

// NewProximityService creates a new ProximityService
func NewProximityService(cfg config.AlertConfig) *ProximityService {
	return &ProximityService{cfg: cfg}
}

// EvaluateBus evaluates a bus trip's last known position against its
// destination. A trip without both coordinates resolves to ZoneUnknown,
// never to an alert.
func (s *ProximityService) EvaluateBus(trip *models.Trip) Evaluation {
	if !trip.HasPosition() {
		return Evaluation{Zone: ZoneUnknown}
	}

	distance := Haversine(*trip.CurrentLat, *trip.CurrentLng, *trip.DestinationLat, *trip.DestinationLng)

	eval := Evaluation{
		DistanceKm: distance,
		ETAMinutes: ETAMinutes(distance, 40),
		Zone:       ZoneFar,
	}

	switch {
	case distance <= s.cfg.BusAlertKm:
		eval.Zone = ZoneAlert
	case distance <= s.cfg.BusWarnKm:
		eval.Zone = ZoneWarn
	case distance <= s.cfg.BusInfoKm:
		eval.Zone = ZoneInfo
	}

	eval.ShouldAlert = eval.Zone == ZoneAlert && !trip.HasAlerted()

	return eval
}

// EvaluateTrain evaluates live train progress toward the destination
// station. A nil progress (train not departed, destination not on the
// route, provider failure) resolves to ZoneUnknown, never to an alert.
func (s *ProximityService) EvaluateTrain(progress *rail.Progress, alerted bool) Evaluation {
	if progress == nil {
		return Evaluation{Zone: ZoneUnknown}
	}

	eval := Evaluation{
		DistanceKm:        progress.DistanceRemainingKm,
		ETAMinutes:        ETAMinutes(progress.DistanceRemainingKm, 60),
		StationsRemaining: progress.StationsRemaining,
		DelayMinutes:      progress.DelayMinutes,
		Zone:              ZoneFar,
	}

	// Either threshold is enough: few stations left on a slow section,
	// or little distance left on an express one.
	if progress.StationsRemaining <= s.cfg.TrainMinStationsLeft ||
		progress.DistanceRemainingKm <= s.cfg.TrainAlertKm {
		eval.Zone = ZoneAlert
	}

	eval.ShouldAlert = eval.Zone == ZoneAlert && !alerted

	return eval
}

// Haversine computes the great-circle distance in km between two points
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180
	dLng := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

// ETAMinutes estimates minutes remaining at the given average speed
func ETAMinutes(distanceKm, speedKmh float64) int {
	if speedKmh <= 0 {
		return 0
	}
	return int(math.Round(distanceKm / speedKmh * 60))
}
