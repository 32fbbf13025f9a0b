package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/wakemetravel/wakeme-backend/internal/config"
	"github.com/wakemetravel/wakeme-backend/internal/models"
	"github.com/wakemetravel/wakeme-backend/pkg/rail"
)

func testAlertConfig() config.AlertConfig {
	return config.AlertConfig{
		BusAlertKm:           7,
		BusWarnKm:            15,
		BusInfoKm:            30,
		TrainMinStationsLeft: 2,
		TrainAlertKm:         50,
		TrainAlertOffset:     30 * time.Minute,
		MaxCallAttempts:      5,
		CallRetryDelay:       2 * time.Minute,
		RecentCallWindow:     10 * time.Minute,
	}
}

func TestHaversine(t *testing.T) {
	t.Run("Zero Distance", func(t *testing.T) {
		assert.Zero(t, Haversine(18.7537, 73.4135, 18.7537, 73.4135))
	})

	t.Run("Symmetric", func(t *testing.T) {
		d1 := Haversine(19.0760, 72.8777, 18.7537, 73.4135)
		d2 := Haversine(18.7537, 73.4135, 19.0760, 72.8777)
		assert.InDelta(t, d1, d2, 1e-9)
	})

	t.Run("Known Distance", func(t *testing.T) {
		// One degree of latitude along a meridian is ~111.19 km
		d := Haversine(18.0, 73.0, 19.0, 73.0)
		assert.InDelta(t, 111.19, d, 0.1)
	})
}

func TestEvaluateBus(t *testing.T) {
	svc := NewProximityService(testAlertConfig())

	// busTrip builds an active trip a given fraction of a latitude
	// degree away from its destination (0.01 degree is ~1.112 km)
	busTrip := func(degreesAway float64) *models.Trip {
		curLat, curLng := 18.7537+degreesAway, 73.4135
		dstLat, dstLng := 18.7537, 73.4135
		return &models.Trip{
			Type:           models.TripTypeBus,
			Status:         models.TripStatusActive,
			CurrentLat:     &curLat,
			CurrentLng:     &curLng,
			DestinationLat: &dstLat,
			DestinationLng: &dstLng,
		}
	}

	t.Run("No Position", func(t *testing.T) {
		eval := svc.EvaluateBus(&models.Trip{Type: models.TripTypeBus, Status: models.TripStatusActive})
		assert.Equal(t, ZoneUnknown, eval.Zone)
		assert.False(t, eval.ShouldAlert)
	})

	t.Run("Far", func(t *testing.T) {
		eval := svc.EvaluateBus(busTrip(0.5)) // ~55.6 km
		assert.Equal(t, ZoneFar, eval.Zone)
		assert.False(t, eval.ShouldAlert)
	})

	t.Run("Info Zone", func(t *testing.T) {
		eval := svc.EvaluateBus(busTrip(0.2)) // ~22.2 km
		assert.Equal(t, ZoneInfo, eval.Zone)
		assert.False(t, eval.ShouldAlert)
	})

	t.Run("Warn Zone", func(t *testing.T) {
		eval := svc.EvaluateBus(busTrip(0.1)) // ~11.1 km
		assert.Equal(t, ZoneWarn, eval.Zone)
		assert.False(t, eval.ShouldAlert)
		assert.Positive(t, eval.ETAMinutes)
	})

	t.Run("Alert Zone", func(t *testing.T) {
		eval := svc.EvaluateBus(busTrip(0.05)) // ~5.6 km
		assert.Equal(t, ZoneAlert, eval.Zone)
		assert.True(t, eval.ShouldAlert)
	})

	t.Run("Exactly On The Alert Threshold", func(t *testing.T) {
		// The boundary is inclusive: a trip sitting at precisely the
		// alert distance triggers, and only until the marker is set
		trip := busTrip(0.05)
		cfg := testAlertConfig()
		cfg.BusAlertKm = Haversine(*trip.CurrentLat, *trip.CurrentLng, *trip.DestinationLat, *trip.DestinationLng)
		boundary := NewProximityService(cfg)

		eval := boundary.EvaluateBus(trip)
		assert.Equal(t, ZoneAlert, eval.Zone)
		assert.True(t, eval.ShouldAlert)

		alertedAt := time.Now()
		trip.AlertTime = &alertedAt
		eval = boundary.EvaluateBus(trip)
		assert.False(t, eval.ShouldAlert)
	})

	t.Run("Alert Zone But Already Alerted", func(t *testing.T) {
		trip := busTrip(0.05)
		alertedAt := time.Now().Add(-5 * time.Minute)
		trip.AlertTime = &alertedAt

		eval := svc.EvaluateBus(trip)
		assert.Equal(t, ZoneAlert, eval.Zone)
		assert.False(t, eval.ShouldAlert)
	})

	t.Run("Moving Away Still Counts Distance Only", func(t *testing.T) {
		// The evaluator only looks at the snapshot, direction of travel
		// does not matter
		eval := svc.EvaluateBus(busTrip(0.05))
		assert.InDelta(t, 5.56, eval.DistanceKm, 0.1)
	})
}

func TestEvaluateTrain(t *testing.T) {
	svc := NewProximityService(testAlertConfig())

	t.Run("No Progress", func(t *testing.T) {
		eval := svc.EvaluateTrain(nil, false)
		assert.Equal(t, ZoneUnknown, eval.Zone)
		assert.False(t, eval.ShouldAlert)
	})

	t.Run("Far From Destination", func(t *testing.T) {
		eval := svc.EvaluateTrain(&rail.Progress{
			StationsRemaining:   8,
			DistanceRemainingKm: 240,
		}, false)
		assert.Equal(t, ZoneFar, eval.Zone)
		assert.False(t, eval.ShouldAlert)
	})

	t.Run("Few Stations Left Overrides Distance", func(t *testing.T) {
		eval := svc.EvaluateTrain(&rail.Progress{
			StationsRemaining:   2,
			DistanceRemainingKm: 80,
		}, false)
		assert.Equal(t, ZoneAlert, eval.Zone)
		assert.True(t, eval.ShouldAlert)
	})

	t.Run("Short Distance Overrides Stations", func(t *testing.T) {
		eval := svc.EvaluateTrain(&rail.Progress{
			StationsRemaining:   6,
			DistanceRemainingKm: 45,
		}, false)
		assert.Equal(t, ZoneAlert, eval.Zone)
		assert.True(t, eval.ShouldAlert)
	})

	t.Run("Already Alerted", func(t *testing.T) {
		eval := svc.EvaluateTrain(&rail.Progress{
			StationsRemaining:   1,
			DistanceRemainingKm: 12,
		}, true)
		assert.Equal(t, ZoneAlert, eval.Zone)
		assert.False(t, eval.ShouldAlert)
	})

	t.Run("Carries Delay Through", func(t *testing.T) {
		eval := svc.EvaluateTrain(&rail.Progress{
			StationsRemaining:   2,
			DistanceRemainingKm: 30,
			DelayMinutes:        15,
		}, false)
		assert.Equal(t, 15, eval.DelayMinutes)
	})
}

func TestETAMinutes(t *testing.T) {
	assert.Equal(t, 15, ETAMinutes(10, 40))
	assert.Equal(t, 60, ETAMinutes(60, 60))
	assert.Equal(t, 0, ETAMinutes(10, 0))
}
