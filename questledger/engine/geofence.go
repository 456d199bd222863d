package engine

import (
	"math"
	"time"

	"github.com/wayfarerlabs/questledger/questledger/database/models"
)

const earthRadiusM = 6371000.0

// GeofenceConfig tunes containment slack for low-accuracy samples.
type GeofenceConfig struct {
	// AccuracyThresholdM is the reported accuracy above which a sample is
	// considered low quality and earns extra radius slack.
	AccuracyThresholdM float64
	// MaxAccuracyMarginM caps the slack added to a checkpoint radius.
	MaxAccuracyMarginM float64
}

func DefaultGeofenceConfig() GeofenceConfig {
	return GeofenceConfig{
		AccuracyThresholdM: 25,
		MaxAccuracyMarginM: 50,
	}
}

// GeofenceResult reports one evaluation step.
type GeofenceResult struct {
	Contained  bool
	Satisfied  bool
	DwellStart *time.Time
}

// Distance returns the great-circle distance in meters between two coordinates.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusM * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// EvaluateGeofence decides containment and dwell satisfaction for one sample
// against one checkpoint. Pure: the caller threads priorDwellStart across
// consecutive samples for the same participant/checkpoint. A containment gap
// resets the dwell clock.
func EvaluateGeofence(cfg GeofenceConfig, sample LocationSample, cp *models.Checkpoint, priorDwellStart *time.Time) GeofenceResult {
	radius := cp.RadiusM
	if sample.AccuracyM > cfg.AccuracyThresholdM {
		radius += math.Min(sample.AccuracyM, cfg.MaxAccuracyMarginM)
	}

	if Distance(sample.Latitude, sample.Longitude, cp.Latitude, cp.Longitude) > radius {
		return GeofenceResult{}
	}

	start := priorDwellStart
	if start == nil {
		t := sample.ObservedAt
		start = &t
	}

	return GeofenceResult{
		Contained:  true,
		Satisfied:  !sample.ObservedAt.Before(start.Add(cp.MinDwell())),
		DwellStart: start,
	}
}
