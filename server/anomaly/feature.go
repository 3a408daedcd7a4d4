package anomaly

import (
	"time"

	"github.com/san-kum/sentinel-core/server/models"
)

// Feature indices within a FeatureVector.
const (
	featTimeOfDay = iota
	featDayOfWeek
	featMotionLevel
	featPersonCount
	featVehicleCount
	featUnknownRatio
	featureCount
)

// FeatureVector is a fixed-width numeric encoding of one observation used
// for baseline modeling. Encoding is deterministic for a given observation
// and timestamp.
type FeatureVector struct {
	Values []float64 `json:"values"`
}

// ExtractFeatures encodes an observation into a feature vector. Time-of-day
// and day-of-week are normalized to [0,1]; counts are raw.
func ExtractFeatures(result *models.FrameAnalysisResult, at time.Time) FeatureVector {
	persons, unknown := result.PersonCount()
	vehicles := result.VehicleCount()

	unknownRatio := 0.0
	if persons > 0 {
		unknownRatio = float64(unknown) / float64(persons)
	}

	secondOfDay := at.Hour()*3600 + at.Minute()*60 + at.Second()

	values := make([]float64, featureCount)
	values[featTimeOfDay] = float64(secondOfDay) / 86400.0
	values[featDayOfWeek] = float64(at.Weekday()) / 7.0
	values[featMotionLevel] = result.MotionInfo.OverallMotionLevel
	values[featPersonCount] = float64(persons)
	values[featVehicleCount] = float64(vehicles)
	values[featUnknownRatio] = unknownRatio

	return FeatureVector{Values: values}
}

// DecodedFeatures is the named view of a feature vector.
type DecodedFeatures struct {
	SecondOfDay  int     `json:"second_of_day"`
	DayOfWeek    int     `json:"day_of_week"`
	MotionLevel  float64 `json:"motion_level"`
	PersonCount  int     `json:"person_count"`
	VehicleCount int     `json:"vehicle_count"`
	UnknownRatio float64 `json:"unknown_ratio"`
}

// Decode maps a feature vector back to named fields. Vectors shorter than
// the fixed width decode their missing tail as zero.
func (f FeatureVector) Decode() DecodedFeatures {
	at := func(i int) float64 {
		if i < len(f.Values) {
			return f.Values[i]
		}
		return 0
	}

	return DecodedFeatures{
		SecondOfDay:  int(at(featTimeOfDay) * 86400.0),
		DayOfWeek:    int(at(featDayOfWeek) * 7.0),
		MotionLevel:  at(featMotionLevel),
		PersonCount:  int(at(featPersonCount)),
		VehicleCount: int(at(featVehicleCount)),
		UnknownRatio: at(featUnknownRatio),
	}
}
