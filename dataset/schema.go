// Package dataset loads the merged climate and plant-disease survey table,
// derives the anomaly, incidence and zone columns, and splits it by system
// type.
package dataset

import (
	"github.com/banerjixplores/climacrop/core/frame"
)

// Frame is the column-typed survey table.
type Frame = frame.Frame

// Column names of the prepared survey table.
const (
	ColSystemType       = "system_type"
	ColIncidence        = "incidence"
	ColIncidenceZone    = "incidence_zone"
	ColInfected         = "n_infected"
	ColTotal            = "n_total"
	ColMonthlyTemp      = "monthly_temp"
	ColMonthlyPrecip    = "monthly_precip"
	ColContempTemp      = "contemp_temp"
	ColContempPrecip    = "contemp_precip"
	ColTempAnomaly      = "temp_anomaly"
	ColRainAnomaly      = "rain_anomaly"
	ColLatitude         = "latitude"
	ColLongitude        = "longitude"
	ColLocation         = "location"
	ColPathogenGroup    = "pathogen_group"
	ColTransmissionMode = "transmission_mode"
	ColHost             = "host"
)

// System types.
const (
	SystemAgricultural = "Agricultural"
	SystemWild         = "Wild"
)

// Incidence zones, lowest first.
const (
	ZoneLow    = "Low"
	ZoneMedium = "Medium"
	ZoneHigh   = "High"
)

// Systems lists the system types in report order.
var Systems = []string{SystemAgricultural, SystemWild}

// Zones lists the incidence zones in ascending order.
var Zones = []string{ZoneLow, ZoneMedium, ZoneHigh}

// ClimateColumns are the climate inputs that get spline features.
var ClimateColumns = []string{ColMonthlyTemp, ColMonthlyPrecip, ColContempTemp, ColContempPrecip}

// aliases maps header spellings found in survey exports to canonical names.
var aliases = map[string]string{
	"Host_type": ColSystemType,
	"host_type": ColSystemType,
	"Latitude":  ColLatitude,
	"Longitude": ColLongitude,
}

// Zone thresholds on incidence.
const (
	LowUpper    = 1.0 / 3
	MediumUpper = 2.0 / 3
)
