package bmkg

import (
	"strings"

	"komoditas/internal/core/scraper"
)

var parameterTypes = map[string]string{
	"t":               scraper.WeatherTemperature,
	"temp":            scraper.WeatherTemperature,
	"temperature":     scraper.WeatherTemperature,
	"suhu":            scraper.WeatherTemperature,
	"hu":              scraper.WeatherHumidity,
	"rh":              scraper.WeatherHumidity,
	"humidity":        scraper.WeatherHumidity,
	"kelembapan":      scraper.WeatherHumidity,
	"kelembaban":      scraper.WeatherHumidity,
	"ws":              scraper.WeatherWindSpeed,
	"wind_speed":      scraper.WeatherWindSpeed,
	"windspeed":       scraper.WeatherWindSpeed,
	"kecepatan_angin": scraper.WeatherWindSpeed,
	"wd":              scraper.WeatherWindDirection,
	"wd_deg":          scraper.WeatherWindDirection,
	"wind_direction":  scraper.WeatherWindDirection,
	"arah_angin":      scraper.WeatherWindDirection,
	"pr":              scraper.WeatherPressure,
	"mslp":            scraper.WeatherPressure,
	"pressure":        scraper.WeatherPressure,
	"tekanan":         scraper.WeatherPressure,
	"tp":              scraper.WeatherRainfall,
	"rain":            scraper.WeatherRainfall,
	"rainfall":        scraper.WeatherRainfall,
	"hujan":           scraper.WeatherRainfall,
	"curah_hujan":     scraper.WeatherRainfall,
	"weather":         scraper.WeatherCondition,
	"cuaca":           scraper.WeatherCondition,
}

// WeatherType maps a BMKG parameter id or observation tag to a weather type.
func WeatherType(id string) (string, bool) {
	t, ok := parameterTypes[strings.ToLower(strings.TrimSpace(id))]
	return t, ok
}

var canonicalUnits = map[string]string{
	scraper.WeatherTemperature:   "°C",
	scraper.WeatherHumidity:      "%",
	scraper.WeatherWindSpeed:     "m/s",
	scraper.WeatherWindDirection: "°",
	scraper.WeatherPressure:      "hPa",
	scraper.WeatherRainfall:      "mm",
	scraper.WeatherCondition:     "",
}

func Unit(weatherType string) string { return canonicalUnits[weatherType] }

// Normalize brings a reading into the canonical unit of its type using value
// ranges: temperatures above 100 are Kelvin, humidity at or below 1 is a
// fraction, pressure above 10000 is Pascal.
func Normalize(weatherType string, v float64) float64 {
	switch weatherType {
	case scraper.WeatherTemperature:
		if v > 100 {
			return v - 273.15
		}
	case scraper.WeatherHumidity:
		if v <= 1 {
			return v * 100
		}
	case scraper.WeatherPressure:
		if v > 10000 {
			return v / 100
		}
	}
	return v
}

// fromDeclaredUnit converts a reading tagged with an explicit upstream unit.
// ok is false when the unit is not one this type can be converted from.
func fromDeclaredUnit(weatherType, unit string, v float64) (float64, bool) {
	u := strings.ToLower(strings.TrimSpace(unit))
	switch weatherType {
	case scraper.WeatherTemperature:
		switch u {
		case "c", "°c", "celsius":
			return v, true
		case "f", "°f", "fahrenheit":
			return (v - 32) * 5 / 9, true
		case "k", "kelvin":
			return v - 273.15, true
		}
	case scraper.WeatherWindSpeed:
		switch u {
		case "ms", "m/s", "mps":
			return v, true
		case "kph", "km/h", "kmh":
			return v / 3.6, true
		case "kt", "knot", "knots":
			return v * 0.514444, true
		case "mph":
			return v * 0.44704, true
		}
	case scraper.WeatherWindDirection:
		switch u {
		case "deg", "°", "degree":
			return v, true
		}
	case scraper.WeatherPressure:
		switch u {
		case "hpa", "mb", "mbar":
			return v, true
		case "pa":
			return v / 100, true
		}
	case scraper.WeatherHumidity:
		if u == "%" {
			return v, true
		}
	}
	return 0, false
}

// preferredUnits ranks declared units per type; the first present wins.
var preferredUnits = map[string][]string{
	scraper.WeatherTemperature:   {"c", "f", "k"},
	scraper.WeatherWindSpeed:     {"ms", "kph", "kt", "mph"},
	scraper.WeatherWindDirection: {"deg"},
}
