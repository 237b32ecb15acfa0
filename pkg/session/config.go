package session

import (
	"strings"
	"time"

	"github.com/edmondie/rabit/pkg/request"
)

const (
	// DefaultUserAgent is sent by every session.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/113.0.0.0 Safari/537.36"

	// DefaultNavigationTimeout bounds a single navigation or reload.
	DefaultNavigationTimeout = 60 * time.Second

	defaultGeoAccuracy = 100
)

// Geolocation is an emulated device position.
type Geolocation struct {
	Latitude  float64
	Longitude float64
	Accuracy  float64
}

// Config describes how a browser session presents itself.
type Config struct {
	UserAgent         string
	AcceptLanguage    string
	Timezone          string
	NavigationTimeout time.Duration

	// Geolocation is nil when the country has no known position.
	Geolocation *Geolocation

	// PermissionOrigins get the geolocation permission granted.
	PermissionOrigins []string
}

type locale struct {
	acceptLanguage string
	timezone       string
}

var locales = map[string]locale{
	"germany": {acceptLanguage: "de-DE,de;q=0.9", timezone: "Europe/Berlin"},
	"usa":     {acceptLanguage: "en-US,en;q=0.9", timezone: "America/New_York"},
	"uk":      {acceptLanguage: "en-GB,en;q=0.9", timezone: "Europe/London"},
}

var geolocations = map[string]Geolocation{
	"germany": {Latitude: 52.52, Longitude: 13.405, Accuracy: defaultGeoAccuracy},
	"usa":     {Latitude: 40.7128, Longitude: -74.006, Accuracy: defaultGeoAccuracy},
	"uk":      {Latitude: 51.5074, Longitude: -0.1278, Accuracy: defaultGeoAccuracy},
	"canada":  {Latitude: 45.4215, Longitude: -75.6972, Accuracy: defaultGeoAccuracy},
}

// ResolveConfig derives the session configuration for a country. It is a
// pure function; unknown countries get the browser defaults.
func ResolveConfig(country string) Config {
	key := strings.ToLower(strings.TrimSpace(country))

	cfg := Config{
		UserAgent:         DefaultUserAgent,
		NavigationTimeout: DefaultNavigationTimeout,
	}

	if loc, ok := locales[key]; ok {
		cfg.AcceptLanguage = loc.acceptLanguage
		cfg.Timezone = loc.timezone
	}

	if geo, ok := geolocations[key]; ok {
		g := geo
		cfg.Geolocation = &g
		cfg.PermissionOrigins = request.PortalOrigins()
	}

	return cfg
}
