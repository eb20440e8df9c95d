// Package geo provides the location collaborators: the named city table, an
// IP-based geolocator and a configured permission provider.
package geo

import (
	_ "embed"
	"fmt"
	"math"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"sehri-go/internal/sehri"
)

//go:embed cities.yaml
var citiesYAML []byte

// earthRadius is the mean Earth radius in metres.
const earthRadius = 6371e3

// MaxNearestDistance bounds NearestCity; positions further than this from
// every city report no match.
const MaxNearestDistance = 150e3

// City is one entry of the table.
type City struct {
	Name      string   `yaml:"name"`
	Country   string   `yaml:"country"`
	Latitude  float64  `yaml:"latitude"`
	Longitude float64  `yaml:"longitude"`
	Aliases   []string `yaml:"aliases,omitempty"`
}

// Coordinates returns the city centre.
func (c City) Coordinates() sehri.Coordinates {
	return sehri.Coordinates{Latitude: c.Latitude, Longitude: c.Longitude}
}

// Cities implements sehri.CityTable over a fixed list.
type Cities struct {
	list   []City
	byName map[string]int
}

var _ sehri.CityTable = (*Cities)(nil)

// DefaultCities parses the embedded table.
func DefaultCities() (*Cities, error) {
	return ParseCities(citiesYAML)
}

// ParseCities parses a YAML document with a top-level "cities" list.
func ParseCities(data []byte) (*Cities, error) {
	var doc struct {
		Cities []City `yaml:"cities"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing city table: %w", err)
	}
	return NewCities(doc.Cities)
}

// NewCities indexes list by name and alias, case-insensitively.
func NewCities(list []City) (*Cities, error) {
	c := &Cities{list: list, byName: make(map[string]int)}
	for i, city := range list {
		if city.Name == "" {
			return nil, fmt.Errorf("city %d has no name", i)
		}
		for _, name := range append([]string{city.Name}, city.Aliases...) {
			key := strings.ToLower(strings.TrimSpace(name))
			if _, dup := c.byName[key]; dup {
				return nil, fmt.Errorf("duplicate city name %q", name)
			}
			c.byName[key] = i
		}
	}
	return c, nil
}

// LookupCity finds a city by name or alias.
func (c *Cities) LookupCity(name string) (sehri.Coordinates, bool) {
	i, ok := c.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return sehri.Coordinates{}, false
	}
	return c.list[i].Coordinates(), true
}

// NearestCity returns the closest city within MaxNearestDistance.
func (c *Cities) NearestCity(at sehri.Coordinates) (string, bool) {
	best, bestDist := -1, math.Inf(1)
	for i, city := range c.list {
		if d := Distance(at, city.Coordinates()); d < bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 || bestDist > MaxNearestDistance {
		return "", false
	}
	return c.list[best].Name, true
}

// Names returns the canonical city names in alphabetical order.
func (c *Cities) Names() []string {
	names := make([]string, 0, len(c.list))
	for _, city := range c.list {
		names = append(names, city.Name)
	}
	sort.Strings(names)
	return names
}

// Distance is the haversine great-circle distance in metres.
// See http://www.movable-type.co.uk/scripts/latlong.html
func Distance(a, b sehri.Coordinates) float64 {
	lat1 := degToRad(a.Latitude)
	lat2 := degToRad(b.Latitude)
	dLat := lat2 - lat1
	dLon := degToRad(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadius * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func degToRad(deg float64) float64 {
	return deg * math.Pi / 180
}
