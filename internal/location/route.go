package location

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

var (
	ErrEmptyRoute      = errors.New("route has no waypoints")
	ErrInvalidWaypoint = errors.New("route waypoint out of range")
)

const defaultStepsBetween = 10

// Waypoint is a route vertex in degrees.
type Waypoint struct {
	Lat float64 `yaml:"lat"`
	Lng float64 `yaml:"lng"`
}

// Route is a closed loop the simulated provider walks along.
type Route struct {
	Name         string     `yaml:"name"`
	StepsBetween int        `yaml:"steps_between"`
	Waypoints    []Waypoint `yaml:"waypoints"`
}

// SinglePointRoute returns a route that stays at one position.
func SinglePointRoute(lat, lng float64) Route {
	return Route{Name: "fixed", StepsBetween: 1, Waypoints: []Waypoint{{Lat: lat, Lng: lng}}}
}

// LoadRoute reads a YAML route file.
func LoadRoute(path string) (Route, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Route{}, fmt.Errorf("read route file: %w", err)
	}

	var route Route
	if err := yaml.Unmarshal(raw, &route); err != nil {
		return Route{}, fmt.Errorf("parse route file: %w", err)
	}
	if route.StepsBetween <= 0 {
		route.StepsBetween = defaultStepsBetween
	}
	if err := route.Validate(); err != nil {
		return Route{}, err
	}
	return route, nil
}

// Validate checks that the route has at least one in-range waypoint.
func (route Route) Validate() error {
	if len(route.Waypoints) == 0 {
		return ErrEmptyRoute
	}
	for i, wp := range route.Waypoints {
		if wp.Lat < -90 || wp.Lat > 90 || wp.Lng < -180 || wp.Lng > 180 {
			return fmt.Errorf("%w: #%d (%f, %f)", ErrInvalidWaypoint, i, wp.Lat, wp.Lng)
		}
	}
	return nil
}

// At returns the k-th position along the looped route, interpolating linearly
// between consecutive waypoints.
func (route Route) At(k int) Waypoint {
	n := len(route.Waypoints)
	if n == 1 {
		return route.Waypoints[0]
	}
	steps := route.StepsBetween
	if steps <= 0 {
		steps = defaultStepsBetween
	}

	k %= n * steps
	if k < 0 {
		k += n * steps
	}
	from := route.Waypoints[k/steps]
	to := route.Waypoints[(k/steps+1)%n]
	frac := float64(k%steps) / float64(steps)

	return Waypoint{
		Lat: from.Lat + (to.Lat-from.Lat)*frac,
		Lng: from.Lng + (to.Lng-from.Lng)*frac,
	}
}
