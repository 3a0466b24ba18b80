package predictor

import "strings"

// Direction is the canonical travel direction of a trip, derived from the
// french cardinal marker in its headsign.
type Direction int

const (
	DirectionUnknown Direction = iota
	DirectionNorth
	DirectionSouth
	DirectionEast
	DirectionWest
)

func (d Direction) String() string {
	switch d {
	case DirectionNorth:
		return "North"
	case DirectionSouth:
		return "South"
	case DirectionEast:
		return "East"
	case DirectionWest:
		return "West"
	}
	return "Unknown"
}

// directionMarkers maps the french cardinal tokens found in headsigns,
// matched in order with "Est" last since "Ouest" must win when both appear.
var directionMarkers = []struct {
	french    string
	direction Direction
}{
	{"Nord", DirectionNorth},
	{"Sud", DirectionSouth},
	{"Ouest", DirectionWest},
	{"Est", DirectionEast},
}

// ParseDirection canonicalizes a direction token or headsign. Tokens without
// a recognized cardinal marker yield DirectionUnknown rather than defaulting
// to any cardinal.
func ParseDirection(token string) Direction {
	for _, marker := range directionMarkers {
		if strings.Contains(token, marker.french) {
			return marker.direction
		}
	}
	return DirectionUnknown
}

// TranslateHeadsign renders a french headsign with its cardinal marker in
// english, for rider-facing direction lists.
func TranslateHeadsign(headsign string) string {
	for _, marker := range directionMarkers {
		if strings.Contains(headsign, marker.french) {
			return strings.Replace(headsign, marker.french, ParseDirection(headsign).String(), 1)
		}
	}
	return headsign
}
