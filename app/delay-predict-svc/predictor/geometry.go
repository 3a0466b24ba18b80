package predictor

import (
	"math"

	"github.com/MtlTransitLabs/buscast/business/data/gtfs"
)

// metersPerDegree approximates the length of one degree of latitude. Fine for
// the stop to stop distances on a bus route, where spans stay under a few
// kilometers.
const metersPerDegree = 111300.0

// stopDistanceMeters returns the planar distance in meters between two stops,
// scaling longitude by the cosine of the mean latitude. Stops without
// coordinates contribute zero distance.
func stopDistanceMeters(from *gtfs.Stop, to *gtfs.Stop) float64 {
	if !from.HasCoordinates() || !to.HasCoordinates() {
		return 0
	}
	meanLatRadians := (*from.Lat + *to.Lat) / 2 * math.Pi / 180
	dLat := (*to.Lat - *from.Lat) * metersPerDegree
	dLon := (*to.Lon - *from.Lon) * metersPerDegree * math.Cos(meanLatRadians)
	return math.Sqrt(dLat*dLat + dLon*dLon)
}

// routeBearingDegrees returns the compass bearing in degrees from the first
// stop toward the last stop of a trip, normalized to [0, 360). Trips whose
// endpoints lack coordinates yield zero.
func routeBearingDegrees(first *gtfs.Stop, last *gtfs.Stop) float64 {
	if !first.HasCoordinates() || !last.HasCoordinates() {
		return 0
	}
	bearing := math.Atan2(*last.Lon-*first.Lon, *last.Lat-*first.Lat) * 180 / math.Pi
	if bearing < 0 {
		bearing += 360
	}
	return bearing
}
