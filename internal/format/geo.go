package format

import (
    "math"

    "vrpcore/internal/models"
)

// DefaultSpeedKph converts haversine distances to durations when a document has no matrices.
const DefaultSpeedKph = 50.0

// GeoPoint is a WGS84 coordinate.
type GeoPoint struct {
    Lat float64 `json:"lat" yaml:"lat"`
    Lng float64 `json:"lng" yaml:"lng"`
}

func haversineMeters(a, b GeoPoint) float64 {
    const R = 6371000.0
    dLat := (b.Lat - a.Lat) * math.Pi / 180
    dLon := (b.Lng - a.Lng) * math.Pi / 180
    h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(a.Lat*math.Pi/180)*math.Cos(b.Lat*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
    c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
    return R * c
}

// HaversineMatrix builds a great-circle distance matrix (meters) and a duration matrix
// (seconds) at a constant speed.
func HaversineMatrix(points []GeoPoint, speedKph float64, profile int) models.Matrix {
    if speedKph <= 0 { speedKph = DefaultSpeedKph }
    speed := speedKph / 3.6
    n := len(points)
    m := models.Matrix{Profile: profile, Durations: make([]float64, n*n), Distances: make([]float64, n*n)}
    for i := range points {
        for j := range points {
            if i == j { continue }
            d := haversineMeters(points[i], points[j])
            m.Distances[i*n+j] = d
            m.Durations[i*n+j] = d / speed
        }
    }
    return m
}
