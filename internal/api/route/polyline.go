package route

import (
	"fmt"

	"github.com/sdyoon0928/final-pj3/internal/types"
)

// decodePolyline decodes Google's encoded polyline format into route points.
// The encoding stores lat/lng deltas at 1e-5 precision; the output keeps the
// provider point order of x=lng, y=lat.
func decodePolyline(encoded string) ([]types.RoutePoint, error) {
	var points []types.RoutePoint
	var lat, lng int64

	index := 0
	for index < len(encoded) {
		dLat, next, err := decodeVarint(encoded, index)
		if err != nil {
			return nil, err
		}
		lat += dLat

		dLng, next2, err := decodeVarint(encoded, next)
		if err != nil {
			return nil, err
		}
		lng += dLng
		index = next2

		points = append(points, types.RoutePoint{
			X: float64(lng) * 1e-5,
			Y: float64(lat) * 1e-5,
		})
	}
	return points, nil
}

// decodeVarint reads one zigzag-encoded value starting at index and returns
// the value plus the index of the next one.
func decodeVarint(encoded string, index int) (int64, int, error) {
	var result int64
	var shift uint

	for {
		if index >= len(encoded) {
			return 0, index, fmt.Errorf("truncated polyline at offset %d", index)
		}
		b := int64(encoded[index]) - 63
		if b < 0 {
			return 0, index, fmt.Errorf("invalid polyline byte at offset %d", index)
		}
		index++
		result |= (b & 0x1f) << shift
		shift += 5
		if b < 0x20 {
			break
		}
	}

	if result&1 != 0 {
		return ^(result >> 1), index, nil
	}
	return result >> 1, index, nil
}
