package geometry

// DistanceToCamera estimates how far an object of knownWidth is from a
// pinhole camera with the given focal length (in pixels) when it appears
// perceivedWidth pixels wide. The result is in the unit of knownWidth.
func DistanceToCamera(knownWidth, focalLength, perceivedWidth float64) (float64, error) {
	if !(perceivedWidth > 0) {
		return 0, ErrDegenerateGeometry
	}
	return knownWidth * focalLength / perceivedWidth, nil
}

// FocalLength calibrates the focal length from one observation at a known
// distance.
func FocalLength(knownDistance, knownWidth, perceivedWidth float64) (float64, error) {
	if !(knownWidth > 0) {
		return 0, ErrDegenerateGeometry
	}
	return perceivedWidth * knownDistance / knownWidth, nil
}
