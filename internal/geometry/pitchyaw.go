package geometry

import "math"

// VectorToPitchYaw converts a 3D direction into (pitch, yaw) radians.
// The vector does not need to be normalised.
func VectorToPitchYaw(v [3]float64) (pitch, yaw float64) {
	n := math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
	if n == 0 {
		return 0, 0
	}
	pitch = math.Asin(Clip(v[1]/n, -1, 1))
	yaw = math.Atan2(v[0]/n, v[2]/n)
	return pitch, yaw
}

// PitchYawToVector is the inverse of VectorToPitchYaw for a unit vector
func PitchYawToVector(pitch, yaw float64) [3]float64 {
	cp, sp := math.Cos(pitch), math.Sin(pitch)
	cy, sy := math.Cos(yaw), math.Sin(yaw)
	return [3]float64{cp * sy, sp, cp * cy}
}

// Clip limits v to [lo, hi]
func Clip(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// Radians converts degrees to radians
func Radians(deg float64) float64 {
	return deg * math.Pi / 180
}
