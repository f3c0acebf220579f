package grid

// Bilinear interpolates inside a unit cell. The first index of each
// corner value runs west to east and the second south to north:
// v00 is south-west, v10 south-east, v01 north-west, v11 north-east.
//
// fx and fy are not range checked; values outside [0, 1) extrapolate.
func Bilinear(v00, v10, v01, v11, fx, fy float64) float64 {
	return lerp(lerp(v00, v10, fx), lerp(v01, v11, fx), fy)
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}
