package geometry

import "math"

// Radians converts degrees to radians.
func Radians(degrees float64) float64 {
	return degrees * math.Pi / 180
}

// Degrees converts radians to degrees.
func Degrees(radians float64) float64 {
	return radians * 180 / math.Pi
}

// NormalizeDegrees maps any angle into [0, 360).
func NormalizeDegrees(degrees float64) float64 {
	d := math.Mod(degrees, 360)
	if d < 0 {
		d += 360
	}
	// math.Mod of a tiny negative value can round back up to 360
	if d >= 360 {
		d = 0
	}
	return d
}

// WrapDegrees maps an angle difference into (-180, 180].
func WrapDegrees(delta float64) float64 {
	d := NormalizeDegrees(delta+180) - 180
	if d == -180 {
		return 180
	}
	return d
}

// MeanHeading returns the circular mean of headings given in degrees, computed from the
// sum of their unit vectors. The result is in (-180, 180].
func MeanHeading(headings []float64) float64 {
	var sumSin, sumCos float64
	for _, h := range headings {
		rad := Radians(h)
		sumSin += math.Sin(rad)
		sumCos += math.Cos(rad)
	}
	return Degrees(math.Atan2(sumSin, sumCos))
}
