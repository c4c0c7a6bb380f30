package playback

import "math"

// Gain converts a 0-100 user volume and an optional track replay gain in
// dB into a linear amplitude factor.
func Gain(volume int, gainDB *float64) float64 {
	if volume <= 0 {
		return 0
	}
	if volume > 100 {
		volume = 100
	}
	v := float64(volume) / 100
	if gainDB == nil {
		return v
	}
	return math.Pow(10, (20*math.Log10(v)+*gainDB)/20)
}
