package display

import "math"

// Scale applies a 0..100 brightness to packed RGB in place.
func Scale(rgb []byte, level uint8) {
	level = ClampLevel(level)
	if level == MaxLevel {
		return
	}
	k := float64(level) / float64(MaxLevel)
	for i := range rgb {
		rgb[i] = byte(math.Round(float64(rgb[i]) * k))
	}
}

// WhiteCap scales each pixel so r+g+b <= whiteCap*3*255. Values outside
// (0,1) disable the cap.
func WhiteCap(rgb []byte, whiteCap float64) {
	if whiteCap <= 0 || whiteCap >= 1 {
		return
	}
	limit := whiteCap * 3.0 * 255.0
	for i := 0; i+2 < len(rgb); i += 3 {
		s := float64(rgb[i]) + float64(rgb[i+1]) + float64(rgb[i+2])
		if s > limit && s > 0 {
			k := limit / s
			rgb[i] = byte(math.Round(float64(rgb[i]) * k))
			rgb[i+1] = byte(math.Round(float64(rgb[i+1]) * k))
			rgb[i+2] = byte(math.Round(float64(rgb[i+2]) * k))
		}
	}
}

// Current estimates the draw in amps, assuming chanMA per channel at full
// scale (about 20 mA for WS2812).
func Current(rgb []byte, chanMA float64) float64 {
	var sum float64
	for _, v := range rgb {
		sum += float64(v)
	}
	return sum / 255.0 * chanMA / 1000.0
}

// Budget scales the whole frame down so Current stays under amps.
func Budget(rgb []byte, amps, chanMA float64) {
	if amps <= 0 {
		return
	}
	total := Current(rgb, chanMA)
	if total <= amps {
		return
	}
	k := amps / total
	for i := range rgb {
		rgb[i] = byte(float64(rgb[i]) * k)
	}
}
