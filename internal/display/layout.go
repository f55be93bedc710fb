package display

// Layout describes how matrix pixels are chained on a strip.
type Layout struct {
	Width, Height int
	// XFlipEveryRow reverses every odd row, the usual zig-zag wiring.
	XFlipEveryRow bool
}

func (l Layout) Count() int { return l.Width * l.Height }

// Index maps x,y to the position along the strip.
func (l Layout) Index(x, y int) int {
	xx := x
	if y%2 == 1 && l.XFlipEveryRow {
		xx = l.Width - 1 - x
	}
	return y*l.Width + xx
}

// Remap writes row-major pix into dst in strip order. Both are packed RGB.
func (l Layout) Remap(dst, pix []byte) {
	for y := 0; y < l.Height; y++ {
		for x := 0; x < l.Width; x++ {
			src := (y*l.Width + x) * 3
			i := l.Index(x, y) * 3
			if src+2 >= len(pix) || i+2 >= len(dst) {
				continue
			}
			dst[i], dst[i+1], dst[i+2] = pix[src], pix[src+1], pix[src+2]
		}
	}
}
