package post

import (
	"math"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/coreman2200/matryx/internal/canvas"
)

// Filters write into dst and only read their other canvas arguments.
// A pixel counts as lit when any channel is non-zero.

// Foreground copies every lit pixel of fg over dst.
func Foreground(dst, fg *canvas.Canvas) {
	canvas.MustMatch(dst, fg)
	for i := 0; i < dst.Len(); i++ {
		if fg.Lit(i) {
			o := i * 3
			copy(dst.Pix[o:o+3], fg.Pix[o:o+3])
		}
	}
}

// Background fills every unlit pixel of dst from bg.
func Background(dst, bg *canvas.Canvas) {
	canvas.MustMatch(dst, bg)
	for i := 0; i < dst.Len(); i++ {
		if !dst.Lit(i) {
			o := i * 3
			copy(dst.Pix[o:o+3], bg.Pix[o:o+3])
		}
	}
}

// DimInside scales the lightness of dst by f wherever mask is lit.
func DimInside(dst, mask *canvas.Canvas, f float64) {
	canvas.MustMatch(dst, mask)
	for i := 0; i < dst.Len(); i++ {
		if mask.Lit(i) {
			scaleLightness(dst.Pix[i*3:i*3+3], f)
		}
	}
}

// DimOutside scales the lightness of dst by f wherever mask is dark.
func DimOutside(dst, mask *canvas.Canvas, f float64) {
	canvas.MustMatch(dst, mask)
	for i := 0; i < dst.Len(); i++ {
		if !mask.Lit(i) {
			scaleLightness(dst.Pix[i*3:i*3+3], f)
		}
	}
}

// Lightness scales the HSL lightness of every pixel by f.
func Lightness(dst *canvas.Canvas, f float64) {
	for i := 0; i < dst.Len(); i++ {
		scaleLightness(dst.Pix[i*3:i*3+3], f)
	}
}

// Darken is the night filter: scaled lightness, red channel only.
func Darken(dst *canvas.Canvas, f float64) {
	Lightness(dst, f)
	RedOnly(dst)
}

// RedOnly zeroes green and blue.
func RedOnly(dst *canvas.Canvas) {
	for o := 0; o+2 < len(dst.Pix); o += 3 {
		dst.Pix[o+1] = 0
		dst.Pix[o+2] = 0
	}
}

// HueShift rotates every pixel's hue by deg degrees in CIE LCh and maps
// the result back into the sRGB gamut.
func HueShift(dst *canvas.Canvas, deg float64) {
	if deg == 0 {
		return
	}
	for o := 0; o+2 < len(dst.Pix); o += 3 {
		px := dst.Pix[o : o+3]
		if px[0] == 0 && px[1] == 0 && px[2] == 0 {
			continue
		}
		h, c, l := fromBytes(px).Hcl()
		h = math.Mod(h+deg, 360)
		if h < 0 {
			h += 360
		}
		toBytes(px, colorful.Hcl(h, c, l).Clamped())
	}
}

// Mix crossfades a into b by alpha (0..1) and writes the result to dst.
func Mix(dst, a, b *canvas.Canvas, alpha float64) {
	canvas.MustMatch(dst, a)
	canvas.MustMatch(dst, b)
	if alpha <= 0 {
		copy(dst.Pix, a.Pix)
		return
	}
	if alpha >= 1 {
		copy(dst.Pix, b.Pix)
		return
	}
	af := 1 - alpha
	for i := range dst.Pix {
		dst.Pix[i] = byte(math.Round(float64(a.Pix[i])*af + float64(b.Pix[i])*alpha))
	}
}

func scaleLightness(px []byte, f float64) {
	if f == 1 {
		return
	}
	h, s, l := fromBytes(px).Hsl()
	toBytes(px, colorful.Hsl(h, s, clamp01(l*f)))
}

func fromBytes(px []byte) colorful.Color {
	return colorful.Color{R: float64(px[0]) / 255, G: float64(px[1]) / 255, B: float64(px[2]) / 255}
}

// toBytes rounds to the nearest level so colour space round trips do not
// drift downwards.
func toBytes(px []byte, c colorful.Color) {
	px[0] = unit(c.R)
	px[1] = unit(c.G)
	px[2] = unit(c.B)
}

func unit(v float64) byte {
	if v <= 0 || math.IsNaN(v) {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return byte(math.Round(v * 255))
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
