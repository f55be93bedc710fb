package canvas

import (
	"image"
	"image/color"
)

// Canvas is a fixed-size RGB frame buffer, row-major, origin top-left.
// Channels are stored as 8-bit values; the float API works in 0..1.
type Canvas struct {
	w, h int
	Pix  []byte
}

// New allocates a black canvas of w x h pixels.
func New(w, h int) *Canvas {
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	return &Canvas{w: w, h: h, Pix: make([]byte, w*h*3)}
}

func (c *Canvas) Width() int  { return c.w }
func (c *Canvas) Height() int { return c.h }

// Len is the number of pixels.
func (c *Canvas) Len() int { return c.w * c.h }

// Bytes exposes the raw RGB store. Sinks must not keep it past the call.
func (c *Canvas) Bytes() []byte { return c.Pix }

func (c *Canvas) Clear() {
	for i := range c.Pix {
		c.Pix[i] = 0
	}
}

// ClearTo fills every pixel with one colour.
func (c *Canvas) ClearTo(r, g, b float32) {
	rb, gb, bb := toByte(r), toByte(g), toByte(b)
	for i := 0; i+2 < len(c.Pix); i += 3 {
		c.Pix[i], c.Pix[i+1], c.Pix[i+2] = rb, gb, bb
	}
}

// SetPixel stores a colour. Coordinates must be inside the canvas.
func (c *Canvas) SetPixel(x, y int, r, g, b float32) {
	i := c.offset(x, y)
	c.Pix[i] = toByte(r)
	c.Pix[i+1] = toByte(g)
	c.Pix[i+2] = toByte(b)
}

// Pixel returns the stored colour scaled back to 0..1.
func (c *Canvas) Pixel(x, y int) [3]float32 {
	i := c.offset(x, y)
	return [3]float32{
		float32(c.Pix[i]) / 255,
		float32(c.Pix[i+1]) / 255,
		float32(c.Pix[i+2]) / 255,
	}
}

// Lit reports whether any channel of the pixel at linear index i is non-zero.
func (c *Canvas) Lit(i int) bool {
	o := i * 3
	return c.Pix[o] != 0 || c.Pix[o+1] != 0 || c.Pix[o+2] != 0
}

// CopyFrom overwrites c with src. Dimensions must match.
func (c *Canvas) CopyFrom(src *Canvas) {
	mustMatch(c, src)
	copy(c.Pix, src.Pix)
}

func (c *Canvas) Clone() *Canvas {
	out := New(c.w, c.h)
	copy(out.Pix, c.Pix)
	return out
}

// SameSize reports whether two canvases share dimensions.
func SameSize(a, b *Canvas) bool { return a.w == b.w && a.h == b.h }

func (c *Canvas) offset(x, y int) int {
	if x < 0 || y < 0 || x >= c.w || y >= c.h {
		panic("canvas: pixel out of range")
	}
	return (y*c.w + x) * 3
}

func mustMatch(a, b *Canvas) {
	if !SameSize(a, b) {
		panic("canvas: dimension mismatch")
	}
}

// MustMatch panics when a and b differ in size. Filters call it up front.
func MustMatch(a, b *Canvas) { mustMatch(a, b) }

func toByte(v float32) byte {
	if v <= 0 || v != v {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return byte(v * 255)
}

// ---- draw.Image ----

func (c *Canvas) ColorModel() color.Model { return color.RGBAModel }

func (c *Canvas) Bounds() image.Rectangle { return image.Rect(0, 0, c.w, c.h) }

func (c *Canvas) At(x, y int) color.Color {
	if !(image.Point{x, y}.In(c.Bounds())) {
		return color.RGBA{}
	}
	i := (y*c.w + x) * 3
	return color.RGBA{R: c.Pix[i], G: c.Pix[i+1], B: c.Pix[i+2], A: 0xff}
}

// Set replaces the pixel with col; compositing is left to image/draw.
// Points outside the canvas are ignored, as glyph drawing clips against
// Bounds.
func (c *Canvas) Set(x, y int, col color.Color) {
	if !(image.Point{x, y}.In(c.Bounds())) {
		return
	}
	i := (y*c.w + x) * 3
	px := color.RGBAModel.Convert(col).(color.RGBA)
	c.Pix[i], c.Pix[i+1], c.Pix[i+2] = px.R, px.G, px.B
}
