package canvas

import (
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewIsBlack(t *testing.T) {
	c := New(64, 32)
	assert.Equal(t, 64*32*3, len(c.Bytes()))
	for i := 0; i < c.Len(); i++ {
		if c.Lit(i) {
			t.Fatalf("pixel %d lit on a fresh canvas", i)
		}
	}
}

func TestSetPixelRoundTrip(t *testing.T) {
	c := New(8, 4)
	samples := [][3]float32{
		{0, 0, 0},
		{1, 1, 1},
		{0.5, 0.25, 0.75},
		{0.1, 0.9, 0.7},
		{0.003, 0.997, 0.333},
	}
	for i, s := range samples {
		x, y := i%8, i/8
		c.SetPixel(x, y, s[0], s[1], s[2])
		got := c.Pixel(x, y)
		for ch := 0; ch < 3; ch++ {
			assert.InDelta(t, s[ch], got[ch], 1.0/255, "sample %d channel %d", i, ch)
		}
	}
}

func TestSetPixelTruncatesAndSaturates(t *testing.T) {
	c := New(1, 1)
	c.SetPixel(0, 0, 0.5, -2, 7)
	assert.Equal(t, []byte{127, 0, 255}, c.Bytes())
}

func TestClearAndClearTo(t *testing.T) {
	c := New(3, 3)
	c.ClearTo(1, 0, 0)
	assert.Equal(t, [3]float32{1, 0, 0}, c.Pixel(2, 2))
	c.Clear()
	assert.Equal(t, [3]float32{0, 0, 0}, c.Pixel(2, 2))
}

func TestOutOfRangePanics(t *testing.T) {
	c := New(4, 4)
	assert.Panics(t, func() { c.SetPixel(4, 0, 1, 1, 1) })
	assert.Panics(t, func() { c.Pixel(0, -1) })
}

func TestCopyFromMismatchPanics(t *testing.T) {
	a, b := New(4, 4), New(4, 5)
	assert.Panics(t, func() { a.CopyFrom(b) })
}

func TestCloneIsIndependent(t *testing.T) {
	a := New(2, 2)
	a.SetPixel(1, 1, 1, 1, 1)
	b := a.Clone()
	a.Clear()
	assert.True(t, b.Lit(3))
	assert.False(t, a.Lit(3))
}

func TestDrawImageSurface(t *testing.T) {
	c := New(4, 4)
	var dst draw.Image = c
	draw.Draw(dst, image.Rect(1, 1, 3, 3), image.NewUniform(color.RGBA{0, 255, 0, 255}), image.Point{}, draw.Src)
	assert.Equal(t, [3]float32{0, 1, 0}, c.Pixel(1, 1))
	assert.Equal(t, [3]float32{0, 1, 0}, c.Pixel(2, 2))
	assert.False(t, c.Lit(0))

	// outside points are dropped rather than panicking
	c.Set(10, 10, color.White)
	assert.Equal(t, color.RGBA{}, c.At(-1, 0))
}

func TestSetReplacesTranslucentPixels(t *testing.T) {
	c := New(2, 1)
	c.ClearTo(1, 1, 1)

	// Src with a translucent source replaces, it does not composite
	half := color.RGBA{R: 0x80, A: 0x80}
	draw.Draw(c, image.Rect(0, 0, 1, 1), image.NewUniform(half), image.Point{}, draw.Src)
	assert.Equal(t, []byte{0x80, 0, 0}, c.Pix[0:3])

	// Over still blends through image/draw
	draw.Draw(c, image.Rect(1, 0, 2, 1), image.NewUniform(half), image.Point{}, draw.Over)
	assert.InDelta(t, 0xff, int(c.Pix[3]), 1)
	assert.InDelta(t, 0x7f, int(c.Pix[4]), 1)
	assert.InDelta(t, 0x7f, int(c.Pix[5]), 1)
}
