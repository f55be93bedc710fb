package ambient

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	xdraw "golang.org/x/image/draw"
)

// Luma converts a raw frame to 8-bit grey using Rec. 709 weights.
func Luma(f RawFrame) (*image.Gray, error) {
	switch f.Format.FourCC {
	case FourCCRGB3:
		w, h := f.Format.Width, f.Format.Height
		if w <= 0 || h <= 0 || len(f.Data) < w*h*3 {
			return nil, fmt.Errorf("%w: rgb frame %dx%d with %d bytes", ErrDecode, w, h, len(f.Data))
		}
		g := image.NewGray(image.Rect(0, 0, w, h))
		for i := range g.Pix {
			o := i * 3
			g.Pix[i] = luma(uint32(f.Data[o]), uint32(f.Data[o+1]), uint32(f.Data[o+2]))
		}
		return g, nil
	case FourCCMJPG:
		img, err := jpeg.Decode(bytes.NewReader(f.Data))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		return grayOf(img), nil
	default:
		return nil, fmt.Errorf("%w: unsupported pixel format %q", ErrDecode, f.Format.FourCC)
	}
}

func grayOf(img image.Image) *image.Gray {
	b := img.Bounds()
	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	if yc, ok := img.(*image.YCbCr); ok {
		// JPEG luma plane is close enough to the weighted sum
		for y := 0; y < b.Dy(); y++ {
			copy(g.Pix[y*g.Stride:y*g.Stride+b.Dx()], yc.Y[yc.YOffset(b.Min.X, b.Min.Y+y):])
		}
		return g
	}
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			r, gg, bb, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			g.Pix[y*g.Stride+x] = luma(r>>8, gg>>8, bb>>8)
		}
	}
	return g
}

func luma(r, g, b uint32) uint8 {
	return uint8((2126*r + 7152*g + 722*b) / 10000)
}

// Downscale shrinks g to at most width pixels wide, keeping the aspect.
// Smaller images come back untouched.
func Downscale(g *image.Gray, width int) *image.Gray {
	b := g.Bounds()
	if width <= 0 || b.Dx() <= width {
		return g
	}
	h := max(1, b.Dy()*width/b.Dx())
	dst := image.NewGray(image.Rect(0, 0, width, h))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), g, b, xdraw.Src, nil)
	return dst
}

// Percentile returns the smallest level v such that at least p percent of
// the pixels are at or below v. An empty image yields 0.
func Percentile(g *image.Gray, p int) uint8 {
	p = min(max(p, 0), 100)
	var hist [256]int
	b := g.Bounds()
	if b.Empty() {
		return 0
	}
	total := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := g.Pix[g.PixOffset(b.Min.X, y) : g.PixOffset(b.Max.X-1, y)+1]
		for _, v := range row {
			hist[v]++
		}
		total += len(row)
	}
	cum := 0
	for v := 0; v < 256; v++ {
		cum += hist[v]
		if cum*100 >= p*total {
			return uint8(v)
		}
	}
	return 255
}

// Reduce turns a frame into the published brightness value.
func Reduce(f RawFrame, sampleWidth, p int) (uint8, error) {
	g, err := Luma(f)
	if err != nil {
		return 0, err
	}
	return Percentile(Downscale(g, sampleWidth), p), nil
}
