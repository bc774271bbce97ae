// Package sharpness scores frames by the variance of their Laplacian and
// finds the sharpest frame of a video.
package sharpness

import (
	"image"

	"golang.org/x/image/draw"
)

// Grayscale converts img to 8-bit luma using ITU-R BT.601 weights. The result
// always has its origin at (0, 0).
func Grayscale(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok && g.Rect.Min == (image.Point{}) {
		return g
	}
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Rect, img, b.Min, draw.Src)
	return gray
}

// Laplacian applies the 3x3 kernel
//
//	0  1  0
//	1 -4  1
//	0  1  0
//
// to every pixel of g, mirroring the image at its borders without repeating
// the edge pixel. The responses are returned in row-major order.
func Laplacian(g *image.Gray) []float64 {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	out := make([]float64, w*h)
	if w == 0 || h == 0 {
		return out
	}

	at := func(x, y int) float64 {
		return float64(g.Pix[y*g.Stride+x])
	}

	for y := 0; y < h; y++ {
		up, down := reflect101(y-1, h), reflect101(y+1, h)
		for x := 0; x < w; x++ {
			left, right := reflect101(x-1, w), reflect101(x+1, w)
			out[y*w+x] = at(x, up) + at(x, down) + at(left, y) + at(right, y) - 4*at(x, y)
		}
	}
	return out
}

// reflect101 maps an out-of-range index back into [0, n) as in
// "gfedcb|abcdefgh|gfedcba".
func reflect101(i, n int) int {
	if n == 1 {
		return 0
	}
	if i < 0 {
		return -i
	}
	if i >= n {
		return 2*n - i - 2
	}
	return i
}

// Variance returns the population variance of values, or 0 for an empty slice.
func Variance(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return sq / float64(len(values))
}

// Score is the variance of the Laplacian of img's grayscale rendition.
// Higher means sharper.
func Score(img image.Image) float64 {
	return Variance(Laplacian(Grayscale(img)))
}
