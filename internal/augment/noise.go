package augment

import (
	"image"
	"image/color"
	"math"

	"gocv.io/x/gocv"
)

// BlurKernel is the Gaussian blur kernel size
const BlurKernel = 7

// replace swaps the contents of img for out, releasing the old matrix
func replace(img *gocv.Mat, out gocv.Mat) {
	img.Close()
	*img = out
}

// drawLines scratches n random grey lines across the crop. Each line starts
// on the bottom or top edge and ends on the left or right edge.
func (e *Engine) drawLines(img *gocv.Mat, n int) {
	ow, oh := e.size.W, e.size.H
	for i := 0; i < n; i++ {
		var r [5]float64
		for j := range r {
			r[j] = e.rng.Float64()
		}

		x0, y0 := int(float64(ow)*r[0]), oh
		x1, y1 := ow, int(float64(oh)*r[1])
		switch direction := r[2]; {
		case direction < 0.25:
			x1, y0 = 0, 0
		case direction < 0.5:
			x1 = 0
		case direction < 0.75:
			y0 = 0
		}

		c := uint8(255 * r[3])
		thickness := max(1, int(6*r[4]))
		gocv.Line(img, image.Pt(x0, y0), image.Pt(x1, y1), color.RGBA{R: c, G: c, B: c, A: 255}, thickness)
	}
}

// rescale drops resolution by a random factor and scales back up
func (e *Engine) rescale(img *gocv.Mat) {
	lo := e.ValueFromType(Rescale)
	if lo >= 1 {
		return
	}
	f := lo + e.rng.Float64()*(1-lo)

	small := gocv.NewMat()
	defer small.Close()
	gocv.Resize(*img, &small, image.Point{}, f, f, gocv.InterpolationCubic)

	eq := gocv.NewMat()
	defer eq.Close()
	gocv.EqualizeHist(small, &eq)

	out := gocv.NewMat()
	gocv.Resize(eq, &out, e.size.Image(), 0, 0, gocv.InterpolationCubic)
	replace(img, out)
}

// addIntensity adds uniform integer noise in [-v, v) and stretches the
// result back onto [0, 255].
func (e *Engine) addIntensity(img *gocv.Mat) {
	v := int(e.ValueFromType(Intensity))
	if v <= 0 {
		return
	}

	rows, cols := img.Rows(), img.Cols()
	noisy := gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV32F)
	defer noisy.Close()
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			px := int(img.GetUCharAt(y, x)) + e.rng.IntN(2*v) - v
			noisy.SetFloatAt(y, x, float32(px))
		}
	}

	stretched := gocv.NewMat()
	defer stretched.Close()
	gocv.Normalize(noisy, &stretched, 0, 255, gocv.NormMinMax)

	out := gocv.NewMat()
	stretched.ConvertTo(&out, gocv.MatTypeCV8U)
	replace(img, out)
}

func blur(img *gocv.Mat, noise float64) {
	if noise <= 0 {
		return
	}
	sigma := 0.5 + math.Abs(noise)
	out := gocv.NewMat()
	gocv.GaussianBlur(*img, &out, image.Pt(BlurKernel, BlurKernel), sigma, sigma, gocv.BorderDefault)
	replace(img, out)
}

// finalize equalizes the histogram and maps pixels onto [-1, 1]
func finalize(img *gocv.Mat) []float32 {
	eq := gocv.NewMat()
	defer eq.Close()
	gocv.EqualizeHist(*img, &eq)
	return Normalize(eq)
}

// Normalize maps an 8-bit grayscale image onto [-1, 1], row-major
func Normalize(img gocv.Mat) []float32 {
	rows, cols := img.Rows(), img.Cols()
	out := make([]float32, rows*cols)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			out[y*cols+x] = float32(img.GetUCharAt(y, x))*2/255 - 1
		}
	}
	return out
}
