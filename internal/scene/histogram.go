package scene

// histogram.go provides per-channel RGB color histograms and the
// frame-difference scores computed from them. Histograms are the default
// similarity signal for shot-boundary detection; they are robust to noise
// and minor lighting variation while reacting strongly to cuts.

import (
	"image"
	"math"

	"golang.org/x/image/draw"
)

const (
	// HistogramBins is the number of bins per RGB channel. 32 bins gives
	// enough granularity for scene change detection without being thrown
	// off by sensor noise.
	HistogramBins = 32

	// histogramMaxWidth bounds the pixel count fed into histogram
	// computation. Frames wider than this are downscaled first.
	histogramMaxWidth = 160
)

// Histogram is a normalized per-channel RGB histogram, stored as three
// concatenated channel blocks: [R bins | G bins | B bins].
type Histogram struct {
	Bins [3 * HistogramBins]float64
}

// ComputeHistogram computes a normalized RGB histogram for an image.
// Large frames are downscaled before counting so the cost stays flat
// regardless of source resolution.
func ComputeHistogram(img image.Image) *Histogram {
	img = scaleForHistogram(img)

	hist := &Histogram{}
	bounds := img.Bounds()
	binSize := 256 / HistogramBins

	total := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			// RGBA() returns 16-bit values; scale to 8-bit
			rBin := clampBin(int(r>>8) / binSize)
			gBin := clampBin(int(g>>8) / binSize)
			bBin := clampBin(int(b>>8) / binSize)

			hist.Bins[rBin]++
			hist.Bins[HistogramBins+gBin]++
			hist.Bins[2*HistogramBins+bBin]++
			total++
		}
	}

	if total > 0 {
		n := float64(total)
		for i := range hist.Bins {
			hist.Bins[i] /= n
		}
	}

	return hist
}

func clampBin(b int) int {
	if b >= HistogramBins {
		return HistogramBins - 1
	}
	return b
}

// scaleForHistogram downscales wide frames with a cheap bilinear kernel.
func scaleForHistogram(img image.Image) image.Image {
	bounds := img.Bounds()
	w := bounds.Dx()
	if w <= histogramMaxWidth || w == 0 {
		return img
	}

	h := bounds.Dy() * histogramMaxWidth / w
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, histogramMaxWidth, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, bounds, draw.Src, nil)
	return dst
}

// ScoreFunc computes a difference score between two consecutive frame
// histograms. Higher means more different. The concrete metric is a
// replaceable strategy; the detector only assumes scores are non-negative
// and comparable across a run.
type ScoreFunc func(prev, cur *Histogram) float64

// ChiSquare is the default difference score: the chi-square distance
// between normalized histograms. Zero for identical frames.
func ChiSquare(prev, cur *Histogram) float64 {
	var sum float64
	for i := range prev.Bins {
		denom := prev.Bins[i] + cur.Bins[i]
		if denom == 0 {
			continue
		}
		d := prev.Bins[i] - cur.Bins[i]
		sum += (d * d) / denom
	}
	return 0.5 * sum
}

// Correlation scores difference as 1 minus the Pearson correlation of the
// two histograms, equivalent to OpenCV's HISTCMP_CORREL inverted. Zero for
// identical frames, up to 2 for inversely correlated ones.
func Correlation(prev, cur *Histogram) float64 {
	n := len(prev.Bins)

	var mean1, mean2 float64
	for i := 0; i < n; i++ {
		mean1 += prev.Bins[i]
		mean2 += cur.Bins[i]
	}
	mean1 /= float64(n)
	mean2 /= float64(n)

	var numerator, denom1, denom2 float64
	for i := 0; i < n; i++ {
		d1 := prev.Bins[i] - mean1
		d2 := cur.Bins[i] - mean2
		numerator += d1 * d2
		denom1 += d1 * d1
		denom2 += d2 * d2
	}

	denom := math.Sqrt(denom1 * denom2)
	if denom < 1e-10 {
		// Both histograms are essentially uniform: treat as identical.
		return 0
	}
	return 1 - numerator/denom
}
