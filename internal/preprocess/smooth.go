package preprocess

import "math"

// gaussianKernel returns a normalized Gaussian kernel with the given
// standard deviation in samples, truncated at 4 sigma.
func gaussianKernel(sigma float64) []float64 {
	radius := int(4*sigma + 0.5)
	if radius < 1 {
		radius = 1
	}
	kernel := make([]float64, 2*radius+1)
	sum := 0.0
	for i := -radius; i <= radius; i++ {
		v := math.Exp(-float64(i*i) / (2 * sigma * sigma))
		kernel[i+radius] = v
		sum += v
	}
	for i := range kernel {
		kernel[i] /= sum
	}
	return kernel
}

// reflectIndex maps an out-of-range index into [0, n) by mirroring about
// the array edges, duplicating the edge sample.
func reflectIndex(i, n int) int {
	if n == 1 {
		return 0
	}
	period := 2 * n
	i = ((i % period) + period) % period
	if i >= n {
		i = period - 1 - i
	}
	return i
}

// smooth1d convolves x with kernel using reflected boundaries.
func smooth1d(x, kernel []float64) []float64 {
	n := len(x)
	radius := (len(kernel) - 1) / 2
	out := make([]float64, n)
	for t := 0; t < n; t++ {
		acc := 0.0
		for k := -radius; k <= radius; k++ {
			acc += kernel[k+radius] * x[reflectIndex(t+k, n)]
		}
		out[t] = acc
	}
	return out
}
