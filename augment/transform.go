package augment

import (
	"math"
	"math/rand"
)

// CausalTimeWarp resamples x/mask (shape [C,T,D] / [C,T]) along the warp
// map phi (length T): output step t blends the floor/ceil source indices
// of phi[t], marking the result invalid whenever either source position is
// masked off in the input.
func CausalTimeWarp(x [][][]float64, mask [][]bool, phi []float64) ([][][]float64, [][]bool) {
	c := len(x)
	if c == 0 {
		return x, mask
	}
	tLen := len(phi)
	d := len(x[0][0])

	outX := make([][][]float64, c)
	outMask := make([][]bool, c)
	for ci := 0; ci < c; ci++ {
		outX[ci] = make([][]float64, tLen)
		outMask[ci] = make([]bool, tLen)
		for t := 0; t < tLen; t++ {
			src := phi[t]
			floor := int(math.Floor(src))
			ceil := floor + 1
			if floor < 0 {
				floor = 0
			}
			if floor > tLen-1 {
				floor = tLen - 1
			}
			if ceil > tLen-1 {
				ceil = tLen - 1
			}
			row := make([]float64, d)
			if !mask[ci][floor] || !mask[ci][ceil] {
				outX[ci][t] = row
				outMask[ci][t] = false
				continue
			}
			frac := src - float64(floor)
			for j := 0; j < d; j++ {
				row[j] = (1-frac)*x[ci][floor][j] + frac*x[ci][ceil][j]
			}
			outX[ci][t] = row
			outMask[ci][t] = true
		}
	}
	return outX, outMask
}

// ValueJitter adds independent Gaussian noise of the given std to every
// valid position.
func ValueJitter(x [][][]float64, mask [][]bool, std float64, rng *rand.Rand) {
	if std <= 0 {
		return
	}
	for ci := range x {
		for t := range x[ci] {
			if !mask[ci][t] {
				continue
			}
			for j := range x[ci][t] {
				x[ci][t][j] += rng.NormFloat64() * std
			}
		}
	}
}

// BandMask zeros out a contiguous time band of width bandFrac*T at a
// uniformly chosen start, invalidating the covered positions on every
// channel. bandFrac must be in [0,1); a value of 1 is rejected upstream at
// decode time since it would invalidate every position.
func BandMask(x [][][]float64, mask [][]bool, bandFrac float64, rng *rand.Rand) {
	if bandFrac <= 0 {
		return
	}
	tLen := len(mask[0])
	width := int(bandFrac * float64(tLen))
	if width <= 0 {
		return
	}
	maxStart := tLen - width
	if maxStart < 0 {
		maxStart = 0
	}
	start := rng.Intn(maxStart + 1)
	for ci := range x {
		for t := start; t < start+width && t < tLen; t++ {
			mask[ci][t] = false
			for j := range x[ci][t] {
				x[ci][t][j] = 0
			}
		}
	}
}

// ChannelDropout zeroes and invalidates an entire channel with independent
// probability p.
func ChannelDropout(x [][][]float64, mask [][]bool, p float64, rng *rand.Rand) {
	if p <= 0 {
		return
	}
	for ci := range x {
		if rng.Float64() >= p {
			continue
		}
		for t := range x[ci] {
			mask[ci][t] = false
			for j := range x[ci][t] {
				x[ci][t][j] = 0
			}
		}
	}
}

// PointDrop zeroes and invalidates individual currently-valid positions
// with independent probability p.
func PointDrop(x [][][]float64, mask [][]bool, p float64, rng *rand.Rand) {
	if p <= 0 {
		return
	}
	for ci := range x {
		for t := range x[ci] {
			if !mask[ci][t] {
				continue
			}
			if rng.Float64() < p {
				mask[ci][t] = false
				for j := range x[ci][t] {
					x[ci][t][j] = 0
				}
			}
		}
	}
}
