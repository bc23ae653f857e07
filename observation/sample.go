package observation

import "github.com/cuwacunu/tsiemene/internal/errctx"

// Sample is one decoded ObservationSample: features[C][T][D] and
// mask[C][T], true iff the corresponding feature row is real data rather
// than synthesized padding.
type Sample struct {
	Features [][][]float64
	Mask     [][]bool
}

// Align queries each channel for the sequence of seqLen records ending at
// t, right-aligns them on t, and stacks the result into the canonical
// [C, T, D] form: channels whose native feature width is narrower than the
// widest channel are zero-padded in D, and positions with no backing
// channel data are zero-padded in T with mask=false.
func Align(channels []*Channel, t int64, seqLen int) (*Sample, error) {
	if len(channels) == 0 {
		return nil, errctx.New(errctx.CodeSchema, "Align requires at least one channel")
	}
	maxD := 0
	for _, ch := range channels {
		if ch.FeatureWidth() > maxD {
			maxD = ch.FeatureWidth()
		}
	}

	sample := &Sample{
		Features: make([][][]float64, len(channels)),
		Mask:     make([][]bool, len(channels)),
	}
	for ci, ch := range channels {
		idx, ok := ch.GetByKeyValue(t)
		rows := make([][]float64, seqLen)
		m := make([]bool, seqLen)
		if !ok {
			for ti := range rows {
				rows[ti] = make([]float64, maxD)
			}
			sample.Features[ci] = rows
			sample.Mask[ci] = m
			continue
		}
		recs, recMask, err := ch.GetSequenceEndingAtKeyValue(ch.keyAt(idx), seqLen)
		if err != nil {
			return nil, err
		}
		for ti, r := range recs {
			row := make([]float64, maxD)
			copy(row, r.Features)
			rows[ti] = row
		}
		sample.Features[ci] = rows
		sample.Mask[ci] = recMask
	}
	return sample, nil
}

// Batch is the batched form [B,C,T,D] / [B,C,T] of several Samples of
// identical shape.
type Batch struct {
	Features [][][][]float64
	Mask     [][][]bool
}

// Stack batches a slice of equally-shaped samples.
func Stack(samples []*Sample) (*Batch, error) {
	if len(samples) == 0 {
		return nil, errctx.New(errctx.CodeSchema, "Stack requires at least one sample")
	}
	c := len(samples[0].Features)
	b := &Batch{Features: make([][][][]float64, len(samples)), Mask: make([][][]bool, len(samples))}
	for i, s := range samples {
		if len(s.Features) != c {
			return nil, errctx.New(errctx.CodeSchema, "sample %d has %d channels, want %d", i, len(s.Features), c)
		}
		b.Features[i] = s.Features
		b.Mask[i] = s.Mask
	}
	return b, nil
}
