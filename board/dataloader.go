package board

import (
	"math/rand"

	"github.com/cuwacunu/tsiemene/internal/errctx"
	"github.com/cuwacunu/tsiemene/observation"
	"github.com/cuwacunu/tsiemene/wave"
)

// ChannelSpec names one (symbol, interval) channel's backing file and
// feature width. This is the decoded form of one observation.channels DSL
// entry; the textual decoder for that DSL is not part of this tree (it is
// deliberately out of scope, see DESIGN.md), so callers pass an already
// resolved ObservationSpec into Instantiate directly.
type ChannelSpec struct {
	Symbol       string
	Interval     string
	Root         string
	FeatureWidth int
}

// ObservationSpec is the catalog of channels a board's builder may open,
// the decoded form of the §4.7 "decoded observation spec" input.
type ObservationSpec struct {
	Channels []ChannelSpec
}

// ChannelsForSymbol returns every declared channel for symbol, in document
// order; each becomes one row of the assembled [C,T,D] tensor.
func (o ObservationSpec) ChannelsForSymbol(symbol string) []ChannelSpec {
	var out []ChannelSpec
	for _, c := range o.Channels {
		if c.Symbol == symbol {
			out = append(out, c)
		}
	}
	return out
}

// SourceDataloader produces batches from one or more memory-mapped
// channels sharing a symbol, per the wave's sampler/batch-size/epoch
// configuration.
type SourceDataloader struct {
	channels  []*observation.Channel
	seqLen    int
	batchSize int
	sampler   wave.Sampler
	epochs    int64
	maxBatch  int64
	rng       *rand.Rand

	pos              int64
	batchesThisEpoch int64
	episodesDone     int64
}

// OpenSourceDataloader opens every channel spec for entry.Symbol and builds
// a dataloader bound to w's sampling configuration.
func OpenSourceDataloader(spec ObservationSpec, entry wave.SourceEntry, w *wave.Wave, seqLen int, rng *rand.Rand) (*SourceDataloader, error) {
	specs := spec.ChannelsForSymbol(entry.Symbol)
	if len(specs) == 0 {
		return nil, errctx.New(errctx.CodeSchema, "no observation channels declared for symbol %q", entry.Symbol)
	}
	channels := make([]*observation.Channel, 0, len(specs))
	for _, cs := range specs {
		ch, err := observation.OpenChannel(observation.ChannelFileName(cs.Root, cs.Symbol, cs.Interval), cs.FeatureWidth)
		if err != nil {
			for _, opened := range channels {
				opened.Close()
			}
			return nil, err
		}
		channels = append(channels, ch)
	}
	return &SourceDataloader{
		channels:  channels,
		seqLen:    seqLen,
		batchSize: int(w.BatchSize),
		sampler:   w.Sampler,
		epochs:    w.Epochs,
		maxBatch:  w.MaxBatchesPerEpoch,
		rng:       rng,
	}, nil
}

// C, T, D report the shape this dataloader's batches are assembled into.
func (d *SourceDataloader) C() int { return len(d.channels) }
func (d *SourceDataloader) T() int { return d.seqLen }
func (d *SourceDataloader) D() int {
	maxD := 0
	for _, c := range d.channels {
		if c.FeatureWidth() > maxD {
			maxD = c.FeatureWidth()
		}
	}
	return maxD
}

// Close releases every mapped channel.
func (d *SourceDataloader) Close() error {
	var errs errctx.Errs
	for _, c := range d.channels {
		errs.Add(c.Close())
	}
	return errs.Err()
}

func (d *SourceDataloader) nextIndex() int64 {
	ref := d.channels[0]
	n := int64(ref.Len())
	switch d.sampler {
	case wave.SamplerRandom:
		return d.rng.Int63n(n)
	default:
		idx := d.pos
		d.pos = (d.pos + 1) % n
		return idx
	}
}

// NextBatch assembles one batch of d.batchSize samples and reports whether
// the wave's epoch/episode bookkeeping has reached a boundary.
func (d *SourceDataloader) NextBatch() (*observation.Batch, Signal, error) {
	if d.episodesDone >= d.epochs {
		return nil, Signal{Done: true}, nil
	}
	samples := make([]*observation.Sample, d.batchSize)
	for i := 0; i < d.batchSize; i++ {
		idx := d.nextIndex()
		rec, err := d.channels[0].Get(int(idx))
		if err != nil {
			return nil, Signal{}, err
		}
		s, err := observation.Align(d.channels, rec.Key, d.seqLen)
		if err != nil {
			return nil, Signal{}, err
		}
		samples[i] = s
	}
	batch, err := observation.Stack(samples)
	if err != nil {
		return nil, Signal{}, err
	}

	d.batchesThisEpoch++
	sig := Signal{EndOfBatch: true}
	if d.maxBatch > 0 && d.batchesThisEpoch >= d.maxBatch {
		d.batchesThisEpoch = 0
		d.episodesDone++
		sig.EndOfEpoch = true
		if d.episodesDone >= d.epochs {
			sig.Done = true
		}
	}
	return batch, sig, nil
}
