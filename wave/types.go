// Package wave implements the wave execution-envelope DSL decoder, its
// invoke-payload grammar, and the internal/circuit consistency checks a
// wave must satisfy before a board can be built from it.
package wave

import "time"

// Mode selects whether a wave trains wikimyei components or only runs them.
type Mode int

const (
	ModeRun Mode = iota
	ModeTrain
)

func (m Mode) String() string {
	if m == ModeTrain {
		return "train"
	}
	return "run"
}

// Sampler selects the batch ordering strategy.
type Sampler int

const (
	SamplerSequential Sampler = iota
	SamplerRandom
)

func (s Sampler) String() string {
	if s == SamplerRandom {
		return "random"
	}
	return "sequential"
}

// WikimyeiEntry names one wikimyei path this wave drives, whether it is
// being trained, and an optional profile override.
type WikimyeiEntry struct {
	Path      string
	Train     bool
	ProfileID string
	Line      int
}

// SourceEntry names one source path this wave drives and its time span.
type SourceEntry struct {
	Path   string
	Symbol string
	From   time.Time
	To     time.Time
	Line   int
}

// Wave is one decoded WAVE block: an execution envelope over a circuit.
type Wave struct {
	Name                string
	Mode                Mode
	Sampler             Sampler
	Epochs              int64
	BatchSize           int64
	MaxBatchesPerEpoch  int64
	WikimyeiEntries     []WikimyeiEntry
	SourceEntries       []SourceEntry
	Line                int
}

// Document is the set of waves decoded from one DSL text.
type Document struct {
	Waves []*Wave
}

// ByName returns the wave with the given name, if any.
func (d *Document) ByName(name string) (*Wave, bool) {
	for _, w := range d.Waves {
		if w.Name == name {
			return w, true
		}
	}
	return nil, false
}
