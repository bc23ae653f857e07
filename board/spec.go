package board

import (
	"math/rand"

	"github.com/cuwacunu/tsiemene/circuit"
	"github.com/cuwacunu/tsiemene/contract"
	"github.com/cuwacunu/tsiemene/internal/boardmetrics"
	"github.com/cuwacunu/tsiemene/internal/logx"
	"github.com/cuwacunu/tsiemene/jkspec"
	"github.com/cuwacunu/tsiemene/runtimectx"
	"github.com/cuwacunu/tsiemene/typeregistry"
	"github.com/cuwacunu/tsiemene/wave"
)

// Spec is the pure, side-effect-free specification for one board contract:
// everything Instantiate needs, already decoded. It does no file I/O and
// builds no live objects, mirroring vicreg's Spec/Instantiate split.
type Spec struct {
	Contract     *contract.Contract
	WaveText     string
	Circuit      *circuit.Circuit
	Wave         *wave.Wave
	Tables       *jkspec.Tables
	Observation  ObservationSpec
	SeqLen       int
	TargetDevice string
}

// Ctx bundles the runtime collaborators Instantiate needs beyond the pure
// Spec: the shared hash-name/override registry, the closed type manifest,
// a seeded RNG for augmentation sampling, and the ambient logger.
type Ctx struct {
	RC      *runtimectx.RuntimeContext
	Reg     *typeregistry.Registry
	Rng     *rand.Rand
	Log     logx.Logger
	Metrics *boardmetrics.Registry // nil disables per-sink loss averaging
}

// NewCtx builds a Ctx with sensible defaults for any field left zero.
func NewCtx(rc *runtimectx.RuntimeContext, reg *typeregistry.Registry, seed int64, log logx.Logger) *Ctx {
	if reg == nil {
		reg = typeregistry.Default()
	}
	if log == nil {
		log = logx.NewNoOp()
	}
	return &Ctx{RC: rc, Reg: reg, Rng: rand.New(rand.NewSource(seed)), Log: log}
}
