package vicreg

import (
	"math"

	"github.com/cuwacunu/tsiemene/internal/errctx"
)

// StepMode is a scheduler's stepping cadence.
type StepMode int

const (
	PerBatch StepMode = iota
	PerEpoch
	PerEpochWithMetric
)

// Scheduler advances an Optimizer's learning rate. Step is called at the
// cadence declared by Mode; PerEpochWithMetric schedulers additionally
// require a metric value on every call.
type Scheduler interface {
	Mode() StepMode
	Step(opt Optimizer, metric float64)
}

type constantLR struct {
	factor     float64
	totalIters int64
	base       float64
	calls      int64
	started    bool
}

func (s *constantLR) Mode() StepMode { return PerEpoch }
func (s *constantLR) Step(opt Optimizer, _ float64) {
	if !s.started {
		s.base = opt.LR()
		s.started = true
	}
	s.calls++
	if s.totalIters > 0 && s.calls > s.totalIters {
		opt.SetLR(s.base)
		return
	}
	opt.SetLR(s.base * s.factor)
}

type stepLR struct {
	stepSize int64
	gamma    float64
	base     float64
	epoch    int64
	started  bool
}

func (s *stepLR) Mode() StepMode { return PerEpoch }
func (s *stepLR) Step(opt Optimizer, _ float64) {
	if !s.started {
		s.base = opt.LR()
		s.started = true
	}
	s.epoch++
	decays := s.epoch / s.stepSize
	opt.SetLR(s.base * math.Pow(s.gamma, float64(decays)))
}

type multiStepLR struct {
	milestones []int64
	gamma      float64
	base       float64
	epoch      int64
	started    bool
}

func (s *multiStepLR) Mode() StepMode { return PerEpoch }
func (s *multiStepLR) Step(opt Optimizer, _ float64) {
	if !s.started {
		s.base = opt.LR()
		s.started = true
	}
	s.epoch++
	decays := int64(0)
	for _, m := range s.milestones {
		if s.epoch >= m {
			decays++
		}
	}
	opt.SetLR(s.base * math.Pow(s.gamma, float64(decays)))
}

type exponentialLR struct {
	gamma float64
}

func (s *exponentialLR) Mode() StepMode { return PerEpoch }
func (s *exponentialLR) Step(opt Optimizer, _ float64) {
	opt.SetLR(opt.LR() * s.gamma)
}

type reduceLROnPlateau struct {
	mode      string
	factor    float64
	patience  int64
	threshold float64
	best      float64
	haveBest  bool
	bad       int64
}

func (s *reduceLROnPlateau) Mode() StepMode { return PerEpochWithMetric }
func (s *reduceLROnPlateau) Step(opt Optimizer, metric float64) {
	improved := false
	if !s.haveBest {
		improved = true
	} else if s.mode == "max" {
		improved = metric > s.best+s.threshold
	} else {
		improved = metric < s.best-s.threshold
	}
	if improved {
		s.best = metric
		s.haveBest = true
		s.bad = 0
		return
	}
	s.bad++
	if s.bad > s.patience {
		opt.SetLR(opt.LR() * s.factor)
		s.bad = 0
	}
}

type oneCycleLR struct {
	maxLR      float64
	totalSteps int64
	step       int64
}

func (s *oneCycleLR) Mode() StepMode { return PerBatch }
func (s *oneCycleLR) Step(opt Optimizer, _ float64) {
	s.step++
	half := float64(s.totalSteps) / 2
	var frac float64
	if float64(s.step) <= half {
		frac = float64(s.step) / half
	} else {
		frac = 1 - (float64(s.step)-half)/half
	}
	if frac < 0 {
		frac = 0
	}
	opt.SetLR(s.maxLR * frac)
}

type cosineAnnealingLR struct {
	tMax   int64
	etaMin float64
	base   float64
	epoch  int64
	started bool
}

func (s *cosineAnnealingLR) Mode() StepMode { return PerEpoch }
func (s *cosineAnnealingLR) Step(opt Optimizer, _ float64) {
	if !s.started {
		s.base = opt.LR()
		s.started = true
	}
	s.epoch++
	cos := (1 + math.Cos(math.Pi*float64(s.epoch)/float64(s.tMax))) / 2
	opt.SetLR(s.etaMin + (s.base-s.etaMin)*cos)
}

type warmupLR struct {
	warmupSteps int64
	baseLR      float64
	step        int64
}

func (s *warmupLR) Mode() StepMode { return PerBatch }
func (s *warmupLR) Step(opt Optimizer, _ float64) {
	s.step++
	if s.step >= s.warmupSteps {
		opt.SetLR(s.baseLR)
		return
	}
	opt.SetLR(s.baseLR * float64(s.step) / float64(s.warmupSteps))
}

// BuildScheduler constructs the concrete Scheduler named by spec.Type.
func BuildScheduler(spec BuilderSpec) (Scheduler, error) {
	r := spec.Row
	switch spec.Type {
	case "ConstantLR":
		return &constantLR{factor: r.OptionFloat("factor", 1.0/3), totalIters: r.OptionInt("total_iters", 5)}, nil
	case "StepLR":
		return &stepLR{stepSize: r.OptionInt("step_size", 1), gamma: r.OptionFloat("gamma", 0.1)}, nil
	case "MultiStepLR":
		return &multiStepLR{milestones: r.OptionIntList("milestones"), gamma: r.OptionFloat("gamma", 0.1)}, nil
	case "ExponentialLR":
		return &exponentialLR{gamma: r.OptionFloat("gamma", 0.9)}, nil
	case "ReduceLROnPlateau":
		return &reduceLROnPlateau{
			mode:      r.OptionString("mode", "min"),
			factor:    r.OptionFloat("factor", 0.1),
			patience:  r.OptionInt("patience", 10),
			threshold: r.OptionFloat("threshold", 1e-4),
		}, nil
	case "OneCycleLR":
		return &oneCycleLR{maxLR: r.OptionFloat("max_lr", 0), totalSteps: r.OptionInt("total_steps", 1)}, nil
	case "CosineAnnealingLR":
		return &cosineAnnealingLR{tMax: r.OptionInt("t_max", 1), etaMin: r.OptionFloat("eta_min", 0)}, nil
	case "WarmupLR":
		return &warmupLR{warmupSteps: r.OptionInt("warmup_steps", 1), baseLR: r.OptionFloat("base_lr", 0)}, nil
	default:
		return nil, errctx.New(errctx.CodeSchema, "unknown scheduler type %q", spec.Type)
	}
}
