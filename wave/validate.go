package wave

import "github.com/cuwacunu/tsiemene/internal/errctx"

// Validate checks one wave's internal consistency per §4.3: sources unique
// per path, at most one source when running (not training), and
// MODE=train requiring at least one trained wikimyei while MODE=run
// forbids any.
func Validate(w *Wave) error {
	errs := &errctx.Errs{}

	seenSource := map[string]bool{}
	for _, s := range w.SourceEntries {
		if seenSource[s.Path] {
			errs.Add(errctx.New(errctx.CodeSchema, "wave %q: duplicate source path %q", w.Name, s.Path))
		}
		seenSource[s.Path] = true
	}
	if w.Mode == ModeRun && len(w.SourceEntries) > 1 {
		errs.Add(errctx.New(errctx.CodeSchema, "wave %q: at most one source entry is allowed in run mode", w.Name))
	}

	anyTrain := false
	for _, e := range w.WikimyeiEntries {
		if e.Train {
			anyTrain = true
		}
	}
	switch w.Mode {
	case ModeTrain:
		if !anyTrain {
			errs.Add(errctx.New(errctx.CodeSchema, "wave %q: MODE=train requires at least one wikimyei with TRAIN true", w.Name))
		}
	case ModeRun:
		if anyTrain {
			errs.Add(errctx.New(errctx.CodeSchema, "wave %q: MODE=run forbids any wikimyei with TRAIN true", w.Name))
		}
	}

	if errs.Errored() {
		return errs
	}
	return nil
}

// ValidateAgainstCircuit checks that every WIKIMYEI and SOURCE path the wave
// references is a key of circuitPaths (the circuit's declared instance
// types). Only that direction is checked: a circuit path with no matching
// wave entry is accepted.
func ValidateAgainstCircuit(w *Wave, circuitPaths map[string]bool) error {
	errs := &errctx.Errs{}
	for _, e := range w.WikimyeiEntries {
		if !circuitPaths[e.Path] {
			errs.Add(errctx.New(errctx.CodeTopology, "wave %q: wikimyei path %q is not present in the circuit", w.Name, e.Path))
		}
	}
	for _, s := range w.SourceEntries {
		if !circuitPaths[s.Path] {
			errs.Add(errctx.New(errctx.CodeTopology, "wave %q: source path %q is not present in the circuit", w.Name, s.Path))
		}
	}
	if errs.Errored() {
		return errs
	}
	return nil
}
