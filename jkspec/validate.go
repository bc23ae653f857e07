package jkspec

import (
	"strings"

	"github.com/cuwacunu/tsiemene/internal/errctx"
)

// componentFamily holds a COMPONENT type token's schema owner and family
// requirements; componentKinds maps each token to its componentFamily.
type componentFamily struct {
	owner            string
	requiresTraining bool // Optimizer + LRScheduler + Loss required
	forbidsTraining  bool
}

var componentKinds = map[string]componentFamily{
	"Source":   {owner: "component.Source", forbidsTraining: true},
	"Wikimyei": {owner: "component.Wikimyei", requiresTraining: true},
	"Sink":     {owner: "component.Sink", forbidsTraining: true},
}

// typeRow applies an OwnerSchema to a KVBlock, producing a Row and
// collecting every violation (unknown key, kind mismatch, missing
// required key) instead of stopping at the first one.
func typeRow(rowID string, block *KVBlock, schema OwnerSchema, errs *errctx.Errs) Row {
	fields := make(map[string]Value)
	if block != nil {
		for _, key := range block.Keys {
			ks, known := schema.Keys[key]
			if !known {
				errs.Add(errctx.New(errctx.CodeSchema, "unknown key %q for row %q", key, rowID))
				continue
			}
			raw := block.Values[key]
			v, err := TypeValue(raw, ks.Kind, block.Lines[key])
			if err != nil {
				errs.Add(errctx.Wrap(errctx.CodeSchema, err, "key %q in row %q", key, rowID))
				continue
			}
			fields[key] = v
		}
	}
	for key, ks := range schema.Keys {
		if !ks.Required {
			continue
		}
		if _, present := fields[key]; !present {
			errs.Add(errctx.New(errctx.CodeSchema, "row %q missing required key %q", rowID, key))
		}
	}
	return Row{RowID: rowID, Fields: fields}
}

// Validate runs schema validation against doc and, if it succeeds,
// materializes the table-of-tables form.
func Validate(doc *Document, schema *SchemaIndex) (*Tables, error) {
	errs := &errctx.Errs{}
	tables := &Tables{Selectors: make(map[string]string)}

	if doc.Selectors != nil {
		used := map[string]bool{}
		for _, k := range doc.Selectors.Keys {
			raw := doc.Selectors.Values[k]
			if raw.IsList || len(raw.Scalars) != 1 {
				errs.Add(errctx.New(errctx.CodeSchema, "selector %q must be a scalar", k))
				continue
			}
			target := raw.Scalars[0].Text
			if !selectorFields[target] {
				errs.Add(errctx.New(errctx.CodeSchema, "selector %q maps to unknown field %q", k, target))
				continue
			}
			if used[target] {
				errs.Add(errctx.New(errctx.CodeSchema, "selector target %q reused", target))
				continue
			}
			used[target] = true
			tables.Selectors[k] = target
		}
	}

	for _, comp := range doc.Components {
		fam, ok := componentKinds[comp.ComponentType]
		if !ok {
			errs.Add(errctx.New(errctx.CodeSchema, "unknown component type %q for row %q", comp.ComponentType, comp.RowID))
			continue
		}

		activeFound := false
		var activeOpt, activeSched, activeLoss string
		var activeParams Row

		for _, prof := range comp.Profiles {
			isActive := prof.Name == comp.ActiveProfile
			if isActive {
				activeFound = true
			}
			profRowID := comp.RowID + "@" + prof.Name
			tables.ComponentProfiles = append(tables.ComponentProfiles, ProfileRow{
				RowID: profRowID, ComponentID: comp.RowID, ProfileName: prof.Name, Active: isActive,
			})

			optBlock := prof.find("OPTIMIZER")
			schedBlock := prof.find("LR_SCHEDULER")
			lossBlock := prof.find("LOSS")
			if fam.requiresTraining && (optBlock == nil || schedBlock == nil || lossBlock == nil) {
				errs.Add(errctx.New(errctx.CodeSchema, "profile %q of component %q requires optimizer, lr_scheduler, and loss", prof.Name, comp.RowID))
			}
			if fam.forbidsTraining && (optBlock != nil || schedBlock != nil || lossBlock != nil) {
				errs.Add(errctx.New(errctx.CodeSchema, "profile %q of component %q must not declare optimizer/lr_scheduler/loss", prof.Name, comp.RowID))
			}

			var optID, schedID, lossID string
			if optBlock != nil {
				optID = profRowID + "::optimizer"
				s, ok := schema.Owner("optimizer." + optBlock.Type)
				if !ok {
					errs.Add(errctx.New(errctx.CodeSchema, "unknown optimizer type %q", optBlock.Type))
				} else {
					tables.Optimizers = append(tables.Optimizers, BuilderRow{RowID: optID, Type: optBlock.Type, Options: typeRow(optID, optBlock.Body, s, errs)})
				}
			}
			if schedBlock != nil {
				schedID = profRowID + "::scheduler"
				s, ok := schema.Owner("scheduler." + schedBlock.Type)
				if !ok {
					errs.Add(errctx.New(errctx.CodeSchema, "unknown lr_scheduler type %q", schedBlock.Type))
				} else {
					tables.LRSchedulers = append(tables.LRSchedulers, BuilderRow{RowID: schedID, Type: schedBlock.Type, Options: typeRow(schedID, schedBlock.Body, s, errs)})
				}
			}
			if lossBlock != nil {
				lossID = profRowID + "::loss"
				s, ok := schema.Owner("loss." + lossBlock.Type)
				if !ok {
					errs.Add(errctx.New(errctx.CodeSchema, "unknown loss type %q", lossBlock.Type))
				} else {
					tables.LossFunctions = append(tables.LossFunctions, BuilderRow{RowID: lossID, Type: lossBlock.Type, Options: typeRow(lossID, lossBlock.Body, s, errs)})
				}
			}

			paramsBlock := prof.find("COMPONENT_PARAMS")
			ownerSchema, _ := schema.Owner(fam.owner)
			var paramsBody *KVBlock
			if paramsBlock != nil {
				paramsBody = paramsBlock.Body
			}
			params := typeRow(profRowID, paramsBody, ownerSchema, errs)

			if augSet, ok := params.Option("augmentation_set"); ok {
				if len(tables.AugmentationsBySet(comp.RowID, augSet.StrV)) == 0 {
					found := false
					for _, a := range comp.Augmentations {
						if a.Name == augSet.StrV {
							found = true
						}
					}
					if !found {
						errs.Add(errctx.New(errctx.CodeSchema, "augmentation_set %q referenced by %q not declared", augSet.StrV, profRowID))
					}
				}
			}

			for _, kind := range []struct {
				name  string
				table *[]FamilyRow
			}{
				{"REPRODUCIBILITY", &tables.Reproducibility},
				{"NUMERICS", &tables.Numerics},
				{"GRADIENT", &tables.Gradient},
				{"CHECKPOINT", &tables.Checkpoint},
				{"METRICS", &tables.Metrics},
				{"DATA_REF", &tables.DataRef},
			} {
				if b := prof.find(kind.name); b != nil {
					s, _ := schema.Owner(strings.ToLower(kind.name))
					row := typeRow(profRowID, b.Body, s, errs)
					*kind.table = append(*kind.table, FamilyRow{RowID: profRowID, ComponentID: comp.RowID, ProfileName: prof.Name, Fields: row})
				}
			}

			if isActive {
				activeOpt, activeSched, activeLoss = optID, schedID, lossID
				activeParams = params
			}
		}

		if !activeFound {
			errs.Add(errctx.New(errctx.CodeSchema, "component %q ACTIVE_PROFILE %q does not match any declared profile", comp.RowID, comp.ActiveProfile))
		}

		for _, augSet := range comp.Augmentations {
			curveSchema, _ := schema.Owner("augmentation.curve")
			for _, curve := range augSet.Curves {
				if !curveKinds[curve.Kind] {
					errs.Add(errctx.New(errctx.CodeSchema, "unknown augmentation curve kind %q", curve.Kind))
					continue
				}
				rowID := comp.RowID + "@" + augSet.Name + "@" + curve.Kind
				fields := typeRow(rowID, curve.Body, curveSchema, errs)
				if v, ok := fields.Option("time_mask_band_frac"); ok && v.FloatV == 1 {
					errs.Add(errctx.New(errctx.CodeRange, "time_mask_band_frac == 1 is forbidden in %q", rowID))
				}
				tables.VicregAugmentations = append(tables.VicregAugmentations, AugmentationRow{
					SetName: augSet.Name, ComponentID: comp.RowID, Kind: curve.Kind, Fields: fields,
				})
			}
		}

		tables.Components = append(tables.Components, ComponentRow{
			RowID: comp.RowID, ComponentType: comp.ComponentType, ActiveProfile: comp.ActiveProfile,
			Optimizer: activeOpt, LRScheduler: activeSched, LossFunction: activeLoss, Params: activeParams,
		})
	}

	if errs.Errored() {
		return nil, errs
	}
	return tables, nil
}

// Decode tokenizes, parses, and validates src in one call.
func Decode(src string, schema *SchemaIndex) (*Tables, error) {
	doc, err := NewParser(src).Parse()
	if err != nil {
		return nil, err
	}
	return Validate(doc, schema)
}
