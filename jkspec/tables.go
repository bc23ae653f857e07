package jkspec

// ComponentRow is one row of components_table: the active profile's view
// of a component, with builder-row references resolved.
type ComponentRow struct {
	RowID         string // component_id
	ComponentType string
	ActiveProfile string
	Optimizer     string // "<profile_row>::optimizer", empty if none
	LRScheduler   string
	LossFunction  string
	Params        Row
}

// ProfileRow is one row of component_profiles_table.
type ProfileRow struct {
	RowID       string // "<component_id>@<profile_name>"
	ComponentID string
	ProfileName string
	Active      bool
}

// BuilderRow is one row of optimizers_table / lr_schedulers_table / loss_functions_table.
type BuilderRow struct {
	RowID   string
	Type    string
	Options Row
}

// FamilyRow is one row of a per-profile family table (reproducibility,
// numerics, gradient, checkpoint, metrics, data_ref).
type FamilyRow struct {
	RowID       string // "<component_id>@<profile_name>"
	ComponentID string
	ProfileName string
	Fields      Row
}

// AugmentationRow is one row of vicreg_augmentations: one curve within one
// named augmentation set.
type AugmentationRow struct {
	SetName     string
	ComponentID string
	Kind        string
	Fields      Row
}

// Tables is the fully materialized table-of-tables form of a JKSPEC document.
type Tables struct {
	Selectors map[string]string

	Components       []ComponentRow
	ComponentProfiles []ProfileRow

	Optimizers   []BuilderRow
	LRSchedulers []BuilderRow
	LossFunctions []BuilderRow

	Reproducibility []FamilyRow
	Numerics        []FamilyRow
	Gradient        []FamilyRow
	Checkpoint      []FamilyRow
	Metrics         []FamilyRow
	DataRef         []FamilyRow

	VicregAugmentations []AugmentationRow
}

// ComponentByID returns the components_table row with the given id.
func (t *Tables) ComponentByID(id string) (ComponentRow, bool) {
	for _, c := range t.Components {
		if c.RowID == id {
			return c, true
		}
	}
	return ComponentRow{}, false
}

// ActiveProfileID returns "<component_id>@<active_profile>" for component id.
func (t *Tables) ActiveProfileID(componentID string) (string, bool) {
	c, ok := t.ComponentByID(componentID)
	if !ok {
		return "", false
	}
	return componentID + "@" + c.ActiveProfile, true
}

// AugmentationsBySet returns every curve row for a named augmentation set
// scoped to a component.
func (t *Tables) AugmentationsBySet(componentID, setName string) []AugmentationRow {
	var out []AugmentationRow
	for _, a := range t.VicregAugmentations {
		if a.ComponentID == componentID && a.SetName == setName {
			out = append(out, a)
		}
	}
	return out
}
