package contract

import (
	"github.com/cuwacunu/tsiemene/runtimectx"
)

// SetProfileOverride records a wave-time profile choice: when a wave's
// WIKIMYEI entry supplies a PROFILE_ID, the board builder registers it here,
// scoped to this contract only. The record is read back only through
// ProfileOverride; the board builder does not consult it when it resolves
// the component's training setup, which still comes from the component's
// ACTIVE_PROFILE rows via vicreg.FromComponent.
func SetProfileOverride(rc *runtimectx.RuntimeContext, c *Contract, componentName, profileID string) {
	rc.SetOverride(c.Hash.String(), componentName, profileID)
}

// ProfileOverride reports the override in effect for componentName under
// contract c, if any.
func ProfileOverride(rc *runtimectx.RuntimeContext, c *Contract, componentName string) (string, bool) {
	return rc.Override(c.Hash.String(), componentName)
}
