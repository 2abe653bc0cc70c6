// Package replay executes gfx frames against a native graphics API.
//
// [Engine] implements [gfx.Backend] once for every native API. The native
// side is reduced to the narrow [Device] interface: object creation and
// destruction, binds, draws, clears and blits. Everything else is shared:
//
//   - mirrors: one native object per resource, keyed by resource ID and
//     rebuilt when the resource stamp changes
//   - the state cache: a shadow of bound native state used to drop
//     redundant binds
//   - the trash queue: native objects are destroyed only in Recycle, on the
//     goroutine that owns the device
//   - the two-pass replay: a transfer pass resolves every resource and
//     uploads all per-draw transforms of a batch at once, then a draw pass
//     dispatches each command through a table indexed by [batch.Command]
//   - stereo: one recorded draw becomes an instanced draw or two per-eye
//     draws, depending on the device capability
//
// An Engine is used from a single goroutine, except for [Engine.Forget],
// [Engine.Trash] and [Engine.Defer], which may be called from any goroutine.
package replay
