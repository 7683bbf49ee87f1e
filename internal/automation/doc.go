// Package automation contains the dispatch core: the action model, the
// layered action mappings, the resolver, and the event processor.
//
// The processor (Engine) is the single consumer of the event queue. For
// each event it applies the field-state transition the event requests,
// takes one operational-config snapshot, resolves the "all" plus per-field
// action lists for the event type and any state transition, dispatches
// unpaused actions to the device collaborators, and records an audit entry
// with per-action outcomes. Scheduled-match notifications and operator
// popups flow through the same path but write the derived display views
// instead of field state.
//
// Actions are a closed tagged variant over the lighting, video, and audio
// categories. The resolver is pure: it concatenates the "all" list and the
// field-specific list in that order, never deduplicating.
package automation
