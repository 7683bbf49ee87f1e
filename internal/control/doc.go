// Package control manages the operational configuration edited live during
// a show: device routing, per-category pause flags, schedule lead distance,
// the quiet window, and room definitions.
//
// The active config lives behind an atomic pointer. Every processing
// decision takes one snapshot and uses it to completion; a reload builds a
// complete new config from the JSON file, validates it, and swaps the
// pointer. A failed reload keeps the previous snapshot active.
package control
