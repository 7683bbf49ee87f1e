// Package dispatch connects resolved actions to the device bridges.
//
// Each category (lighting, video, audio) gets its own dispatcher publishing
// JSON commands to stagecue/command/{category}/{target}. The bridges own
// the device wire protocols; this package only guarantees delivery to the
// broker, with per-action retry and bounded per-attempt timeouts.
package dispatch
