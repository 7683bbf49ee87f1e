// Package field holds the canonical per-field state model, the allowed
// transition graph, and the file-backed store that persists it.
//
// The state graph is the normal match cycle
// standby → queued → countdown → active → finish → standby, with abort and
// reset edges from every state back to standby. State files are replaced
// atomically (temp write then rename) so concurrent readers never see
// partial content; writes for the same field serialize on a per-field lock.
package field
