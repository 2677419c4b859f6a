// Package preflight provides readiness checks for the binaries, directories
// and endpoints reframe depends on.
//
// The CLI "reframe doctor" command runs every check; "reframe run" runs
// RunAll before extracting so a job does not fail hours in on a full disk or
// an unwritable work root.
//
// Each endpoint check is gated by its config toggle -- disabled features are
// reported as such and pass.
package preflight
