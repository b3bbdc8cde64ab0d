// Package preflight provides readiness checks for the filesystem paths,
// capture binaries and solver artifacts the pipeline depends on.
//
// These checks run in two contexts:
//   - The workflow manager calls RunAll before processing each queue item.
//     If any check fails, the lane halts instead of failing sessions one
//     after another.
//   - The CLI "astropitography status" command uses individual check
//     functions (CheckDirectoryAccess, CheckNtfy, ProbeCamera) to display
//     runtime health.
//
// Each check is gated by its config toggle -- disabled features are skipped.
package preflight
