// Package preflight provides readiness checks for the filesystem paths and
// sensor endpoints a recording depends on.
//
// These checks run in two contexts:
//   - "fieldrec check" runs RunAll and renders every result.
//   - The recorder calls CheckDirectoryAccess on the session root before any
//     capture starts and refuses to record when it fails.
package preflight
