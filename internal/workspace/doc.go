// Package workspace manages the directories a documentation build runs in.
// Source checkouts are persistent, one per project under <root>/checkouts,
// so repeat builds fetch instead of recloning. Everything else a build
// touches (the pages clone, staged reports) lives in an ephemeral directory
// under <root>/builds named project-timestamp-id
// (e.g. d3d12-20260823-142251-9f3a21c4).
//
// Build directories are removed after the build unless the workspace is
// configured with keep, which retains them for post-mortem inspection.
package workspace
