// Package specs discovers installed Jupyter kernel specifications.
//
// A kernel spec is a directory containing a kernel.json that declares the
// argv template, environment, and display metadata for launching one kernel
// implementation. Registry scans the platform search path (JUPYTER_PATH,
// per-user data dir, system dirs), caches the result, and resolves kernels by
// name. Malformed entries are skipped, not fatal.
package specs
