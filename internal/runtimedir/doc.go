// Package runtimedir resolves the per-user runtime directory that holds
// connection files, and garbage-collects connection files left behind by
// kernels that are no longer running.
package runtimedir
