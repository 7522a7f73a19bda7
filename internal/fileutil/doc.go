// Package fileutil provides file operation utilities for directory and file management.
//
// EnsureDir creates directories recursively, WriteFileAtomic writes files via
// temp-file-then-rename so readers never observe partial contents, and
// RemoveIfExists deletes idempotently. These are used for preparing runtime
// directories and writing kernel connection files.
package fileutil
