// Package textutil sanitizes server-provided names before they reach the
// local filesystem.
package textutil
