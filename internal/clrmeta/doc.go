// SPDX-License-Identifier: MPL-2.0

// Package clrmeta reads ECMA-335 (CLI) metadata from managed PE images.
//
// The PE headers, CLI header, metadata streams and tables are decoded by
// github.com/saferwall/pe. This package resolves names across those tables
// and decodes the signature and custom attribute blobs that cmdlet discovery
// needs. The reader never loads or executes the image, and an *Image holds no
// operating system resources.
package clrmeta
