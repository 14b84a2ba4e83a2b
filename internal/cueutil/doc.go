// SPDX-License-Identifier: MPL-2.0

// Package cueutil validates user CUE files against an embedded schema and
// decodes them:
//
//  1. compile the schema and look up its root definition
//  2. compile the user data and unify it with that definition
//  3. validate and decode into a Go value
//
// Errors carry the file name and a JSON-style path to the offending field,
// e.g. "config.cue: scan.roots[1]: invalid value".
package cueutil
