// SPDX-License-Identifier: MPL-2.0

// Package testutil provides file fixtures shared by tests: module folders,
// MAML help documents, and the files around them. Helpers fail the test
// immediately instead of returning errors.
package testutil
