// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable errors and a catalog of explained
// failure modes.
//
// ActionableError carries the failed operation, the resource, and suggestions,
// and may link to a catalog Issue whose markdown is rendered with glamour by
// 'helpaudit explain'.
package issue
