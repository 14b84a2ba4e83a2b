// SPDX-License-Identifier: MPL-2.0

// Package config handles application configuration using Viper with CUE as the file format.
//
// Configuration is loaded from an explicit --config file, else from
// ~/.config/helpaudit/config.cue (or the XDG, macOS, or Windows equivalent),
// else from config.cue in the working directory. Values are validated against
// the embedded CUE schema (config_schema.cue), merged over defaults, and may be
// overridden with HELPAUDIT_<SECTION>_<KEY> environment variables.
package config
