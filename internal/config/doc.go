// Package config loads, normalizes, and validates RedShift configuration.
//
// Configuration comes from a TOML file (default ~/.config/redshift/config.toml,
// falling back to ./redshift.toml) layered over built-in defaults. All path
// fields are tilde-expanded and made absolute during Load, so consumers never
// deal with relative or user-prefixed paths.
package config
