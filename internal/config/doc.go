// Package config defines the format-agnostic pipeline model, along with the
// interfaces (Loader, Converter) for loading a pipeline from some source and
// binding its step arguments to the Go input structs of tools.
//
// The `config.Model` is the single source of truth for the `dag` package.
// The HCL implementation of the interfaces lives in `internal/hcl`.
package config
