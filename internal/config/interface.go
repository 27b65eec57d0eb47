package config

import (
	"context"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
)

// Loader is the interface for a format-specific pipeline loader.
type Loader interface {
	// Load reads every pipeline file found at the given locations,
	// translates them into the format-agnostic model, and returns a
	// matching Converter.
	Load(ctx context.Context, paths ...string) (*Model, Converter, error)
}

// Converter binds raw step arguments to the Go types used by tools.
type Converter interface {
	// DecodeArguments evaluates args and stores them into the fields of the
	// input struct pointed to by input. Fields the arguments do not mention
	// keep the values the struct already holds, which is how tools supply
	// defaults.
	DecodeArguments(
		ctx context.Context,
		input any,
		args map[string]hcl.Expression,
		evalCtx *hcl.EvalContext,
	) error

	// ToCtyValue converts a native Go value into its cty.Value equivalent.
	ToCtyValue(v any) (cty.Value, error)
}
