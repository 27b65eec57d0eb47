package hcl

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/vk/flowgrid/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

// Converter is the HCL-specific implementation of the config.Converter interface.
type Converter struct{}

// NewConverter creates a new HCL converter.
func NewConverter() *Converter {
	return &Converter{}
}

// field is one settable input struct field and its `hcl` tag.
type field struct {
	name     string
	optional bool
	value    reflect.Value
}

// DecodeArguments evaluates HCL expressions and populates the input struct
// using reflection. Fields are matched by their `hcl:"name"` tag; a
// `hcl:"name,optional"` field keeps its current value when the argument is
// absent or null.
func (c *Converter) DecodeArguments(
	ctx context.Context,
	input any,
	args map[string]hcl.Expression,
	evalCtx *hcl.EvalContext,
) error {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Starting HCL argument decoding.")

	structVal := reflect.ValueOf(input)
	if structVal.Kind() != reflect.Ptr || structVal.IsNil() || structVal.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("input must be a non-nil pointer to a struct, got %T", input)
	}
	fields := inputFields(structVal.Elem())

	known := make(map[string]bool, len(fields))
	for _, f := range fields {
		known[f.name] = true
	}
	names := make([]string, 0, len(args))
	for name := range args {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if !known[name] {
			return fmt.Errorf("unsupported argument %q", name)
		}
	}

	for _, f := range fields {
		expr, provided := args[f.name]
		if !provided {
			if !f.optional {
				return fmt.Errorf("missing required argument %q", f.name)
			}
			continue
		}

		val, diags := expr.Value(evalCtx)
		if diags.HasErrors() {
			return diags
		}
		if !val.IsWhollyKnown() {
			return fmt.Errorf("argument %q has no known value", f.name)
		}
		if val.IsNull() {
			if !f.optional {
				return fmt.Errorf("argument %q must not be null", f.name)
			}
			continue
		}
		if err := c.decode(ctx, val, f.value.Addr().Interface()); err != nil {
			return fmt.Errorf("failed to decode argument %q: %w", f.name, err)
		}
	}
	logger.Debug("Finished HCL argument decoding successfully.")
	return nil
}

func inputFields(structVal reflect.Value) []field {
	structType := structVal.Type()
	var fields []field
	for i := 0; i < structType.NumField(); i++ {
		sf := structType.Field(i)
		fv := structVal.Field(i)
		if !fv.CanSet() {
			continue
		}
		tag := sf.Tag.Get("hcl")
		if tag == "" || tag == "-" {
			continue
		}
		parts := strings.Split(tag, ",")
		f := field{name: parts[0], value: fv}
		for _, opt := range parts[1:] {
			if opt == "optional" {
				f.optional = true
			}
		}
		fields = append(fields, f)
	}
	return fields
}

// decode handles the conversion and decoding of a cty.Value into a Go pointer.
func (c *Converter) decode(ctx context.Context, val cty.Value, goVal any) error {
	logger := ctxlog.FromContext(ctx)
	valPtr := reflect.ValueOf(goVal)
	if valPtr.Kind() != reflect.Ptr {
		return fmt.Errorf("target for decoding must be a pointer, got %T", goVal)
	}

	impliedType, err := gocty.ImpliedType(valPtr.Elem().Interface())
	if err != nil {
		logger.Debug("Could not imply cty.Type from Go type, attempting direct decoding.", "go_type", valPtr.Elem().Type().String(), "error", err)
		return gocty.FromCtyValue(val, goVal)
	}

	convertedVal, err := convert.Convert(val, impliedType)
	if err != nil {
		return fmt.Errorf("cannot convert %s to required type %s: %w", val.Type().FriendlyName(), impliedType.FriendlyName(), err)
	}

	if !val.Type().Equals(convertedVal.Type()) {
		logger.Debug("Implicitly converted value type.",
			"from", val.Type().FriendlyName(),
			"to", convertedVal.Type().FriendlyName(),
		)
	}

	return gocty.FromCtyValue(convertedVal, goVal)
}

// ToCtyValue converts a native Go value into its corresponding cty.Value.
func (c *Converter) ToCtyValue(v any) (cty.Value, error) {
	if v == nil {
		return cty.NilVal, nil
	}
	ty, err := gocty.ImpliedType(v)
	if err != nil {
		return cty.NilVal, fmt.Errorf("unable to infer cty.Type: %w", err)
	}
	return gocty.ToCtyValue(v, ty)
}
