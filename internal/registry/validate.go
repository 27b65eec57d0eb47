package registry

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/vk/flowgrid/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
)

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
	ctyType     = reflect.TypeOf(cty.Value{})
)

// ValidateRegistry performs a strict parity check between every tool's
// handler signature, its input struct, and its declared outputs.
func (r *Registry) ValidateRegistry(ctx context.Context) error {
	var errs []string
	logger := ctxlog.FromContext(ctx)

	for _, name := range r.Names() {
		tool := r.tools[name]
		if tool.NewInput == nil || tool.Fn == nil {
			errs = append(errs, fmt.Sprintf("tool '%s': NewInput and Fn are required", name))
			continue
		}
		if len(tool.Outputs) == 0 {
			errs = append(errs, fmt.Sprintf("tool '%s': declares no outputs", name))
		}

		inputType := reflect.TypeOf(tool.NewInput())
		if inputType == nil || inputType.Kind() != reflect.Ptr || inputType.Elem().Kind() != reflect.Struct {
			errs = append(errs, fmt.Sprintf("tool '%s': NewInput must return a pointer to a struct, got %v", name, inputType))
			continue
		}

		fnType := reflect.TypeOf(tool.Fn)
		switch {
		case fnType.Kind() != reflect.Func:
			errs = append(errs, fmt.Sprintf("tool '%s': handler is %v, not a function", name, fnType))
		case fnType.NumIn() != 2 || fnType.In(0) != contextType || fnType.In(1) != inputType:
			errs = append(errs, fmt.Sprintf("tool '%s': handler must accept (context.Context, %v)", name, inputType))
		case fnType.NumOut() != 2 || fnType.Out(0) != ctyType || fnType.Out(1) != errorType:
			errs = append(errs, fmt.Sprintf("tool '%s': handler must return (cty.Value, error)", name))
		}

		st := inputType.Elem()
		tagged := 0
		for i := 0; i < st.NumField(); i++ {
			f := st.Field(i)
			if !f.IsExported() {
				continue
			}
			tag := strings.Split(f.Tag.Get("hcl"), ",")[0]
			if tag == "" {
				errs = append(errs, fmt.Sprintf("tool '%s': input field '%s' has no hcl tag", name, f.Name))
				continue
			}
			tagged++
		}
		logger.Debug("Validated tool.", "tool", name, "inputs", tagged, "outputs", tool.Outputs)
	}

	if len(errs) > 0 {
		return fmt.Errorf("registry validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}
