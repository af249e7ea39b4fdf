// Package procedure describes the external design procedures the job
// manager can launch: their scripts, argument contracts, and runtime
// dependencies.
//
// Procedures consume a flat map of scalar options only. Resolve validates
// and normalizes caller arguments against the procedure's argument specs
// before anything is submitted.
package procedure

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// ArgKind is the declared type of a procedure option.
type ArgKind string

const (
	ArgString ArgKind = "string"
	ArgInt    ArgKind = "int"
	ArgFloat  ArgKind = "float"
	ArgBool   ArgKind = "bool"
)

// ArgSpec declares one option of a procedure.
type ArgSpec struct {
	Name     string  `yaml:"name" json:"name"`
	Kind     ArgKind `yaml:"kind" json:"kind"`
	Required bool    `yaml:"required,omitempty" json:"required,omitempty"`
	Default  any     `yaml:"default,omitempty" json:"default,omitempty"`

	// Min/Max bound integer options. Both zero means unbounded.
	Min int `yaml:"min,omitempty" json:"min,omitempty"`
	Max int `yaml:"max,omitempty" json:"max,omitempty"`

	Help string `yaml:"help,omitempty" json:"help,omitempty"`
}

// Procedure is one runnable external design procedure.
type Procedure struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Script is the procedure entry point, relative to the scripts dir
	// unless absolute.
	Script string `yaml:"script" json:"script"`

	// Interpreter runs the script. Defaults to python3.
	Interpreter string `yaml:"interpreter,omitempty" json:"interpreter,omitempty"`

	// Requires names the runtime dependencies the procedure needs
	// (see deps.go).
	Requires []string `yaml:"requires,omitempty" json:"requires,omitempty"`

	Args []ArgSpec `yaml:"args,omitempty" json:"args,omitempty"`
}

// Executable returns the program to launch and the script argument,
// resolving Script against scriptsDir.
func (p *Procedure) Executable(scriptsDir string) (string, string) {
	interp := p.Interpreter
	if interp == "" {
		interp = "python3"
	}
	script := p.Script
	if !filepath.IsAbs(script) && scriptsDir != "" {
		script = filepath.Join(scriptsDir, script)
	}
	return interp, script
}

// Resolve validates the caller's flat argument map against the specs and
// returns normalized string options ready for command construction.
//
// Rules, matching the flat-CLI contract of the wrapped scripts:
//   - values must be scalars (string, number, bool); nested structures are
//     rejected
//   - unknown option names are rejected
//   - missing options take declared defaults; required options without a
//     value are an error
//   - integer options are range checked against Min/Max
func (p *Procedure) Resolve(args map[string]any) (map[string]string, error) {
	specs := make(map[string]ArgSpec, len(p.Args))
	for _, s := range p.Args {
		specs[s.Name] = s
	}

	var unknown []string
	for name, v := range args {
		if _, ok := specs[name]; !ok {
			unknown = append(unknown, name)
			continue
		}
		switch v.(type) {
		case map[string]any, []any:
			return nil, fmt.Errorf("argument %q: nested values are not supported", name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("unknown arguments for %s: %s", p.Name, strings.Join(unknown, ", "))
	}

	out := make(map[string]string, len(p.Args))
	for _, spec := range p.Args {
		raw, present := args[spec.Name]
		if !present || raw == nil {
			if spec.Default != nil {
				raw = spec.Default
			} else if spec.Required {
				return nil, fmt.Errorf("missing required argument %q for %s", spec.Name, p.Name)
			} else {
				continue
			}
		}

		val, err := coerce(raw, spec)
		if err != nil {
			return nil, fmt.Errorf("argument %q: %w", spec.Name, err)
		}
		out[spec.Name] = val
	}
	return out, nil
}

// coerce converts a scalar to the declared kind, tolerating the usual
// JSON/YAML representations (numbers arriving as float64, numeric strings).
func coerce(raw any, spec ArgSpec) (string, error) {
	switch spec.Kind {
	case ArgInt:
		var v int
		if err := weakDecode(raw, &v); err != nil {
			return "", fmt.Errorf("expected integer, got %v", raw)
		}
		if spec.Min != 0 || spec.Max != 0 {
			if v < spec.Min || v > spec.Max {
				return "", fmt.Errorf("must be %d-%d, got %d", spec.Min, spec.Max, v)
			}
		}
		return strconv.Itoa(v), nil

	case ArgFloat:
		var v float64
		if err := weakDecode(raw, &v); err != nil {
			return "", fmt.Errorf("expected number, got %v", raw)
		}
		return strconv.FormatFloat(v, 'g', -1, 64), nil

	case ArgBool:
		var v bool
		if err := weakDecode(raw, &v); err != nil {
			return "", fmt.Errorf("expected boolean, got %v", raw)
		}
		return strconv.FormatBool(v), nil

	default:
		var v string
		if err := weakDecode(raw, &v); err != nil {
			return "", fmt.Errorf("expected string, got %v", raw)
		}
		if strings.TrimSpace(v) == "" {
			return "", fmt.Errorf("value is empty")
		}
		return v, nil
	}
}

// weakDecode coerces scalar representations into the target type.
func weakDecode(raw, target any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(raw)
}
