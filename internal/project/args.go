package project

import (
	"strings"

	"github.com/kurobon/vex/internal/codec"
	"github.com/kurobon/vex/internal/verr"
)

// ArgKind is one of the four argument shapes spec §6 defines.
type ArgKind int

const (
	// KindBool: --name or --name=true|false, defaults to false if absent.
	KindBool ArgKind = iota
	// KindSingle: --name=value, at most one occurrence.
	KindSingle
	// KindRepeatable: --name=value, may repeat; collects into a list.
	KindRepeatable
	// KindPositional: a bare value with no --name= prefix.
	KindPositional
)

// ParamSpec describes one named or positional parameter a command
// accepts.
type ParamSpec struct {
	Name     string
	Kind     ArgKind
	Required bool
}

// ArgSchema is a command's full parameter list. Commands with no
// parameters use an empty schema.
type ArgSchema struct {
	Params []ParamSpec
}

// Args holds a command invocation's already-validated parameter
// values, keyed by ParamSpec.Name.
type Args struct {
	Bools       map[string]bool
	Singles     map[string]string
	Repeatables map[string][]string
	Positionals []string
}

func newArgs() Args {
	return Args{
		Bools:       map[string]bool{},
		Singles:     map[string]string{},
		Repeatables: map[string][]string{},
	}
}

func (a Args) Bool(name string) bool             { return a.Bools[name] }
func (a Args) Single(name string) (string, bool) { v, ok := a.Singles[name]; return v, ok }
func (a Args) Repeated(name string) []string     { return a.Repeatables[name] }

// Positional returns the i-th positional argument, or ok=false if fewer
// were given than required.
func (a Args) Positional(i int) (string, bool) {
	if i < 0 || i >= len(a.Positionals) {
		return "", false
	}
	return a.Positionals[i], true
}

// Validate checks args against the schema: every Required param is
// present, and (by construction of ParseTokens) no unknown flag can
// reach here — unknown args are rejected at parse time, per spec §6's
// "unknown args are hard errors" rule.
func (s ArgSchema) Validate(a Args) error {
	for _, p := range s.Params {
		if !p.Required {
			continue
		}
		switch p.Kind {
		case KindBool:
			// booleans are never "required" in a meaningful sense; skip.
		case KindSingle:
			if _, ok := a.Singles[p.Name]; !ok {
				return verr.Usagef("missing required argument --%s", p.Name)
			}
		case KindRepeatable:
			if len(a.Repeatables[p.Name]) == 0 {
				return verr.Usagef("missing required argument --%s", p.Name)
			}
		case KindPositional:
			if len(a.Positionals) == 0 {
				return verr.Usagef("missing required positional argument %s", p.Name)
			}
		}
	}
	return nil
}

// ParseTokens turns raw CLI tokens (after the command name itself has
// been stripped) into Args against schema, rejecting any --flag not
// named in schema.Params and any --name=value given to a KindBool
// param with a non-boolean value.
func ParseTokens(schema ArgSchema, tokens []string) (Args, error) {
	byName := map[string]ParamSpec{}
	hasPositional := false
	for _, p := range schema.Params {
		byName[p.Name] = p
		if p.Kind == KindPositional {
			hasPositional = true
		}
	}

	args := newArgs()
	for _, tok := range tokens {
		if !strings.HasPrefix(tok, "--") {
			if !hasPositional {
				return Args{}, verr.Usagef("unexpected positional argument %q", tok)
			}
			args.Positionals = append(args.Positionals, tok)
			continue
		}
		body := strings.TrimPrefix(tok, "--")
		name, value, hasValue := strings.Cut(body, "=")

		spec, ok := byName[name]
		if !ok {
			return Args{}, verr.Usagef("unknown argument --%s", name)
		}

		switch spec.Kind {
		case KindBool:
			if !hasValue {
				args.Bools[name] = true
				continue
			}
			switch value {
			case "true":
				args.Bools[name] = true
			case "false":
				args.Bools[name] = false
			default:
				return Args{}, verr.Usagef("--%s expects true or false, got %q", name, value)
			}
		case KindSingle:
			if !hasValue {
				return Args{}, verr.Usagef("--%s requires a value", name)
			}
			args.Singles[name] = value
		case KindRepeatable:
			if !hasValue {
				return Args{}, verr.Usagef("--%s requires a value", name)
			}
			args.Repeatables[name] = append(args.Repeatables[name], value)
		case KindPositional:
			return Args{}, verr.Usagef("--%s is a positional argument, not a flag", name)
		}
	}
	return args, nil
}

// ToValue canonicalizes Args for storage in an ActionRecord's `args`
// field or a LogicalInverse's argument payload.
func (a Args) ToValue() codec.Value {
	bools := map[string]codec.Value{}
	for k, v := range a.Bools {
		bools[k] = codec.Bool(v)
	}
	singles := map[string]codec.Value{}
	for k, v := range a.Singles {
		singles[k] = codec.Str(v)
	}
	repeatables := map[string]codec.Value{}
	for k, vs := range a.Repeatables {
		vals := make([]codec.Value, len(vs))
		for i, v := range vs {
			vals[i] = codec.Str(v)
		}
		repeatables[k] = codec.Arr(vals...)
	}
	positionals := make([]codec.Value, len(a.Positionals))
	for i, p := range a.Positionals {
		positionals[i] = codec.Str(p)
	}
	return codec.Obj(map[string]codec.Value{
		"bools":       codec.Obj(bools),
		"singles":     codec.Obj(singles),
		"repeatables": codec.Obj(repeatables),
		"positionals": codec.Arr(positionals...),
	})
}

// ArgsFromValue reverses ToValue, for replaying a LogicalInverse's
// stored arguments.
func ArgsFromValue(v codec.Value) (Args, error) {
	a := newArgs()
	if bools, ok := v.Get("bools").AsMap(); ok {
		for k, bv := range bools {
			b, _ := bv.AsBool()
			a.Bools[k] = b
		}
	}
	if singles, ok := v.Get("singles").AsMap(); ok {
		for k, sv := range singles {
			s, _ := sv.AsString()
			a.Singles[k] = s
		}
	}
	if repeatables, ok := v.Get("repeatables").AsMap(); ok {
		for k, rv := range repeatables {
			arr, _ := rv.AsArray()
			vals := make([]string, len(arr))
			for i, e := range arr {
				s, _ := e.AsString()
				vals[i] = s
			}
			a.Repeatables[k] = vals
		}
	}
	if positionals, ok := v.Get("positionals").AsArray(); ok {
		for _, p := range positionals {
			s, _ := p.AsString()
			a.Positionals = append(a.Positionals, s)
		}
	}
	return a, nil
}
