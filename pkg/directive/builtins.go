package directive

import (
	"fmt"
	"strings"

	"github.com/chazu/featsynth/pkg/feature"
	zygo "github.com/glycerine/zygomys/zygo"
)

// ---------------------------------------------------------------------------
// Source preprocessing
// ---------------------------------------------------------------------------

// preprocessSource rewrites recipe source for zygomys:
//
//  1. :keyword becomes the string literal "__kw_keyword".
//  2. kebab-case identifiers become snake_case.
//  3. ; line comments become // comments.
//
// String literals are left untouched.
func preprocessSource(source string) string {
	result := make([]byte, 0, len(source)+len(source)/4)
	b := []byte(source)
	i := 0
	for i < len(b) {
		if b[i] == '"' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '"' {
				if b[i] == '\\' && i+1 < len(b) {
					result = append(result, b[i], b[i+1])
					i += 2
					continue
				}
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		if b[i] == ';' {
			result = append(result, '/', '/')
			i++
			for i < len(b) && b[i] == ';' {
				i++
			}
			for i < len(b) && b[i] != '\n' {
				result = append(result, b[i])
				i++
			}
			continue
		}
		if b[i] == ':' && i+1 < len(b) && isLetter(b[i+1]) {
			j := i + 1
			for j < len(b) && isKWChar(b[j]) {
				j++
			}
			result = append(result, '"')
			result = append(result, kwPrefix...)
			result = append(result, b[i+1:j]...)
			result = append(result, '"')
			i = j
			continue
		}
		if b[i] == '-' && i > 0 && i+1 < len(b) && isIdentChar(b[i-1]) && isLetter(b[i+1]) {
			result = append(result, '_')
			i++
			continue
		}
		result = append(result, b[i])
		i++
	}
	return string(result)
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKWChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '-' || c == '_'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

// ---------------------------------------------------------------------------
// Values passed between builtins
// ---------------------------------------------------------------------------

type sexpFeature struct {
	name string
}

func (f *sexpFeature) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(feature %q)", f.name)
}
func (f *sexpFeature) Type() *zygo.RegisteredType { return nil }

// sexpCombo refers to a combination already added to the plan.
type sexpCombo struct {
	names []string
}

func (c *sexpCombo) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(dataset %s)", strings.Join(c.names, " "))
}
func (c *sexpCombo) Type() *zygo.RegisteredType { return nil }

type sexpStock struct {
	dims Dims
}

func (s *sexpStock) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(stock %gx%gx%g)", s.dims.X, s.dims.Y, s.dims.Z)
}
func (s *sexpStock) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Argument helpers
// ---------------------------------------------------------------------------

// kwPrefix marks keyword strings produced by preprocessSource.
const kwPrefix = "__kw_"

func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok || !strings.HasPrefix(str.S, kwPrefix) {
		return "", false
	}
	return str.S[len(kwPrefix):], true
}

type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	for i := 0; i < len(args); i++ {
		name, ok := isKW(args[i])
		if !ok {
			result.positional = append(result.positional, args[i])
			continue
		}
		if i+1 < len(args) {
			result.kw[name] = args[i+1]
			i++
		} else {
			result.kw[name] = zygo.SexpNull
		}
	}
	return result
}

func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

func toInt(s zygo.Sexp) (int64, error) {
	if v, ok := s.(*zygo.SexpInt); ok {
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected integer, got %T (%s)", s, s.SexpString(nil))
}

// toName accepts a string, a keyword or a feature value.
func toName(s zygo.Sexp) (string, error) {
	switch v := s.(type) {
	case *sexpFeature:
		return v.name, nil
	case *zygo.SexpStr:
		return feature.Normalize(strings.TrimPrefix(v.S, kwPrefix)), nil
	}
	return "", fmt.Errorf("expected feature name, got %T (%s)", s, s.SexpString(nil))
}

func sexpListToSlice(s zygo.Sexp) ([]zygo.Sexp, bool) {
	switch v := s.(type) {
	case *zygo.SexpPair:
		items, err := zygo.ListToArray(v)
		return items, err == nil
	case *zygo.SexpArray:
		return v.Val, true
	}
	return nil, false
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// registerBuiltins installs the recipe builtins. They write into p; known,
// when non-nil, restricts feature names.
func registerBuiltins(env *zygo.Zlisp, p *Plan, known map[string]bool) {
	checkName := func(fn string, s zygo.Sexp) (string, error) {
		n, err := toName(s)
		if err != nil {
			return "", fmt.Errorf("%s: %w", fn, err)
		}
		if n == "" {
			return "", fmt.Errorf("%s: empty feature name", fn)
		}
		if known != nil && !known[n] {
			return "", fmt.Errorf("%s: %w: %q", fn, feature.ErrUnknownFeature, n)
		}
		return n, nil
	}

	// -----------------------------------------------------------------------
	// (stock :x 40 :y 40 :z 20)
	// -----------------------------------------------------------------------
	env.AddFunction("stock", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		var d Dims
		for _, axis := range []struct {
			key string
			dst *float64
		}{{"x", &d.X}, {"y", &d.Y}, {"z", &d.Z}} {
			v, ok := pa.kw[axis.key]
			if !ok {
				return zygo.SexpNull, fmt.Errorf("stock: missing :%s", axis.key)
			}
			f, err := toFloat64(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("stock: %s: %w", axis.key, err)
			}
			if !(f > 0) {
				return zygo.SexpNull, fmt.Errorf("stock: %s must be positive, got %g", axis.key, f)
			}
			*axis.dst = f
		}
		if p.Stock != nil {
			return zygo.SexpNull, fmt.Errorf("stock: already set")
		}
		p.Stock = &d
		return &sexpStock{dims: d}, nil
	})

	// -----------------------------------------------------------------------
	// (seed 7)
	// -----------------------------------------------------------------------
	env.AddFunction("seed", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("seed requires exactly 1 argument, got %d", len(args))
		}
		n, err := toInt(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("seed: %w", err)
		}
		if n < 0 {
			return zygo.SexpNull, fmt.Errorf("seed must not be negative, got %d", n)
		}
		s := uint64(n)
		p.Seed = &s
		return args[0], nil
	})

	// -----------------------------------------------------------------------
	// (feature "spur-gear")
	// -----------------------------------------------------------------------
	env.AddFunction("feature", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("feature requires exactly 1 argument, got %d", len(args))
		}
		n, err := checkName("feature", args[0])
		if err != nil {
			return zygo.SexpNull, err
		}
		return &sexpFeature{name: n}, nil
	})

	// -----------------------------------------------------------------------
	// (dataset "spur_gear" (feature "boss") (list "boss"))
	// -----------------------------------------------------------------------
	env.AddFunction("dataset", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		var names []string
		var add func(s zygo.Sexp) error
		add = func(s zygo.Sexp) error {
			if items, ok := sexpListToSlice(s); ok {
				for _, item := range items {
					if err := add(item); err != nil {
						return err
					}
				}
				return nil
			}
			n, err := checkName("dataset", s)
			if err != nil {
				return err
			}
			names = append(names, n)
			return nil
		}
		for _, a := range args {
			if err := add(a); err != nil {
				return zygo.SexpNull, err
			}
		}
		if len(names) == 0 {
			return zygo.SexpNull, fmt.Errorf("dataset requires at least one feature")
		}
		p.Combos = append(p.Combos, names)
		return &sexpCombo{names: names}, nil
	})

	// -----------------------------------------------------------------------
	// (repeat 3 (dataset ...)) adds each combination n times in total.
	// -----------------------------------------------------------------------
	env.AddFunction("repeat", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) < 2 {
			return zygo.SexpNull, fmt.Errorf("repeat requires a count and at least one dataset")
		}
		n, err := toInt(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("repeat: count: %w", err)
		}
		if n < 1 {
			return zygo.SexpNull, fmt.Errorf("repeat: count must be positive, got %d", n)
		}
		var last zygo.Sexp = zygo.SexpNull
		for _, a := range args[1:] {
			c, ok := a.(*sexpCombo)
			if !ok {
				return zygo.SexpNull, fmt.Errorf("repeat: expected dataset, got %T (%s)", a, a.SexpString(nil))
			}
			for i := int64(1); i < n; i++ {
				p.Combos = append(p.Combos, append([]string(nil), c.names...))
			}
			last = c
		}
		return last, nil
	})
}
