package jkspec

import (
	"strconv"
	"strings"

	"github.com/cuwacunu/tsiemene/internal/errctx"
)

// Value is a schema-typed JKSPEC value.
type Value struct {
	Kind    ValueKind
	BoolV   bool
	IntV    int64
	FloatV  float64
	StrV    string
	ListV   []Value
}

func parseBool(text string) (bool, bool) {
	switch strings.ToLower(text) {
	case "true":
		return true, true
	case "false":
		return false, true
	default:
		return false, false
	}
}

// typeScalar converts a raw scalar into a Value of the given kind.
func typeScalar(raw RawScalar, kind ValueKind, line int) (Value, error) {
	switch kind {
	case KindBool:
		b, ok := parseBool(raw.Text)
		if !ok || raw.Quoted {
			return Value{}, errctx.Newf(errctx.CodeSchema, itoa(line)+":0", "value %q is not a valid Bool", raw.Text)
		}
		return Value{Kind: KindBool, BoolV: b}, nil
	case KindInt:
		n, err := strconv.ParseInt(raw.Text, 10, 64)
		if err != nil || raw.Quoted {
			return Value{}, errctx.Newf(errctx.CodeSchema, itoa(line)+":0", "value %q is not a valid Int", raw.Text)
		}
		return Value{Kind: KindInt, IntV: n}, nil
	case KindFloat:
		f, err := strconv.ParseFloat(raw.Text, 64)
		if err != nil || raw.Quoted {
			return Value{}, errctx.Newf(errctx.CodeSchema, itoa(line)+":0", "value %q is not a valid Float", raw.Text)
		}
		return Value{Kind: KindFloat, FloatV: f}, nil
	case KindString:
		return Value{Kind: KindString, StrV: raw.Text}, nil
	default:
		return Value{}, errctx.New(errctx.CodeSchema, "scalar kind %s requires a list value", kind)
	}
}

func scalarKindOf(listKind ValueKind) ValueKind {
	switch listKind {
	case KindIntList:
		return KindInt
	case KindFloatList:
		return KindFloat
	case KindStringList:
		return KindString
	default:
		return listKind
	}
}

func isListKind(k ValueKind) bool {
	return k == KindIntList || k == KindFloatList || k == KindStringList
}

// TypeValue converts a RawValue into a typed Value per the declared kind.
func TypeValue(raw RawValue, kind ValueKind, line int) (Value, error) {
	if isListKind(kind) {
		if !raw.IsList {
			return Value{}, errctx.New(errctx.CodeSchema, "expected a list value for kind %s", kind)
		}
		elemKind := scalarKindOf(kind)
		out := Value{Kind: kind}
		for _, s := range raw.Scalars {
			v, err := typeScalar(s, elemKind, line)
			if err != nil {
				return Value{}, err
			}
			out.ListV = append(out.ListV, v)
		}
		return out, nil
	}
	if raw.IsList {
		return Value{}, errctx.New(errctx.CodeSchema, "unexpected list value for scalar kind %s", kind)
	}
	return typeScalar(raw.Scalars[0], kind, line)
}

// CSV renders a Value as the flattened CSV string used in materialized tables.
func (v Value) CSV() string {
	switch v.Kind {
	case KindBool:
		if v.BoolV {
			return "true"
		}
		return "false"
	case KindInt:
		return strconv.FormatInt(v.IntV, 10)
	case KindFloat:
		return strconv.FormatFloat(v.FloatV, 'g', -1, 64)
	case KindString:
		return v.StrV
	case KindIntList, KindFloatList, KindStringList:
		parts := make([]string, len(v.ListV))
		for i, e := range v.ListV {
			parts[i] = e.CSV()
		}
		return strings.Join(parts, ",")
	default:
		return ""
	}
}
