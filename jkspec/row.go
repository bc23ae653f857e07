package jkspec

import "github.com/cuwacunu/tsiemene/internal/errctx"

// Row is a typed accessor over one materialized table row's fields,
// grounded on the original "require_columns_exact / require_options /
// to_<T>" accessor contract for builder code reading JKSPEC rows.
type Row struct {
	RowID  string
	Fields map[string]Value
}

// RequireExact fails unless Fields contains exactly the given key set (no
// more, no fewer), matching the original's exact-schema accessor.
func (r Row) RequireExact(keys ...string) error {
	want := make(map[string]bool, len(keys))
	for _, k := range keys {
		want[k] = true
		if _, ok := r.Fields[k]; !ok {
			return errctx.New(errctx.CodeSchema, "row %q missing required key %q", r.RowID, k)
		}
	}
	for k := range r.Fields {
		if !want[k] {
			return errctx.New(errctx.CodeSchema, "row %q has unexpected key %q", r.RowID, k)
		}
	}
	return nil
}

// Option returns the raw Value for key, or a zero Value and false.
func (r Row) Option(key string) (Value, bool) {
	v, ok := r.Fields[key]
	return v, ok
}

// OptionString returns key's string value, or def if absent.
func (r Row) OptionString(key, def string) string {
	if v, ok := r.Fields[key]; ok {
		return v.StrV
	}
	return def
}

// OptionInt returns key's int value, or def if absent.
func (r Row) OptionInt(key string, def int64) int64 {
	if v, ok := r.Fields[key]; ok {
		return v.IntV
	}
	return def
}

// OptionFloat returns key's float value, or def if absent.
func (r Row) OptionFloat(key string, def float64) float64 {
	if v, ok := r.Fields[key]; ok {
		return v.FloatV
	}
	return def
}

// OptionBool returns key's bool value, or def if absent.
func (r Row) OptionBool(key string, def bool) bool {
	if v, ok := r.Fields[key]; ok {
		return v.BoolV
	}
	return def
}

// OptionIntList returns key's int list, or nil if absent.
func (r Row) OptionIntList(key string) []int64 {
	v, ok := r.Fields[key]
	if !ok {
		return nil
	}
	out := make([]int64, len(v.ListV))
	for i, e := range v.ListV {
		out[i] = e.IntV
	}
	return out
}
