// Copyright © 2024 Havenforge Engine Contributors
// Use is governed by a BSD-style license found in the LICENSE file.

// Package config implements the engine's CVars text configuration format:
// line-oriented, with `@name` lines introducing a category and
// `:type name value` lines declaring a typed variable within it. The
// engine package reads its worker count, asset root and asset-cache path
// from here (engine.FromConfig); its other startup settings keep their
// defaults.
package config

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// Kind is one of the CVars value types.
type Kind int

const (
	KindBool Kind = iota
	KindU8
	KindU16
	KindU32
	KindU64
	KindS8
	KindS16
	KindS32
	KindS64
	KindF32
	KindF64
	KindString
)

// Var is one configuration variable: its category, name, declared kind,
// and current value (always stored as the canonical Go type for Kind, so
// Bool()/U64()/F64()/String() can type-assert without reparsing).
type Var struct {
	Category string
	Name     string
	Kind     Kind
	Value    interface{}
}

// entry is either a parsed Var or, for a line this package's Kind set
// does not cover, the raw opaque text to preserve across save/load.
type entry struct {
	raw string // non-empty only for unrecognized/unparsed lines.
	v   Var
}

// File is an in-memory CVars document: an ordered list of categories, each
// holding its variables in declaration order, plus any opaque lines
// (comments, malformed declarations) kept verbatim for round-tripping.
type File struct {
	order []string           // category names in first-seen order.
	vars  map[string][]entry // category -> entries, in file order.
}

// New returns an empty CVars document.
func New() *File {
	return &File{vars: map[string][]entry{}}
}

// Set records name's value under category, declaring it if not already
// present, overwriting its value and kind if it is.
func (f *File) Set(category, name string, kind Kind, value interface{}) {
	if _, ok := f.vars[category]; !ok {
		f.order = append(f.order, category)
		f.vars[category] = nil
	}
	entries := f.vars[category]
	for i := range entries {
		if entries[i].raw == "" && entries[i].v.Name == name {
			entries[i].v.Kind = kind
			entries[i].v.Value = value
			return
		}
	}
	f.vars[category] = append(entries, entry{v: Var{Category: category, Name: name, Kind: kind, Value: value}})
}

// Get returns name's Var under category, if declared.
func (f *File) Get(category, name string) (Var, bool) {
	for _, e := range f.vars[category] {
		if e.raw == "" && e.v.Name == name {
			return e.v, true
		}
	}
	return Var{}, false
}

// Bool, U64, F64, and String fetch name's value under category with the
// expected Go type, returning the zero value and false if the variable is
// undeclared or was declared with a different kind family.
func (f *File) Bool(category, name string) (bool, bool) {
	v, ok := f.Get(category, name)
	if !ok || v.Kind != KindBool {
		return false, false
	}
	b, ok := v.Value.(bool)
	return b, ok
}

func (f *File) U64(category, name string) (uint64, bool) {
	v, ok := f.Get(category, name)
	if !ok {
		return 0, false
	}
	switch v.Kind {
	case KindU8, KindU16, KindU32, KindU64:
		u, ok := v.Value.(uint64)
		return u, ok
	}
	return 0, false
}

func (f *File) F64(category, name string) (float64, bool) {
	v, ok := f.Get(category, name)
	if !ok {
		return 0, false
	}
	switch v.Kind {
	case KindF32, KindF64:
		d, ok := v.Value.(float64)
		return d, ok
	}
	return 0, false
}

func (f *File) String(category, name string) (string, bool) {
	v, ok := f.Get(category, name)
	if !ok || v.Kind != KindString {
		return "", false
	}
	s, ok := v.Value.(string)
	return s, ok
}

// Categories returns the document's category names in first-seen order.
func (f *File) Categories() []string {
	return append([]string(nil), f.order...)
}

// Vars returns category's variables in declaration order.
func (f *File) Vars(category string) []Var {
	var out []Var
	for _, e := range f.vars[category] {
		if e.raw == "" {
			out = append(out, e.v)
		}
	}
	return out
}

// kindNames maps Kind to its on-disk type token and back.
var kindNames = map[Kind]string{
	KindBool: "bool", KindU8: "u8", KindU16: "u16", KindU32: "u32", KindU64: "u64",
	KindS8: "s8", KindS16: "s16", KindS32: "s32", KindS64: "s64",
	KindF32: "f32", KindF64: "f64", KindString: "string",
}

var namesToKind = func() map[string]Kind {
	m := map[string]Kind{}
	for k, v := range kindNames {
		m[v] = k
	}
	return m
}()

// Load parses a CVars document from r. Lines beginning `@` introduce a
// category; lines beginning `:type name value` declare a typed variable
// within the current category. Any other non-blank line is preserved
// verbatim so Save reproduces it.
func Load(r io.Reader) (*File, error) {
	f := New()
	category := ""
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			continue
		case strings.HasPrefix(trimmed, "@"):
			category = strings.TrimSpace(trimmed[1:])
			if _, ok := f.vars[category]; !ok {
				f.order = append(f.order, category)
				f.vars[category] = nil
			}
		case strings.HasPrefix(trimmed, ":"):
			v, err := parseVarLine(category, trimmed[1:])
			if err != nil {
				// unparseable declaration: preserve verbatim rather than
				// fail the whole load, same as any other unknown line.
				f.vars[category] = append(f.vars[category], entry{raw: line})
				continue
			}
			f.vars[category] = append(f.vars[category], entry{v: v})
		default:
			f.vars[category] = append(f.vars[category], entry{raw: line})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if _, ok := f.vars[""]; ok {
		listed := false
		for _, c := range f.order {
			listed = listed || c == ""
		}
		if !listed {
			// lines before the first @category must be saved too.
			f.order = append([]string{""}, f.order...)
		}
	}
	return f, nil
}

func parseVarLine(category, body string) (Var, error) {
	fields := strings.SplitN(strings.TrimSpace(body), " ", 3)
	if len(fields) < 3 {
		return Var{}, fmt.Errorf("config: malformed variable line %q", body)
	}
	kindTok, name, rawValue := fields[0], fields[1], fields[2]
	kind, ok := namesToKind[kindTok]
	if !ok {
		return Var{}, fmt.Errorf("config: unknown type %q", kindTok)
	}
	value, err := parseValue(kind, rawValue)
	if err != nil {
		return Var{}, err
	}
	return Var{Category: category, Name: name, Kind: kind, Value: value}, nil
}

func parseValue(kind Kind, raw string) (interface{}, error) {
	switch kind {
	case KindBool:
		return strconv.ParseBool(raw)
	case KindU8, KindU16, KindU32, KindU64:
		u, err := strconv.ParseUint(raw, 10, 64)
		return u, err
	case KindS8, KindS16, KindS32, KindS64:
		s, err := strconv.ParseInt(raw, 10, 64)
		return s, err
	case KindF32, KindF64:
		d, err := strconv.ParseFloat(raw, 64)
		return d, err
	case KindString:
		return raw, nil
	default:
		return nil, fmt.Errorf("config: unhandled kind %v", kind)
	}
}

// Save writes f back out in CVars format. Categories and variables are
// emitted in the order they were first seen (declaration order for a
// fresh File, file order for one round-tripped through Load), and opaque
// lines are reproduced byte-for-byte. Blank lines are not kept and typed
// values are written in canonical form (`1.50` comes back as `1.5`), so
// Save(Load(x)) can differ from x, but saving a loaded Save output again
// reproduces it byte for byte.
func (f *File) Save(w io.Writer) error {
	categories := f.order
	if categories == nil {
		categories = sortedKeys(f.vars)
	}
	for _, category := range categories {
		if category != "" {
			if _, err := fmt.Fprintf(w, "@%s\n", category); err != nil {
				return err
			}
		}
		for _, e := range f.vars[category] {
			if e.raw != "" {
				if _, err := fmt.Fprintln(w, e.raw); err != nil {
					return err
				}
				continue
			}
			if _, err := fmt.Fprintf(w, ":%s %s %s\n", kindNames[e.v.Kind], e.v.Name, formatValue(e.v)); err != nil {
				return err
			}
		}
	}
	return nil
}

func formatValue(v Var) string {
	switch v.Kind {
	case KindBool:
		return strconv.FormatBool(v.Value.(bool))
	case KindU8, KindU16, KindU32, KindU64:
		return strconv.FormatUint(v.Value.(uint64), 10)
	case KindS8, KindS16, KindS32, KindS64:
		return strconv.FormatInt(v.Value.(int64), 10)
	case KindF32, KindF64:
		return strconv.FormatFloat(v.Value.(float64), 'g', -1, 64)
	case KindString:
		return v.Value.(string)
	default:
		return ""
	}
}

func sortedKeys(m map[string][]entry) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
