// Package htmlform extracts HTML forms as comparable input vectors.
//
// An InputVector is the normalized shape of one form. Two vectors are the same
// vector when their ordered (name, type) field sequences match; values are
// ignored so that a form still correlates after its token value changes.
package htmlform

import (
	"net/url"
	"strings"
)

// Field is one named form control.
type Field struct {
	Name  string
	Type  string
	Value string
}

// IsHidden reports whether the field is an input of type hidden.
func (f Field) IsHidden() bool {
	return f.Type == "hidden"
}

// InputVector is one HTML form.
type InputVector struct {
	Action string // raw action, possibly from a submit control override
	Method string // upper-case, GET when absent
	Fields []Field
}

// IsSameVector reports whether a and b have the same ordered (name, type)
// field sequence. Field order is significant.
func IsSameVector(a, b InputVector) bool {
	if len(a.Fields) != len(b.Fields) {
		return false
	}
	for i := range a.Fields {
		if a.Fields[i].Name != b.Fields[i].Name || a.Fields[i].Type != b.Fields[i].Type {
			return false
		}
	}
	return true
}

// Contains reports whether some vector in set is the same vector as v.
func Contains(set []InputVector, v InputVector) bool {
	return Match(set, v) >= 0
}

// Match returns the index of the first vector in set that is the same vector
// as v, or -1.
func Match(set []InputVector, v InputVector) int {
	return MatchNth(set, v, 0)
}

// MatchNth returns the index of the n-th (zero based) vector in set that is
// the same vector as v, or -1.
func MatchNth(set []InputVector, v InputVector, n int) int {
	for i := range set {
		if !IsSameVector(set[i], v) {
			continue
		}
		if n == 0 {
			return i
		}
		n--
	}
	return -1
}

// Occurrence returns how many vectors before set[i] are the same vector as
// set[i]. Pages that repeat a form shape pair up by this index.
func Occurrence(set []InputVector, i int) int {
	n := 0
	for j := 0; j < i && j < len(set); j++ {
		if IsSameVector(set[j], set[i]) {
			n++
		}
	}
	return n
}

// Field returns the first field with the given name.
func (v InputVector) Field(name string) (Field, bool) {
	for _, f := range v.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// ResolveAction resolves the form action against base. An empty action
// targets base itself.
func (v InputVector) ResolveAction(base *url.URL) (*url.URL, error) {
	action := strings.TrimSpace(v.Action)
	if action == "" {
		u := *base
		return &u, nil
	}
	ref, err := url.Parse(action)
	if err != nil {
		return nil, err
	}
	return base.ResolveReference(ref), nil
}

// Values encodes the form fields the way a browser would submit them, with
// overrides replacing the value of the named fields. Submit buttons are left
// out since only the activated one would be sent.
func (v InputVector) Values(overrides map[string]string) url.Values {
	values := url.Values{}
	for _, f := range v.Fields {
		switch f.Type {
		case "submit", "button", "image", "reset", "file":
			continue
		}
		value := f.Value
		if override, ok := overrides[f.Name]; ok {
			value = override
		}
		values.Add(f.Name, value)
	}
	return values
}

// Signature renders the (name, type) projection, e.g. for logging.
func (v InputVector) Signature() string {
	parts := make([]string, 0, len(v.Fields))
	for _, f := range v.Fields {
		parts = append(parts, f.Name+":"+f.Type)
	}
	return v.Method + " " + v.Action + " [" + strings.Join(parts, ",") + "]"
}
