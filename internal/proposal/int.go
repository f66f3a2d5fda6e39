package proposal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Int is an integer field of oracle output. Oracles emit numbers, numeric
// strings, floats and nulls interchangeably, so decoding never fails; the
// field records whether a usable integer was present instead.
type Int struct {
	Value int
	Set   bool   // the key was present and not null
	Valid bool   // Set and the value is an integer
	Raw   string // original JSON text when not Valid
}

// I builds a valid Int.
func I(v int) Int {
	return Int{Value: v, Set: true, Valid: true}
}

func (i *Int) UnmarshalJSON(b []byte) error {
	*i = Int{}
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	i.Set = true

	s := string(b)
	if b[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			i.Raw = s
			return nil
		}
		s = strings.TrimSpace(str)
		if s == "" {
			i.Set = false
			return nil
		}
	}
	if n, err := strconv.Atoi(s); err == nil {
		i.Value, i.Valid = n, true
		return nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == math.Trunc(f) && math.Abs(f) < math.MaxInt32 {
		i.Value, i.Valid = int(f), true
		return nil
	}
	i.Raw = s
	return nil
}

func (i Int) MarshalJSON() ([]byte, error) {
	if !i.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.Itoa(i.Value)), nil
}

// describe renders the field for diagnostics.
func (i Int) describe() string {
	switch {
	case !i.Set:
		return "missing"
	case !i.Valid:
		return "not an integer: " + i.Raw
	default:
		return strconv.Itoa(i.Value)
	}
}

// fields decodes a JSON object whose keys may come in camelCase or snake_case.
type fields map[string]json.RawMessage

func (f fields) get(dst any, names ...string) bool {
	for _, n := range names {
		raw, ok := f[n]
		if !ok {
			continue
		}
		return json.Unmarshal(raw, dst) == nil
	}
	return false
}

// list decodes the first present key into dst, which must be a slice.
// An absent key or null leaves dst empty; any other non-list is an error,
// so a malformed proposal set is never read as an empty one.
func (f fields) list(dst any, names ...string) error {
	for _, n := range names {
		raw, ok := f[n]
		if !ok {
			continue
		}
		if string(bytes.TrimSpace(raw)) == "null" {
			return nil
		}
		if err := json.Unmarshal(raw, dst); err != nil {
			return fmt.Errorf("%s is not a list: %w", n, err)
		}
		return nil
	}
	return nil
}

// getStrings accepts a list of strings, skipping any non-string members.
func (f fields) getStrings(names ...string) []string {
	var raw []json.RawMessage
	if !f.get(&raw, names...) {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		var s string
		if json.Unmarshal(r, &s) == nil && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}

// getString accepts a string, treating null or any other JSON type as empty.
func (f fields) getString(names ...string) string {
	var s string
	f.get(&s, names...)
	return strings.TrimSpace(s)
}
