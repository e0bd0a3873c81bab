package requester

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// Param is one key/value pair of Values.
type Param struct {
	Key   string
	Value any
}

// Values is an ordered list of parameters. Values may be scalars, nested
// Values, maps or slices; nested keys are encoded as "a[b]" and list items as
// "a[0]".
type Values []Param

// Add appends a parameter and returns the extended list.
func (v Values) Add(key string, value any) Values {
	return append(v, Param{Key: key, Value: value})
}

// Get returns the first value stored under key.
func (v Values) Get(key string) (any, bool) {
	for _, p := range v {
		if p.Key == key {
			return p.Value, true
		}
	}
	return nil, false
}

// BuildQuery encodes params as an application/x-www-form-urlencoded query
// string, keeping insertion order for Values. A string is returned as is.
//
// Booleans encode as 1 and 0 and nil values are skipped. Plain maps have no
// order and are encoded with sorted keys.
func BuildQuery(params any) string {
	switch p := params.(type) {
	case nil:
		return ""
	case string:
		return p
	}

	pairs, ok := flatten("", params)
	if !ok {
		return fmt.Sprint(params)
	}

	var b strings.Builder
	for i, kv := range pairs {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(kv[0]))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(kv[1]))
	}
	return b.String()
}

// isArrayShaped reports whether v is a collection BuildQuery can flatten.
func isArrayShaped(v any) bool {
	switch v.(type) {
	case Values, []Param, url.Values, map[string]string, map[string]any, []string, []any:
		return true
	}
	return false
}

// isEmpty reports whether v carries nothing to send.
func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []byte:
		return len(t) == 0
	case Values:
		return len(t) == 0
	case []Param:
		return len(t) == 0
	case url.Values:
		return len(t) == 0
	case map[string]string:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	case []string:
		return len(t) == 0
	case []any:
		return len(t) == 0
	}
	return false
}

// flatten turns a collection into ordered key/value pairs. ok is false when
// v is a scalar.
func flatten(prefix string, v any) (pairs [][2]string, ok bool) {
	key := func(k string) string {
		if prefix == "" {
			return k
		}
		return prefix + "[" + k + "]"
	}

	add := func(k string, value any) {
		if value == nil {
			return
		}
		if nested, ok := flatten(key(k), value); ok {
			pairs = append(pairs, nested...)
			return
		}
		pairs = append(pairs, [2]string{key(k), scalarString(value)})
	}

	switch t := v.(type) {
	case Values:
		for _, p := range t {
			add(p.Key, p.Value)
		}
	case []Param:
		for _, p := range t {
			add(p.Key, p.Value)
		}
	case url.Values:
		for _, k := range sortedKeys(t) {
			for _, value := range t[k] {
				add(k, value)
			}
		}
	case map[string]string:
		for _, k := range sortedKeys(t) {
			add(k, t[k])
		}
	case map[string]any:
		for _, k := range sortedKeys(t) {
			add(k, t[k])
		}
	case []string:
		for i, value := range t {
			add(strconv.Itoa(i), value)
		}
	case []any:
		for i, value := range t {
			add(strconv.Itoa(i), value)
		}
	default:
		return nil, false
	}

	return pairs, true
}

func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	case bool:
		if t {
			return "1"
		}
		return "0"
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(v)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
