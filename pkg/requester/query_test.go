package requester_test

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/luizaranda/requester/pkg/requester"
)

func TestBuildQuery(t *testing.T) {
	tests := []struct {
		name     string
		params   any
		expected string
	}{
		{
			name:     "nil",
			params:   nil,
			expected: "",
		},
		{
			name:     "prebuilt string is kept",
			params:   "a=1&b=x y",
			expected: "a=1&b=x y",
		},
		{
			name: "scalars keep insertion order",
			params: requester.Values{
				{Key: "z", Value: 1},
				{Key: "b", Value: true},
				{Key: "c", Value: false},
				{Key: "d", Value: nil},
				{Key: "e", Value: "x y&z"},
				{Key: "f", Value: 1.5},
			},
			expected: "z=1&b=1&c=0&e=x+y%26z&f=1.5",
		},
		{
			name: "nested values and lists",
			params: requester.Values{
				{Key: "user", Value: requester.Values{
					{Key: "name", Value: "go"},
					{Key: "tags", Value: []string{"a", "b"}},
				}},
			},
			expected: "user%5Bname%5D=go&user%5Btags%5D%5B0%5D=a&user%5Btags%5D%5B1%5D=b",
		},
		{
			name:     "maps are sorted by key",
			params:   map[string]string{"b": "2", "a": "1"},
			expected: "a=1&b=2",
		},
		{
			name:     "nested map",
			params:   map[string]any{"filter": map[string]any{"since": 10, "q": "x"}},
			expected: "filter%5Bq%5D=x&filter%5Bsince%5D=10",
		},
		{
			name:     "url.Values repeats keys",
			params:   url.Values{"k": {"1", "2"}},
			expected: "k=1&k=2",
		},
		{
			name:     "list at top level",
			params:   []any{"a", 2},
			expected: "0=a&1=2",
		},
		{
			name:     "scalar",
			params:   42,
			expected: "42",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, requester.BuildQuery(tt.params))
		})
	}
}

func TestValues(t *testing.T) {
	v := requester.Values{}.Add("a", 1).Add("b", "x").Add("a", 2)

	got, ok := v.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, got)

	_, ok = v.Get("missing")
	assert.False(t, ok)

	assert.Equal(t, "a=1&b=x&a=2", requester.BuildQuery(v))
}
