package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeMetricTagValue(t *testing.T) {
	tests := map[string]string{
		"":                 "",
		"/":                "/",
		"/users/{id}/":     "/users/_id",
		"localhost:8080":   "localhost_8080",
		"a,b":              "a_b",
		"/status/{code}//": "/status/_code",
	}

	for in, want := range tests {
		assert.Equal(t, want, SanitizeMetricTagValue(in), "input %q", in)
	}
}

func TestTags(t *testing.T) {
	assert.Equal(t, []string{"method:get", "status:200"}, Tags("method", "get", "status", 200))
	assert.Equal(t, []string{"method:get"}, Tags("method", "get", "dangling"))
	assert.Empty(t, Tags())
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	ctx := t.Context()
	assert.Equal(t, DefaultTracer, FromContext(ctx))

	c := NewNoOpClient()
	assert.Equal(t, c, FromContext(Context(ctx, c)))
}
