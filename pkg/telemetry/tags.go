package telemetry

import (
	"fmt"
	"strings"
)

var _tagReplacer = strings.NewReplacer(
	"{", "_",
	"}", "",
	":", "_",
	",", "_",
)

// SanitizeMetricTagValue makes value safe to use as a statsd tag value.
// Trailing slashes are trimmed, template braces and the statsd separators
// ':' and ',' are replaced.
func SanitizeMetricTagValue(value string) string {
	if value == "" {
		return ""
	}

	value = strings.TrimRight(value, "/")
	if value == "" {
		return "/"
	}

	return _tagReplacer.Replace(value)
}

// Tags builds "name:value" tags from alternating names and values.
// A trailing name without value is dropped.
func Tags(nameValue ...any) []string {
	tags := make([]string, 0, len(nameValue)/2)
	for i := 0; i+1 < len(nameValue); i += 2 {
		tags = append(tags, fmt.Sprintf("%v:%v", nameValue[i], nameValue[i+1]))
	}
	return tags
}
