package httpbin

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Error is the JSON document of every failed route.
type Error struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error returns the concatenation of Code and Message.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewError creates an Error with the given status code and message.
func NewError(status int, message string) *Error {
	return NewErrorf(status, "%s", message)
}

// NewErrorf creates an Error whose code derives from the status text, e.g.
// "not_found".
func NewErrorf(status int, format string, args ...any) *Error {
	return &Error{
		Code:    strings.ReplaceAll(strings.ToLower(http.StatusText(status)), " ", "_"),
		Message: fmt.Sprintf(format, args...),
		Status:  status,
	}
}

func writeError(w http.ResponseWriter, err *Error) {
	writeJSON(w, err.Status, err)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
