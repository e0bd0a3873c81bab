package httpclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func redirectServer() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/redirect/", func(w http.ResponseWriter, r *http.Request) {
		n, _ := strconv.Atoi(strings.TrimPrefix(r.URL.Path, "/redirect/"))
		if n <= 1 {
			http.Redirect(w, r, "/done", http.StatusFound)
			return
		}
		http.Redirect(w, r, "/redirect/"+strconv.Itoa(n-1), http.StatusFound)
	})
	mux.HandleFunc("/done", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "done")
	})
	return httptest.NewServer(mux)
}

func TestNew_NoRedirectByDefault(t *testing.T) {
	srv := redirectServer()
	defer srv.Close()

	res, err := New().Get(srv.URL + "/redirect/1")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusFound, res.StatusCode)
}

func TestWithMaxRedirects(t *testing.T) {
	srv := redirectServer()
	defer srv.Close()

	client := New(WithMaxRedirects(3))

	// 3 redirects: /redirect/3 -> /redirect/2 -> /redirect/1 -> /done
	res, err := client.Get(srv.URL + "/redirect/3")
	require.NoError(t, err)
	body, _ := io.ReadAll(res.Body)
	res.Body.Close()
	assert.Equal(t, "done", string(body))

	_, err = client.Get(srv.URL + "/redirect/4")
	assert.True(t, errors.Is(err, ErrTooManyRedirects), "got %v", err)
}

func TestWithMaxRedirects_KeepsMethod(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/moved", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/echo", http.StatusFound)
	})
	mux.HandleFunc("/echo", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_, _ = io.WriteString(w, r.Method+" "+r.Header.Get("Content-Type")+" "+string(body))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	tests := []struct {
		method   string
		expected string
	}{
		{method: http.MethodPut, expected: "PUT text/plain k=v"},
		{method: http.MethodDelete, expected: "DELETE text/plain k=v"},
		// POST follows the net/http rule and becomes a bodyless GET.
		{method: http.MethodPost, expected: "GET "},
	}

	client := New(WithMaxRedirects(3))
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			req, err := NewRequest(context.Background(), tt.method, srv.URL+"/moved", "k=v")
			require.NoError(t, err)
			req.Header.Set("Content-Type", "text/plain")

			res, err := client.Do(req)
			require.NoError(t, err)
			body, _ := io.ReadAll(res.Body)
			res.Body.Close()

			assert.True(t, strings.HasPrefix(string(body), tt.expected), string(body))
			assert.Equal(t, tt.method != http.MethodPost, strings.HasSuffix(string(body), "k=v"))
		})
	}
}

func TestHooksSeeEveryHop(t *testing.T) {
	srv := redirectServer()
	defer srv.Close()

	var statuses []int
	client := New(WithMaxRedirects(5), WithResponseHook(func(_ *http.Request, res *http.Response, err error) {
		if err == nil {
			statuses = append(statuses, res.StatusCode)
		}
	}))

	res, err := client.Get(srv.URL + "/redirect/2")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, []int{302, 302, 200}, statuses)
}

func TestNewRequest_Replayable(t *testing.T) {
	for name, body := range map[string]any{
		"string":  "hello",
		"bytes":   []byte("hello"),
		"reader":  strings.NewReader("hello"),
		"generic": io.MultiReader(strings.NewReader("hel"), strings.NewReader("lo")),
	} {
		t.Run(name, func(t *testing.T) {
			req, err := NewRequest(t.Context(), http.MethodPost, "http://example.com", body)
			require.NoError(t, err)
			assert.Equal(t, int64(5), req.ContentLength)

			first, _ := io.ReadAll(req.Body)
			again, err := req.GetBody()
			require.NoError(t, err)
			second, _ := io.ReadAll(again)
			assert.Equal(t, "hello", string(first))
			assert.Equal(t, "hello", string(second))
		})
	}
}

func TestNewRequest_UnsupportedBody(t *testing.T) {
	_, err := NewRequest(t.Context(), http.MethodPost, "http://example.com", 42)
	assert.Error(t, err)
}
