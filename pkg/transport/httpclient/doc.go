/*
Package httpclient builds *http.Client values wired with the decorators of
package transport: user agent, request id, authentication, hooks, metrics and
OpenTelemetry spans, on top of a pooled keep-alive transport.
*/
package httpclient
