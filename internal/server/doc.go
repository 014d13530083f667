// Package server hosts the Fiber HTTP service for the catalog cache admin
// surface: request ID middleware, panic recovery, and the mapping from cache
// errors to HTTP status codes. Route groups live in server/routes and receive
// their dependencies explicitly, so keep exports narrow.
package server
