// Package site serves the embedded board client.
package site

import (
	"context"
	"net/http"
)

// Register attaches the embedded client to mux. It claims "/", so API routes
// registered with more specific patterns still win.
func Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}

	mux.Handle("GET /", http.FileServer(FS()))
}
