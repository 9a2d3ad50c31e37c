package httpserver

import (
	"net/http"
	"time"
)

// New builds the service's HTTP server. Per-request deadlines live in the
// router's timeout middleware; the server only bounds header reads and idle
// keep-alives so a slow client cannot pin a connection.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
