package infra

import (
	"net/http"
	"testing"
	"time"
)

func TestNewHTTPServer(t *testing.T) {
	srv := NewHTTPServer(&Config{Port: "9090", HTTPWriteTimeout: 3 * time.Minute}, http.NotFoundHandler())
	if srv.Addr() != ":9090" {
		t.Fatalf("Addr = %q", srv.Addr())
	}
	if srv.server.WriteTimeout != 3*time.Minute {
		t.Fatalf("WriteTimeout = %s", srv.server.WriteTimeout)
	}
	if (&HTTPServer{}).Addr() != "" {
		t.Fatal("zero server has no address")
	}
}
