package cache

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
)

func TestNew(t *testing.T) {
	mr := miniredis.RunT(t)

	srv, err := New(Options{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer srv.Close()

	if srv.GetClient() == nil {
		t.Fatal("GetClient() returned nil")
	}
}

func TestNew_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	srv, err := New(Options{Addr: addr})
	if err == nil {
		srv.Close()
		t.Fatal("New() error = nil for a closed server")
	}
}

func TestHealth(t *testing.T) {
	mr := miniredis.RunT(t)

	srv, err := New(Options{Addr: mr.Addr(), PoolSize: 4})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer srv.Close()

	stats := srv.Health()
	if stats["status"] != "up" {
		t.Fatalf("expected status to be up, got %s", stats["status"])
	}
	if _, ok := stats["error"]; ok {
		t.Fatalf("expected error not to be present")
	}
	if _, ok := stats["total_conns"]; !ok {
		t.Error("expected pool stats in health output")
	}

	mr.Close()
	stats = srv.Health()
	if stats["status"] != "down" {
		t.Errorf("expected status to be down after server stopped, got %s", stats["status"])
	}
}
