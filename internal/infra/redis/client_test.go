package redis

import (
	"context"
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"go.uber.org/zap/zaptest"

	"github.com/Travinkel/belsign-photo-doc-sub006/internal/infra/config"
)

func TestNewClientAgainstMiniredis(t *testing.T) {
	mr := miniredis.RunT(t)

	port, err := strconv.Atoi(mr.Port())
	if err != nil {
		t.Fatalf("parse miniredis port: %v", err)
	}

	client, err := NewClient(context.Background(), config.RedisSettings{
		Host: mr.Host(),
		Port: port,
	}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}

	mr.Close()
	if err := client.HealthCheck(context.Background()); err == nil {
		t.Fatal("expected health check to fail once redis is gone")
	}
}

func TestOptionsEnablesTLS(t *testing.T) {
	opts := Options(config.RedisSettings{Host: "cache", Port: 6380, TLSEnabled: true})
	if opts.Addr != "cache:6380" {
		t.Fatalf("unexpected addr %q", opts.Addr)
	}
	if opts.TLSConfig == nil {
		t.Fatal("expected TLS config")
	}
}
