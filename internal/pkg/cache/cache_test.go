package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSetupCacheUnreachableLeavesClientNil(t *testing.T) {
	// Port 1 refuses immediately, so setup observes the failed ping.
	t.Setenv("CACHE_HOST", "127.0.0.1")
	t.Setenv("CACHE_PORT", "1")

	SetupCache()
	if GetClient() != nil {
		t.Fatal("GetClient must return nil when Redis is unreachable")
	}
}

func TestHelpersReportUnavailable(t *testing.T) {
	initialized = true
	client = nil

	ctx := context.Background()
	if err := Set(ctx, "k", "v", time.Minute); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Set err = %v, want ErrUnavailable", err)
	}
	if _, err := Get(ctx, "k"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Get err = %v, want ErrUnavailable", err)
	}
	if _, err := Add(ctx, "k", "v", time.Minute); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Add err = %v, want ErrUnavailable", err)
	}
	if err := Delete(ctx, "k"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Delete err = %v, want ErrUnavailable", err)
	}
}
