package app_test

import (
	"context"
	"testing"

	"github.com/alexfall862/simBaseball-API-sub000/internal/app"
	"github.com/alexfall862/simBaseball-API-sub000/internal/config"
	"github.com/alexfall862/simBaseball-API-sub000/internal/store"
)

func TestNew_InMemory(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	a, err := app.New(context.Background(), cfg, nil, app.NewLogger(cfg.LogLevel))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	if _, ok := a.Store.(*store.MemoryStore); !ok {
		t.Errorf("store = %T, want *store.MemoryStore", a.Store)
	}
	if a.Postgres != nil {
		t.Error("Postgres set without DATABASE_URL")
	}
	if a.Books == nil || a.Summaries == nil || a.Lifecycle == nil || a.Engine == nil {
		t.Error("engine missing")
	}
}
