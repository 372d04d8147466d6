package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/CoReason-AI/omopcloudetl-core/errors"
)

func newTestRedis(t *testing.T, cfg RedisConfig) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mini := miniredis.RunT(t)
	cfg.Addr = mini.Addr()
	r, err := NewRedis(cfg)
	if err != nil {
		t.Fatalf("NewRedis: %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r, mini
}

func TestRedis_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	r, mini := newTestRedis(t, RedisConfig{})

	if err := r.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if _, ok, err := r.Get(ctx, "cdm_spec_5.4_remote"); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}

	if err := r.Put(ctx, "cdm_spec_5.4_remote", []byte(`{"version":"5.4"}`)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if !mini.Exists(DefaultKeyPrefix + "cdm_spec_5.4_remote") {
		t.Error("expected the key to carry the default prefix")
	}
	data, ok, err := r.Get(ctx, "cdm_spec_5.4_remote")
	if err != nil || !ok || string(data) != `{"version":"5.4"}` {
		t.Fatalf("unexpected get: %q ok=%v err=%v", data, ok, err)
	}

	if err := r.Delete(ctx, "cdm_spec_5.4_remote"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := r.Delete(ctx, "cdm_spec_5.4_remote"); err != nil {
		t.Fatalf("second Delete should be a no-op: %v", err)
	}
	if _, ok, _ := r.Get(ctx, "cdm_spec_5.4_remote"); ok {
		t.Error("expected miss after delete")
	}
}

func TestRedis_TTL(t *testing.T) {
	ctx := context.Background()
	r, mini := newTestRedis(t, RedisConfig{KeyPrefix: "ci:", TTL: time.Hour})

	if err := r.Put(ctx, "k", []byte("v")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if ttl := mini.TTL("ci:k"); ttl != time.Hour {
		t.Errorf("expected 1h TTL, got %v", ttl)
	}
	mini.FastForward(2 * time.Hour)
	if _, ok, _ := r.Get(ctx, "k"); ok {
		t.Error("expected the entry to expire")
	}
}

func TestRedis_ServerDown(t *testing.T) {
	r, mini := newTestRedis(t, RedisConfig{DialTimeout: 100 * time.Millisecond})
	mini.Close()

	if _, _, err := r.Get(context.Background(), "k"); err == nil {
		t.Error("expected an error from an unreachable server")
	}
}

func TestNew_RedisBackend(t *testing.T) {
	mini := miniredis.RunT(t)
	store, err := New(Config{Backend: BackendRedis, Redis: RedisConfig{Addr: mini.Addr()}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	r, ok := store.(*Redis)
	if !ok {
		t.Fatalf("expected *Redis, got %T", store)
	}
	_ = r.Close()
}

func TestConfig_ValidateBackends(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"local", Config{Backend: BackendLocal, Dir: "/tmp/x"}, false},
		{"redis", Config{Backend: BackendRedis, Redis: RedisConfig{Addr: "localhost:6379"}}, false},
		{"redis without addr", Config{Backend: BackendRedis}, true},
		{"negative ttl", Config{Backend: BackendRedis, Redis: RedisConfig{Addr: "x:1", TTL: -time.Second}}, true},
		{"unknown backend", Config{Backend: "memcached"}, true},
		{"disabled skips checks", Config{Backend: "memcached", Disabled: true}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.wantErr && !errors.IsCode(err, errors.ErrCodeConfiguration) {
				t.Fatalf("expected CONFIGURATION_ERROR, got %v", err)
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
