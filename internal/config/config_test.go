package config

import (
	"reflect"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GIN_MODE", "debug")
	t.Setenv("STORE", "memory")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.SyncPageSize != 100 {
		t.Errorf("SyncPageSize = %d, want 100", cfg.SyncPageSize)
	}
	if cfg.SyncBackoffBase != 3*time.Second || cfg.SyncBackoffMax != 30*time.Second {
		t.Errorf("backoff = %s..%s, want 3s..30s", cfg.SyncBackoffBase, cfg.SyncBackoffMax)
	}
	if cfg.SearchDefaultLimit != 32 || cfg.SearchMaxLimit != 100 {
		t.Errorf("search limits = %d/%d, want 32/100", cfg.SearchDefaultLimit, cfg.SearchMaxLimit)
	}
	if !reflect.DeepEqual(cfg.MembershipKeywords, DefaultMembershipKeywords) {
		t.Errorf("MembershipKeywords = %v", cfg.MembershipKeywords)
	}
	if !cfg.ProxyEnabled || cfg.ProxyCacheSize != 1000 || cfg.ProxyCacheTTL != time.Minute || cfg.RateLimitProxy != 180 {
		t.Errorf("proxy = enabled %t, cache %d/%s, limit %d; want true, 1000/1m, 180",
			cfg.ProxyEnabled, cfg.ProxyCacheSize, cfg.ProxyCacheTTL, cfg.RateLimitProxy)
	}
}

func TestLoadReleaseRequiresSecrets(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr bool
	}{
		{"default secret rejected", map[string]string{"ADMIN_TOKEN": "x"}, true},
		{"missing admin credential", map[string]string{"JWT_SECRET": "s3cret"}, true},
		{"token set", map[string]string{"JWT_SECRET": "s3cret", "ADMIN_TOKEN": "x"}, false},
		{"bcrypt hash set", map[string]string{"JWT_SECRET": "s3cret", "ADMIN_TOKEN_BCRYPT": "$2a$10$abc"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("GIN_MODE", "release")
			t.Setenv("STORE", "memory")
			t.Setenv("JWT_SECRET", defaultJWTSecret)
			t.Setenv("ADMIN_TOKEN", "")
			t.Setenv("ADMIN_TOKEN_BCRYPT", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if (err != nil) != tt.wantErr {
				t.Errorf("Load() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("TEST_DURATION_MS", "250")
	t.Setenv("TEST_DURATION_GO", "1m")
	t.Setenv("TEST_LIST", " a, ,b ,c")
	t.Setenv("TEST_BAD_INT", "nope")

	if got := getEnvDuration("TEST_DURATION_MS", 0); got != 250*time.Millisecond {
		t.Errorf("bare millis = %s", got)
	}
	if got := getEnvDuration("TEST_DURATION_GO", 0); got != time.Minute {
		t.Errorf("go duration = %s", got)
	}
	if got := getEnvList("TEST_LIST", nil); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("list = %v", got)
	}
	if got := getEnvInt("TEST_BAD_INT", 7); got != 7 {
		t.Errorf("bad int fallback = %d", got)
	}
}

func TestValidateRejectsBadStore(t *testing.T) {
	t.Setenv("GIN_MODE", "debug")
	t.Setenv("STORE", "redis")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown store backend")
	}
}
