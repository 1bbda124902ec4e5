package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestGetEnv(t *testing.T) {
	t.Setenv("TEST_GET_ENV", "value")

	if got := GetEnv("TEST_GET_ENV", "default"); got != "value" {
		t.Errorf("GetEnv = %q, want %q", got, "value")
	}
	if got := GetEnv("TEST_GET_ENV_MISSING", "default"); got != "default" {
		t.Errorf("GetEnv = %q, want %q", got, "default")
	}
}

func TestGetIntEnv(t *testing.T) {
	t.Setenv("TEST_INT_ENV", "42")
	t.Setenv("TEST_INT_ENV_BAD", "not-a-number")

	if got := GetIntEnv("TEST_INT_ENV", 7); got != 42 {
		t.Errorf("GetIntEnv = %d, want 42", got)
	}
	if got := GetIntEnv("TEST_INT_ENV_BAD", 7); got != 7 {
		t.Errorf("GetIntEnv with invalid value = %d, want default 7", got)
	}
}

func TestGetDurationEnv(t *testing.T) {
	t.Setenv("TEST_DUR_ENV", "90s")

	if got := GetDurationEnv("TEST_DUR_ENV", time.Second); got != 90*time.Second {
		t.Errorf("GetDurationEnv = %s, want 90s", got)
	}
	if got := GetDurationEnv("TEST_DUR_ENV_MISSING", time.Second); got != time.Second {
		t.Errorf("GetDurationEnv = %s, want 1s default", got)
	}
}

func TestGetSecretFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secret")
	if err := os.WriteFile(path, []byte("  s3cret\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	if got := GetSecretFile(path); got != "s3cret" {
		t.Errorf("GetSecretFile = %q, want trimmed %q", got, "s3cret")
	}
	if got := GetSecretFile(""); got != "" {
		t.Errorf("GetSecretFile(empty path) = %q, want empty", got)
	}
	if got := GetSecretFile(filepath.Join(t.TempDir(), "missing")); got != "" {
		t.Errorf("GetSecretFile(missing) = %q, want empty", got)
	}
}

func TestGetSecretEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(path, []byte("from-file"), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("TEST_SECRET", "direct")
	t.Setenv("TEST_SECRET_FILE", path)
	if got := GetSecretEnv("TEST_SECRET"); got != "direct" {
		t.Errorf("GetSecretEnv = %q, want direct value to win", got)
	}

	t.Setenv("TEST_SECRET", "")
	if got := GetSecretEnv("TEST_SECRET"); got != "from-file" {
		t.Errorf("GetSecretEnv = %q, want file fallback %q", got, "from-file")
	}
}
