package xmlidx

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg := must(LoadConfig(""))
	if !cfg.Index.CaseSensitive || cfg.Storage.PageSize != 4096 || cfg.Logging.Format != "text" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	opt := cfg.Options()
	if opt.CaseInsensitive || opt.LockTimeout != 5*time.Second {
		t.Fatalf("Options() = %+v", opt)
	}
}

func TestLoadConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "xmlidx.yaml")
	ensure(os.WriteFile(path, []byte(`
index:
  path: /var/lib/xmlidx/values.db
  caseSensitive: false
  readOnly: true
  lockTimeout: 250ms
storage:
  pageFile: /var/lib/xmlidx/nodes.dom
logging:
  level: debug
  verbose: true
`), 0o644))

	t.Setenv("XMLIDX_LOG_FORMAT", "json")
	cfg := must(LoadConfig(path))
	if cfg.Index.Path != "/var/lib/xmlidx/values.db" || cfg.Storage.PageFile != "/var/lib/xmlidx/nodes.dom" {
		t.Errorf("paths = %q, %q", cfg.Index.Path, cfg.Storage.PageFile)
	}
	if cfg.Storage.NodeIndex != "nodes.db" {
		t.Errorf("NodeIndex default lost: %q", cfg.Storage.NodeIndex)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("logging = %+v", cfg.Logging)
	}

	opt := cfg.Options()
	deepEqual(t, opt, Options{
		Verbose:         true,
		CaseInsensitive: true,
		ReadOnly:        true,
		LockTimeout:     250 * time.Millisecond,
	})
}

func TestLoadConfig_Errors(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Errorf("missing file accepted")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	ensure(os.WriteFile(path, []byte("index: [1, 2"), 0o644))
	if _, err := LoadConfig(path); err == nil {
		t.Errorf("malformed file accepted")
	}

	t.Setenv("XMLIDX_CASE_SENSITIVE", "maybe")
	if _, err := LoadConfig(""); err == nil {
		t.Errorf("bad XMLIDX_CASE_SENSITIVE accepted")
	}
}
