package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crimson-sun/whistle/internal/rules"
)

// legacyJSON is the document format written by the first whistle release.
const legacyJSON = `{
    "llm": {"base_url": null, "api_key": "sk-test-123456789", "model": "gpt-4o-mini"},
    "alert": {"slack": "https://hooks.slack.com/services/T/B/X"},
    "log": {"kernel_only": false, "service_units": ["nginx", "sshd"]},
    "ignore": [
        {"name": "fav", "regex": "favicon\\.ico", "comment": "browsers"},
        {"name": "cron", "regex": "CRON\\[\\d+\\]"}
    ]
}`

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "nope.yaml"))
	cfg, err := s.Load()
	require.NoError(t, err)

	assert.Equal(t, Default(), cfg)
	assert.True(t, cfg.Log.KernelOnly)
	assert.Equal(t, "journalctl", cfg.Log.Source)
	assert.True(t, cfg.Pipeline.PrecheckBatch)
	assert.False(t, cfg.Pipeline.PrecheckLive)
	assert.Equal(t, 2000, cfg.LLM.MaxLength)
	assert.Empty(t, cfg.Ignore)
}

func TestLoad_MissingFileMustExist(t *testing.T) {
	s := &Store{Path: filepath.Join(t.TempDir(), "nope.yaml"), MustExist: true}
	_, err := s.Load()
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoad_LegacyJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(legacyJSON), 0o600))

	cfg, err := NewStore(path).Load()
	require.NoError(t, err)

	assert.Equal(t, "", cfg.LLM.BaseURL)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, 2000, cfg.LLM.MaxLength, "unset keys keep defaults")
	assert.False(t, cfg.Log.KernelOnly)
	assert.Equal(t, []string{"nginx", "sshd"}, cfg.Log.ServiceUnits)

	rs, err := cfg.Rules()
	require.NoError(t, err)
	require.Equal(t, 2, rs.Len())
	r, ok := rs.Match("GET /favicon.ico 404")
	require.True(t, ok)
	assert.Equal(t, "fav", r.Name)
}

func TestLoad_MalformedFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm: [unterminated"), 0o600))

	_, err := NewStore(path).Load()
	assert.Error(t, err)
}

func TestRules_BadPatternFailsClosed(t *testing.T) {
	cfg := Default()
	cfg.Ignore = []rules.Record{{Name: "ok", Pattern: "a"}, {Name: "bad", Pattern: "("}}

	rs, err := cfg.Rules()
	assert.Nil(t, rs)
	assert.ErrorIs(t, err, rules.ErrInvalidPattern)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	for _, name := range []string{"config.yaml", "config.json"} {
		t.Run(name, func(t *testing.T) {
			s := NewStore(filepath.Join(t.TempDir(), "nested", name))

			cfg := Default()
			cfg.LLM.APIKey = "key"
			cfg.LLM.Model = "model"
			cfg.LLM.Hints = "nginx 404s are expected"
			cfg.Log.ServiceUnits = []string{"nginx"}
			cfg.Ignore = []rules.Record{
				{Name: "z-last-alphabetically", Pattern: `zzz`},
				{Name: "fav", Pattern: `favicon\.ico`, Comment: "browsers"},
				{Name: "ssh", Pattern: `^sshd\[\d+\]: Connection from`},
			}
			require.NoError(t, s.Save(cfg))

			loaded, err := s.Load()
			require.NoError(t, err)
			if diff := cmp.Diff(cfg, loaded); diff != "" {
				t.Fatalf("first load mismatch (-want +got):\n%s", diff)
			}

			require.NoError(t, s.Save(loaded))
			again, err := s.Load()
			require.NoError(t, err)
			if diff := cmp.Diff(loaded, again); diff != "" {
				t.Errorf("save(load()) changed content (-want +got):\n%s", diff)
			}

			info, err := os.Stat(s.Path)
			require.NoError(t, err)
			assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
		})
	}
}

func TestSaveRulesKeepsOtherSettings(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "config.yaml"))
	cfg := Default()
	cfg.Alert.Slack = "https://hooks.example.com/x"
	require.NoError(t, s.Save(cfg))

	recs := []rules.Record{{Name: "learned", Pattern: `^sshd`}}
	require.NoError(t, s.SaveRules(recs))

	loaded, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, "https://hooks.example.com/x", loaded.Alert.Slack)
	assert.Equal(t, recs, loaded.Ignore)
}

func TestSaveRulesCreatesMissingFile(t *testing.T) {
	s := &Store{Path: filepath.Join(t.TempDir(), "config.yaml"), MustExist: true}
	require.NoError(t, s.SaveRules([]rules.Record{{Name: "a", Pattern: "a"}}))

	loaded, err := s.Load()
	require.NoError(t, err)
	assert.Len(t, loaded.Ignore, 1)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"unknown source", func(c *Config) { c.Log.Source = "syslog" }, true},
		{"file source without files", func(c *Config) { c.Log.Source = "file" }, true},
		{"file source with files", func(c *Config) { c.Log.Source = "file"; c.Log.Files = []string{"/var/log/syslog"} }, false},
		{"max length too small", func(c *Config) { c.LLM.MaxLength = 10 }, true},
		{"max length disabled", func(c *Config) { c.LLM.MaxLength = 0 }, false},
		{"negative rate", func(c *Config) { c.LLM.RateLimit = -1 }, true},
		{"bad timeout", func(c *Config) { c.LLM.Timeout = "soon" }, true},
		{"bad format", func(c *Config) { c.Output.Format = "xml" }, true},
		{"bad verbosity", func(c *Config) { c.Output.Verbosity = "loud" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLLMConfigured(t *testing.T) {
	assert.False(t, LLMConfig{}.Configured())
	assert.False(t, LLMConfig{APIKey: "k"}.Configured())
	assert.False(t, LLMConfig{Model: "m"}.Configured())
	assert.True(t, LLMConfig{APIKey: "k", Model: "m"}.Configured())
}

func TestTimeoutDuration(t *testing.T) {
	assert.Equal(t, "30s", LLMConfig{}.TimeoutDuration().String())
	assert.Equal(t, "5s", LLMConfig{Timeout: "5s"}.TimeoutDuration().String())
}

func TestRedacted(t *testing.T) {
	cfg := Default()
	cfg.LLM.APIKey = "sk-abcdefghijkl"
	red := cfg.Redacted()
	assert.Equal(t, "sk-a*******ijkl", red.LLM.APIKey)
	assert.Equal(t, "sk-abcdefghijkl", cfg.LLM.APIKey, "original untouched")

	cfg.LLM.APIKey = "short"
	assert.Equal(t, "*****", cfg.Redacted().LLM.APIKey)
}

func TestPathResolution(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("WHISTLE_CONFIG_DIR", dir)

	assert.Equal(t, dir, DefaultDir())
	assert.Equal(t, filepath.Join(dir, "config.yaml"), DefaultPath())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte("{}"), 0o600))
	assert.Equal(t, filepath.Join(dir, "config.json"), DefaultPath())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(""), 0o600))
	assert.Equal(t, filepath.Join(dir, "config.yaml"), DefaultPath())
}
