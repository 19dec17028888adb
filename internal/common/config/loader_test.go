package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
engine:
  base_url: https://engine.example.com/api
  subscriber_id: acme
  signing_key: secret
redis:
  address: localhost:6379
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "https://engine.example.com/api", cfg.Engine.BaseURL)
	assert.Equal(t, 120000, cfg.Engine.Timeout)
	assert.Equal(t, 3600, cfg.Session.TTL)
	assert.Equal(t, "worksession:", cfg.Session.KeyPrefix)
	assert.Equal(t, 1800, cfg.AnswerCache.TTL)
	assert.NotEmpty(t, cfg.AnswerCache.Dir)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "JavaScript", cfg.Interview.Format)
}

func TestLoadFromFile_InterviewAndAssemblySections(t *testing.T) {
	t.Setenv("INTERVIEW_INTERVIEW_FILES_URL", "https://cdn.example.com/interview/")
	path := writeConfig(t, `
engine:
  base_url: https://engine.example.com/api
  subscriber_id: acme
  signing_key: secret
assembly:
  retain_transient_answers: true
  settings:
    unicodefontsubstitution: "true"
interview:
  format: javascript
  post_interview_url: https://host.example.com/finish
  theme: plain
  locale: en-GB
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"unicodefontsubstitution": "true"}, cfg.Assembly.Settings)
	assert.True(t, cfg.Assembly.RetainTransientAnswers)
	assert.Equal(t, "javascript", cfg.Interview.Format)
	assert.Equal(t, "https://host.example.com/finish", cfg.Interview.PostInterviewURL)
	assert.Equal(t, "https://cdn.example.com/interview/", cfg.Interview.InterviewFilesURL)
	assert.Equal(t, "plain", cfg.Interview.Theme)
	assert.Equal(t, "en-GB", cfg.Interview.Locale)
}

func TestLoadFromFile_ExpandsPlaceholders(t *testing.T) {
	t.Setenv("TEST_ENGINE_KEY", "from-env")
	path := writeConfig(t, `
engine:
  base_url: https://engine.example.com/api
  subscriber_id: acme
  signing_key: ${TEST_ENGINE_KEY}
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Engine.SigningKey)
}

func TestLoadFromFile_SigningKeyFallback(t *testing.T) {
	t.Setenv("ENGINE_SIGNING_KEY", "fallback-key")
	path := writeConfig(t, `
engine:
  base_url: https://engine.example.com/api
  subscriber_id: acme
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "fallback-key", cfg.Engine.SigningKey)
}

func TestLoadFromFile_ValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		errMsg string
	}{
		{
			name:   "missing base url",
			body:   "engine:\n  subscriber_id: acme\n  signing_key: k\n",
			errMsg: "engine.base_url is required",
		},
		{
			name:   "missing subscriber",
			body:   "engine:\n  base_url: http://x\n  signing_key: k\n",
			errMsg: "engine.subscriber_id is required",
		},
		{
			name:   "negative ttl",
			body:   "engine:\n  base_url: http://x\n  subscriber_id: a\n  signing_key: k\nsession:\n  ttl: -5\n",
			errMsg: "session.ttl must not be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("ENGINE_SIGNING_KEY", "")
			t.Setenv("ENGINE_SUBSCRIBER_ID", "")
			_, err := LoadFromFile(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoadFromFile_MissingFile(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestDurations(t *testing.T) {
	assert.Equal(t, 1500*time.Millisecond, GetDuration(1500))
	assert.Equal(t, 90*time.Second, GetSeconds(90))
}
