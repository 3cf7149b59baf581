package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func load(t *testing.T, args ...string) (*Config, error) {
	t.Helper()
	fs := Flags("barprep")
	require.NoError(t, fs.Parse(args))
	return Load(fs)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := load(t)
	require.NoError(t, err)

	assert.Equal(t, "barprep.db", cfg.DB.Path)
	assert.Equal(t, "default", cfg.User.ID)
	assert.Empty(t, cfg.Exam.Date)
	assert.Equal(t, "repos", cfg.Sources.ReposDir)
	assert.Equal(t, 21, cfg.Scheduler.MatureInterval)
	assert.InDelta(t, 1.3, cfg.Scheduler.MinEasiness, 1e-9)
	assert.Equal(t, 6, cfg.Scheduler.SecondInterval)
	assert.InDelta(t, 60, cfg.Analyzer.WeakThreshold, 1e-9)
	assert.Equal(t, 50, cfg.Analyzer.HighWorkload)
	assert.InDelta(t, 70, cfg.Analyzer.LowRetention, 1e-9)
	assert.InDelta(t, 2.0, cfg.Analyzer.LowEasiness, 1e-9)
	assert.Equal(t, 3, cfg.Analyzer.MaxFocusSubjects)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoadPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "barprep.yaml")
	yaml := `
db:
  path: from-file.db
user:
  id: file-user
exam:
  date: "2027-02-23"
analyzer:
  high_workload: 80
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	t.Setenv("BARPREP_USER_ID", "env-user")
	t.Setenv("BARPREP_SOURCES_REPOS_DIR", "/var/barprep/repos")
	t.Setenv("BARPREP_ANALYZER_HIGH_WORKLOAD", "90")

	cfg, err := load(t, "--config", path, "--analyzer-high-workload", "100", "--log-format", "json")
	require.NoError(t, err)

	assert.Equal(t, "from-file.db", cfg.DB.Path, "file value kept when nothing overrides it")
	assert.Equal(t, "env-user", cfg.User.ID, "env overrides file")
	assert.Equal(t, "/var/barprep/repos", cfg.Sources.ReposDir)
	assert.Equal(t, 100, cfg.Analyzer.HighWorkload, "explicit flag overrides env")
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "2027-02-23", cfg.Exam.Date)
	assert.Equal(t, 21, cfg.Scheduler.MatureInterval, "flag default fills missing keys")
}

func TestLoadConfigPathFromEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "barprep.yaml")
	require.NoError(t, os.WriteFile(path, []byte("user:\n  id: yaml-user\n"), 0o644))
	t.Setenv("BARPREP_CONFIG", path)

	cfg, err := load(t)
	require.NoError(t, err)
	assert.Equal(t, "yaml-user", cfg.User.ID)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := load(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	testCases := []struct {
		name string
		args []string
	}{
		{"bad exam date", []string{"--exam-date", "23/02/2027"}},
		{"empty user", []string{"--user-id", ""}},
		{"unknown log level", []string{"--log-level", "verbose"}},
		{"weak threshold above 100", []string{"--analyzer-weak-threshold", "120"}},
		{"zero mature interval", []string{"--scheduler-mature-interval", "0"}},
		{"easiness floor below 1.3", []string{"--scheduler-min-easiness", "1.1"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := load(t, tc.args...)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestExamDate(t *testing.T) {
	loc := time.FixedZone("EST", -5*60*60)

	_, ok, err := Config{}.ExamDate(loc)
	require.NoError(t, err)
	assert.False(t, ok)

	date, ok, err := Config{Exam: ExamConfig{Date: "2027-02-23"}}.ExamDate(loc)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, time.Date(2027, 2, 23, 0, 0, 0, 0, loc), date)

	_, _, err = Config{Exam: ExamConfig{Date: "tomorrow"}}.ExamDate(loc)
	assert.Error(t, err)
}

func TestFlagKey(t *testing.T) {
	assert.Equal(t, "db.path", flagKey("db-path"))
	assert.Equal(t, "analyzer.max_focus_subjects", flagKey("analyzer-max-focus-subjects"))
	assert.Equal(t, "config", flagKey("config"))
	assert.Equal(t, "sources.repos_dir", envKey("BARPREP_SOURCES_REPOS_DIR"))
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(LogConfig{Level: "warn", Format: "json"}, &buf)

	log.Info("hidden")
	assert.Zero(t, buf.Len())

	log.Warn("shown", "card", "abc")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
	assert.Contains(t, buf.String(), `"card":"abc"`)

	buf.Reset()
	NewLogger(LogConfig{Level: "debug", Format: "text"}, &buf).Debug("trace")
	assert.Contains(t, buf.String(), "msg=trace")
}
