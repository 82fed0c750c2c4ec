package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/card-directory/pkg/crawler"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0644))
	return cfgPath
}

func clearDBEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"DB_HOST", "DB_SERVER", "DB_NAME", "DB_DATABASE", "DB_PORT", "STATE_DIR", "SERVER_ADDR", "PORT", "ENV_FILE"} {
		t.Setenv(k, "")
	}
}

func TestLoadConfig_ValidFile(t *testing.T) {
	clearDBEnv(t)
	cfgPath := writeConfig(t, `
database:
  host: db.internal
  dbname: cards
crawl:
  delay: 500ms
  extractor: dom
`)

	cfg, warnings, err := loadConfig(cfgPath)

	require.NoError(t, err)
	assert.Equal(t, "cards", cfg.Database.DBName)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, ":3000", cfg.Server.Addr)
	assert.Equal(t, "dom", cfg.Crawl.Extractor)
	assert.NotEmpty(t, warnings)
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	_, _, err := loadConfig("/nonexistent/path/config.yaml")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("{{invalid yaml"), 0644))

	_, _, err := loadConfig(cfgPath)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestLoadConfig_DefaultPathMissingUsesEnvironment(t *testing.T) {
	clearDBEnv(t)
	t.Chdir(t.TempDir())
	t.Setenv("DB_NAME", "from_env")

	assert.Equal(t, "", resolveConfigPath(defaultConfigPath))

	cfg, _, err := loadConfig(defaultConfigPath)
	require.NoError(t, err)
	assert.Equal(t, "from_env", cfg.Database.DBName)
}

func TestResolveConfigPath_ExplicitPathKept(t *testing.T) {
	assert.Equal(t, "/etc/cards.yaml", resolveConfigPath("/etc/cards.yaml"))
}

func TestDoValidate_Valid(t *testing.T) {
	clearDBEnv(t)
	cfgPath := writeConfig(t, `
state_dir: ./state
server:
  addr: ":8080"
database:
  host: localhost
  dbname: cards
`)

	var stdout, stderr bytes.Buffer
	exitCode := doValidate(cfgPath, &stdout, &stderr)

	assert.Equal(t, 0, exitCode, stderr.String())
	out := stdout.String()
	assert.Contains(t, out, "OK: database ")
	assert.Contains(t, out, "/cards (sslmode=disable)")
	assert.Contains(t, out, "OK: server :8080, metrics true")
	assert.Contains(t, out, "extractor regex")
	assert.Contains(t, out, "OK: outcome ledger in ./state")
	assert.Contains(t, out, "Configuration valid")
	assert.Empty(t, stderr.String())
}

func TestDoValidate_WarningsPrinted(t *testing.T) {
	clearDBEnv(t)
	cfgPath := writeConfig(t, `
database:
  dbname: cards
`)

	var stdout, stderr bytes.Buffer
	exitCode := doValidate(cfgPath, &stdout, &stderr)

	assert.Equal(t, 0, exitCode)
	assert.Contains(t, stdout.String(), "WARN: server.addr is empty")
	assert.Contains(t, stdout.String(), "WARN: state_dir is empty")
	assert.NotContains(t, stdout.String(), "outcome ledger")
}

func TestDoValidate_MissingDatabaseName(t *testing.T) {
	clearDBEnv(t)
	cfgPath := writeConfig(t, `
database:
  host: localhost
`)

	var stdout, stderr bytes.Buffer
	exitCode := doValidate(cfgPath, &stdout, &stderr)

	assert.Equal(t, 1, exitCode)
	assert.Contains(t, stderr.String(), "ERROR:")
	assert.Contains(t, stderr.String(), "dbname is required")
	assert.NotContains(t, stdout.String(), "Configuration valid")
}

func TestDoValidate_UnknownExtractor(t *testing.T) {
	clearDBEnv(t)
	cfgPath := writeConfig(t, `
database:
  dbname: cards
crawl:
  extractor: llm
`)

	var stdout, stderr bytes.Buffer
	exitCode := doValidate(cfgPath, &stdout, &stderr)

	assert.Equal(t, 1, exitCode)
	assert.Contains(t, stderr.String(), "crawl.extractor")
}

func TestReadURLList(t *testing.T) {
	input := `
# seed list
https://a.example

  https://b.example
#https://skipped.example
https://a.example
`
	urls, err := readURLList(strings.NewReader(input))

	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example", "https://b.example", "https://a.example"}, urls)
}

func TestCollectURLs(t *testing.T) {
	listPath := filepath.Join(t.TempDir(), "urls.txt")
	require.NoError(t, os.WriteFile(listPath, []byte("https://c.example\n"), 0644))

	urls, err := collectURLs(" https://a.example, ,https://b.example", listPath)

	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example", "https://b.example", "https://c.example"}, urls)
}

func TestCollectURLs_Empty(t *testing.T) {
	urls, err := collectURLs("", "")

	require.NoError(t, err)
	assert.Empty(t, urls)
}

func TestCollectURLs_MissingFile(t *testing.T) {
	_, err := collectURLs("", "/nonexistent/urls.txt")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "open url file")
}

func TestPrintCrawlSummary(t *testing.T) {
	var buf bytes.Buffer
	printCrawlSummary(&buf, crawler.Status{
		RunID:      "run-1",
		Processed:  4,
		Saved:      2,
		Duplicates: 1,
		Failures:   1,
		QueueDepth: 3,
	})

	out := buf.String()
	assert.Contains(t, out, "Run:        run-1")
	assert.Contains(t, out, "Saved:      2 (pending review)")
	assert.Contains(t, out, "Failures:   1")
	assert.Contains(t, out, "Unprocessed (interrupted): 3")

	buf.Reset()
	printCrawlSummary(&buf, crawler.Status{Processed: 1})
	assert.NotContains(t, buf.String(), "Run:")
	assert.NotContains(t, buf.String(), "Unprocessed")
}

func TestDoCategories(t *testing.T) {
	var stdout, stderr bytes.Buffer
	exitCode := doCategories(&stdout, &stderr)

	assert.Equal(t, 0, exitCode)
	assert.Contains(t, stdout.String(), "科技 (TECH)")
	assert.Contains(t, stdout.String(), "└── 零售 (RET)")
	assert.Empty(t, stderr.String())
}

func TestPrintUsageTo(t *testing.T) {
	var buf bytes.Buffer
	printUsageTo(&buf)

	out := buf.String()
	for _, cmd := range []string{"serve", "crawl", "migrate", "validate", "categories", "mcp-server", "version"} {
		assert.Contains(t, out, "  "+cmd+" ")
	}
}

func TestSetupLogger(t *testing.T) {
	log := setupLogger("debug", io.Discard)
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())

	var buf bytes.Buffer
	log = setupLogger("loud", &buf)
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
	assert.Contains(t, buf.String(), "Invalid log level 'loud'")

	log = setupLogger("", io.Discard)
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
}

func TestLoadAndValidateConfig_AppliesConfigLevel(t *testing.T) {
	clearDBEnv(t)
	t.Setenv("LOG_LEVEL", "")
	cfgPath := writeConfig(t, `
log_level: warn
database:
  dbname: cards
`)

	log := setupLogger("", io.Discard)
	_, err := loadAndValidateConfig(cfgPath, "", log)
	require.NoError(t, err)
	assert.Equal(t, logrus.WarnLevel, log.GetLevel())

	log = setupLogger("debug", io.Discard)
	_, err = loadAndValidateConfig(cfgPath, "debug", log)
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())
}
