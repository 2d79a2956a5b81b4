package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/snow-report/internal/chatlog"
	"github.com/i474232898/snow-report/internal/logger"
	"github.com/i474232898/snow-report/internal/logminer"
)

func setupWorkspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	registry := `{
    "fernie": {"name": "Fernie Alpine Resort", "country": "Canada", "lat": 49.4627, "lon": -115.0873},
    "jacksonHole": {"name": "Jackson Hole", "country": "USA", "lat": 43.5875, "lon": -110.8279}
}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "skiResorts.json"), []byte(registry), 0o644))

	t.Setenv("REGISTRY_PATH", filepath.Join(dir, "skiResorts.json"))
	t.Setenv("LOG_PATH", filepath.Join(dir, "discord.log"))
	t.Setenv("LOG_LEDGER_PATH", filepath.Join(dir, "s3_logs.csv"))
	return dir
}

func run(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := rootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--env-file", filepath.Join(dir, "missing.env")))
	err := cmd.Execute()
	return out.String(), err
}

func TestResortList(t *testing.T) {
	dir := setupWorkspace(t)

	out, err := run(t, dir, "resort", "list")
	require.NoError(t, err)
	assert.Equal(t, "<Resort Name>: Fernie Alpine Resort | <keyword>: fernie\n<Resort Name>: Jackson Hole | <keyword>: jacksonHole\n", out)

	out, err = run(t, dir, "resort", "list", "--country", "USA")
	require.NoError(t, err)
	assert.Equal(t, "<Resort Name>: Jackson Hole | <keyword>: jacksonHole\n", out)
}

func TestResortShow(t *testing.T) {
	dir := setupWorkspace(t)

	out, err := run(t, dir, "resort", "show", "fernie")
	require.NoError(t, err)
	assert.Contains(t, out, "Fernie Alpine Resort (fernie)")
	assert.Contains(t, out, "lat: 49.4627")

	_, err = run(t, dir, "resort", "show", "nowhere")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `cannot find the key "nowhere"`)
}

func TestResortAdd(t *testing.T) {
	dir := setupWorkspace(t)

	_, err := run(t, dir, "resort", "add", "vail", "--name", "Vail", "--country", "USA", "--lat", "39.6403", "--lon", "-106.3742")
	require.NoError(t, err)

	out, err := run(t, dir, "resort", "list", "--country", "USA")
	require.NoError(t, err)
	assert.Contains(t, out, "<keyword>: vail")

	_, err = run(t, dir, "resort", "add", "vail", "--name", "Vail", "--country", "USA", "--lat", "1", "--lon", "1")
	assert.Error(t, err)
}

func TestLogStats_File(t *testing.T) {
	dir := setupWorkspace(t)

	logPath := filepath.Join(dir, "archived.log")
	f, err := os.Create(logPath)
	require.NoError(t, err)
	events := logger.NewWithWriter("debug", logminer.DefaultSource, f)
	events.Debug(chatlog.Command(chatlog.CmdCheckSnow, []string{"fernie"}, "jane#1234", "general"))
	events.Debug(chatlog.Message("jane#1234", "Hello"))
	events.Debug(chatlog.MessageContent("Hello"))
	require.NoError(t, f.Close())

	out, err := run(t, dir, "logstats", "--file", logPath)
	require.NoError(t, err)

	var rep logminer.Report
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.Equal(t, 1, rep.Messages)
	assert.Equal(t, 1, rep.Hello)
	assert.Equal(t, 1, rep.Commands[chatlog.CmdCheckSnow])
	assert.Equal(t, 1, rep.ResortChecks["fernie"])
	assert.Equal(t, 0, rep.ResortChecks["jacksonHole"])
}

func TestLogStats_LatestWithoutUploads(t *testing.T) {
	dir := setupWorkspace(t)

	_, err := run(t, dir, "logstats", "--latest")
	assert.Error(t, err)
}
