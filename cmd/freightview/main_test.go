package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mr-Dark-debug/freightview/internal/api"
	"github.com/Mr-Dark-debug/freightview/internal/database"
	"github.com/Mr-Dark-debug/freightview/internal/server"
)

const manifestJSON = `{
  "freight": [
    {"id": "bbbbbbb2222", "charts": [{"registryURL": "oci://r", "name": "app", "version": "1.1.0"}]}
  ],
  "stages": [
    {
      "metadata": {"name": "dev"},
      "status": {"currentFreight": {"id": "aaaaaaa1111", "charts": [{"registryURL": "oci://r", "name": "app", "version": "1.0.0"}]}}
    }
  ]
}`

// cli writes a config pointing at a fresh server and returns a runner.
func cli(t *testing.T, secret string) func(args ...string) (string, error) {
	t.Helper()
	store, err := database.NewDBService(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg := server.DefaultConfig()
	srv := server.New(cfg, store, nil)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	toml := fmt.Sprintf("[api]\nurl = %q\n\n[server]\ntoken_secret = %q\n\n[ui]\nproject = \"demo\"\n", ts.URL, secret)
	require.NoError(t, os.WriteFile(path, []byte(toml), 0o644))

	return func(args ...string) (string, error) {
		var out, errOut bytes.Buffer
		cmd := newRootCommand(&out, &errOut)
		cmd.SetArgs(append([]string{"--config", path}, args...))
		err := cmd.Execute()
		return out.String(), err
	}
}

func TestDecodeManifest(t *testing.T) {
	m, err := decodeManifest(strings.NewReader(manifestJSON))
	require.NoError(t, err)
	require.Len(t, m.Freight, 1)
	require.Len(t, m.Stages, 1)
	assert.Equal(t, "dev", m.Stages[0].Metadata.Name)

	m, err = decodeManifest(strings.NewReader(`{"metadata": {"name": "qa"}}`))
	require.NoError(t, err)
	require.Len(t, m.Stages, 1)
	assert.Equal(t, "qa", m.Stages[0].Metadata.Name)

	m, err = decodeManifest(strings.NewReader(`[{"metadata": {"name": "a"}}, {"metadata": {"name": "b"}}]`))
	require.NoError(t, err)
	assert.Len(t, m.Stages, 2)

	_, err = decodeManifest(strings.NewReader("  "))
	assert.Error(t, err)
	_, err = decodeManifest(strings.NewReader("{"))
	assert.Error(t, err)
}

func TestParsePhase(t *testing.T) {
	p, err := parsePhase("succeeded")
	require.NoError(t, err)
	assert.Equal(t, api.PhaseSucceeded, p)

	_, err = parsePhase("Done")
	assert.ErrorContains(t, err, "unknown phase")
}

func TestApplyPromoteAndList(t *testing.T) {
	run := cli(t, "")

	manifest := filepath.Join(t.TempDir(), "stages.json")
	require.NoError(t, os.WriteFile(manifest, []byte(manifestJSON), 0o644))

	out, err := run("stages", "apply", "-f", manifest)
	require.NoError(t, err)
	assert.Equal(t, "freight/bbbbbbb2222 applied\nstage/dev applied\n", out)

	out, err = run("promote", "--stage", "dev", "--freight", "bbbbbbb2222", "--name", "dev.p1")
	require.NoError(t, err)
	assert.Equal(t, "promotion/dev.p1 created\n", out)

	out, err = run("promotion", "phase", "dev.p1", "succeeded")
	require.NoError(t, err)
	assert.Equal(t, "promotion/dev.p1 Succeeded\n", out)

	out, err = run("stages", "list", "-o", "json")
	require.NoError(t, err)
	var stages []api.Stage
	require.NoError(t, json.Unmarshal([]byte(out), &stages))
	require.Len(t, stages, 1)
	assert.Equal(t, "bbbbbbb2222", stages[0].Status.CurrentFreight.ID)
	require.Len(t, stages[0].Status.History, 1)
	assert.Equal(t, "aaaaaaa1111", stages[0].Status.History[0].ID)

	out, err = run("stages", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "bbbbbbb")

	out, err = run("promotion", "list", "--stage", "dev")
	require.NoError(t, err)
	assert.Contains(t, out, "dev.p1")
	assert.Contains(t, out, "Succeeded")

	out, err = run("promotion", "delete", "dev.p1")
	require.NoError(t, err)
	assert.Equal(t, "promotion/dev.p1 deleted\n", out)

	_, err = run("promotion", "delete", "dev.p1")
	assert.ErrorContains(t, err, "not found")
}

func TestPromoteRequiresFlags(t *testing.T) {
	run := cli(t, "")
	_, err := run("promote", "--stage", "dev")
	assert.ErrorContains(t, err, "freight")
}

func TestTokenCommand(t *testing.T) {
	run := cli(t, "s3cret")
	out, err := run("token", "--subject", "ci")
	require.NoError(t, err)

	sub, err := server.VerifyToken("s3cret", strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "ci", sub)

	run = cli(t, "")
	_, err = run("token")
	assert.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	run := cli(t, "")
	out, err := run("version")
	require.NoError(t, err)
	assert.Contains(t, out, "Client Version: "+version)
	assert.Contains(t, out, "Server Version: "+server.Version)
}
