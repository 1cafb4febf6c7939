package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/banerjixplores/climacrop/pkg/config"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "climacrop dev\n", out)
}

func TestConfigFlagsOverride(t *testing.T) {
	out, err := run(t, "config", "--data", "survey.parquet", "--n-jobs", "3")
	require.NoError(t, err)

	var s config.Settings
	require.NoError(t, yaml.Unmarshal([]byte(out), &s))
	assert.Equal(t, "survey.parquet", s.DataPath)
	assert.Equal(t, 3, s.NJobs)
	assert.Equal(t, config.Default().HTTPAddr, s.HTTPAddr)
}

func TestConfigWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "climacrop.yaml")
	_, err := run(t, "config", "--models", "out/models", "--write", path)
	require.NoError(t, err)

	s, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "out/models", s.ModelsDir)
}

func TestMissingConfigFile(t *testing.T) {
	_, err := run(t, "config", "--config", filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestTrainFailsOnMissingData(t *testing.T) {
	dir := t.TempDir()
	_, err := run(t, "train", "--data", filepath.Join(dir, "missing.csv"), "--models", dir)
	require.Error(t, err)
	_, statErr := os.Stat(filepath.Join(dir, "modeling_results.json"))
	assert.True(t, os.IsNotExist(statErr))
}
