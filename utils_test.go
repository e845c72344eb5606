package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetExportPath(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, filepath.Join(dir, "report.md"), getExportPath("report.md", dir))

	abs := filepath.Join(t.TempDir(), "out.md")
	assert.Equal(t, abs, getExportPath(abs, dir))

	rel := filepath.Join("reports", "out.md")
	assert.Equal(t, rel, getExportPath(rel, dir))

	assert.Equal(t, "report.md", getExportPath("report.md", ""))
}

func TestGetDataDir(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	t.Setenv("LOCALAPPDATA", t.TempDir())

	dir, err := getDataDir()
	require.NoError(t, err)
	assert.Equal(t, appName, filepath.Base(dir))
	assert.DirExists(t, dir)
	assert.Equal(t, filepath.Join(dir, appName+".sqlite"), getDBPath())
}

func TestFormatDuration(t *testing.T) {
	for in, want := range map[time.Duration]string{
		45 * time.Second:                           "45 с",
		4*time.Minute + 30*time.Second:             "4 мин 30 с",
		10 * time.Minute:                           "10 мин",
		time.Hour + 5*time.Minute + 10*time.Second: "1 ч 5 мин",
		1499 * time.Millisecond:                    "1 с",
		0:                                          "0 с",
	} {
		assert.Equal(t, want, formatDuration(in), in.String())
	}
}

func TestNormalizeKeyInput(t *testing.T) {
	assert.Equal(t, "q", normalizeKeyInput("й"))
	assert.Equal(t, "n", normalizeKeyInput("т"))
	assert.Equal(t, "c", normalizeKeyInput("с"))
	assert.Equal(t, "enter", normalizeKeyInput("enter"))
	assert.Equal(t, "q", normalizeKeyInput("q"))
}

func TestGetPathsFromDir(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"batteryreport2.html",
		filepath.Join("nested", "batteryreport1.html"),
		"srumutil1.csv",
		"notes.txt",
	} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, nil, 0644))
	}

	paths, err := getPathsFromDir(dir, []string{"batteryreport", "srumutil"})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "batteryreport2.html"),
		filepath.Join(dir, "nested", "batteryreport1.html"),
		filepath.Join(dir, "srumutil1.csv"),
	}, paths)

	_, err = getPathsFromDir(filepath.Join(dir, "missing"), []string{"x"})
	assert.Error(t, err)

	assert.False(t, patternFind("notes.txt", []string{"battery"}))
	assert.False(t, patternFind("batteryreport.html", nil))
}

func TestNewRunDir(t *testing.T) {
	root := t.TempDir()
	dir, err := newRunDir(root, time.Unix(1700000000, 0))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "usagerunfrom1700000000"), dir)
	assert.DirExists(t, filepath.Join(dir, "baseline"))
	assert.DirExists(t, filepath.Join(dir, "test"))
}
