package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/thebtf/asklens/internal/embedding"
	"github.com/thebtf/asklens/internal/grouping"
	"github.com/thebtf/asklens/pkg/models"
)

func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("ASKLENS_DATA_DIR", dir)
	t.Setenv("ASKLENS_EMBEDDING_MODEL", embedding.HashingModelVersion)
	t.Setenv("ASKLENS_EMBEDDING_DIMENSIONS", "64")
	return dir
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd("test")
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--quiet"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestGroup_StdinJSON(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "reset password\n\nReset password!\nWhat is the refund policy?\n",
		"group", "--format", "json")
	require.NoError(t, err)

	var clusters []models.Cluster
	require.NoError(t, json.Unmarshal([]byte(out), &clusters), out)
	require.Len(t, clusters, 2)
	assert.Equal(t, "reset password", clusters[0].Representative)
	assert.Equal(t, 2, clusters[0].TotalCount)
	assert.Equal(t, 1, clusters[1].TotalCount)
}

func TestGroup_LexicalGlobYAML(t *testing.T) {
	setupEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "a", "b"), 0750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a", "one.txt"),
		[]byte("How do I reset my password?\nRefund policy please\n"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a", "b", "two.txt"),
		[]byte("how do i reset my password\nPassword reset, how?\n"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a", "skip.csv"), []byte("ignored\n"), 0600))

	out, err := run(t, "", "group", "--lexical", "--glob", filepath.Join(dir, "**", "*.txt"), "--format", "yaml")
	require.NoError(t, err)

	var clusters []models.Cluster
	require.NoError(t, yaml.Unmarshal([]byte(out), &clusters), out)
	require.Len(t, clusters, 2)
	assert.Equal(t, 3, clusters[0].TotalCount)
	assert.Equal(t, "Refund policy please", clusters[1].Representative)
}

func TestGroup_TableAndMaxGroups(t *testing.T) {
	setupEnv(t)
	path := filepath.Join(t.TempDir(), "q.txt")
	require.NoError(t, os.WriteFile(path, []byte("alpha\nalpha\nbravo\ncharlie\n"), 0600))

	out, err := run(t, "", "group", "--lexical", "--max-groups", "1", path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "REPRESENTATIVE")
	assert.Contains(t, lines[1], "alpha")
	assert.True(t, strings.HasPrefix(lines[1], "2"))
}

func TestGroup_FilesAndStdin(t *testing.T) {
	setupEnv(t)
	path := filepath.Join(t.TempDir(), "q.txt")
	require.NoError(t, os.WriteFile(path, []byte("alpha\n"), 0600))

	out, err := run(t, "bravo\nalpha\n", "group", "--lexical", "--format", "json", path, "-")
	require.NoError(t, err)

	var clusters []models.Cluster
	require.NoError(t, json.Unmarshal([]byte(out), &clusters), out)
	require.Len(t, clusters, 2)
	assert.Equal(t, "alpha", clusters[0].Representative)
	assert.Equal(t, 2, clusters[0].TotalCount)
	assert.Equal(t, "bravo", clusters[1].Representative)

	_, err = run(t, "alpha\n", "group", "--lexical", "-", "-")
	assert.ErrorContains(t, err, "more than once")
}

func TestGroup_Errors(t *testing.T) {
	setupEnv(t)

	_, err := run(t, "a\n", "group", "--threshold", "1.5")
	assert.ErrorIs(t, err, grouping.ErrInvalidThreshold)

	_, err = run(t, "a\n", "group", "--format", "xml")
	assert.ErrorIs(t, err, errUnknownFormat)

	_, err = run(t, "", "group", "--glob", filepath.Join(t.TempDir(), "*.txt"))
	assert.ErrorContains(t, err, "no files match")

	_, err = run(t, "", "group", filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestRecordAndReport(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "", "record", "--org", "acme", "reset password", "Reset password!")
	require.NoError(t, err)
	assert.Contains(t, out, "Recorded 2 questions")

	_, err = run(t, "reset password\nWhat is the refund policy?\n", "record", "--org", "acme", "--doc", "handbook.pdf")
	require.NoError(t, err)

	_, err = run(t, "", "record", "--org", "other", "unrelated question")
	require.NoError(t, err)

	out, err = run(t, "", "report", "--org", "acme", "--format", "json")
	require.NoError(t, err)

	var report models.QuestionReport
	require.NoError(t, json.Unmarshal([]byte(out), &report), out)
	assert.Equal(t, "acme", report.OrgID)
	assert.Equal(t, 4, report.TotalQuestions)
	require.NotEmpty(t, report.Questions)
	assert.Equal(t, "reset password", report.Questions[0].Representative)
	assert.Equal(t, 3, report.Questions[0].TotalCount)
	require.Len(t, report.DocumentsAnalysis, 1)
	assert.Equal(t, "handbook.pdf", report.DocumentsAnalysis[0].DocumentSource)

	out, err = run(t, "", "report", "--org", "acme")
	require.NoError(t, err)
	assert.Contains(t, out, "Organization:")
	assert.Contains(t, out, "handbook.pdf")
}

func TestReport_Errors(t *testing.T) {
	setupEnv(t)

	_, err := run(t, "", "report")
	assert.Error(t, err)

	_, err = run(t, "", "report", "--org", "acme", "--start", "2025-02-01", "--end", "2025-01-01")
	assert.ErrorIs(t, err, models.ErrInvalidTimeRange)

	_, err = run(t, "", "report", "--org", "acme", "--start", "yesterday")
	assert.ErrorIs(t, err, models.ErrInvalidTimeRange)
}

func TestRecord_NoQuestions(t *testing.T) {
	setupEnv(t)
	_, err := run(t, "\n  \n", "record", "--org", "acme")
	assert.ErrorContains(t, err, "no questions")
}

func TestModels(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "", "models", "--format", "json")
	require.NoError(t, err)

	var list []embedding.ModelMetadata
	require.NoError(t, json.Unmarshal([]byte(out), &list), out)
	var versions []string
	for _, m := range list {
		versions = append(versions, m.Version)
	}
	assert.Contains(t, versions, embedding.HashingModelVersion)

	out, err = run(t, "", "models")
	require.NoError(t, err)
	assert.Contains(t, out, "ACTIVE")
	assert.Contains(t, out, "*")
}

func TestCache_ListAndPurge(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "", "cache", "list")
	require.NoError(t, err)
	assert.Empty(t, out)

	_, err = run(t, "reset password\nrefund policy\n", "--cache", "bolt", "group")
	require.NoError(t, err)

	out, err = run(t, "", "cache", "list")
	require.NoError(t, err)
	assert.Equal(t, embedding.HashingModelVersion, strings.TrimSpace(out))

	out, err = run(t, "", "cache", "purge", embedding.HashingModelVersion)
	require.NoError(t, err)
	assert.Contains(t, out, "Purged")

	out, err = run(t, "", "cache", "list")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestReadLines(t *testing.T) {
	texts, err := readLines(strings.NewReader(" one \n\n\ttwo\r\nthree"), []string{"zero"})
	require.NoError(t, err)
	assert.Equal(t, []string{"zero", "one", "two", "three"}, texts)
}

func TestOneLine(t *testing.T) {
	assert.Equal(t, "a b c", oneLine(" a\n b\t\tc "))
}
