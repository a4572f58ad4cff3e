package repository

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTemplates = `
templates:
  - key: spml.student
    subject: "Welcome {{.userFirstName}}"
    body: "Hello {{.userEid}}"
`

func TestTemplateRepositoryParsesYAML(t *testing.T) {
	repo, err := NewTemplateRepositoryFromBytes([]byte(sampleTemplates))
	require.NoError(t, err)

	tpl, ok := repo.Get("spml.student")
	require.True(t, ok)
	assert.Equal(t, "Welcome {{.userFirstName}}", tpl.Subject)

	_, ok = repo.Get("spml.staff")
	assert.False(t, ok)
}

func TestTemplateRepositoryRejectsKeylessEntries(t *testing.T) {
	_, err := NewTemplateRepositoryFromBytes([]byte("templates:\n  - subject: x\n"))
	assert.Error(t, err)
}

func TestTemplateRepositoryMissingFileIsEmpty(t *testing.T) {
	repo, err := NewTemplateRepository(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 0, repo.Len())
}

func TestTemplateRepositoryReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "email.yaml")
	require.NoError(t, os.WriteFile(path, []byte("templates: []\n"), 0o600))

	repo, err := NewTemplateRepository(path)
	require.NoError(t, err)
	assert.Equal(t, 0, repo.Len())

	require.NoError(t, os.WriteFile(path, []byte(sampleTemplates), 0o600))
	require.NoError(t, repo.Reload())
	assert.Equal(t, 1, repo.Len())
}
