package tasks

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCatalogFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tasks.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadCatalogValid(t *testing.T) {
	path := writeCatalogFile(t, `
tasks:
  - id: traffictot
    name: "TrafficTot link"
    reward: 50
    max_turns: 5
    network: traffictot
  - id: layma
    name: "LayMa link"
    reward: 55
    max_turns: 4
    network: layma
`)

	catalog, err := LoadCatalog(path)
	require.NoError(t, err)

	def, ok := catalog.Get("traffictot")
	require.True(t, ok)
	assert.Equal(t, "TrafficTot link", def.Name)
	assert.Equal(t, int64(50), def.Reward)
	assert.Equal(t, 5, def.MaxTurns)

	_, ok = catalog.Get("no-such-task")
	assert.False(t, ok)

	// file order is preserved
	all := catalog.All()
	require.Len(t, all, 2)
	assert.Equal(t, "traffictot", all[0].ID)
	assert.Equal(t, "layma", all[1].ID)
}

func TestLoadCatalogRejectsDuplicateID(t *testing.T) {
	path := writeCatalogFile(t, `
tasks:
  - id: layma
    name: "LayMa link"
    reward: 55
    max_turns: 4
    network: layma
  - id: layma
    name: "LayMa again"
    reward: 10
    max_turns: 1
    network: layma
`)

	_, err := LoadCatalog(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate task id")
}

func TestLoadCatalogRejectsUnknownNetwork(t *testing.T) {
	path := writeCatalogFile(t, `
tasks:
  - id: mystery
    name: "Mystery link"
    reward: 10
    max_turns: 1
    network: notarealnetwork
`)

	_, err := LoadCatalog(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown network")
}

func TestLoadCatalogRejectsBadValues(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "empty file",
			yaml: "tasks: []\n",
			want: "defines no tasks",
		},
		{
			name: "missing name",
			yaml: "tasks:\n  - id: layma\n    reward: 5\n    max_turns: 1\n    network: layma\n",
			want: "empty id or name",
		},
		{
			name: "non-slug id",
			yaml: "tasks:\n  - id: \"LayMa Link\"\n    name: x\n    reward: 5\n    max_turns: 1\n    network: layma\n",
			want: "not in slug form",
		},
		{
			name: "zero reward",
			yaml: "tasks:\n  - id: layma\n    name: x\n    reward: 0\n    max_turns: 1\n    network: layma\n",
			want: "non-positive reward",
		},
		{
			name: "negative max_turns",
			yaml: "tasks:\n  - id: layma\n    name: x\n    reward: 5\n    max_turns: -1\n    network: layma\n",
			want: "non-positive max_turns",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadCatalog(writeCatalogFile(t, tc.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestLoadCatalogMissingFile(t *testing.T) {
	_, err := LoadCatalog(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
