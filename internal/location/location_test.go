package location

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeleman/anam-desktop/internal/domain"
)

const sampleLocations = `
regions:
  - id: 2
    slug: koulikoro
    cercles:
      - id: 21
        slug: kati
        communes:
          - {id: 2101, slug: kati}
          - {id: 2102, slug: kambila}
      - id: 22
        slug: koulikoro
        communes:
          - {id: 2201, slug: koulikoro}
  - id: 9
    slug: bamako
    cercles:
      - id: 91
        slug: bamako
        communes:
          - {id: 9101, slug: commune-1}
`

func loadSample(t *testing.T) *Table {
	t.Helper()
	table, err := Parse([]byte(sampleLocations))
	require.NoError(t, err)
	return table
}

func TestResolveCommune(t *testing.T) {
	table := loadSample(t)

	id, err := table.ResolveCommune("kambila", "kati")
	require.NoError(t, err)
	assert.Equal(t, int64(2102), id)

	id, err = table.ResolveCommune(" Commune-1 ", "BAMAKO")
	require.NoError(t, err)
	assert.Equal(t, int64(9101), id)
}

func TestResolveCommune_Unresolved(t *testing.T) {
	table := loadSample(t)

	for _, tc := range [][2]string{{"kambila", "koulikoro"}, {"", "kati"}, {"kati", ""}, {"nowhere", "kati"}} {
		_, err := table.ResolveCommune(tc[0], tc[1])
		var locErr *domain.LocationError
		require.True(t, errors.As(err, &locErr), "%v", tc)
		assert.Equal(t, tc[0], locErr.Commune)
	}
}

func TestLenientLookups(t *testing.T) {
	table := loadSample(t)

	id, ok := table.Region("koulikoro")
	assert.True(t, ok)
	assert.Equal(t, int64(2), id)

	id, ok = table.Cercle("kati")
	assert.True(t, ok)
	assert.Equal(t, int64(21), id)

	_, ok = table.Region("tombouctou")
	assert.False(t, ok)
	_, ok = table.Cercle("")
	assert.False(t, ok)
	assert.Equal(t, 4, table.Size())
}

func TestNewTable_Duplicates(t *testing.T) {
	_, err := NewTable([]Region{
		{ID: 1, Slug: "kayes", Cercles: []Cercle{{ID: 11, Slug: "kita"}}},
		{ID: 2, Slug: "kayes", Cercles: []Cercle{{ID: 12, Slug: "kita"}}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `duplicate region "kayes"`)
	assert.Contains(t, err.Error(), `duplicate cercle "kita"`)
}

func TestLoadFile_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "locations.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"regions": [{"id": 1, "slug": "kayes", "cercles": [{"id": 11, "slug": "kayes", "communes": [{"id": 111, "slug": "kayes"}]}]}]}`), 0o600))

	table, err := LoadFile(path)
	require.NoError(t, err)
	id, err := table.ResolveCommune("kayes", "kayes")
	require.NoError(t, err)
	assert.Equal(t, int64(111), id)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
