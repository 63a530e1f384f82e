package subtitle

import (
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"testing"
)

func writeFile(t *testing.T, fs afero.Fs, name string, data []byte) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fs, name, data, 0o644))
}

func bsonDoc(t *testing.T, doc bson.M) []byte {
	t.Helper()
	data, err := bson.Marshal(doc)
	require.NoError(t, err)
	return data
}

func TestCaptionKey(t *testing.T) {
	assert.Equal(t, "enus_captions", CaptionKey("enus_captions_override.json"))
	assert.Equal(t, "frfr_captions", CaptionKey("/videos/ep01/frfr_captions_override.bson"))
	assert.Equal(t, "plain", CaptionKey("plain.json"))
}

func TestLoadStore(t *testing.T) {
	fs := afero.NewMemMapFs()

	// JSON wins over BSON for the same track.
	writeFile(t, fs, "/eps/ep01/enus_captions_override.json",
		[]byte(`{"segments":["A","B"],"episode_title":"Pilot"}`))
	writeFile(t, fs, "/eps/ep01/enus_captions_override.bson",
		bsonDoc(t, bson.M{"segments": bson.A{"ignored"}}))
	// BSON alone is used.
	writeFile(t, fs, "/eps/ep01/dede_captions_override.bson",
		bsonDoc(t, bson.M{"segments": bson.A{"Eins", "Zwei"}, "episode_title": "Pilotfolge"}))
	// Malformed and unrelated files are skipped.
	writeFile(t, fs, "/eps/ep01/frfr_captions_override.json", []byte(`{"segments": [1, 2`))
	writeFile(t, fs, "/eps/ep01/eses_captions_override.json", []byte(`{"episode_title":"no segments"}`))
	writeFile(t, fs, "/eps/ep01/enus_captions_override.txt", []byte(`{"segments":["x"]}`))
	writeFile(t, fs, "/eps/ep01/notes.json", []byte(`{"segments":["x"]}`))

	writeFile(t, fs, "/eps/ep02/readme.txt", []byte("no overrides"))

	store := LoadStore(fs, "/eps", []string{"ep01", "ep02", "ep03"}, nil)

	episodes, tracks := store.Stats()
	assert.Equal(t, 1, episodes)
	assert.Equal(t, 2, tracks)

	en, ok := store.Lookup("ep01", "enus_captions")
	require.True(t, ok)
	assert.Equal(t, []string{"A", "B"}, en.Segments)
	assert.True(t, en.HasTitle)
	assert.Equal(t, "Pilot", en.Title)

	de, ok := store.Lookup("ep01", "dede_captions")
	require.True(t, ok)
	assert.Equal(t, []string{"Eins", "Zwei"}, de.Segments)
	assert.Equal(t, "Pilotfolge", de.Title)

	for _, key := range []string{"frfr_captions", "eses_captions", "notes"} {
		_, ok := store.Lookup("ep01", key)
		assert.False(t, ok, key)
	}
	_, ok = store.Lookup("ep02", "enus_captions")
	assert.False(t, ok)
}

func TestReadOverride_ErrOverrideData(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "bad.json", []byte(`[]`))
	_, err := readOverride(fs, "bad.json", ".json")
	assert.ErrorIs(t, err, ErrOverrideData)

	writeFile(t, fs, "bad.bson", []byte{1, 2, 3})
	_, err = readOverride(fs, "bad.bson", ".bson")
	assert.ErrorIs(t, err, ErrOverrideData)
}
