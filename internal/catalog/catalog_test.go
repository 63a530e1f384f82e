package catalog

import (
	"context"
	"fmt"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"smoothstreamd/internal/fmp4/fmp4test"
	"testing"
)

type fixture struct {
	fs      afero.Fs
	videos  VideoList
	video   fmp4test.Track
	caption fmp4test.Track
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	fs := afero.NewMemMapFs()
	f := fixture{
		fs: fs,
		videos: VideoList{
			"ep01": "https://cdn.example.com/ep01.ism/manifest",
			"ep02": "https://cdn.example.com/ep02.ism/manifest",
			"ep03": "https://cdn.example.com/ep03.ism/manifest",
		},
		video: fmp4test.Build(fmp4test.Options{TrackID: 1, Version: 1}, []fmp4test.Entry{
			{StartTime: 0, Payload: []byte("video-0")},
			{StartTime: 1000, Payload: []byte("video-1000")},
		}),
		caption: fmp4test.Build(fmp4test.Options{TrackID: 3}, []fmp4test.Entry{
			{StartTime: 1000, Payload: []byte("<tt/>")},
		}),
	}

	write := func(name string, data []byte) {
		require.NoError(t, afero.WriteFile(fs, name, data, 0o644))
	}
	write("/episodes/ep01/ep01.ism", []byte(testISM))
	write("/episodes/ep01/ep01.ismc", []byte("<SmoothStreamingMedia/>"))
	write("/episodes/ep01/ep01_800.ismv", f.video.Data)
	write("/episodes/ep01/ep01_enus.ismt", f.caption.Data)
	// audio track file is absent and must be skipped

	// ep02 has a second description adding a corrupt track.
	write("/episodes/ep02/a.ism", []byte(`<smil><head><meta name="clientManifestRelativePath" content="a.ismc"/></head>
<body><video src="v.ismv" systemBitrate="100"/></body></smil>`))
	write("/episodes/ep02/b.ism", []byte(`<smil><head><meta name="clientManifestRelativePath" content="b.ismc"/></head>
<body><video src="bad.ismv" systemBitrate="200"/></body></smil>`))
	write("/episodes/ep02/a.ismc", []byte("a"))
	write("/episodes/ep02/v.ismv", f.video.Data)
	write("/episodes/ep02/bad.ismv", []byte("definitely not an mp4 file"))

	// ep03 has a directory but no description.
	write("/episodes/ep03/readme.txt", []byte("nothing here"))
	return f
}

func loadFixture(t *testing.T, f fixture) *Catalog {
	t.Helper()
	c, err := Load(context.Background(), Options{Fs: f.fs, EpisodesRoot: "/episodes", Parallelism: 4}, f.videos)
	require.NoError(t, err)
	return c
}

func TestLoad(t *testing.T) {
	c := loadFixture(t, newFixture(t))

	episodes, streams, tracks := c.Stats()
	assert.Equal(t, 3, episodes)
	assert.Equal(t, 2, streams)
	assert.Equal(t, 3, tracks)

	s, ok := c.Stream("ep01")
	require.True(t, ok)
	assert.Contains(t, s.Media, "video_800000")
	assert.Contains(t, s.Media, "enus_captions_1000")
	assert.NotContains(t, s.Media, "audio_eng_128000")

	s, ok = c.Stream("ep02")
	require.True(t, ok)
	assert.Equal(t, "/episodes/ep02/a.ismc", s.ClientManifestPath)
	assert.Contains(t, s.Media, "video_100")
	assert.NotContains(t, s.Media, "video_200")

	_, ok = c.Stream("ep03")
	assert.False(t, ok)
}

func TestCatalog_LocalLookups(t *testing.T) {
	f := newFixture(t)
	c := loadFixture(t, f)

	manifest, ok := c.ClientManifest("ep01")
	require.True(t, ok)
	assert.Equal(t, "<SmoothStreamingMedia/>", string(manifest))

	_, ok = c.ClientManifest("ep03")
	assert.False(t, ok)

	data, ok := c.Fragment("ep01", "video", "800000", "1000")
	require.True(t, ok)
	assert.Equal(t, f.video.Fragments[1000], data)

	data, ok = c.Fragment("ep01", "enus_captions", "1000", "1000")
	require.True(t, ok)
	assert.Equal(t, f.caption.Fragments[1000], data)

	for _, tc := range []struct{ ep, key, bitrate, start string }{
		{"ep01", "video", "800000", "2000"},
		{"ep01", "video", "1", "1000"},
		{"ep01", "video", "800000", "99999999999999999999999"},
		{"ep01", "video", "800000", "0001000"},
		{"ep01", "video", "800000", "+1000"},
		{"nope", "video", "800000", "1000"},
	} {
		_, ok := c.Fragment(tc.ep, tc.key, tc.bitrate, tc.start)
		assert.False(t, ok, fmt.Sprintf("%+v", tc))
	}
}

func TestCatalog_FragmentVanished(t *testing.T) {
	f := newFixture(t)
	c := loadFixture(t, f)

	require.NoError(t, f.fs.Remove("/episodes/ep01/ep01_800.ismv"))
	_, ok := c.Fragment("ep01", "video", "800000", "1000")
	assert.False(t, ok)
}

func TestCatalog_FragmentCorruptedAfterLoad(t *testing.T) {
	f := newFixture(t)
	c := loadFixture(t, f)

	data := append([]byte(nil), f.video.Data...)
	off := f.video.Offsets[1000]
	copy(data[off+4:], "xxxx")
	require.NoError(t, afero.WriteFile(f.fs, "/episodes/ep01/ep01_800.ismv", data, 0o644))

	_, ok := c.Fragment("ep01", "video", "800000", "1000")
	assert.False(t, ok)
}

func TestLoad_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Load(ctx, Options{Fs: newFixture(t).fs, EpisodesRoot: "/episodes"}, newFixture(t).videos)
	assert.Error(t, err)
}
