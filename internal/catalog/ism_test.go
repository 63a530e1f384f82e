package catalog

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"smoothstreamd/internal/models"
	"strings"
	"testing"
)

const testISM = `<?xml version="1.0" encoding="utf-8"?>
<smil xmlns="http://www.w3.org/2001/SMIL20/Language">
  <head>
    <meta name="formats" content="mp4" />
    <meta name="clientManifestRelativePath" content="ep01.ismc" />
  </head>
  <body>
    <switch>
      <video src="ep01_800.ismv" systemBitrate="800000">
        <param name="trackID" value="1" valuetype="data" />
      </video>
      <audio src="ep01_audio.isma" systemBitrate="128000">
        <param name="trackID" value="2" valuetype="data" />
        <param name="trackName" value="audio_eng" valuetype="data" />
      </audio>
      <textstream src="ep01_enus.ismt" systemBitrate="1000">
        <param name="trackName" value="enus_captions" valuetype="data" />
      </textstream>
    </switch>
  </body>
</smil>`

func TestParseServerManifest(t *testing.T) {
	sm, err := ParseServerManifest(strings.NewReader(testISM))
	require.NoError(t, err)

	assert.Equal(t, "ep01.ismc", sm.ClientManifest)
	assert.Equal(t, []ServerMedia{
		{Type: models.TrackVideo, Src: "ep01_800.ismv", Bitrate: "800000", TrackName: "video"},
		{Type: models.TrackAudio, Src: "ep01_audio.isma", Bitrate: "128000", TrackName: "audio_eng"},
		{Type: models.TrackText, Src: "ep01_enus.ismt", Bitrate: "1000", TrackName: "enus_captions"},
	}, sm.Media)
}

func TestParseServerManifest_MissingClientManifest(t *testing.T) {
	doc := `<smil><head><meta name="formats" content="mp4"/></head><body/></smil>`
	_, err := ParseServerManifest(strings.NewReader(doc))
	assert.Error(t, err)

	// A meta outside head does not count.
	doc = `<smil><body><meta name="clientManifestRelativePath" content="x.ismc"/></body></smil>`
	_, err = ParseServerManifest(strings.NewReader(doc))
	assert.Error(t, err)
}

func TestParseServerManifest_Malformed(t *testing.T) {
	_, err := ParseServerManifest(strings.NewReader(`<smil><head>`))
	assert.Error(t, err)
}
