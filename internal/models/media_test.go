package models

import (
	"github.com/stretchr/testify/assert"
	"testing"
)

func TestTrack_Lookup(t *testing.T) {
	track := NewTrack(1, []Fragment{
		{StartTime: 40, MoofOffset: 400},
		{StartTime: 0, MoofOffset: 100},
		{StartTime: 20, MoofOffset: 250},
	})

	assert.Equal(t, 3, track.Len())
	assert.Equal(t, []uint64{0, 20, 40}, track.StartTimes())

	f, ok := track.Lookup(20)
	assert.True(t, ok)
	assert.Equal(t, uint64(250), f.MoofOffset)

	_, ok = track.Lookup(21)
	assert.False(t, ok)
}

func TestTrack_DuplicateStartTime(t *testing.T) {
	track := NewTrack(1, []Fragment{
		{StartTime: 0, MoofOffset: 100},
		{StartTime: 20, MoofOffset: 250},
		{StartTime: 20, MoofOffset: 900},
	})

	assert.Equal(t, 2, track.Len())
	assert.Equal(t, []uint64{0, 20}, track.StartTimes())
	f, ok := track.Lookup(20)
	assert.True(t, ok)
	assert.Equal(t, uint64(900), f.MoofOffset)
}

func TestTrack_NilSafe(t *testing.T) {
	var track *Track
	_, ok := track.Lookup(0)
	assert.False(t, ok)
	assert.Equal(t, 0, track.Len())
	assert.Empty(t, track.StartTimes())
}

func TestMediaKey(t *testing.T) {
	m := Media{TrackName: "enus_captions", Bitrate: "1000"}
	assert.Equal(t, "enus_captions_1000", m.Key())
	assert.Equal(t, "video_800000", MediaKey("video", "800000"))
	assert.Equal(t, "textstream", TrackText.String())
}
