package subtitle

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"strings"
	"testing"
)

func newTestEngine(opts Options) *Engine {
	store := NewStore(map[string]map[string]*Track{
		"ep01": {
			"enus_captions": {Segments: []string{"A", "B", "C"}, Title: "Pilot", HasTitle: true},
			"frfr_captions": {Segments: []string{"Un"}},
			"dede_captions": {Segments: []string{"Eins"}, HasTitle: true},
		},
	})
	return NewEngine(store, opts, nil)
}

func TestEngine_NoOverrideReturnsInput(t *testing.T) {
	e := newTestEngine(Options{EpisodeTitles: true})
	in := []byte("<tt>not even parsed</tt")

	assert.Equal(t, in, e.Override("ep02", "enus_captions", in, true))
	assert.Equal(t, in, e.Override("ep01", "itit_captions", in, true))
}

func TestEngine_Substitutes(t *testing.T) {
	e := newTestEngine(Options{MusicNotes: true})
	out := e.Override("ep01", "enus_captions", []byte(sampleTTML), false)

	got := cues(t, out)
	assert.Equal(t, "B", got[0][1].Text)
	assert.Equal(t, "out of range", got[0][2].Text)
	assert.NotContains(t, string(out), "episode_title")
}

func TestEngine_TitleInjection(t *testing.T) {
	cases := []struct {
		name     string
		opts     Options
		track    string
		sentinel bool
		want     int
		title    string
	}{
		{"sentinel with title", Options{EpisodeTitles: true}, "enus_captions", true, 1, "Pilot"},
		{"non sentinel", Options{EpisodeTitles: true}, "enus_captions", false, 0, ""},
		{"titles disabled", Options{}, "enus_captions", true, 0, ""},
		{"no title registered", Options{EpisodeTitles: true}, "frfr_captions", true, 0, ""},
		{"empty title registered", Options{EpisodeTitles: true}, "dede_captions", true, 1, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := newTestEngine(tc.opts).Override("ep01", tc.track, []byte(sampleTTML), tc.sentinel)
			assert.Equal(t, tc.want, strings.Count(string(out), `xml:id="episode_title"`))
			if tc.want == 1 {
				first := cues(t, out)[0]
				require.NotEmpty(t, first)
				assert.Equal(t, cue{"episode_title", tc.title}, first[len(first)-1])
			}
		})
	}
}

func TestNewEngine_Defaults(t *testing.T) {
	opts := Options{MusicNotes: true}
	e := NewEngine(nil, opts, nil)
	assert.Equal(t, opts, e.Options())
	episodes, tracks := e.Store().Stats()
	assert.Zero(t, episodes)
	assert.Zero(t, tracks)
}

func TestEngine_MalformedPayloadPassesThrough(t *testing.T) {
	e := newTestEngine(Options{})
	in := []byte("<tt><head/></tt>")
	assert.Equal(t, in, e.Override("ep01", "enus_captions", in, false))
}
