// Package subtitle rewrites the TTML carried by caption fragments using
// per-episode override files.
package subtitle

import "smoothstreamd/internal/logger"

// TitleSentinel is the fragment start time that carries the episode title cue.
const TitleSentinel = "80080000"

// Options holds the global rewrite toggles.
type Options struct {
	ClosedCaptioning bool
	MusicNotes       bool
	EpisodeTitles    bool
}

// Engine applies overrides to caption payloads. It is safe for concurrent use.
type Engine struct {
	store  *Store
	opts   Options
	logger logger.Logger
}

// NewEngine creates an engine over a loaded store.
func NewEngine(store *Store, opts Options, log logger.Logger) *Engine {
	if store == nil {
		store = NewStore(nil)
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Engine{store: store, opts: opts, logger: log}
}

// Options returns the toggles the engine was built with.
func (e *Engine) Options() Options {
	return e.opts
}

// Store returns the underlying override store.
func (e *Engine) Store() *Store {
	return e.store
}

// Override rewrites ttml for (episodeID, trackKey). Without overrides for the
// track, or when the document cannot be parsed, ttml is returned unchanged.
func (e *Engine) Override(episodeID, trackKey string, ttml []byte, titleSentinel bool) []byte {
	track, ok := e.store.Lookup(episodeID, trackKey)
	if !ok {
		return ttml
	}

	rw := Rewrite{
		Segments:           track.Segments,
		KeepClosedCaptions: e.opts.ClosedCaptioning,
		KeepMusicNotes:     e.opts.MusicNotes,
	}
	if e.opts.EpisodeTitles && titleSentinel && track.HasTitle {
		rw.InjectTitle = true
		rw.Title = track.Title
	}

	out, err := rw.Apply(ttml)
	if err != nil {
		e.logger.Errorf("Failed to override subtitles of %s (%s): %v", episodeID, trackKey, err)
		return ttml
	}
	return out
}
