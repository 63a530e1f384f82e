package subtitle

import (
	"encoding/json"
	"errors"
	"fmt"
	"github.com/spf13/afero"
	"go.mongodb.org/mongo-driver/bson"
	"path/filepath"
	"smoothstreamd/internal/logger"
	"strings"
)

// ErrOverrideData reports an override file that could not be decoded.
var ErrOverrideData = errors.New("subtitle: malformed override data")

const overrideMarker = "_captions_override"

// document is the logical content of an override file in either serialization.
type document struct {
	Segments     []string `json:"segments" bson:"segments"`
	EpisodeTitle *string  `json:"episode_title,omitempty" bson:"episode_title,omitempty"`
}

// Track holds the overrides of one caption track.
type Track struct {
	// Segments is indexed by the cue ordinal N of xml:id "s<N>".
	Segments []string
	Title    string
	HasTitle bool
}

// Store is the read-only set of overrides, keyed by episode then caption-track key.
type Store struct {
	episodes map[string]map[string]*Track
}

// NewStore builds a store from in-memory overrides.
func NewStore(episodes map[string]map[string]*Track) *Store {
	if episodes == nil {
		episodes = map[string]map[string]*Track{}
	}
	return &Store{episodes: episodes}
}

// LoadStore scans root/<episode> for *_captions_override.{json,bson} files.
// JSON files are read first so that a BSON file for the same track is ignored.
// Malformed files are logged and skipped.
func LoadStore(fs afero.Fs, root string, episodes []string, log logger.Logger) *Store {
	if log == nil {
		log = logger.Nop()
	}
	s := NewStore(nil)
	for _, episodeID := range episodes {
		dir := filepath.Join(root, episodeID)
		if ok, _ := afero.DirExists(fs, dir); !ok {
			continue
		}
		entries, err := afero.ReadDir(fs, dir)
		if err != nil {
			log.Warnf("Failed to list %s: %v", dir, err)
			continue
		}

		tracks := make(map[string]*Track)
		for _, ext := range []string{".json", ".bson"} {
			for _, entry := range entries {
				name := entry.Name()
				if entry.IsDir() || !strings.Contains(name, overrideMarker) || filepath.Ext(name) != ext {
					continue
				}
				key := CaptionKey(name)
				if _, loaded := tracks[key]; loaded {
					log.Debugf("Skipping %s for %s (already loaded from JSON)", name, key)
					continue
				}
				track, err := readOverride(fs, filepath.Join(dir, name), ext)
				if err != nil {
					log.Errorf("Failed to load subtitle override %s for episode %s: %v", name, episodeID, err)
					continue
				}
				tracks[key] = track
				log.Debugf("Loaded %d caption overrides from %s for track %s in episode %s",
					len(track.Segments), strings.TrimPrefix(ext, "."), key, episodeID)
			}
		}

		if len(tracks) == 0 {
			log.Debugf("No subtitle overrides found for episode %s", episodeID)
			continue
		}
		s.episodes[episodeID] = tracks
	}
	return s
}

// CaptionKey derives the caption-track key from an override file name:
// everything before the last underscore or dot, whichever comes first.
func CaptionKey(fileName string) string {
	base := filepath.Base(fileName)
	cut := len(base)
	if i := strings.LastIndexByte(base, '_'); i >= 0 && i < cut {
		cut = i
	}
	if i := strings.LastIndexByte(base, '.'); i >= 0 && i < cut {
		cut = i
	}
	return base[:cut]
}

func readOverride(fs afero.Fs, name, ext string) (*Track, error) {
	data, err := afero.ReadFile(fs, name)
	if err != nil {
		return nil, err
	}

	var doc document
	switch ext {
	case ".json":
		err = json.Unmarshal(data, &doc)
	default:
		err = bson.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOverrideData, err)
	}
	if doc.Segments == nil {
		return nil, fmt.Errorf("%w: no segments", ErrOverrideData)
	}

	t := &Track{Segments: doc.Segments}
	if doc.EpisodeTitle != nil {
		t.Title, t.HasTitle = *doc.EpisodeTitle, true
	}
	return t, nil
}

// Lookup returns the overrides of one caption track.
func (s *Store) Lookup(episodeID, trackKey string) (*Track, bool) {
	tracks, ok := s.episodes[episodeID]
	if !ok {
		return nil, false
	}
	t, ok := tracks[trackKey]
	return t, ok
}

// Stats reports how many episodes and caption tracks carry overrides.
func (s *Store) Stats() (episodes, tracks int) {
	for _, t := range s.episodes {
		tracks += len(t)
	}
	return len(s.episodes), tracks
}
