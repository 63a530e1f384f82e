package models

import "sort"

// TrackType classifies a Media entry by the server-manifest element that declared it.
type TrackType int

const (
	TrackVideo TrackType = iota
	TrackAudio
	TrackText
)

// String returns the server-manifest element name for the track type.
func (t TrackType) String() string {
	switch t {
	case TrackVideo:
		return "video"
	case TrackAudio:
		return "audio"
	case TrackText:
		return "textstream"
	default:
		return "unknown"
	}
}

// Fragment is one addressable chunk of a track, located by the offset of its moof box.
type Fragment struct {
	// StartTime is the fragment start time in track timescale units. It is the lookup key.
	StartTime uint64
	// MoofOffset is the byte offset of the fragment's moof box within the track file.
	MoofOffset uint64
	// TrafNumber, TrunNumber and SampleNumber are carried by the tfra entry but not used for serving.
	TrafNumber   uint32
	TrunNumber   uint32
	SampleNumber uint32
}

// Track is the random-access index of one track file. It is immutable once built.
type Track struct {
	TrackID   uint32
	fragments map[uint64]Fragment
	order     []uint64
}

// NewTrack builds a Track from parsed fragments. Later duplicates of a start time replace earlier ones.
func NewTrack(trackID uint32, fragments []Fragment) *Track {
	t := &Track{
		TrackID:   trackID,
		fragments: make(map[uint64]Fragment, len(fragments)),
	}
	for _, f := range fragments {
		t.fragments[f.StartTime] = f
	}
	t.order = make([]uint64, 0, len(t.fragments))
	for start := range t.fragments {
		t.order = append(t.order, start)
	}
	sort.Slice(t.order, func(i, j int) bool { return t.order[i] < t.order[j] })
	return t
}

// Lookup returns the fragment starting exactly at startTime.
func (t *Track) Lookup(startTime uint64) (Fragment, bool) {
	if t == nil {
		return Fragment{}, false
	}
	f, ok := t.fragments[startTime]
	return f, ok
}

// Len returns the number of indexed fragments.
func (t *Track) Len() int {
	if t == nil {
		return 0
	}
	return len(t.order)
}

// StartTimes returns the indexed start times in ascending order.
func (t *Track) StartTimes() []uint64 {
	if t == nil {
		return nil
	}
	out := make([]uint64, len(t.order))
	copy(out, t.order)
	return out
}

// Media is one (type, name, bitrate) rendition backed by a local track file.
type Media struct {
	Type       TrackType
	TrackName  string
	Bitrate    string
	SourceFile string
	Track      *Track
}

// Key returns the catalog key "{trackName}_{bitrate}".
func (m Media) Key() string {
	return MediaKey(m.TrackName, m.Bitrate)
}

// MediaKey builds the catalog key used to look up a Media in a Stream.
func MediaKey(trackName, bitrate string) string {
	return trackName + "_" + bitrate
}

// Stream holds one episode's offline data.
type Stream struct {
	// ClientManifestPath is the path of the local copy of the client-facing manifest.
	ClientManifestPath string
	Media              map[string]Media
}
