// Package route classifies Smooth-Streaming request paths.
package route

import (
	"net/http"
	"regexp"
	"strings"
)

// Kind is the closed set of request kinds the server answers.
type Kind int

const (
	// NotFound is any GET path outside the Smooth-Streaming grammar.
	NotFound Kind = iota
	// NotImplemented is any method other than GET.
	NotImplemented
	Manifest
	Fragment
)

func (k Kind) String() string {
	switch k {
	case NotImplemented:
		return "not_implemented"
	case Manifest:
		return "manifest"
	case Fragment:
		return "fragment"
	default:
		return "not_found"
	}
}

const captionMarker = "_captions"

var (
	manifestPattern = regexp.MustCompile(`^/([^/]+)/manifest$`)
	fragmentPattern = regexp.MustCompile(`^/([^/]+)/QualityLevels\((\d+)\)/Fragments\(([^=]+)=(\d+)\)$`)
)

// Request is a classified request. Fragment fields are set only for Fragment.
type Request struct {
	Kind      Kind
	EpisodeID string
	Bitrate   string
	TrackKey  string
	StartTime string
}

// IsCaption reports whether the request targets a caption track.
func (r Request) IsCaption() bool {
	return r.Kind == Fragment && strings.Contains(r.TrackKey, captionMarker)
}

// Parse classifies a request by method and path.
func Parse(method, path string) Request {
	if method != http.MethodGet {
		return Request{Kind: NotImplemented}
	}
	if m := manifestPattern.FindStringSubmatch(path); m != nil {
		return Request{Kind: Manifest, EpisodeID: m[1]}
	}
	if m := fragmentPattern.FindStringSubmatch(path); m != nil {
		return Request{
			Kind:      Fragment,
			EpisodeID: m[1],
			Bitrate:   m[2],
			TrackKey:  m[3],
			StartTime: m[4],
		}
	}
	return Request{Kind: NotFound}
}
