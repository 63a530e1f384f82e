package catalog

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"smoothstreamd/internal/models"
)

const clientManifestMeta = "clientManifestRelativePath"

// ServerManifest is the subset of a Smooth-Streaming .ism description the catalog needs.
type ServerManifest struct {
	// ClientManifest is the client manifest path relative to the episode directory.
	ClientManifest string
	Media          []ServerMedia
}

// ServerMedia is one <video>, <audio> or <textstream> element. TrackName is
// "video" for video and for any track that carries no trackName param.
type ServerMedia struct {
	Type      models.TrackType
	Src       string
	Bitrate   string
	TrackName string
}

// ismMeta and ismMedia mirror the XML elements of interest.
type ismMeta struct {
	Name    string `xml:"name,attr"`
	Content string `xml:"content,attr"`
}

type ismMedia struct {
	Src           string     `xml:"src,attr"`
	SystemBitrate string     `xml:"systemBitrate,attr"`
	Params        []ismParam `xml:"param"`
}

type ismParam struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// ParseServerManifest reads an .ism document. Elements are matched anywhere in
// the tree; the client manifest path comes from a <meta> inside <head>.
func ParseServerManifest(r io.Reader) (*ServerManifest, error) {
	dec := xml.NewDecoder(r)
	sm := &ServerManifest{}
	inHead := 0

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse server manifest: %w", err)
		}

		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "head":
				inHead++
			case "meta":
				if inHead == 0 {
					continue
				}
				var m ismMeta
				if err := dec.DecodeElement(&m, &el); err != nil {
					return nil, fmt.Errorf("failed to decode meta: %w", err)
				}
				if m.Name == clientManifestMeta && sm.ClientManifest == "" {
					sm.ClientManifest = m.Content
				}
			case "video", "audio", "textstream":
				var m ismMedia
				if err := dec.DecodeElement(&m, &el); err != nil {
					return nil, fmt.Errorf("failed to decode %s: %w", el.Name.Local, err)
				}
				sm.Media = append(sm.Media, toServerMedia(el.Name.Local, m))
			}
		case xml.EndElement:
			if el.Name.Local == "head" && inHead > 0 {
				inHead--
			}
		}
	}

	if sm.ClientManifest == "" {
		return nil, fmt.Errorf("server manifest has no %s meta", clientManifestMeta)
	}
	return sm, nil
}

func toServerMedia(tag string, m ismMedia) ServerMedia {
	out := ServerMedia{Src: m.Src, Bitrate: m.SystemBitrate, TrackName: "video"}
	switch tag {
	case "video":
		out.Type = models.TrackVideo
		return out
	case "audio":
		out.Type = models.TrackAudio
	default:
		out.Type = models.TrackText
	}
	for _, p := range m.Params {
		if p.Name == "trackName" {
			out.TrackName = p.Value
			break
		}
	}
	return out
}
