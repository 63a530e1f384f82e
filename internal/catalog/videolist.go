package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"github.com/spf13/afero"
	"sort"
	"strings"
)

var (
	// ErrUnknownEpisode is returned when an episode id is not in the video list.
	ErrUnknownEpisode = errors.New("catalog: unknown episode")
	// ErrNoManifestToken is returned when a manifest URL has no "manifest" segment to rewrite.
	ErrNoManifestToken = errors.New("catalog: manifest url has no manifest segment")
)

// videoListKey is the repeating XOR key of the on-disk video list. It obfuscates, it does not protect.
var videoListKey = [32]byte{
	0xba, 0x7a, 0xbb, 0x27, 0x03, 0x9b, 0x72, 0xfd,
	0x13, 0xeb, 0x70, 0x38, 0x7e, 0x0f, 0xcb, 0x41,
	0xe1, 0xd0, 0xeb, 0x54, 0xbe, 0x8f, 0x13, 0x6d,
	0xf0, 0xba, 0xe2, 0x2a, 0xdc, 0xfb, 0x40, 0xf1,
}

const manifestToken = "manifest"

// Scramble XORs data with the video list key. Applying it twice restores the input.
func Scramble(data []byte) []byte {
	out := make([]byte, len(data))
	for i, b := range data {
		out[i] = b ^ videoListKey[i%len(videoListKey)]
	}
	return out
}

// VideoList maps episode ids to their canonical manifest URLs.
type VideoList map[string]string

// DecodeVideoList decrypts and parses an encrypted video list.
func DecodeVideoList(data []byte) (VideoList, error) {
	var list VideoList
	if err := json.Unmarshal(Scramble(data), &list); err != nil {
		return nil, fmt.Errorf("failed to unmarshal video list: %w", err)
	}
	if list == nil {
		list = VideoList{}
	}
	return list, nil
}

// Encode renders the list as 4-space indented JSON and encrypts it.
func (v VideoList) Encode() ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal video list: %w", err)
	}
	return Scramble(data), nil
}

// LoadVideoList reads and decrypts the video list at path.
func LoadVideoList(fs afero.Fs, path string) (VideoList, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read video list at %s: %w", path, err)
	}
	return DecodeVideoList(data)
}

// Episodes returns the episode ids in lexical order.
func (v VideoList) Episodes() []string {
	ids := make([]string, 0, len(v))
	for id := range v {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ManifestURL returns the remote manifest URL of an episode.
func (v VideoList) ManifestURL(episodeID string) (string, error) {
	u, ok := v[episodeID]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownEpisode, episodeID)
	}
	return u, nil
}

// FragmentURL derives a remote fragment URL by replacing the first "manifest"
// in the episode's manifest URL with the Smooth-Streaming fragment path.
func (v VideoList) FragmentURL(episodeID, bitrate, trackKey, startTime string) (string, error) {
	manifestURL, err := v.ManifestURL(episodeID)
	if err != nil {
		return "", err
	}
	return fragmentURL(manifestURL, bitrate, trackKey, startTime)
}

func fragmentURL(manifestURL, bitrate, trackKey, startTime string) (string, error) {
	if !strings.Contains(manifestURL, manifestToken) {
		return "", fmt.Errorf("%w: %s", ErrNoManifestToken, manifestURL)
	}
	path := fmt.Sprintf("QualityLevels(%s)/Fragments(%s=%s)", bitrate, trackKey, startTime)
	return strings.Replace(manifestURL, manifestToken, path, 1), nil
}

// LocalManifestURL is the URL under which this server answers for an episode manifest.
func LocalManifestURL(port int, episodeID string) string {
	return fmt.Sprintf("http://127.0.0.1:%d/%s/manifest", port, episodeID)
}

// Patch rewrites the host's video list so every episode points at this server.
// The pristine list is read from pristinePath, restored from patchedPath first
// when it does not exist yet. It returns the pristine list.
func Patch(fs afero.Fs, pristinePath, patchedPath string, port int) (VideoList, error) {
	exists, err := afero.Exists(fs, pristinePath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", pristinePath, err)
	}
	if !exists {
		data, err := afero.ReadFile(fs, patchedPath)
		if err != nil {
			return nil, fmt.Errorf("no video list to patch at %s or %s: %w", pristinePath, patchedPath, err)
		}
		if err := afero.WriteFile(fs, pristinePath, data, 0o644); err != nil {
			return nil, fmt.Errorf("failed to copy video list to %s: %w", pristinePath, err)
		}
	}

	pristine, err := LoadVideoList(fs, pristinePath)
	if err != nil {
		return nil, err
	}

	patched := make(VideoList, len(pristine))
	for id := range pristine {
		patched[id] = LocalManifestURL(port, id)
	}
	data, err := patched.Encode()
	if err != nil {
		return nil, err
	}
	if err := afero.WriteFile(fs, patchedPath, data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write patched video list to %s: %w", patchedPath, err)
	}
	return pristine, nil
}
