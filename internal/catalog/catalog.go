// Package catalog resolves episodes to remote URLs and to the pre-shipped local
// copies of their manifests and track fragments.
package catalog

import (
	"context"
	"fmt"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
	"path"
	"path/filepath"
	"smoothstreamd/internal/fmp4"
	"smoothstreamd/internal/logger"
	"smoothstreamd/internal/models"
	"strconv"
	"strings"
)

// Options configures how a Catalog is loaded.
type Options struct {
	Fs           afero.Fs
	EpisodesRoot string
	// Parallelism bounds concurrent track index builds. Values below 1 mean one.
	Parallelism int
	Logger      logger.Logger
}

// Catalog is an immutable snapshot of the video list and the offline streams.
// It is safe for concurrent use without locking.
type Catalog struct {
	fs      afero.Fs
	videos  VideoList
	streams map[string]*models.Stream
	logger  logger.Logger
}

// preload is one track file waiting for its index to be built.
type preload struct {
	episodeID string
	media     models.Media
	track     *models.Track
}

// Load scans the episodes root for every episode in videos and indexes its local tracks.
// Episodes or tracks that cannot be used are skipped and logged.
func Load(ctx context.Context, opts Options, videos VideoList) (*Catalog, error) {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.Parallelism < 1 {
		opts.Parallelism = 1
	}

	c := &Catalog{
		fs:      opts.Fs,
		videos:  videos,
		streams: make(map[string]*models.Stream),
		logger:  opts.Logger,
	}

	var jobs []*preload
	manifests := make(map[string]string)
	for _, episodeID := range videos.Episodes() {
		clientManifest, media := c.scanEpisode(filepath.Join(opts.EpisodesRoot, episodeID), episodeID)
		if clientManifest == "" {
			continue
		}
		manifests[episodeID] = clientManifest
		for _, m := range media {
			jobs = append(jobs, &preload{episodeID: episodeID, media: m})
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Parallelism)
	for _, job := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			track, err := c.indexTrack(job.media.SourceFile)
			if err != nil {
				c.logger.Warnf("Skipping %s track %q of episode %s: %v", job.media.Type, job.media.TrackName, job.episodeID, err)
				return nil
			}
			job.track = track
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("catalog preload interrupted: %w", err)
	}

	for episodeID, clientManifest := range manifests {
		c.streams[episodeID] = &models.Stream{
			ClientManifestPath: clientManifest,
			Media:              make(map[string]models.Media),
		}
	}
	for _, job := range jobs {
		if job.track == nil {
			continue
		}
		job.media.Track = job.track
		c.streams[job.episodeID].Media[job.media.Key()] = job.media
		c.logger.Debugf("Preloaded %s track %q for episode %s from %s with bitrate %s (%d fragments)",
			job.media.Type, job.media.TrackName, job.episodeID, job.media.SourceFile, job.media.Bitrate, job.track.Len())
	}

	c.logger.Infof("Loaded %d episodes, %d ready for offline playback", len(videos), len(c.streams))
	return c, nil
}

// scanEpisode reads every .ism in an episode directory. Media from all
// descriptions are merged; the first client manifest found wins.
func (c *Catalog) scanEpisode(dir, episodeID string) (string, []models.Media) {
	if ok, _ := afero.DirExists(c.fs, dir); !ok {
		return "", nil
	}
	entries, err := afero.ReadDir(c.fs, dir)
	if err != nil {
		c.logger.Warnf("Failed to list episode directory %s: %v", dir, err)
		return "", nil
	}

	var clientManifest string
	var media []models.Media
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".ism") {
			continue
		}
		sm, err := c.readServerManifest(filepath.Join(dir, entry.Name()))
		if err != nil {
			c.logger.Warnf("Skipping server manifest %s for episode %s: %v", entry.Name(), episodeID, err)
			continue
		}
		if clientManifest == "" {
			clientManifest = filepath.Join(dir, filepath.FromSlash(sm.ClientManifest))
		}
		for _, m := range sm.Media {
			src := filepath.Join(dir, filepath.FromSlash(path.Clean("/" + m.Src)))
			if info, err := c.fs.Stat(src); err != nil || info.IsDir() {
				c.logger.Debugf("Track file %s of episode %s is missing", src, episodeID)
				continue
			}
			media = append(media, models.Media{
				Type:       m.Type,
				TrackName:  m.TrackName,
				Bitrate:    m.Bitrate,
				SourceFile: src,
			})
		}
	}
	return clientManifest, media
}

func (c *Catalog) readServerManifest(name string) (*ServerManifest, error) {
	f, err := c.fs.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseServerManifest(f)
}

func (c *Catalog) indexTrack(name string) (*models.Track, error) {
	f, err := c.fs.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	return fmp4.ParseIndex(f, info.Size())
}

// Episodes returns the ids in the video list.
func (c *Catalog) Episodes() []string {
	return c.videos.Episodes()
}

// Stats reports the number of known episodes, offline streams and indexed tracks.
func (c *Catalog) Stats() (episodes, streams, tracks int) {
	for _, s := range c.streams {
		tracks += len(s.Media)
	}
	return len(c.videos), len(c.streams), tracks
}

// Stream returns the offline stream of an episode.
func (c *Catalog) Stream(episodeID string) (*models.Stream, bool) {
	s, ok := c.streams[episodeID]
	return s, ok
}

// ManifestURL resolves the remote manifest URL of an episode.
func (c *Catalog) ManifestURL(episodeID string) (string, error) {
	return c.videos.ManifestURL(episodeID)
}

// FragmentURL resolves the remote URL of one fragment.
func (c *Catalog) FragmentURL(episodeID, bitrate, trackKey, startTime string) (string, error) {
	u, err := c.videos.FragmentURL(episodeID, bitrate, trackKey, startTime)
	if err != nil {
		c.logger.Warnf("Failed to resolve fragment url for episode %s: %v", episodeID, err)
	}
	return u, err
}

// ClientManifest returns the local client manifest of an episode.
func (c *Catalog) ClientManifest(episodeID string) ([]byte, bool) {
	s, ok := c.streams[episodeID]
	if !ok {
		return nil, false
	}
	data, err := afero.ReadFile(c.fs, s.ClientManifestPath)
	if err != nil {
		c.logger.Debugf("Local manifest for episode %s unavailable: %v", episodeID, err)
		return nil, false
	}
	return data, true
}

// Fragment returns the local moof||mdat bytes of one fragment. Any miss, including
// a malformed box or a file that vanished since startup, reports false.
func (c *Catalog) Fragment(episodeID, trackKey, bitrate, startTime string) ([]byte, bool) {
	s, ok := c.streams[episodeID]
	if !ok {
		return nil, false
	}
	media, ok := s.Media[models.MediaKey(trackKey, bitrate)]
	if !ok {
		return nil, false
	}
	// Only the canonical decimal form is a key; "0001000" is not 1000.
	start, err := strconv.ParseUint(startTime, 10, 64)
	if err != nil || strconv.FormatUint(start, 10) != startTime {
		return nil, false
	}
	frag, ok := media.Track.Lookup(start)
	if !ok {
		return nil, false
	}

	f, err := c.fs.Open(media.SourceFile)
	if err != nil {
		c.logger.Warnf("Track file %s unavailable: %v", media.SourceFile, err)
		return nil, false
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, false
	}
	data, err := fmp4.ReadFragment(f, info.Size(), frag.MoofOffset)
	if err != nil {
		c.logger.Warnf("Failed to read fragment %s=%s of episode %s: %v", trackKey, startTime, episodeID, err)
		return nil, false
	}
	return data, true
}
