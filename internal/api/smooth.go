package api

import (
	"context"
	"net/http"
	"smoothstreamd/internal/fmp4"
	"smoothstreamd/internal/metrics"
	"smoothstreamd/internal/route"
	"smoothstreamd/internal/subtitle"
	"strconv"
	"time"
)

// hopHeaders are connection-scoped and never copied from the upstream response.
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Connection",
	"Transfer-Encoding",
	"Upgrade",
	"Trailer",
	"Content-Length",
}

// serveSmooth dispatches every request outside the operational endpoints.
func (s *Server) serveSmooth(w http.ResponseWriter, r *http.Request) {
	req := route.Parse(r.Method, r.URL.Path)
	switch req.Kind {
	case route.NotImplemented:
		writeStatus(w, http.StatusNotImplemented)
	case route.Manifest:
		s.serveManifest(w, r, req)
	case route.Fragment:
		s.serveFragment(w, r, req)
	default:
		writeStatus(w, http.StatusNotFound)
	}
}

func (s *Server) serveManifest(w http.ResponseWriter, r *http.Request, req route.Request) {
	remoteURL, err := s.catalog.ManifestURL(req.EpisodeID)
	if err != nil {
		s.logger.Debugf("Manifest for unknown episode %s requested", req.EpisodeID)
		writeStatus(w, http.StatusNotFound)
		return
	}

	if data, ok := s.catalog.ClientManifest(req.EpisodeID); ok {
		metrics.ServedTotal.WithLabelValues(req.Kind.String(), "local").Inc()
		writeBody(w, http.StatusOK, nil, data)
		return
	}
	if s.offline {
		s.logger.Warnf("No local manifest for episode %s and offline mode is on", req.EpisodeID)
		writeStatus(w, http.StatusNotAcceptable)
		return
	}
	s.proxy(w, r, req, remoteURL)
}

func (s *Server) serveFragment(w http.ResponseWriter, r *http.Request, req route.Request) {
	remoteURL, err := s.catalog.FragmentURL(req.EpisodeID, req.Bitrate, req.TrackKey, req.StartTime)
	if err != nil {
		writeStatus(w, http.StatusNotFound)
		return
	}

	if data, ok := s.catalog.Fragment(req.EpisodeID, req.TrackKey, req.Bitrate, req.StartTime); ok {
		if req.IsCaption() {
			data = s.rewriteCaption(req, data)
		}
		metrics.ServedTotal.WithLabelValues(req.Kind.String(), "local").Inc()
		writeBody(w, http.StatusOK, nil, data)
		return
	}
	if s.offline {
		s.logger.Warnf("No local fragment %s=%s (bitrate %s) for episode %s and offline mode is on",
			req.TrackKey, req.StartTime, req.Bitrate, req.EpisodeID)
		writeStatus(w, http.StatusNotAcceptable)
		return
	}
	s.proxy(w, r, req, remoteURL)
}

// proxy fetches remoteURL and forwards the upstream status, headers and body.
func (s *Server) proxy(w http.ResponseWriter, r *http.Request, req route.Request, remoteURL string) {
	inbound := r.Header.Clone()
	if req.IsCaption() {
		// Caption payloads are rewritten, so they must arrive uncompressed.
		inbound.Del("Accept-Encoding")
	}

	// The fetch runs to completion or timeout even if the caller goes away.
	ctx := context.WithoutCancel(r.Context())
	start := time.Now()
	resp, err := s.origin.Fetch(ctx, remoteURL, inbound)
	metrics.UpstreamRequestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues("error").Inc()
		s.logger.Errorf("Failed to fetch %s for episode %s: %v", req.Kind, req.EpisodeID, err)
		writeStatus(w, http.StatusInternalServerError)
		return
	}
	metrics.UpstreamRequestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	body := resp.Body
	if req.IsCaption() {
		body = s.rewriteCaption(req, body)
	}
	metrics.ServedTotal.WithLabelValues(req.Kind.String(), "remote").Inc()
	writeBody(w, resp.StatusCode, resp.Header, body)
}

// rewriteCaption runs the TTML inside a caption fragment through the override
// engine and re-frames the mdat box. Payloads that are not moof||mdat pass through.
func (s *Server) rewriteCaption(req route.Request, payload []byte) []byte {
	if s.subtitles == nil {
		return payload
	}
	sentinel := req.StartTime == subtitle.TitleSentinel
	out, err := fmp4.ReplacePayload(payload, func(ttml []byte) []byte {
		return s.subtitles.Override(req.EpisodeID, req.TrackKey, ttml, sentinel)
	})
	if err != nil {
		metrics.CaptionRewritesTotal.WithLabelValues("malformed").Inc()
		s.logger.Warnf("Caption fragment %s=%s of episode %s is not a moof/mdat pair: %v",
			req.TrackKey, req.StartTime, req.EpisodeID, err)
		return payload
	}
	metrics.CaptionRewritesTotal.WithLabelValues("rewritten").Inc()
	return out
}

func writeStatus(w http.ResponseWriter, status int) {
	http.Error(w, http.StatusText(status), status)
}

func writeBody(w http.ResponseWriter, status int, header http.Header, body []byte) {
	dst := w.Header()
	for name, values := range header {
		dst[name] = append([]string(nil), values...)
	}
	for _, name := range hopHeaders {
		dst.Del(name)
	}
	dst.Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
