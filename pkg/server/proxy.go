package server

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"mercator-hq/playback/pkg/recording"
	"mercator-hq/playback/pkg/replay"
	"mercator-hq/playback/pkg/telemetry/logging"
)

// Hop-by-hop headers, removed in both directions.
var hopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

func (s *Server) targetHeader() string {
	if s.config.TargetHeader != "" {
		return s.config.TargetHeader
	}
	return "X-Playback-Target"
}

func (s *Server) store() *recording.Store {
	if s.opts.Store == nil {
		return nil
	}
	return s.opts.Store()
}

// proxyFirst serves proxy requests directly and passes everything else on
// to the router.
func (s *Server) proxyFirst(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		target, ok, err := s.proxyTarget(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_target", err.Error())
			return
		}
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		s.serveProxy(w, r, target)
	})
}

// proxyTarget resolves the upstream URL of r. ok is false for requests
// addressed to the server itself.
func (s *Server) proxyTarget(r *http.Request) (*url.URL, bool, error) {
	if r.Method == http.MethodConnect {
		return nil, false, errors.New("CONNECT tunnelling is not supported")
	}
	if raw := r.Header.Get(s.targetHeader()); raw != "" {
		target, err := url.Parse(raw)
		if err != nil {
			return nil, false, err
		}
		if !target.IsAbs() || target.Host == "" {
			return nil, false, errors.New(s.targetHeader() + " must be an absolute URL")
		}
		// A bare origin takes the path and query of the request.
		if target.Path == "" && target.RawQuery == "" {
			target.Path = r.URL.Path
			target.RawPath = r.URL.RawPath
			target.RawQuery = r.URL.RawQuery
		}
		return target, true, nil
	}
	if r.URL.IsAbs() && r.URL.Host != "" {
		target := *r.URL
		return &target, true, nil
	}
	return nil, false, nil
}

func (s *Server) serveProxy(w http.ResponseWriter, r *http.Request, target *url.URL) {
	ctx := r.Context()
	logger := logging.FromContext(ctx, s.logger)

	out := r.Clone(ctx)
	out.URL = target
	out.Host = target.Host
	out.RequestURI = ""
	if r.ContentLength == 0 {
		out.Body = nil
	}
	out.Header.Del(s.targetHeader())
	// Recordings hold decoded bodies; let the transport negotiate and
	// decode compression itself.
	out.Header.Del("Accept-Encoding")
	removeHopHeaders(out.Header)

	res, err := s.opts.Transport.RoundTrip(out)
	if err != nil {
		if errors.Is(err, replay.ErrNoMatch) {
			logger.Info("replay miss", "method", out.Method, "url", target.String())
			writeError(w, http.StatusNotFound, "no_match", err.Error())
			return
		}
		if ctx.Err() != nil {
			return
		}
		logger.Warn("upstream request failed", "url", target.String(), "error", err)
		writeError(w, http.StatusBadGateway, "upstream_error", err.Error())
		return
	}
	defer res.Body.Close()

	removeHopHeaders(res.Header)
	for name, values := range res.Header {
		for _, v := range values {
			w.Header().Add(name, v)
		}
	}
	// The body is re-framed by this server.
	w.Header().Del("Content-Length")
	w.WriteHeader(res.StatusCode)

	if _, err := io.Copy(flushWriter{w}, res.Body); err != nil && ctx.Err() == nil {
		logger.Warn("copying response body failed", "url", target.String(), "error", err)
	}
}

func removeHopHeaders(h http.Header) {
	for _, f := range h.Values("Connection") {
		for _, name := range strings.Split(f, ",") {
			if name = strings.TrimSpace(name); name != "" {
				h.Del(name)
			}
		}
	}
	for _, name := range hopHeaders {
		h.Del(name)
	}
}

// flushWriter flushes after every write so streamed responses reach the
// client chunk by chunk.
type flushWriter struct {
	w http.ResponseWriter
}

func (f flushWriter) Write(p []byte) (int, error) {
	n, err := f.w.Write(p)
	if fl, ok := f.w.(http.Flusher); ok {
		fl.Flush()
	}
	return n, err
}
