package server

import (
	"log/slog"
	"net/http"
	"path"
	"time"

	"github.com/klauspost/compress/gzhttp"
	"github.com/spf13/afero"
)

// policyHeaders is the fixed header set attached to every response, error
// responses and redirects included. The cross-origin isolation pair is what
// lets served pages use SharedArrayBuffer; the CORS trio opens the server to
// cross-origin callers during development.
var policyHeaders = [5][2]string{
	{"Cross-Origin-Embedder-Policy", "require-corp"},
	{"Cross-Origin-Opener-Policy", "same-origin"},
	{"Access-Control-Allow-Origin", "*"},
	{"Access-Control-Allow-Methods", "GET, POST, OPTIONS"},
	{"Access-Control-Allow-Headers", "Content-Type"},
}

// handler assembles the request pipeline. Logging and the fixed headers wrap
// everything; compression wraps only the file delegate so the event stream
// stays uncompressed.
func (s *Server) handler() http.Handler {
	mux := http.NewServeMux()
	if s.cfg.LiveReload {
		mux.HandleFunc("/events", s.hub.serveHTTP)
	}

	var files http.Handler = s.fileHandler()
	if s.cfg.Compress {
		files = gzhttp.GzipHandler(files)
	}
	mux.Handle("/", files)

	return s.logRequests(s.withPolicyHeaders(mux))
}

// fileHandler delegates to the stdlib file server over the configured root,
// forcing the configured content types before the delegate can infer one.
func (s *Server) fileHandler() http.Handler {
	delegate := http.FileServer(afero.NewHttpFs(s.fs).Dir("/"))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ctype, ok := s.contentTypeFor(r.URL.Path); ok {
			w.Header().Set("Content-Type", ctype)
		}
		delegate.ServeHTTP(w, r)
	})
}

// contentTypeFor returns the forced content type for the request path, if
// any. Matching is by exact extension; everything else is left to the
// delegate's inference.
func (s *Server) contentTypeFor(urlPath string) (string, bool) {
	ext := path.Ext(urlPath)
	if ext == "" {
		return "", false
	}
	ctype, ok := s.cfg.MimeTypes[ext]
	return ctype, ok
}

func (s *Server) withPolicyHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		for _, kv := range policyHeaders {
			h.Set(kv[0], kv[1])
		}
		for k, v := range s.cfg.Headers {
			h.Set(k, v)
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the status and byte count a handler writes so the
// request log and statistics see real values. Flush is forwarded so the
// event stream keeps working behind it.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (w *statusRecorder) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusRecorder) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += int64(n)
	return n, err
}

func (w *statusRecorder) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next.ServeHTTP(rec, r)
		if rec.status == 0 {
			rec.status = http.StatusOK
		}

		s.log.Info("request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.status),
			slog.Int64("bytes", rec.bytes),
			slog.Duration("elapsed", time.Since(start)),
		)

		if s.stats != nil {
			s.stats.Record(r.URL.Path, rec.status, rec.bytes)
		}
	})
}
