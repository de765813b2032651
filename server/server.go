package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"clinical_note_noiser/notes"
)

// maxDocumentBytes caps a posted document.
const maxDocumentBytes = 32 << 20

// DocumentProcessor rewrites one document. *notes.Processor implements it.
type DocumentProcessor interface {
	Process(ctx context.Context, doc []byte) ([]byte, int, error)
}

// Server exposes the rewrite pipeline over HTTP. Documents are processed one
// at a time, the same as a batch run.
type Server struct {
	proc     DocumentProcessor
	mu       sync.Mutex
	logger   *zap.Logger
	maxBytes int64
}

func New(proc DocumentProcessor, logger *zap.Logger) (*Server, error) {
	if proc == nil {
		return nil, errors.New("document processor required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{proc: proc, logger: logger, maxBytes: maxDocumentBytes}, nil
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/documents", s.handleDocument)
	mux.HandleFunc("/healthz", s.handleHealth)
	return s.logMiddleware(mux)
}

// --- Handlers ---

func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "read request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	out, n, err := s.proc.Process(r.Context(), body)
	s.mu.Unlock()
	if err != nil {
		if errors.Is(err, notes.ErrInvalidDocument) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.logger.Error("document rewrite failed", zap.Error(err))
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Rewrite-Count", strconv.Itoa(n))
	_, _ = w.Write(notes.Format(out))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "ok\n")
}

// --- Helpers ---

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		path := r.URL.Path
		if path == "" {
			path = "/"
		}
		s.logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", path),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", time.Since(start)))
	})
}
