// Package proxy keeps the completion credential on the server. The widget points
// its endpoint here and the proxy forwards requests upstream with the real key.
package proxy

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"chat-widget/utils"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/sashabaranov/go-openai"
)

// CompletionsPath is the route the widget posts to
const CompletionsPath = "/v1/chat/completions"

const (
	maxRequestBody = 4 << 20
	copyBufferSize = 4096
)

// Config configures the proxy.
type Config struct {
	APIKey         string
	Upstream       string
	AllowedOrigins []string
	Client         *http.Client
}

// Server forwards chat completion requests to the upstream endpoint.
type Server struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger
	router chi.Router
}

// New creates a proxy server. The API key is required.
func New(cfg Config, logger *slog.Logger) (*Server, error) {
	if cfg.APIKey == "" {
		return nil, utils.ErrConfigurationMissing
	}
	if cfg.Upstream == "" {
		cfg.Upstream = utils.DefaultEndpoint
	}
	if logger == nil {
		logger = slog.Default()
	}
	client := cfg.Client
	if client == nil {
		// No overall timeout: streamed replies stay open until the upstream finishes.
		client = &http.Client{}
	}

	s := &Server{cfg: cfg, client: client, logger: logger}
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(CORS(s.cfg.AllowedOrigins))

	r.Post(CompletionsPath, s.handleCompletions)
	return r
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleCompletions(w http.ResponseWriter, r *http.Request) {
	reqID := chiMiddleware.GetReqID(r.Context())

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	var request openai.ChatCompletionRequest
	if err := json.Unmarshal(body, &request); err != nil {
		writeError(w, http.StatusBadRequest, "request body is not a chat completion request")
		return
	}

	upstreamReq, err := http.NewRequestWithContext(r.Context(), http.MethodPost, s.cfg.Upstream, bytes.NewReader(body))
	if err != nil {
		s.logger.Error("Failed to build upstream request", "request_id", reqID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to build upstream request")
		return
	}
	// The caller's Authorization header is never forwarded
	upstreamReq.Header.Set("Content-Type", "application/json")
	upstreamReq.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	if accept := r.Header.Get("Accept"); accept != "" {
		upstreamReq.Header.Set("Accept", accept)
	}

	resp, err := s.client.Do(upstreamReq)
	if err != nil {
		s.logger.Warn("Upstream request failed", "request_id", reqID, "error", err)
		writeError(w, http.StatusBadGateway, "upstream unavailable")
		return
	}
	defer resp.Body.Close()

	s.logger.Info("Forwarded completion",
		"request_id", reqID,
		"model", request.Model,
		"messages", len(request.Messages),
		"stream", request.Stream,
		"status", resp.StatusCode,
	)

	for _, h := range []string{"Content-Type", "Cache-Control"} {
		if v := resp.Header.Get(h); v != "" {
			w.Header().Set(h, v)
		}
	}
	w.WriteHeader(resp.StatusCode)

	if err := copyFlushing(w, resp.Body); err != nil {
		s.logger.Warn("Response copy interrupted", "request_id", reqID, "error", err)
	}
}

// copyFlushing copies src to w, flushing after every read so stream lines reach
// the client as soon as the upstream sends them
func copyFlushing(w http.ResponseWriter, src io.Reader) error {
	flusher, _ := w.(http.Flusher)
	buf := make([]byte, copyBufferSize)
	for {
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return werr
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// writeError answers in the upstream's error envelope so clients parse it the same way
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(openai.ErrorResponse{
		Error: &openai.APIError{Message: message, Type: "proxy_error"},
	})
}
