package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"chatrelay/internal/prompt"
	"chatrelay/internal/quota"
)

// sentinel client id when no origin header is present
const unknownClientID = "unknown-ip"

// Kind is the closed set of request failure variants. Every failure site
// produces one explicitly; nothing is inferred from caught values.
type Kind int

const (
	KindInvalidInput Kind = iota
	KindQuotaExceeded
	KindUpstreamFailure
)

type apiError struct {
	Kind    Kind
	Message string
}

func (e apiError) Error() string { return e.Message }

func (e apiError) status() int {
	switch e.Kind {
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindQuotaExceeded:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

type errorBody struct {
	Error string `json:"error"`
}

type conversationRequest struct {
	// Messages must be present and a JSON array; a nil pointer after
	// decoding means the field was absent or null.
	Messages *[]prompt.Message `json:"messages"`
	Stream   bool              `json:"stream"`
}

type conversationResponse struct {
	Content string `json:"content"`
}

type streamFrame struct {
	Content string `json:"content"`
}

// handleConversation runs one request through quota check, body
// validation, prompt construction, the upstream call, and reply delivery.
// The quota point is spent before the body is inspected; that ordering is
// part of the endpoint's contract.
func (s *Server) handleConversation(c echo.Context) error {
	req := c.Request()
	clientID := clientIdentifier(req)

	if err := s.quota.Check(clientID); err != nil {
		var exceeded *quota.ExceededError
		if errors.As(err, &exceeded) {
			c.Response().Header().Set("Retry-After", strconv.Itoa(exceeded.RetryAfter))
			return apiError{Kind: KindQuotaExceeded, Message: exceeded.Error()}
		}
		return apiError{Kind: KindUpstreamFailure, Message: "Failed to generate content"}
	}

	body, err := decodeConversation(c)
	if err != nil {
		return err
	}

	content, err := s.llm.Complete(req.Context(), prompt.Build(*body.Messages))
	if err != nil {
		slog.Error("completion failed", "provider", s.llm.Name(), "client_id", clientID, "err", err)
		return apiError{Kind: KindUpstreamFailure, Message: "Failed to generate content"}
	}

	if !body.Stream {
		return c.JSON(http.StatusOK, conversationResponse{Content: content})
	}
	return s.streamContent(c, content)
}

func decodeConversation(c echo.Context) (conversationRequest, error) {
	req := c.Request()
	defer req.Body.Close()

	req.Body = http.MaxBytesReader(c.Response(), req.Body, maxBodyBytes)

	var body conversationRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return conversationRequest{}, apiError{Kind: KindInvalidInput, Message: "Invalid request body"}
	}
	if body.Messages == nil {
		return conversationRequest{}, apiError{Kind: KindInvalidInput, Message: "Invalid request body"}
	}
	return body, nil
}

// streamContent delivers content as an SSE stream of re-chunked word
// groups. The stream ends by closing; there is no terminal sentinel
// frame, so a mid-stream failure is indistinguishable from completion.
func (s *Server) streamContent(c echo.Context, content string) error {
	writer := c.Response().Writer
	flusher, ok := writer.(http.Flusher)
	if !ok {
		slog.Error("http writer does not support flushing")
		return apiError{Kind: KindUpstreamFailure, Message: "Failed to generate content"}
	}

	header := c.Response().Header()
	header.Set(echo.HeaderContentType, "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")

	c.Response().WriteHeader(http.StatusOK)

	ctx := c.Request().Context()
	for piece := range s.emitter.Emit(ctx, content) {
		if err := writeSSEData(writer, streamFrame{Content: piece}); err != nil {
			// Client gone; the emitter stops via the request context.
			return nil
		}
		flusher.Flush()
	}

	return nil
}

func writeSSEData(w io.Writer, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal SSE payload: %w", err)
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("write SSE data: %w", err)
	}
	return nil
}

// clientIdentifier derives the quota key from origin headers. The header
// value is used verbatim as a lookup key; no well-formedness checks.
func clientIdentifier(r *http.Request) string {
	if v := r.Header.Get("X-Forwarded-For"); v != "" {
		return v
	}
	if v := r.Header.Get("X-Real-Ip"); v != "" {
		return v
	}
	return unknownClientID
}

func relayErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var apiErr apiError
	if errors.As(err, &apiErr) {
		_ = c.JSON(apiErr.status(), errorBody{Error: apiErr.Message})
		return
	}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		_ = c.JSON(httpErr.Code, errorBody{Error: fmt.Sprintf("%v", httpErr.Message)})
		return
	}

	_ = c.JSON(http.StatusInternalServerError, errorBody{Error: "Failed to generate content"})
}
