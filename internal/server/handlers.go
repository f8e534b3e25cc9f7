package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/s33g/completions-gateway/internal/completion"
	"github.com/s33g/completions-gateway/internal/llm"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes a failure
type ErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
}

// ModelList is the response for GET /models
type ModelList struct {
	Object string      `json:"object"`
	Data   []ModelInfo `json:"data"`
}

// ModelInfo describes one served model
type ModelInfo struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

func (s *Server) handleCompletions(c *gin.Context) {
	var req completion.CompletionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid_request_error", "invalid request body: "+err.Error())
		return
	}
	if req.Model == "" {
		abortWithError(c, http.StatusBadRequest, "invalid_request_error", "model is required")
		return
	}
	if !req.Prompt.IsSet() {
		abortWithError(c, http.StatusBadRequest, "invalid_request_error", "prompt is required")
		return
	}

	// Reject before any budget is charged; the service checks again
	if err := completion.Validate(&req); err != nil {
		s.writeCompletionError(c, err)
		return
	}

	if !s.chargeTokens(c, &req) {
		return
	}

	resp, err := s.completer.Complete(c.Request.Context(), &req)
	if err != nil {
		s.writeCompletionError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// chargeTokens charges the prompt tokens plus the requested maximum output
// against the client's budget, aborting the request when it is exhausted
func (s *Server) chargeTokens(c *gin.Context, req *completion.CompletionRequest) bool {
	_, limits := s.settings()
	if s.limiter == nil || limits.TokensPerPeriod == 0 {
		return true
	}

	prompts := req.Prompt.Values()
	tokens := s.counter.CountAll(prompts) + req.MaxTokens*len(prompts)

	result, err := s.limiter.ChargeTokens(c.Request.Context(), c.ClientIP(), limits, tokens)
	if err != nil {
		s.logger.Error().Err(err).Msg("Token limit check failed")
		return true
	}
	if !result.Allowed {
		c.Header("Retry-After", strconv.Itoa(result.SecondsToReset))
		abortWithError(c, http.StatusTooManyRequests, "token_limit_exceeded",
			"token budget exceeded, "+strconv.Itoa(result.TokensRemaining)+" tokens remaining")
		return false
	}
	return true
}

func (s *Server) writeCompletionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, completion.ErrUnsupportedFeature):
		abortWithError(c, http.StatusNotImplemented, "unsupported_feature", err.Error())
	case errors.Is(err, completion.ErrAllSlotsFailed):
		abortWithError(c, http.StatusBadGateway, "backend_error", err.Error())
	case errors.Is(err, llm.ErrConfiguration):
		s.logger.Error().Err(err).Msg("Backend is not configured")
		abortWithError(c, http.StatusInternalServerError, "configuration_error", err.Error())
	default:
		s.logger.Error().Err(err).Msg("Completion failed")
		abortWithError(c, http.StatusInternalServerError, "server_error", err.Error())
	}
}

func (s *Server) handleModels(c *gin.Context) {
	model, _ := s.settings()

	list := ModelList{Object: "list", Data: []ModelInfo{}}
	if model != "" {
		list.Data = append(list.Data, ModelInfo{
			ID:      model,
			Object:  "model",
			Created: time.Now().Unix(),
			OwnedBy: "system",
		})
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func abortWithError(c *gin.Context, status int, errType, message string) {
	c.AbortWithStatusJSON(status, ErrorResponse{
		Error: ErrorDetail{
			Message: message,
			Type:    errType,
			Code:    strconv.Itoa(status),
		},
	})
}
