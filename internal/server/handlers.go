package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"devlog/internal/assistant"
	"devlog/internal/domain"
	"devlog/internal/ratelimiter"
)

type assistantRequest struct {
	MarkdownText string `json:"markdownText"`
}

type summarizeResponse struct {
	Summary string `json:"summary"`
}

type autotagResponse struct {
	Tags []string `json:"tags"`
}

type statsEntry struct {
	Task    string `json:"task"`
	Outcome string `json:"outcome"`
	Count   int64  `json:"count"`
}

type statsResponse struct {
	Since string       `json:"since"`
	Stats []statsEntry `json:"stats"`
}

func (s *Server) summarize(c *gin.Context) {
	markdown, ok := s.bindMarkdown(c, domain.TaskSummarize)
	if !ok {
		return
	}

	summary, err := s.assistant.Summarize(c.Request.Context(), markdown)
	if err != nil {
		s.abortWithAssistantError(c, err)
		return
	}

	sanitized, err := sanitizeSummary(summary)
	if err != nil {
		s.log.ErrorContext(c.Request.Context(), "Failed to sanitize summary",
			"error", err,
			"summaryLen", len(summary))
		c.JSON(http.StatusBadGateway, gin.H{"error": assistant.ErrSummarizeFailed.Error()})
		return
	}

	c.JSON(http.StatusOK, summarizeResponse{Summary: sanitized})
}

func (s *Server) autotag(c *gin.Context) {
	markdown, ok := s.bindMarkdown(c, domain.TaskTag)
	if !ok {
		return
	}

	tags, err := s.assistant.GenerateTags(c.Request.Context(), markdown)
	if err != nil {
		s.abortWithAssistantError(c, err)
		return
	}

	c.JSON(http.StatusOK, autotagResponse{Tags: tags})
}

func (s *Server) getStats(c *gin.Context) {
	window := defaultStatsWindow
	if raw := c.Query("hours"); raw != "" {
		hours, err := strconv.Atoi(raw)
		if err != nil || hours <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "hours must be a positive integer"})
			return
		}
		hours = min(hours, int(maxStatsWindow/time.Hour))
		window = time.Duration(hours) * time.Hour
	}

	since := s.now().UTC().Add(-window)

	stats, err := s.stats.GetRequestStats(c.Request.Context(), since)
	if err != nil {
		s.log.ErrorContext(c.Request.Context(), "Failed to get request stats",
			"error", err,
			"since", since)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	res := statsResponse{
		Since: since.Format(time.RFC3339),
		Stats: make([]statsEntry, 0, len(stats)),
	}
	for _, st := range stats {
		res.Stats = append(res.Stats, statsEntry{
			Task:    string(st.Task),
			Outcome: string(st.Outcome),
			Count:   st.Count,
		})
	}

	c.JSON(http.StatusOK, res)
}

func (s *Server) getHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// bindMarkdown decodes the request, applies the content limit and waits for
// the client's rate limit slot unless the result is already cached. It writes
// the error response itself.
func (s *Server) bindMarkdown(c *gin.Context, task domain.Task) (string, bool) {
	maxBody := s.cfg.MaxContentBytes*jsonEnvelopeGrowthFactor + jsonEnvelopeOverhead
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBody)

	var req assistantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Markdown content is too large"})
			return "", false
		}

		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return "", false
	}

	if strings.TrimSpace(req.MarkdownText) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Markdown content is empty"})
		return "", false
	}

	if int64(len(req.MarkdownText)) > s.cfg.MaxContentBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Markdown content is too large"})
		return "", false
	}

	if s.assistant.Cached(task, req.MarkdownText) {
		return req.MarkdownText, true
	}

	if err := s.limiter.Wait(c.Request.Context(), c.ClientIP()); err != nil {
		if errors.Is(err, ratelimiter.ErrLimited) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests"})
			return "", false
		}

		c.AbortWithStatus(http.StatusRequestTimeout)
		return "", false
	}

	return req.MarkdownText, true
}

func (s *Server) abortWithAssistantError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, assistant.ErrEmptyContent):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Markdown content is empty"})
	case errors.Is(err, assistant.ErrSummarizeFailed), errors.Is(err, assistant.ErrTagFailed):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		s.log.ErrorContext(c.Request.Context(), "Unexpected assistant error",
			"error", err,
			"path", c.FullPath())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
	}
}
