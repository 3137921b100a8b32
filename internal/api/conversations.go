package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/chatthread/internal/store"
	"github.com/chatthread/pkg/chattree"
)

// CreateConversationRequest is the body of POST /conversations.
type CreateConversationRequest struct {
	ID       string             `json:"id,omitempty"`
	Name     string             `json:"name"`
	Messages []chattree.Message `json:"messages"`
}

// SelectionRequest is the body of PUT /conversations/:id/selection.
type SelectionRequest struct {
	MessageID string `json:"message_id"`
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func storeError(err error) error {
	switch {
	case errors.Is(err, store.ErrConversationNotFound),
		errors.Is(err, store.ErrSnapshotNotFound),
		errors.Is(err, store.ErrMessageNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrConversationExists):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "storage error").SetInternal(err)
	}
}

// refreshSnapshot schedules a snapshot job. Failing to enqueue does not fail the
// request: the snapshot is only a cache of the thread endpoint.
func (s *Server) refreshSnapshot(c echo.Context, conversationID string) {
	if s.queue == nil {
		return
	}
	if err := s.queue.EnqueueSnapshot(c.Request().Context(), conversationID); err != nil {
		log.Warn().Err(err).Str("conversation_id", conversationID).Msg("Failed to queue snapshot job")
	}
}

func (s *Server) createConversation(c echo.Context) error {
	var req CreateConversationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	conv, err := s.store.CreateConversation(c.Request().Context(), req.ID, req.Name, req.Messages)
	if err != nil {
		return storeError(err)
	}

	s.refreshSnapshot(c, conv.ID)
	return c.JSON(http.StatusCreated, conv)
}

func (s *Server) listConversations(c echo.Context) error {
	limit, err := queryInt(c, "limit", defaultPageSize)
	if err != nil {
		return err
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		return err
	}
	if limit < 1 || limit > maxPageSize {
		return echo.NewHTTPError(http.StatusBadRequest, "limit must be between 1 and 100")
	}
	if offset < 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "offset must not be negative")
	}

	convs, err := s.store.ListConversations(c.Request().Context(), limit, offset)
	if err != nil {
		return storeError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"data":   convs,
		"limit":  limit,
		"offset": offset,
	})
}

func queryInt(c echo.Context, name string, fallback int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, name+" must be an integer")
	}
	return n, nil
}

func (s *Server) getConversation(c echo.Context) error {
	conv, err := s.store.GetConversation(c.Request().Context(), c.Param("id"))
	if err != nil {
		return storeError(err)
	}
	return c.JSON(http.StatusOK, conv)
}

func (s *Server) deleteConversation(c echo.Context) error {
	if err := s.store.DeleteConversation(c.Request().Context(), c.Param("id")); err != nil {
		return storeError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) appendMessages(c echo.Context) error {
	var req TreeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if len(req.Messages) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "messages must not be empty")
	}

	id := c.Param("id")
	total, err := s.store.AppendMessages(c.Request().Context(), id, req.Messages)
	if err != nil {
		return storeError(err)
	}

	s.refreshSnapshot(c, id)
	return c.JSON(http.StatusOK, map[string]int{"message_count": total})
}

func (s *Server) getConversationTree(c echo.Context) error {
	msgs, err := s.store.ListMessages(c.Request().Context(), c.Param("id"))
	if err != nil {
		return storeError(err)
	}
	return c.JSON(http.StatusOK, newTreeResponse(msgs))
}

// getConversationThread uses the target query parameter, then the stored
// selection, then the latest branch.
func (s *Server) getConversationThread(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	target := c.QueryParam("target")
	if target == "" {
		conv, err := s.store.GetConversation(ctx, id)
		if err != nil {
			return storeError(err)
		}
		target = conv.SelectedMessageID
	}

	msgs, err := s.store.ListMessages(ctx, id)
	if err != nil {
		return storeError(err)
	}
	return c.JSON(http.StatusOK, newThreadResponse(msgs, target))
}

func (s *Server) setSelection(c echo.Context) error {
	var req SelectionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	id := c.Param("id")
	if err := s.store.SetSelectedMessage(c.Request().Context(), id, req.MessageID); err != nil {
		return storeError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) getSnapshot(c echo.Context) error {
	snap, err := s.store.GetSnapshot(c.Request().Context(), c.Param("id"))
	if err != nil {
		return storeError(err)
	}
	return c.JSON(http.StatusOK, snap)
}
