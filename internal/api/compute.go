package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/chatthread/pkg/chattree"
)

// TreeRequest carries a flat message list.
type TreeRequest struct {
	Messages []chattree.Message `json:"messages"`
}

// TreeResponse is a built forest with its shape summary.
type TreeResponse struct {
	Tree  []*chattree.Node     `json:"tree"`
	Stats chattree.ForestStats `json:"stats"`
}

// ThreadRequest carries a flat message list and an optional selection.
type ThreadRequest struct {
	Messages        []chattree.Message `json:"messages"`
	TargetMessageID string             `json:"target_message_id,omitempty"`
}

// ThreadResponse is the thread to display.
type ThreadResponse struct {
	Thread          []chattree.Message `json:"thread"`
	LastAnswerID    string             `json:"last_answer_id,omitempty"`
	TargetMessageID string             `json:"target_message_id,omitempty"`
	// TargetFound is false when a requested target was not in the conversation and
	// the latest branch was returned instead.
	TargetFound bool `json:"target_found"`
}

func newTreeResponse(msgs []chattree.Message) TreeResponse {
	tree := chattree.BuildChatItemTree(msgs)
	return TreeResponse{Tree: tree, Stats: chattree.Stats(tree)}
}

func newThreadResponse(msgs []chattree.Message, target string) ThreadResponse {
	tree := chattree.BuildChatItemTree(msgs)
	resp := ThreadResponse{
		Thread:          chattree.ThreadMessages(tree, target),
		TargetMessageID: target,
		TargetFound:     target == "" || chattree.TargetExists(tree, target),
	}
	if last, ok := chattree.LastAnswer(resp.Thread); ok {
		resp.LastAnswerID = last.ID
	}
	return resp
}

func (s *Server) buildTree(c echo.Context) error {
	var req TreeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	return c.JSON(http.StatusOK, newTreeResponse(req.Messages))
}

func (s *Server) extractThread(c echo.Context) error {
	var req ThreadRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	return c.JSON(http.StatusOK, newThreadResponse(req.Messages, req.TargetMessageID))
}
