package handler

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-room/internal/authority"
	"github.com/stemsi/exstem-room/internal/grading"
	"github.com/stemsi/exstem-room/internal/middleware"
	"github.com/stemsi/exstem-room/internal/model"
	"github.com/stemsi/exstem-room/internal/registry"
	"github.com/stemsi/exstem-room/internal/report"
	"github.com/stemsi/exstem-room/internal/response"
	"github.com/stemsi/exstem-room/internal/validator"
)

// RoomHandler exposes the examiner's local commands over HTTP. Every call
// runs on the examiner node's dispatcher.
type RoomHandler struct {
	node      *authority.Node
	reportLoc *time.Location
	log       zerolog.Logger
}

// NewRoomHandler creates a new RoomHandler.
func NewRoomHandler(node *authority.Node, reportLoc *time.Location, log zerolog.Logger) *RoomHandler {
	return &RoomHandler{
		node:      node,
		reportLoc: reportLoc,
		log:       log.With().Str("component", "room_handler").Logger(),
	}
}

// roomView is the examiner's dashboard payload.
type roomView struct {
	RoomID int                `json:"room_id"`
	PeerID string             `json:"peer_id"`
	Links  int                `json:"connected"`
	Max    float64            `json:"max_score"`
	State  model.SessionState `json:"state"`
}

// GetRoom godoc
// GET /api/v1/admin/room
// Returns the full room state including submissions.
func (h *RoomHandler) GetRoom(c *gin.Context) {
	var view roomView
	err := h.node.Exec(c.Request.Context(), func(a *authority.Authority) error {
		view.RoomID = a.RoomID()
		view.State = a.Snapshot()
		view.Max = a.Rules().Max()
		return nil
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	view.PeerID = h.node.PeerID()
	view.Links, _ = h.node.LinkCount(c.Request.Context())

	response.Success(c, http.StatusOK, view)
}

// SetStatus godoc
// PUT /api/v1/admin/room/status
func (h *RoomHandler) SetStatus(c *gin.Context) {
	var req model.StatusRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	err := h.node.Exec(c.Request.Context(), func(a *authority.Authority) error {
		return a.SetStatus(req.Status)
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	h.log.Info().Str("status", string(req.Status)).Str("token_id", tokenID(c)).Msg("Status set by examiner")
	response.Success(c, http.StatusOK, gin.H{"status": req.Status})
}

// SetDuration godoc
// PUT /api/v1/admin/room/duration
// Rejected once the room is FINISHED.
func (h *RoomHandler) SetDuration(c *gin.Context) {
	var req model.DurationRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	var applied int
	err := h.node.Exec(c.Request.Context(), func(a *authority.Authority) error {
		var err error
		applied, err = a.SetDuration(*req.Minutes)
		return err
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"duration": applied})
}

// SetFullscreen godoc
// PUT /api/v1/admin/room/fullscreen
func (h *RoomHandler) SetFullscreen(c *gin.Context) {
	h.toggle(c, "enforce_fullscreen", (*authority.Authority).SetEnforceFullscreen)
}

// SetReview godoc
// PUT /api/v1/admin/room/review
func (h *RoomHandler) SetReview(c *gin.Context) {
	h.toggle(c, "review_open", (*authority.Authority).SetReviewOpen)
}

func (h *RoomHandler) toggle(c *gin.Context, field string, set func(*authority.Authority, bool)) {
	var req model.ToggleRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	err := h.node.Exec(c.Request.Context(), func(a *authority.Authority) error {
		set(a, *req.Enabled)
		return nil
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{field: *req.Enabled})
}

// SetPart1Key godoc
// PUT /api/v1/admin/room/key/part1/:q
func (h *RoomHandler) SetPart1Key(c *gin.Context) {
	var req model.Part1KeyRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	h.updateKey(c, authority.KeyUpdate{Part: 1, Letter: req.Answer})
}

// SetPart2Key godoc
// PUT /api/v1/admin/room/key/part2/:q
func (h *RoomHandler) SetPart2Key(c *gin.Context) {
	var req model.Part2KeyRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	h.updateKey(c, authority.KeyUpdate{Part: 2, Sub: req.Sub, Value: *req.Value})
}

// SetPart3Key godoc
// PUT /api/v1/admin/room/key/part3/:q
// "a;b;c" stores three accepted forms.
func (h *RoomHandler) SetPart3Key(c *gin.Context) {
	var req model.Part3KeyRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	h.updateKey(c, authority.KeyUpdate{Part: 3, Text: req.Answer})
}

func (h *RoomHandler) updateKey(c *gin.Context, u authority.KeyUpdate) {
	q, err := strconv.Atoi(c.Param("q"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}
	u.Question = q

	var key model.AnswerKey
	err = h.node.Exec(c.Request.Context(), func(a *authority.Authority) error {
		if err := a.UpdateAnswerKey(u); err != nil {
			return err
		}
		key = a.Snapshot().AnswerKey
		return nil
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"answerKey": key})
}

// Reset godoc
// POST /api/v1/admin/room/reset
// Moves to a new room number; connected participants are disconnected.
func (h *RoomHandler) Reset(c *gin.Context) {
	roomID, peerID, err := h.node.Reset(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}

	h.log.Info().Int("room_id", roomID).Str("peer_id", peerID).Str("token_id", tokenID(c)).Msg("Room reset")
	response.Success(c, http.StatusOK, gin.H{"room_id": roomID, "peer_id": peerID})
}

// ReviewSubmission godoc
// GET /api/v1/admin/room/submissions/:name/review
// Grades the stored answers of one participant against the current key.
func (h *RoomHandler) ReviewSubmission(c *gin.Context) {
	name := c.Param("name")

	var (
		sub model.Submission
		rv  grading.Review
	)
	err := h.node.Exec(c.Request.Context(), func(a *authority.Authority) error {
		var err error
		sub, rv, err = a.Review(name)
		return err
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"submission": sub, "review": rv})
}

// ExportCSV godoc
// GET /api/v1/admin/room/report.csv
func (h *RoomHandler) ExportCSV(c *gin.Context) {
	var (
		roomID int
		subs   []model.Submission
	)
	err := h.node.Exec(c.Request.Context(), func(a *authority.Authority) error {
		roomID = a.RoomID()
		subs = a.Snapshot().Submissions
		return nil
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	if len(subs) == 0 {
		response.Fail(c, http.StatusNotFound, response.ErrNoSubmissions)
		return
	}

	var buf bytes.Buffer
	if err := report.WriteCSV(&buf, subs, h.reportLoc); err != nil {
		h.log.Error().Err(err).Msg("Rendering report failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+report.FileName(roomID)+`"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// Stats godoc
// GET /api/v1/admin/room/stats
func (h *RoomHandler) Stats(c *gin.Context) {
	var subs []model.Submission
	err := h.node.Exec(c.Request.Context(), func(a *authority.Authority) error {
		subs = a.Snapshot().Submissions
		return nil
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, report.Summarize(subs))
}

// fail maps domain errors onto the response envelope.
func (h *RoomHandler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, authority.ErrSessionFinished):
		response.Fail(c, http.StatusConflict, response.ErrSessionFinished)
	case errors.Is(err, authority.ErrInvalidKeyUpdate):
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidKeyUpdate)
	case errors.Is(err, authority.ErrSubmissionNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, registry.ErrIdentifierTaken):
		response.Fail(c, http.StatusConflict, response.ErrIdentifierTaken)
	case errors.Is(err, authority.ErrNodeStopped), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		response.Fail(c, http.StatusServiceUnavailable, response.ErrExaminerUnavailable)
	default:
		h.log.Error().Err(err).Msg("Room command failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

// tokenID identifies the login session behind an admin request.
func tokenID(c *gin.Context) string {
	if claims := middleware.GetClaims(c); claims != nil {
		return claims.ID
	}
	return ""
}
