package http

import (
	"net/http"

	"quizit-service/internal/app"
	"quizit-service/internal/domain"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SessionHandler serves the participant-facing session and submission endpoints.
type SessionHandler struct {
	sessions    *app.SessionService
	submissions *app.SubmissionCoordinator
	proctor     *app.Proctor
	log         *zap.Logger
}

func NewSessionHandler(sessions *app.SessionService, submissions *app.SubmissionCoordinator, proctor *app.Proctor, log *zap.Logger) *SessionHandler {
	return &SessionHandler{sessions: sessions, submissions: submissions, proctor: proctor, log: log}
}

type sessionKeyRequest struct {
	ParticipantID string `json:"participantId" form:"participantId"`
	QuizID        string `json:"quizId" form:"quizId"`
}

func (r sessionKeyRequest) key() domain.SessionKey {
	return domain.SessionKey{ParticipantID: r.ParticipantID, QuizID: r.QuizID}
}

type createSessionRequest struct {
	sessionKeyRequest
	DurationMinutes int `json:"durationMinutes"`
}

type heartbeatRequest struct {
	sessionKeyRequest
	RemainingSeconds *int `json:"remainingSeconds" binding:"required"`
}

type progressRequest struct {
	sessionKeyRequest
	Answers             []domain.SessionQuestion `json:"answers"`
	ActiveQuestionIndex *int                     `json:"activeQuestionIndex"`
	SkippedQuestions    []int                    `json:"skippedQuestions"`
}

type tabSwitchRequest struct {
	sessionKeyRequest
	Participant *domain.ParticipantInfo `json:"participant"`
}

type submitRequest struct {
	sessionKeyRequest
	Participant domain.ParticipantInfo `json:"participant"`
	Trigger     string                 `json:"trigger"`
}

func (h *SessionHandler) CreateOrResume(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	session, err := h.sessions.CreateOrResume(c.Request.Context(), req.key(), req.DurationMinutes)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *SessionHandler) GetSession(c *gin.Context) {
	var req sessionKeyRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		writeBindError(c, err)
		return
	}
	session, err := h.sessions.GetSession(c.Request.Context(), req.key())
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *SessionHandler) Heartbeat(c *gin.Context) {
	var req heartbeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	if err := h.sessions.Heartbeat(c.Request.Context(), req.key(), *req.RemainingSeconds); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "heartbeat recorded"})
}

func (h *SessionHandler) GetRemaining(c *gin.Context) {
	var req sessionKeyRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		writeBindError(c, err)
		return
	}
	remaining, err := h.sessions.GetRemaining(c.Request.Context(), req.key())
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"remainingSeconds": remaining})
}

func (h *SessionHandler) SaveProgress(c *gin.Context) {
	var req progressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	err := h.sessions.SaveProgress(c.Request.Context(), app.Progress{
		Key:                 req.key(),
		Answers:             req.Answers,
		ActiveQuestionIndex: req.ActiveQuestionIndex,
		SkippedQuestions:    req.SkippedQuestions,
	})
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "progress saved"})
}

func (h *SessionHandler) TabSwitch(c *gin.Context) {
	var req tabSwitchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	outcome, err := h.proctor.ReportViolation(c.Request.Context(), req.key(), req.Participant)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

func (h *SessionHandler) CheckCompleted(c *gin.Context) {
	var req sessionKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	completed, err := h.sessions.CheckCompleted(c.Request.Context(), req.key())
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"completed": completed})
}

func (h *SessionHandler) Submit(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	submission, err := h.submissions.Submit(c.Request.Context(), app.SubmitRequest{
		Key:         req.key(),
		Participant: req.Participant,
		Trigger:     domain.ParseTrigger(req.Trigger),
	})
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, submission)
}
