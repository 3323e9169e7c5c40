package sandbox

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/spigell/interview-runner/internal/interview"
	"github.com/spigell/interview-runner/internal/logger"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

type interviewResponse struct {
	Interview *interview.Interview `json:"interview"`
}

func respondError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, errorResponse{Error: errorBody{Code: code, Message: message}})
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Register(r gin.IRoutes) {
	r.POST("/api/interviews/ai", h.create)
	r.GET("/api/interviews/ai/:id", h.get)
	r.PUT("/api/interviews/ai/:id", h.apply)
	r.GET("/healthz", h.health)
}

func (h *Handler) create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "bad_request", "Invalid JSON body")
		return
	}

	iv, err := h.svc.Create(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, interviewResponse{Interview: iv})
}

func (h *Handler) get(c *gin.Context) {
	iv, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, interviewResponse{Interview: iv})
}

func (h *Handler) apply(c *gin.Context) {
	var req ActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "bad_request", "Invalid JSON body")
		return
	}

	iv, err := h.svc.Apply(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, interviewResponse{Interview: iv})
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		respondError(c, http.StatusNotFound, "not_found", "Interview not found")
	case errors.Is(err, ErrInvalidAction), errors.Is(err, ErrValidation):
		respondError(c, http.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, interview.ErrInvalidTransition):
		respondError(c, http.StatusConflict, "invalid_transition", err.Error())
	default:
		h.svc.Logger.Error("request failed", zap.String(logger.FieldRequestID, requestIDFrom(c)), zap.Error(err))
		respondError(c, http.StatusInternalServerError, "internal", "Unexpected server error")
	}
}
