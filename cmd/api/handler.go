package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	authdelivery "clustermail-backend/internal/auth/delivery"
	emailusecase "clustermail-backend/internal/email/usecase"
	grouprepo "clustermail-backend/internal/group/repository"
	groupusecase "clustermail-backend/internal/group/usecase"
	"clustermail-backend/pkg/config"
	"clustermail-backend/pkg/gmail"
)

type Handler struct {
	groupUsecase groupusecase.GroupUsecase
	syncUsecase  emailusecase.SyncUsecase
	gmailService *gmail.Service
	cfg          *config.Config
	logger       *zap.Logger
}

func NewHandler(
	groupUsecase groupusecase.GroupUsecase,
	syncUsecase emailusecase.SyncUsecase,
	gmailService *gmail.Service,
	cfg *config.Config,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		groupUsecase: groupUsecase,
		syncUsecase:  syncUsecase,
		gmailService: gmailService,
		cfg:          cfg,
		logger:       logger,
	}
}

func (h *Handler) Start(addr string) error {
	r := gin.Default()
	SetupRoutes(r, h)
	return r.Run(addr)
}

func session(c *gin.Context) (string, string) {
	return c.GetString(authdelivery.ContextUserEmail), c.GetString(authdelivery.ContextAccessToken)
}

func (h *Handler) GetGroups(c *gin.Context) {
	userEmail, accessToken := session(c)

	result, err := h.groupUsecase.GetGroups(c.Request.Context(), userEmail, accessToken)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type renameGroupRequest struct {
	Name string `json:"name" binding:"required"`
}

func (h *Handler) RenameGroup(c *gin.Context) {
	userEmail, accessToken := session(c)

	groupID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group id"})
		return
	}

	var req renameGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.groupUsecase.RenameGroup(c.Request.Context(), userEmail, accessToken, groupID, req.Name)
	if err != nil {
		if errors.Is(err, grouprepo.ErrGroupNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "group not found"})
			return
		}
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type addEmailRequest struct {
	EmailID string `json:"email_id" binding:"required"`
}

func (h *Handler) AddEmailToGroup(c *gin.Context) {
	userEmail, accessToken := session(c)

	groupID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group id"})
		return
	}

	var req addEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.groupUsecase.AddToGroup(c.Request.Context(), userEmail, accessToken, groupID, req.EmailID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) RefreshEmails(c *gin.Context) {
	userEmail, accessToken := session(c)

	days := h.cfg.SyncLookbackDays
	if daysStr := c.Query("days"); daysStr != "" {
		if parsed, err := strconv.Atoi(daysStr); err == nil && parsed >= 0 {
			days = parsed
		}
	}

	fetched, err := h.syncUsecase.RefreshEmails(c.Request.Context(), userEmail, accessToken, days, true)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"fetched": fetched})
}

type sendEmailRequest struct {
	To      string `json:"to" binding:"required"`
	Subject string `json:"subject" binding:"required"`
	Body    string `json:"body" binding:"required"`
}

func (h *Handler) SendEmail(c *gin.Context) {
	userEmail, accessToken := session(c)

	var req sendEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.gmailService.SendEmail(c.Request.Context(), accessToken, userEmail, req.To, req.Subject, req.Body); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "sent"})
}

func (h *Handler) respondError(c *gin.Context, err error) {
	if errors.Is(err, gmail.ErrCredentialRejected) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "mail provider rejected credential"})
		return
	}
	h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
