package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"voice-beyond/companion/internal/notify"
)

type NoticeHandler struct {
	notifier *notify.Notifier
}

func NewNoticeHandler(notifier *notify.Notifier) *NoticeHandler {
	return &NoticeHandler{notifier: notifier}
}

func (h *NoticeHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"notices": h.notifier.Active()})
}

func (h *NoticeHandler) Dismiss(c *gin.Context) {
	h.notifier.Dismiss(c.Param("id"))
	c.Status(http.StatusNoContent)
}
