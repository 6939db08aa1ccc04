package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/emilythestrangee/stackit/backend/internal/models"
)

type NotificationHandler struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func NewNotificationHandler(db *gorm.DB, log *zap.SugaredLogger) *NotificationHandler {
	return &NotificationHandler{db: db, log: log}
}

func (h *NotificationHandler) unreadCount(c *gin.Context, userID uint) (int64, error) {
	var count int64
	err := h.db.WithContext(c.Request.Context()).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	return count, err
}

// ListNotifications returns the caller's notifications, newest first.
func (h *NotificationHandler) ListNotifications(c *gin.Context) {
	ctx := c.Request.Context()
	userID := currentUserID(c)
	p := parsePage(c, 20)

	var total int64
	if err := h.db.WithContext(ctx).Model(&models.Notification{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		respondDBError(c, h.log, "count notifications", err)
		return
	}

	notifications := []models.Notification{}
	err := h.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(p.Limit).Offset(p.Offset()).
		Find(&notifications).Error
	if err != nil {
		respondDBError(c, h.log, "list notifications", err)
		return
	}

	unread, err := h.unreadCount(c, userID)
	if err != nil {
		respondDBError(c, h.log, "count unread notifications", err)
		return
	}

	respondOK(c, http.StatusOK, gin.H{
		"notifications": notifications,
		"pagination":    p.Pagination(total),
		"unreadCount":   unread,
	})
}

func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	unread, err := h.unreadCount(c, currentUserID(c))
	if err != nil {
		respondDBError(c, h.log, "count unread notifications", err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"unreadCount": unread})
}

// MarkRead marks one of the caller's notifications as read. Other users'
// notifications look the same as missing ones.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	res := h.db.WithContext(c.Request.Context()).Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", id, currentUserID(c)).
		Update("is_read", true)
	if res.Error != nil {
		respondDBError(c, h.log, "mark notification read", res.Error)
		return
	}
	if res.RowsAffected == 0 {
		respondError(c, http.StatusNotFound, "Notification not found")
		return
	}
	respondOK(c, http.StatusOK, gin.H{"message": "Notification marked as read"})
}

func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	res := h.db.WithContext(c.Request.Context()).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", currentUserID(c), false).
		Update("is_read", true)
	if res.Error != nil {
		respondDBError(c, h.log, "mark notifications read", res.Error)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"message": "All notifications marked as read", "updated": res.RowsAffected})
}
