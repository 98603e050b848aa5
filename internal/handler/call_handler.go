package handler

import (
	"net/http"
	"strconv"
	"time"

	"soko/internal/middleware"
	"soko/internal/repository"

	"github.com/gin-gonic/gin"
)

// CallHandler serves the storefront's read-only views of call history and
// subscription state.
type CallHandler struct {
	calls *repository.CallRepository
	subs  *repository.SubscriptionRepository
}

func NewCallHandler(calls *repository.CallRepository, subs *repository.SubscriptionRepository) *CallHandler {
	return &CallHandler{calls: calls, subs: subs}
}

// ListMine returns the caller's call history, newest first. Query: limit, offset.
func (h *CallHandler) ListMine(c *gin.Context) {
	userID := middleware.GetUserID(c)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	list, err := h.calls.ListByUser(userID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load calls"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"calls": list})
}

// GetMySubscription returns the caller's entitlement snapshot.
func (h *CallHandler) GetMySubscription(c *gin.Context) {
	userID := middleware.GetUserID(c)
	sub, err := h.subs.GetByUserID(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load subscription"})
		return
	}
	if sub == nil {
		c.JSON(http.StatusOK, gin.H{"active": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"active":       sub.ActiveAt(time.Now()),
		"subscription": sub,
	})
}
