package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mzholl/callwire/internal/domain"
	"github.com/mzholl/callwire/internal/store"
)

// callAPI is the record-creation surface callers hit before signaling:
// a call id and room id come from here, ringing happens over the socket.
type callAPI struct {
	store store.CallStore
}

type createCallRequest struct {
	CallerID domain.UserID `json:"callerId"`
	CalleeID domain.UserID `json:"calleeId"`
}

func (a *callAPI) create(c *gin.Context) {
	var req createCallRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.CallerID == "" || req.CalleeID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "callerId and calleeId are required"})
		return
	}
	call, err := a.store.Create(c.Request.Context(), req.CallerID, req.CalleeID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create call"})
		return
	}
	c.JSON(http.StatusCreated, call)
}

type updateStatusRequest struct {
	Status domain.CallStatus `json:"status"`
}

func (a *callAPI) updateStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status is required"})
		return
	}
	switch req.Status {
	case domain.CallInitiated, domain.CallOngoing, domain.CallEnded, domain.CallRejected:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status"})
		return
	}
	err := a.store.UpdateStatus(c.Request.Context(), domain.CallID(c.Param("id")), req.Status)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "call not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *callAPI) get(c *gin.Context) {
	call, err := a.store.Get(c.Request.Context(), domain.CallID(c.Param("id")))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "call not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	c.JSON(http.StatusOK, call)
}
