package handler

import (
	"net/http"

	"civictrack/backend/internal/authority"
	"civictrack/backend/internal/models"

	"github.com/gin-gonic/gin"
)

type assignRequest struct {
	AuthorityID string `json:"authority_id"`
}

// AssignComplaint binds a Free authority to a pending complaint (admin only).
func (h *Handler) AssignComplaint(c *gin.Context) {
	var req assignRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.AuthorityID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "authority_id is required"})
		return
	}

	complaint, err := h.Lifecycle.Assign(c.Param("id"), req.AuthorityID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, complaint)
}

// AdvanceComplaint moves the caller authority's complaint one step
// forward (assigned -> inprogress -> resolved).
func (h *Handler) AdvanceComplaint(c *gin.Context) {
	complaint, err := h.Lifecycle.Advance(c.Param("id"), c.GetString("user_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, complaint)
}

type authorityView struct {
	models.Authority
	Availability models.Availability `json:"availability"`
}

// ListAuthorities returns every authority with its derived availability.
func (h *Handler) ListAuthorities(c *gin.Context) {
	authorities, err := h.Storage.ListAuthorities()
	if err != nil {
		respondError(c, err)
		return
	}

	views := make([]authorityView, 0, len(authorities))
	for _, a := range authorities {
		bound, err := h.Storage.ActiveComplaintsFor(a.ID)
		if err != nil {
			respondError(c, err)
			return
		}
		views = append(views, authorityView{Authority: a, Availability: authority.Derive(bound)})
	}
	c.JSON(http.StatusOK, gin.H{"authorities": views})
}

// GetAvailability re-derives one authority's availability.
func (h *Handler) GetAvailability(c *gin.Context) {
	avail, err := h.Resolver.Availability(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"authority_id": c.Param("id"), "availability": avail})
}
