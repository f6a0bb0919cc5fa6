package handler

import (
	"net/http"

	"civictrack/backend/internal/lifecycle"
	"civictrack/backend/internal/models"
	"civictrack/backend/internal/storage"

	"github.com/gin-gonic/gin"
)

type submitRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Location    string `json:"location"`
	Severity    string `json:"severity"`
	Category    string `json:"category"`
	Anonymous   bool   `json:"anonymous"`
	ImageURL    string `json:"image_url"`
}

// SubmitComplaint creates a pending complaint owned by the caller.
func (h *Handler) SubmitComplaint(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	complaint, err := h.Lifecycle.Submit(c.GetString("user_id"), lifecycle.SubmitInput{
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		Severity:    models.Severity(req.Severity),
		Category:    req.Category,
		Anonymous:   req.Anonymous,
		ImageURL:    req.ImageURL,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, complaint)
}

// ListComplaints returns complaints under trivial filters. Tallies and
// status ride along verbatim so the UI needs no extra joins.
func (h *Handler) ListComplaints(c *gin.Context) {
	filter := storage.ComplaintFilter{
		Status:   models.ComplaintStatus(c.Query("status")),
		Category: c.Query("category"),
		Severity: models.Severity(c.Query("severity")),
	}
	if c.Query("mine") == "true" {
		filter.ReporterID = c.GetString("user_id")
	}

	complaints, err := h.Storage.ListComplaints(filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"complaints": complaints})
}

// GetComplaint returns one complaint.
func (h *Handler) GetComplaint(c *gin.Context) {
	complaint, err := h.Storage.GetComplaintByID(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, complaint)
}

type editRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Location    string `json:"location"`
}

// EditComplaint updates the mutable fields of the caller's pending complaint.
func (h *Handler) EditComplaint(c *gin.Context) {
	var req editRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	complaint, err := h.Lifecycle.Edit(c.Param("id"), c.GetString("user_id"), lifecycle.EditInput{
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, complaint)
}

// WithdrawComplaint deletes the caller's pending complaint.
func (h *Handler) WithdrawComplaint(c *gin.Context) {
	if err := h.Lifecycle.Withdraw(c.Param("id"), c.GetString("user_id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "withdrawn"})
}

type voteRequest struct {
	Polarity int `json:"polarity"`
}

// CastVote applies the caller's vote and returns the updated tally.
func (h *Handler) CastVote(c *gin.Context) {
	var req voteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	tally, err := h.Ledger.CastVote(c.Param("id"), c.GetString("user_id"), req.Polarity)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tally)
}
