package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/flicky/ezpc-api/internal/dto"
	"github.com/flicky/ezpc-api/internal/middleware"
	"github.com/flicky/ezpc-api/internal/service"
)

type ReviewHandler struct {
	reviewService *service.ReviewService
}

func NewReviewHandler(reviewService *service.ReviewService) *ReviewHandler {
	return &ReviewHandler{reviewService: reviewService}
}

func (h *ReviewHandler) List(c *gin.Context) {
	productID, ok := paramID(c, "id", "product")
	if !ok {
		return
	}

	reviews, err := h.reviewService.ListReviews(c.Request.Context(), productID)
	if err != nil {
		writeError(c, err)
		return
	}

	items := make([]dto.ReviewResponse, 0, len(reviews))
	for i := range reviews {
		items = append(items, dto.NewReviewResponse(&reviews[i]))
	}
	c.JSON(http.StatusOK, gin.H{"reviews": items, "total": len(items)})
}

func (h *ReviewHandler) Eligibility(c *gin.Context) {
	productID, ok := paramID(c, "id", "product")
	if !ok {
		return
	}

	e, err := h.reviewService.CheckEligibility(c.Request.Context(), middleware.GetUserID(c), productID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.EligibilityResponse{CanReview: e.CanReview, Reason: e.Reason})
}

func (h *ReviewHandler) Submit(c *gin.Context) {
	productID, ok := paramID(c, "id", "product")
	if !ok {
		return
	}
	var req dto.SubmitReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	review, err := h.reviewService.SubmitReview(c.Request.Context(), middleware.GetSession(c), productID, req.Rating, req.Comment)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.NewReviewResponse(review))
}
