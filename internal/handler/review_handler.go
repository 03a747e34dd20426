package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/GTDGit/fabric_api/internal/middleware"
	"github.com/GTDGit/fabric_api/internal/models"
	"github.com/GTDGit/fabric_api/internal/service"
	"github.com/GTDGit/fabric_api/internal/utils"
)

// ReviewHandler handles review and vote endpoints.
type ReviewHandler struct {
	reviewService *service.ReviewService
}

func NewReviewHandler(reviewService *service.ReviewService) *ReviewHandler {
	return &ReviewHandler{reviewService: reviewService}
}

func parseReviewFilter(c *gin.Context) *models.ReviewFilter {
	page, limit := utils.ParsePagination(c)
	rating, _ := strconv.Atoi(c.Query("rating"))
	return &models.ReviewFilter{
		Rating: rating,
		Sort:   c.Query("sort"),
		Page:   page,
		Limit:  limit,
	}
}

// CreateReview handles POST /api/v1/reviews
func (h *ReviewHandler) CreateReview(c *gin.Context) {
	var req service.CreateReviewRequest
	if !utils.BindJSON(c, &req) {
		return
	}
	rv, err := h.reviewService.Create(c.Request.Context(), middleware.UserID(c), &req)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, 201, "Review submitted successfully", rv)
}

// UpdateReview handles PUT /api/v1/reviews/:id
func (h *ReviewHandler) UpdateReview(c *gin.Context) {
	var req service.UpdateReviewRequest
	if !utils.BindJSON(c, &req) {
		return
	}
	rv, err := h.reviewService.Update(c.Request.Context(), middleware.UserID(c), c.Param("id"), &req)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, 200, "Review updated successfully", rv)
}

// DeleteReview handles DELETE /api/v1/reviews/:id
func (h *ReviewHandler) DeleteReview(c *gin.Context) {
	if err := h.reviewService.Delete(c.Request.Context(), middleware.UserID(c), middleware.IsAdmin(c), c.Param("id")); err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, 200, "Review deleted successfully", nil)
}

// GetProductReviews handles GET /api/v1/reviews/product/:productId
func (h *ReviewHandler) GetProductReviews(c *gin.Context) {
	filter := parseReviewFilter(c)
	filter.ProductID = c.Param("productId")
	reviews, total, err := h.reviewService.ListForProduct(c.Request.Context(), filter)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.SuccessWithPagination(c, 200, "Reviews retrieved successfully", reviews, filter.Page, filter.Limit, total)
}

// GetMyReviews handles GET /api/v1/reviews/my
func (h *ReviewHandler) GetMyReviews(c *gin.Context) {
	filter := parseReviewFilter(c)
	filter.CustomerID = middleware.UserID(c)
	reviews, total, err := h.reviewService.List(c.Request.Context(), filter)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.SuccessWithPagination(c, 200, "Reviews retrieved successfully", reviews, filter.Page, filter.Limit, total)
}

// AdminGetReviews handles GET /api/v1/reviews
func (h *ReviewHandler) AdminGetReviews(c *gin.Context) {
	filter := parseReviewFilter(c)
	filter.ProductID = c.Query("productId")
	reviews, total, err := h.reviewService.List(c.Request.Context(), filter)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.SuccessWithPagination(c, 200, "Reviews retrieved successfully", reviews, filter.Page, filter.Limit, total)
}

// Publish handles PATCH /api/v1/reviews/:id/publish
func (h *ReviewHandler) Publish(c *gin.Context) {
	h.setPublished(c, true)
}

// Unpublish handles PATCH /api/v1/reviews/:id/unpublish
func (h *ReviewHandler) Unpublish(c *gin.Context) {
	h.setPublished(c, false)
}

func (h *ReviewHandler) setPublished(c *gin.Context, published bool) {
	rv, err := h.reviewService.SetPublished(c.Request.Context(), c.Param("id"), published)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, 200, "Review updated successfully", rv)
}

// VoteHelpful handles POST /api/v1/reviews/:id/vote/helpful
func (h *ReviewHandler) VoteHelpful(c *gin.Context) {
	h.vote(c, models.ActionHelpful)
}

// VoteNotHelpful handles POST /api/v1/reviews/:id/vote/not-helpful
func (h *ReviewHandler) VoteNotHelpful(c *gin.Context) {
	h.vote(c, models.ActionNotHelpful)
}

// RemoveVote handles DELETE /api/v1/reviews/:id/vote
func (h *ReviewHandler) RemoveVote(c *gin.Context) {
	h.vote(c, models.ActionRemove)
}

func (h *ReviewHandler) vote(c *gin.Context, action models.VoteAction) {
	rv, err := h.reviewService.Vote(c.Request.Context(), middleware.UserID(c), c.Param("id"), action)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, 200, "Vote recorded", gin.H{
		"helpfulCount":    rv.HelpfulCount,
		"notHelpfulCount": rv.NotHelpfulCount,
	})
}
