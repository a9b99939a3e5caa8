package handlers

import (
	"net/http"

	"library_api/internal/service"

	"github.com/gin-gonic/gin"
)

type createReviewRequest struct {
	BookID  int     `json:"book_id" binding:"required"`
	Comment *string `json:"comment"`
	Rating  *int    `json:"rating" binding:"required"`
}

type updateReviewRequest struct {
	Comment *string `json:"comment"`
	Rating  *int    `json:"rating"`
}

// @Summary      Review a book
// @Tags         reviews
// @Accept       json
// @Produce      json
// @Param        body  body      createReviewRequest  true  "review"
// @Success      201   {object}  models.Review
// @Failure      404   {object}  map[string]string
// @Router       /reviews/ [post]
// @Security     BearerAuth
func (h *Handler) createReview(c *gin.Context) {
	var input createReviewRequest
	if ok := h.bindJSONOrBadRequest(c, &input); !ok {
		return
	}
	r, err := h.services.CreateReview(c.Request.Context(), currentUser(c), service.NewReview{
		BookID:  input.BookID,
		Comment: input.Comment,
		Rating:  *input.Rating,
	})
	if err != nil {
		h.respondError(c, "review_create_failed", err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

// @Summary      Reviews for a book
// @Tags         reviews
// @Produce      json
// @Param        id   path  int  true  "book id"
// @Success      200  {array}  models.Review
// @Router       /reviews/book/{id} [get]
func (h *Handler) bookReviews(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	list, err := h.services.BookReviews(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, "review_list_failed", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// @Summary      Update a review
// @Tags         reviews
// @Accept       json
// @Produce      json
// @Param        id    path      int                  true  "review id"
// @Param        body  body      updateReviewRequest  true  "fields to change"
// @Success      200   {object}  models.Review
// @Failure      400   {object}  map[string]string
// @Failure      403   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Router       /reviews/{id} [put]
// @Security     BearerAuth
func (h *Handler) updateReview(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.services.CanEditReview(c.Request.Context(), currentUser(c), id); err != nil {
		h.respondError(c, "review_update_failed", err)
		return
	}
	var input updateReviewRequest
	if ok := h.bindJSONOrBadRequest(c, &input); !ok {
		return
	}
	r, err := h.services.UpdateReview(c.Request.Context(), currentUser(c), id, service.ReviewPatch{
		Comment: input.Comment,
		Rating:  input.Rating,
	})
	if err != nil {
		h.respondError(c, "review_update_failed", err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// @Summary      Delete a review
// @Tags         reviews
// @Param        id   path  int  true  "review id"
// @Success      204
// @Failure      403  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /reviews/{id} [delete]
// @Security     BearerAuth
func (h *Handler) deleteReview(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.services.DeleteReview(c.Request.Context(), currentUser(c), id); err != nil {
		h.respondError(c, "review_delete_failed", err)
		return
	}
	c.Status(http.StatusNoContent)
}
