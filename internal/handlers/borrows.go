package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type borrowRequest struct {
	BookID int `json:"book_id" binding:"required"`
}

// @Summary      Borrow a book
// @Tags         borrows
// @Accept       json
// @Produce      json
// @Param        body  body      borrowRequest  true  "book to borrow"
// @Success      201   {object}  models.Borrow
// @Failure      400   {object}  map[string]string  "book already borrowed"
// @Failure      404   {object}  map[string]string
// @Router       /borrows/ [post]
// @Security     BearerAuth
func (h *Handler) borrowBook(c *gin.Context) {
	var input borrowRequest
	if ok := h.bindJSONOrBadRequest(c, &input); !ok {
		return
	}
	br, err := h.services.Borrow(c.Request.Context(), currentUser(c), input.BookID)
	if err != nil {
		h.respondError(c, "borrow_failed", err)
		return
	}
	c.JSON(http.StatusCreated, br)
}

// @Summary      Return a borrowed book
// @Tags         borrows
// @Produce      json
// @Param        id   path      int  true  "borrow id"
// @Success      200  {object}  models.Borrow
// @Failure      400  {object}  map[string]string  "already returned"
// @Failure      403  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /borrows/{id}/return [post]
// @Security     BearerAuth
func (h *Handler) returnBook(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	br, err := h.services.Return(c.Request.Context(), currentUser(c), id)
	if err != nil {
		h.respondError(c, "return_failed", err)
		return
	}
	c.JSON(http.StatusOK, br)
}

// @Summary      My borrows
// @Tags         borrows
// @Produce      json
// @Success      200  {array}  models.Borrow
// @Router       /borrows/me [get]
// @Security     BearerAuth
func (h *Handler) myBorrows(c *gin.Context) {
	list, err := h.services.MyBorrows(c.Request.Context(), currentUser(c))
	if err != nil {
		h.respondError(c, "borrow_list_failed", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// @Summary      All borrows
// @Tags         borrows
// @Produce      json
// @Success      200  {array}   models.Borrow
// @Failure      403  {object}  map[string]string
// @Router       /borrows/ [get]
// @Security     BearerAuth
func (h *Handler) allBorrows(c *gin.Context) {
	list, err := h.services.AllBorrows(c.Request.Context())
	if err != nil {
		h.respondError(c, "borrow_list_failed", err)
		return
	}
	c.JSON(http.StatusOK, list)
}
