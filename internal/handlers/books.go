package handlers

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"

	"library_api/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	// coverFormOverhead leaves room for multipart boundaries and part headers.
	coverFormOverhead = 64 << 10
	msgCoverTooLarge  = "Cover file too large"
)

type createBookRequest struct {
	Title       string  `json:"title" binding:"required"`
	Author      string  `json:"author" binding:"required"`
	Description *string `json:"description"`
	CoverURL    *string `json:"cover_url"`
}

// updateBookRequest is sparse: omitted fields stay nil and are left unchanged.
type updateBookRequest struct {
	Title       *string `json:"title"`
	Author      *string `json:"author"`
	Description *string `json:"description"`
	CoverURL    *string `json:"cover_url"`
}

// queryInt reads an optional integer query parameter.
func queryInt(c *gin.Context, key string, def int) (int, bool) {
	s := c.Query(key)
	if s == "" {
		return def, true
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid '" + key + "' parameter"})
		return 0, false
	}
	return v, true
}

// @Summary      List books
// @Description  Case-insensitive substring filters on author, title and description (keyword).
// @Tags         books
// @Produce      json
// @Param        author   query  string  false  "author contains"
// @Param        title    query  string  false  "title contains"
// @Param        keyword  query  string  false  "description contains"
// @Param        skip     query  int     false  "offset"  default(0)
// @Param        limit    query  int     false  "page size"  default(10)
// @Success      200  {array}   models.Book
// @Failure      400  {object}  map[string]string
// @Router       /books/ [get]
func (h *Handler) listBooks(c *gin.Context) {
	skip, ok := queryInt(c, "skip", 0)
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit", h.cfg.DefaultBookLimit)
	if !ok {
		return
	}

	books, err := h.services.ListBooks(c.Request.Context(), service.BookFilter{
		Author:  c.Query("author"),
		Title:   c.Query("title"),
		Keyword: c.Query("keyword"),
		Skip:    skip,
		Limit:   limit,
	})
	if err != nil {
		h.respondError(c, "book_list_failed", err)
		return
	}
	c.JSON(http.StatusOK, books)
}

// @Summary      Get a book
// @Tags         books
// @Produce      json
// @Param        id   path      int  true  "book id"
// @Success      200  {object}  models.Book
// @Failure      404  {object}  map[string]string
// @Router       /books/{id} [get]
func (h *Handler) getBook(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	book, err := h.services.GetBook(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, "book_get_failed", err)
		return
	}
	c.JSON(http.StatusOK, book)
}

// @Summary      Create a book
// @Tags         books
// @Accept       json
// @Produce      json
// @Param        body  body      createBookRequest  true  "book"
// @Success      201   {object}  models.Book
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Router       /books/ [post]
// @Security     BearerAuth
func (h *Handler) createBook(c *gin.Context) {
	var input createBookRequest
	if ok := h.bindJSONOrBadRequest(c, &input); !ok {
		return
	}

	book, err := h.services.CreateBook(c.Request.Context(), currentUser(c), service.NewBook{
		Title:       input.Title,
		Author:      input.Author,
		Description: input.Description,
		CoverURL:    input.CoverURL,
	})
	if err != nil {
		h.respondError(c, "book_create_failed", err)
		return
	}
	c.JSON(http.StatusCreated, book)
}

// @Summary      Update a book
// @Description  Partial update; only the owner may edit.
// @Tags         books
// @Accept       json
// @Produce      json
// @Param        id    path      int                true  "book id"
// @Param        body  body      updateBookRequest  true  "fields to change"
// @Success      200   {object}  models.Book
// @Failure      400   {object}  map[string]string
// @Failure      403   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Router       /books/{id} [put]
// @Security     BearerAuth
func (h *Handler) updateBook(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	// access is settled before the body is looked at
	if err := h.services.CanEditBook(c.Request.Context(), currentUser(c), id); err != nil {
		h.respondError(c, "book_update_failed", err)
		return
	}
	var input updateBookRequest
	if ok := h.bindJSONOrBadRequest(c, &input); !ok {
		return
	}

	book, err := h.services.UpdateBook(c.Request.Context(), currentUser(c), id, service.BookPatch{
		Title:       input.Title,
		Author:      input.Author,
		Description: input.Description,
		CoverURL:    input.CoverURL,
	})
	if err != nil {
		h.respondError(c, "book_update_failed", err)
		return
	}
	c.JSON(http.StatusOK, book)
}

// @Summary      Delete a book
// @Tags         books
// @Param        id   path  int  true  "book id"
// @Success      204
// @Failure      400  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /books/{id} [delete]
// @Security     BearerAuth
func (h *Handler) deleteBook(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.services.DeleteBook(c.Request.Context(), currentUser(c), id); err != nil {
		h.respondError(c, "book_delete_failed", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary      Upload a book cover
// @Tags         books
// @Accept       multipart/form-data
// @Produce      json
// @Param        id    path      int   true  "book id"
// @Param        file  formData  file  true  "cover image"
// @Success      200   {object}  models.Book
// @Failure      400   {object}  map[string]string
// @Failure      403   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Router       /books/{id}/cover [post]
// @Security     BearerAuth
func (h *Handler) uploadCover(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if maxBytes := h.cfg.MaxCoverBytes; maxBytes > 0 {
		limit := maxBytes + coverFormOverhead
		if c.Request.ContentLength > limit {
			c.JSON(http.StatusBadRequest, gin.H{"error": msgCoverTooLarge})
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	}
	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusBadRequest, gin.H{"error": msgCoverTooLarge})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		h.respondError(c, "cover_open_failed", err)
		return
	}
	defer f.Close()

	book, err := h.services.UploadCover(c.Request.Context(), currentUser(c), id, service.CoverUpload{
		Filename: fh.Filename,
		Size:     fh.Size,
		Content:  f,
	})
	if err != nil {
		h.respondError(c, "cover_upload_failed", err)
		return
	}
	c.JSON(http.StatusOK, book)
}

// @Summary      Export books as CSV
// @Tags         books
// @Produce      text/csv
// @Success      200  {string}  string  "id,title,author,description,cover_url,owner_id"
// @Router       /books/export/csv [get]
func (h *Handler) exportBooksCSV(c *gin.Context) {
	var buf bytes.Buffer
	if err := h.services.ExportCSV(c.Request.Context(), &buf); err != nil {
		h.respondError(c, "book_export_failed", err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename=books.csv")
	c.Data(http.StatusOK, "text/csv", buf.Bytes())
}
