package handlers

import (
	"net/http"

	"library_api/internal/service"

	"github.com/gin-gonic/gin"
)

type registerRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// loginRequest accepts both OAuth2-style form fields and a JSON body.
type loginRequest struct {
	Username string `form:"username" json:"username" binding:"required"`
	Password string `form:"password" json:"password" binding:"required"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type roleRequest struct {
	Role string `json:"role" binding:"required"`
}

// @Summary      Register a new user
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        body  body      registerRequest  true  "account"
// @Success      200   {object}  models.User
// @Failure      400   {object}  map[string]string
// @Router       /users/register [post]
func (h *Handler) register(c *gin.Context) {
	var input registerRequest
	if ok := h.bindJSONOrBadRequest(c, &input); !ok {
		return
	}

	user, err := h.services.SignUp(c.Request.Context(), service.SignUpInput{
		Username: input.Username,
		Email:    input.Email,
		Password: input.Password,
	})
	if err != nil {
		h.respondError(c, "user_register_failed", err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// @Summary      Log in
// @Description  Accepts form-encoded or JSON credentials and returns a bearer token.
// @Tags         users
// @Accept       x-www-form-urlencoded,json
// @Produce      json
// @Param        username  formData  string  true  "username"
// @Param        password  formData  string  true  "password"
// @Success      200  {object}  tokenResponse
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Router       /users/login [post]
func (h *Handler) login(c *gin.Context) {
	var input loginRequest
	if err := c.ShouldBind(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token, err := h.services.GenerateToken(c.Request.Context(), input.Username, input.Password)
	if err != nil {
		h.respondError(c, "user_login_failed", err)
		return
	}
	c.JSON(http.StatusOK, tokenResponse{AccessToken: token, TokenType: "bearer"})
}

// @Summary      Current user profile
// @Tags         users
// @Produce      json
// @Success      200  {object}  models.User
// @Failure      401  {object}  map[string]string
// @Router       /users/me [get]
// @Security     BearerAuth
func (h *Handler) me(c *gin.Context) {
	user, err := h.services.Profile(c.Request.Context(), currentUser(c))
	if err != nil {
		h.respondError(c, "user_profile_failed", err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// @Summary      List users
// @Tags         users
// @Produce      json
// @Success      200  {array}   models.User
// @Failure      401  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Router       /users/ [get]
// @Security     BearerAuth
func (h *Handler) listUsers(c *gin.Context) {
	users, err := h.services.ListUsers(c.Request.Context())
	if err != nil {
		h.respondError(c, "user_list_failed", err)
		return
	}
	c.JSON(http.StatusOK, users)
}

// @Summary      Change a user's role
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        id    path      int          true  "user id"
// @Param        body  body      roleRequest  true  "new role (user|admin)"
// @Success      200   {object}  models.User
// @Failure      400   {object}  map[string]string
// @Failure      403   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Router       /users/{id}/role [put]
// @Security     BearerAuth
func (h *Handler) setRole(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var input roleRequest
	if ok := h.bindJSONOrBadRequest(c, &input); !ok {
		return
	}

	user, err := h.services.SetRole(c.Request.Context(), currentUser(c), id, input.Role)
	if err != nil {
		h.respondError(c, "user_set_role_failed", err)
		return
	}
	c.JSON(http.StatusOK, user)
}
