package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tatugacamp/school-api/internal/service"
	appErrors "github.com/tatugacamp/school-api/pkg/errors"
	"github.com/tatugacamp/school-api/pkg/response"
)

// UserHandler handles account endpoints.
type UserHandler struct {
	service *service.UserService
}

// NewUserHandler constructs a user handler.
func NewUserHandler(svc *service.UserService) *UserHandler {
	return &UserHandler{service: svc}
}

// Me godoc
// @Summary Get the authenticated account
// @Tags Users
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /users/me [get]
func (h *UserHandler) Me(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	user, err := h.service.Get(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, user)
}

// Update godoc
// @Summary Patch the authenticated account's profile
// @Tags Users
// @Accept json
// @Produce json
// @Param payload body service.UpdateUserRequest true "Profile patch"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /users/me [patch]
func (h *UserHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	user, err := h.service.Update(c.Request.Context(), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, user)
}

// UpdatePassword godoc
// @Summary Change the authenticated account's password
// @Tags Users
// @Accept json
// @Produce json
// @Param payload body service.UpdatePasswordRequest true "Password change"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /users/me/password [patch]
func (h *UserHandler) UpdatePassword(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.UpdatePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	user, err := h.service.UpdatePassword(c.Request.Context(), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, user)
}

// ResendVerifyEmail godoc
// @Summary Resend the verification email
// @Tags Users
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /users/me/resend-verify-email [post]
func (h *UserHandler) ResendVerifyEmail(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.ResendVerifyEmail(c.Request.Context(), claims.UserID); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"message": "verification email sent"})
}

// Search godoc
// @Summary Search verified users by email fragment
// @Tags Users
// @Produce json
// @Param email query string true "Email fragment"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /users [get]
func (h *UserHandler) Search(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	users, err := h.service.SearchByEmail(c.Request.Context(), c.Query("email"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, users)
}
