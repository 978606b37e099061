package handlers

import (
  "net/http"

  "github.com/gin-gonic/gin"

  "github.com/conservaproj/conserva-backend/internal/services"
)

type UserHandler struct {
  userService services.UserService
}

func NewUserHandler(userService services.UserService) *UserHandler {
  return &UserHandler{userService: userService}
}

func (uh *UserHandler) GetMe(c *gin.Context) {
  user, err := uh.userService.GetMe(c.Request.Context(), nil)
  if err != nil {
    RespondError(c, http.StatusUnauthorized, "unauthorized", err)
    return
  }
  RespondOK(c, gin.H{"user": user})
}

func (uh *UserHandler) UpdateProfile(c *gin.Context) {
  var req struct {
    FirstName string `json:"first_name"`
    LastName  string `json:"last_name"`
  }
  if err := c.ShouldBindJSON(&req); err != nil {
    RespondErrorMessage(c, http.StatusBadRequest, "invalid_body", "invalid request body")
    return
  }
  user, err := uh.userService.UpdateProfile(c.Request.Context(), nil, req.FirstName, req.LastName)
  if err != nil {
    RespondError(c, http.StatusBadRequest, "update_failed", err)
    return
  }
  RespondOK(c, gin.H{"user": user})
}
