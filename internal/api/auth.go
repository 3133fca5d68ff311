package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/safecity/safecity-go/internal/datastore"
	"github.com/safecity/safecity-go/internal/errors"
)

// UserDTO is the wire form of a user, password hash excluded.
type UserDTO struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at,omitempty"`
}

// AuthResponse is the response for register and login.
type AuthResponse struct {
	Success bool     `json:"success"`
	User    *UserDTO `json:"user,omitempty"`
	Message string   `json:"message,omitempty"`
}

// RegisterRequest is the body of POST /api/register.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest is the body of POST /api/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func toUserDTO(user *datastore.User) *UserDTO {
	return &UserDTO{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		Role:      user.Role,
		CreatedAt: user.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// Register handles POST /api/register. Rejections (taken username, short
// password) come back as 200 with success=false so clients surface the
// message instead of a transport error.
func (c *Controller) Register(ctx echo.Context) error {
	var req RegisterRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, AuthResponse{Message: "invalid request body"})
	}

	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		return ctx.JSON(http.StatusOK, AuthResponse{Message: "username and password are required"})
	}
	if len(req.Password) < 8 {
		return ctx.JSON(http.StatusOK, AuthResponse{Message: "password must be at least 8 characters"})
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		c.log.Error("password hashing failed", "error", err)
		return ctx.JSON(http.StatusInternalServerError, AuthResponse{Message: "internal error"})
	}

	user := &datastore.User{
		ID:           uuid.NewString(),
		Username:     req.Username,
		Email:        strings.TrimSpace(req.Email),
		PasswordHash: string(hash),
		Role:         "operator",
		CreatedAt:    time.Now(),
	}

	if err := c.ds.CreateUser(user); err != nil {
		if errors.IsCategory(err, errors.CategoryConflict) {
			return ctx.JSON(http.StatusOK, AuthResponse{Message: "username already taken"})
		}
		c.log.Error("user creation failed", "username", req.Username, "error", err)
		return ctx.JSON(http.StatusInternalServerError, AuthResponse{Message: "internal error"})
	}

	c.log.Info("user registered", "username", user.Username)
	return ctx.JSON(http.StatusOK, AuthResponse{Success: true, User: toUserDTO(user)})
}

// Login handles POST /api/login. A valid password sets the session cookie.
func (c *Controller) Login(ctx echo.Context) error {
	var req LoginRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, AuthResponse{Message: "invalid request body"})
	}

	user, err := c.ds.GetUserByUsername(strings.TrimSpace(req.Username))
	if err != nil {
		if errors.Is(err, datastore.ErrUserNotFound) {
			// Same message as a bad password, no username probing.
			return ctx.JSON(http.StatusUnauthorized, AuthResponse{Message: "invalid credentials"})
		}
		c.log.Error("login lookup failed", "error", err)
		return ctx.JSON(http.StatusInternalServerError, AuthResponse{Message: "internal error"})
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return ctx.JSON(http.StatusUnauthorized, AuthResponse{Message: "invalid credentials"})
	}

	session, _ := c.sessions.Get(ctx.Request(), sessionName)
	session.Values["userId"] = user.ID
	session.Values["username"] = user.Username
	if err := session.Save(ctx.Request(), ctx.Response()); err != nil {
		c.log.Error("session save failed", "error", err)
		return ctx.JSON(http.StatusInternalServerError, AuthResponse{Message: "internal error"})
	}

	c.log.Info("user logged in", "username", user.Username)
	return ctx.JSON(http.StatusOK, AuthResponse{Success: true, User: toUserDTO(user)})
}

// Logout handles POST /api/logout, clearing the session cookie.
func (c *Controller) Logout(ctx echo.Context) error {
	session, _ := c.sessions.Get(ctx.Request(), sessionName)
	session.Options.MaxAge = -1
	session.Values = map[any]any{}
	if err := session.Save(ctx.Request(), ctx.Response()); err != nil {
		c.log.Error("session clear failed", "error", err)
	}
	return ctx.JSON(http.StatusOK, map[string]bool{"success": true})
}
