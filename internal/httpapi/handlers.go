package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"urban-mobility/internal/auth"
	"urban-mobility/internal/authz"
	"urban-mobility/internal/scooter"
	"urban-mobility/internal/store"
	"urban-mobility/internal/traveller"
	"urban-mobility/internal/user"
	"urban-mobility/internal/validation"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: decode the body, call the service, map the error. All
// checking lives behind the services; nothing here inspects field content.
type Handlers struct {
	Auth       *auth.Service
	Users      *user.Service
	Travellers *traveller.Service
	Scooters   *scooter.Service
	Audit      *AuditReview
}

// principal pulls the authenticated principal the token middleware stored.
func principal(c *gin.Context) (authz.Principal, bool) {
	p, ok := authz.PrincipalFrom(c.Request.Context())
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
	}
	return p, ok
}

// rawBody decodes a flat JSON object into the string map the validator
// consumes. Numbers and booleans are stringified; fixed-precision values
// (coordinates) must arrive as strings or they lose trailing digits.
func rawBody(c *gin.Context) (map[string]string, bool) {
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return nil, false
	}
	out := make(map[string]string, len(body))
	for k, v := range body {
		switch t := v.(type) {
		case string:
			out[k] = t
		case float64:
			out[k] = strconv.FormatFloat(t, 'f', -1, 64)
		case bool:
			out[k] = strconv.FormatBool(t)
		case nil:
			// Absent and null are the same thing.
		default:
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json", "field": k})
			return nil, false
		}
	}
	return out, true
}

// writeErr maps service errors onto transport statuses. Validation failures
// return the field and reason code; everything else is generic on purpose.
func writeErr(c *gin.Context, err error) {
	var verr *validation.Error
	if errors.As(err, &verr) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":  "invalid input",
			"field":  verr.Field,
			"reason": string(verr.Reason),
		})
		return
	}
	if errors.Is(err, authz.ErrDenied) {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	if errors.Is(err, auth.ErrLockedOut) {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "temporarily locked"})
		return
	}
	if errors.Is(err, auth.ErrInvalidCredentials) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	if errors.Is(err, user.ErrCurrentPassword) {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "current password mismatch"})
		return
	}
	if f, ok := store.AsFailure(err); ok {
		switch f.Code {
		case store.CodeNotFound:
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
		case store.CodeConflict:
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "conflict"})
		case store.CodeTimeout:
			c.AbortWithStatusJSON(http.StatusGatewayTimeout, gin.H{"error": "timeout"})
		default:
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

// --- Auth ---

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h Handlers) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.Username == "" || req.Password == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "username and password required"})
		return
	}
	pair, err := h.Auth.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h Handlers) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "refresh_token required"})
		return
	}
	pair, err := h.Auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

// --- Users ---

func (h Handlers) CreateEngineer(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	raw, ok := rawBody(c)
	if !ok {
		return
	}
	u, err := h.Users.CreateEngineer(c.Request.Context(), p, raw)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, u)
}

func (h Handlers) CreateAdmin(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	raw, ok := rawBody(c)
	if !ok {
		return
	}
	u, err := h.Users.CreateAdmin(c.Request.Context(), p, raw)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, u)
}

func (h Handlers) ListUsers(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	users, err := h.Users.List(c.Request.Context(), p, c.Query("sort"))
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

func (h Handlers) UpdateUser(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	raw, ok := rawBody(c)
	if !ok {
		return
	}
	u, err := h.Users.Update(c.Request.Context(), p, c.Param("id"), raw)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h Handlers) DeleteUser(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	if err := h.Users.Delete(c.Request.Context(), p, c.Param("id")); err != nil {
		writeErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h Handlers) ResetUserPassword(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	raw, ok := rawBody(c)
	if !ok {
		return
	}
	if err := h.Users.ResetPassword(c.Request.Context(), p, c.Param("id"), raw); err != nil {
		writeErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	Password        string `json:"password"`
}

func (h Handlers) ChangeOwnPassword(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.CurrentPassword == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "current_password and password required"})
		return
	}
	err := h.Users.ChangeOwnPassword(c.Request.Context(), p, req.CurrentPassword,
		map[string]string{"password": req.Password})
	if err != nil {
		writeErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// --- Travellers ---

func (h Handlers) CreateTraveller(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	raw, ok := rawBody(c)
	if !ok {
		return
	}
	t, err := h.Travellers.Create(c.Request.Context(), p, raw)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

func (h Handlers) GetTraveller(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	t, err := h.Travellers.Get(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h Handlers) UpdateTraveller(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	raw, ok := rawBody(c)
	if !ok {
		return
	}
	t, err := h.Travellers.Update(c.Request.Context(), p, c.Param("id"), raw)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h Handlers) DeleteTraveller(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	if err := h.Travellers.Delete(c.Request.Context(), p, c.Param("id")); err != nil {
		writeErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h Handlers) SearchTravellers(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	results, err := h.Travellers.Search(c.Request.Context(), p, c.Query("q"))
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"travellers": results})
}

// --- Scooters ---

func (h Handlers) CreateScooter(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	raw, ok := rawBody(c)
	if !ok {
		return
	}
	sc, err := h.Scooters.Create(c.Request.Context(), p, raw)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, sc)
}

func (h Handlers) GetScooter(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	sc, err := h.Scooters.Get(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, sc)
}

func (h Handlers) ListScooters(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	fleet, err := h.Scooters.List(c.Request.Context(), p, c.Query("sort"))
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"scooters": fleet})
}

func (h Handlers) UpdateScooter(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	raw, ok := rawBody(c)
	if !ok {
		return
	}
	sc, err := h.Scooters.Update(c.Request.Context(), p, c.Param("id"), raw)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, sc)
}

func (h Handlers) UpdateScooterMaintenance(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	raw, ok := rawBody(c)
	if !ok {
		return
	}
	sc, err := h.Scooters.UpdateMaintenance(c.Request.Context(), p, c.Param("id"), raw)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, sc)
}

func (h Handlers) DeleteScooter(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	if err := h.Scooters.Delete(c.Request.Context(), p, c.Param("id")); err != nil {
		writeErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
