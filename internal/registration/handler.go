package registration

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/gravitate-health/user-orchestrator/internal/platform/auth"
	"github.com/gravitate-health/user-orchestrator/internal/upstream"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/user", h.CreateUser)
	api.GET("/user", h.GetUser)
	api.PATCH("/user/:id", h.UpdateUser)
	api.DELETE("/user/:id", h.DeleteUser)
	api.POST("/reset-password", h.ResetPassword)
}

func (h *Handler) CreateUser(c echo.Context) error {
	var sub Submission
	if err := c.Bind(&sub); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "provide a valid JSON body")
	}
	result, err := h.svc.Create(c.Request().Context(), sub)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, result)
}

func (h *Handler) GetUser(c echo.Context) error {
	callerID, err := auth.CallerID(c.Request().Header.Get(echo.HeaderAuthorization))
	if err != nil {
		return httpError(err)
	}
	result, err := h.svc.Read(c.Request().Context(), callerID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) UpdateUser(c echo.Context) error {
	callerID, err := auth.CallerID(c.Request().Header.Get(echo.HeaderAuthorization))
	if err != nil {
		return httpError(err)
	}
	var req UpdateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "provide a valid JSON body")
	}
	result, err := h.svc.Update(c.Request().Context(), callerID, c.Param("id"), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) DeleteUser(c echo.Context) error {
	callerID, err := auth.CallerID(c.Request().Header.Get(echo.HeaderAuthorization))
	if err != nil {
		return httpError(err)
	}
	result, err := h.svc.Delete(c.Request().Context(), callerID, c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) ResetPassword(c echo.Context) error {
	sent, err := h.svc.ResetPassword(c.Request().Context(), c.QueryParam("email"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"sent": sent})
}

// httpError maps a taxonomy error to the client-facing status. Validation
// failures raised locally, before any remote call, are plain 400s; a backend
// rejecting a forwarded payload is a 422 so callers can tell the two apart.
func httpError(err error) *echo.HTTPError {
	var ue *upstream.Error
	if !errors.As(err, &ue) {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	status := upstream.HTTPStatus(ue.Kind)
	if ue.Kind == upstream.KindValidation && (ue.Backend == localBackend || ue.Backend == "caller") {
		status = http.StatusBadRequest
	}
	return echo.NewHTTPError(status, ue.Message)
}
