package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/vocsite/chuo/core/session"
)

type authApi struct {
	sessions *session.Store
}

func registerAuthAPI(g *echo.Group, sessions *session.Store) {
	api := authApi{sessions: sessions}

	g.POST("/login", api.login)
	g.POST("/logout", api.logout)
}

// login forwards the credential exchange to the gateway; a failure is always
// the same generic message. It never touches the store directly: the session
// push resulting from a successful exchange is what flips the store state.
func (api *authApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}

	if err := api.sessions.Login(ctx.Request().Context(), data.Identity, data.Secret); err != nil {
		return err
	}

	// optional post-login return to the originally requested location
	if next := ctx.QueryParam("next"); next != "" && next[0] == '/' {
		return ctx.Redirect(http.StatusSeeOther, next)
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "logged in"})
}

func (api *authApi) logout(ctx echo.Context) error {
	if err := api.sessions.Logout(ctx.Request().Context()); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "logged out"})
}
