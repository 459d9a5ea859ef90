package echoapi

import (
	"net/http"
	"net/url"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/vocsite/chuo/core"
	"github.com/vocsite/chuo/core/session"
)

const (
	loginRoute   = "/login"
	landingRoute = "/"
)

// gateMiddleware guards the protected surface. Per request it decides one of
// three outcomes: wait (store still resolving, within the wait budget),
// serve, or redirect. The budget bounds waiting only; it never cancels or
// retries the underlying role lookup, and the decision is re-made on every
// request since the store may resolve a moment later.
func gateMiddleware(store *session.Store, conf *core.Config) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			deadline := time.Now().Add(conf.Server.GateWaitBudget)

			for {
				// subscribe before snapshotting so a transition in between
				// is never missed
				changed := store.Changed()
				snap := store.State()

				if !snap.Loading() {
					switch {
					case snap.Identity == nil:
						return redirectToLogin(ctx)
					case !snap.Identity.IsAdmin():
						// authenticated but not authorized: the public
						// landing page, never the login page
						return ctx.Redirect(http.StatusFound, landingRoute)
					default:
						return next(ctx)
					}
				}

				remaining := time.Until(deadline)
				if remaining <= 0 {
					// budget exhausted while still loading: deny rather than
					// spin forever on a dead subscription
					return redirectToLogin(ctx)
				}

				timer := time.NewTimer(remaining)
				select {
				case <-changed:
					timer.Stop()
				case <-timer.C:
				case <-ctx.Request().Context().Done():
					timer.Stop()
					return ctx.Request().Context().Err()
				}
			}
		}
	}
}

// redirectToLogin preserves the originally requested location; the login
// flow may honor it for a post-login return.
func redirectToLogin(ctx echo.Context) error {
	next := ctx.Request().URL.RequestURI()
	return ctx.Redirect(http.StatusFound, loginRoute+"?next="+url.QueryEscape(next))
}

// staleSessionMiddleware applies session.StaleSessionPolicy to the public
// surface: a resolved identity observed outside the protected prefix is
// proactively signed out.
func staleSessionMiddleware(store *session.Store, conf *core.Config) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			store.EnforceStalePolicy(ctx.Request().Context(), ctx.Request().URL.Path, conf.Server.AdminPathPrefix)
			return next(ctx)
		}
	}
}
