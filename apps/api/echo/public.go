package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/vocsite/chuo/core/news"
	"github.com/vocsite/chuo/core/session"
	"github.com/vocsite/chuo/core/teacher"
)

// registerPublicAPI exposes the read-only site surface: the staff roster and
// published articles, both served straight from the in-memory mirrors.
func registerPublicAPI(g *echo.Group, teacherSvc *teacher.Service, newsSvc *news.Service) {
	api := publicApi{teacherSvc: teacherSvc, newsSvc: newsSvc}

	g.GET("/teachers", api.teachers)
	g.GET("/news", api.news)
	g.GET("/news/:id", api.newsItem)
}

type publicApi struct {
	teacherSvc *teacher.Service
	newsSvc    *news.Service
}

func (api *publicApi) teachers(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, newTeacherResponses(api.teacherSvc.List(), api.teacherSvc))
}

func (api *publicApi) news(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, newNewsItemResponses(api.newsSvc.Published(), api.newsSvc))
}

func (api *publicApi) newsItem(ctx echo.Context) error {
	n, ok := api.newsSvc.Get(ctx.Param("id"))
	if !ok || !n.IsPublished() {
		return errHttpNotFound
	}
	return ctx.JSON(http.StatusOK, newNewsItemResponse(n, api.newsSvc))
}

// registerAdminAPI wires the protected surface; the gate middleware on the
// enclosing group has already decided access.
func registerAdminAPI(g *echo.Group, sessions *session.Store, teacherSvc *teacher.Service, newsSvc *news.Service) {
	g.GET("/session", func(ctx echo.Context) error {
		snap := sessions.State()
		return ctx.JSON(http.StatusOK, SessionResponse{
			State:    snap.State.String(),
			Identity: snap.Identity,
		})
	})

	registerTeacherAPI(g, teacherSvc)
	registerNewsAPI(g, newsSvc)
}
