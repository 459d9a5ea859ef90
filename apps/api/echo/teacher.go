package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/vocsite/chuo/core"
	"github.com/vocsite/chuo/core/teacher"
)

type teacherApi struct {
	svc *teacher.Service
}

func registerTeacherAPI(g *echo.Group, svc *teacher.Service) {
	api := teacherApi{svc: svc}

	tg := g.Group("/teachers")
	tg.GET("", api.list)
	tg.POST("", api.create)
	tg.GET("/:id", api.retrieve)
	tg.PUT("/:id", api.update)
	tg.DELETE("/:id", api.destroy)
}

// CollectionResponse lets callers tell empty-still-loading apart from
// empty-with-no-data and empty-after-a-failed-load.
type CollectionResponse[T any] struct {
	Items     []T    `json:"items"`
	Loading   bool   `json:"loading"`
	LoadError string `json:"load_error,omitempty"`
}

func (api *teacherApi) list(ctx echo.Context) error {
	resp := CollectionResponse[TeacherResponse]{
		Items:   newTeacherResponses(api.svc.List(), api.svc),
		Loading: api.svc.Loading(),
	}
	if err := api.svc.LoadErr(); err != nil {
		resp.LoadError = err.Error()
	}
	return ctx.JSON(http.StatusOK, resp)
}

func (api *teacherApi) retrieve(ctx echo.Context) error {
	t, ok := api.svc.Get(ctx.Param("id"))
	if !ok {
		return errHttpNotFound
	}
	return ctx.JSON(http.StatusOK, newTeacherResponse(t, api.svc))
}

func (api *teacherApi) create(ctx echo.Context) error {
	data, photo, closePhoto, err := bindNewTeacher(ctx)
	if err != nil {
		return errors.Wrap(err, "binding to NewTeacher")
	}
	defer closePhoto()

	t, err := api.svc.Create(ctx.Request().Context(), data, photo)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, newTeacherResponse(t, api.svc))
}

func (api *teacherApi) update(ctx echo.Context) error {
	data, photo, closePhoto, err := bindUpdateTeacher(ctx)
	if err != nil {
		return errors.Wrap(err, "binding to UpdateTeacher")
	}
	defer closePhoto()

	t, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), data, photo)
	if err != nil {
		return err
	}
	// a 200 is the confirmed-success signal callers navigate away on
	return ctx.JSON(http.StatusOK, newTeacherResponse(t, api.svc))
}

func (api *teacherApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return err
	}
	// the mirror entry is removed by the change feed, not here
	return ctx.NoContent(http.StatusNoContent)
}

func bindNewTeacher(ctx echo.Context) (teacher.NewTeacher, *core.Upload, func(), error) {
	var data teacher.NewTeacher

	photo, closePhoto, err := bindUpload(ctx, "photo")
	if err != nil {
		return data, nil, closePhoto, err
	}

	if isMultipart(ctx) {
		data = teacher.NewTeacher{
			Name:       ctx.FormValue("name"),
			NIP:        ctx.FormValue("nip"),
			Title:      ctx.FormValue("title"),
			Subjects:   splitList(ctx.FormValue("subjects")),
			Programs:   splitList(ctx.FormValue("programs")),
			Registered: ctx.FormValue("registered") == "true",
		}
		return data, photo, closePhoto, nil
	}

	if err := ctx.Bind(&data); err != nil {
		closePhoto()
		return data, nil, func() {}, err
	}
	return data, photo, closePhoto, nil
}

func bindUpdateTeacher(ctx echo.Context) (teacher.UpdateTeacher, *core.Upload, func(), error) {
	var data teacher.UpdateTeacher

	photo, closePhoto, err := bindUpload(ctx, "photo")
	if err != nil {
		return data, nil, closePhoto, err
	}

	if isMultipart(ctx) {
		data = teacher.UpdateTeacher{
			Name:     ctx.FormValue("name"),
			NIP:      ctx.FormValue("nip"),
			Subjects: splitList(ctx.FormValue("subjects")),
			Programs: splitList(ctx.FormValue("programs")),
		}
		if title := ctx.FormValue("title"); title != "" {
			data.Title = &title
		}
		if reg := ctx.FormValue("registered"); reg != "" {
			val := reg == "true"
			data.Registered = &val
		}
		return data, photo, closePhoto, nil
	}

	if err := ctx.Bind(&data); err != nil {
		closePhoto()
		return data, nil, func() {}, err
	}
	return data, photo, closePhoto, nil
}
