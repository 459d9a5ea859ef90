package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/vocsite/chuo/core"
	"github.com/vocsite/chuo/core/news"
)

type newsApi struct {
	svc *news.Service
}

func registerNewsAPI(g *echo.Group, svc *news.Service) {
	api := newsApi{svc: svc}

	ng := g.Group("/news")
	ng.GET("", api.list)
	ng.POST("", api.create)
	ng.GET("/:id", api.retrieve)
	ng.PUT("/:id", api.update)
	ng.DELETE("/:id", api.destroy)
}

func (api *newsApi) list(ctx echo.Context) error {
	resp := CollectionResponse[NewsItemResponse]{
		Items:   newNewsItemResponses(api.svc.List(), api.svc),
		Loading: api.svc.Loading(),
	}
	if err := api.svc.LoadErr(); err != nil {
		resp.LoadError = err.Error()
	}
	return ctx.JSON(http.StatusOK, resp)
}

func (api *newsApi) retrieve(ctx echo.Context) error {
	n, ok := api.svc.Get(ctx.Param("id"))
	if !ok {
		return errHttpNotFound
	}
	return ctx.JSON(http.StatusOK, newNewsItemResponse(n, api.svc))
}

func (api *newsApi) create(ctx echo.Context) error {
	data, image, closeImage, err := bindNewNewsItem(ctx)
	if err != nil {
		return errors.Wrap(err, "binding to NewNewsItem")
	}
	defer closeImage()

	n, err := api.svc.Create(ctx.Request().Context(), data, image)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, newNewsItemResponse(n, api.svc))
}

func (api *newsApi) update(ctx echo.Context) error {
	data, image, closeImage, err := bindUpdateNewsItem(ctx)
	if err != nil {
		return errors.Wrap(err, "binding to UpdateNewsItem")
	}
	defer closeImage()

	n, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), data, image)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, newNewsItemResponse(n, api.svc))
}

func (api *newsApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func bindNewNewsItem(ctx echo.Context) (news.NewNewsItem, *core.Upload, func(), error) {
	var data news.NewNewsItem

	image, closeImage, err := bindUpload(ctx, "image")
	if err != nil {
		return data, nil, closeImage, err
	}

	if isMultipart(ctx) {
		data = news.NewNewsItem{
			Title:    ctx.FormValue("title"),
			Summary:  ctx.FormValue("summary"),
			Body:     ctx.FormValue("body"),
			Status:   ctx.FormValue("status"),
			Category: ctx.FormValue("category"),
			Tags:     splitList(ctx.FormValue("tags")),
		}
		return data, image, closeImage, nil
	}

	if err := ctx.Bind(&data); err != nil {
		closeImage()
		return data, nil, func() {}, err
	}
	return data, image, closeImage, nil
}

func bindUpdateNewsItem(ctx echo.Context) (news.UpdateNewsItem, *core.Upload, func(), error) {
	var data news.UpdateNewsItem

	image, closeImage, err := bindUpload(ctx, "image")
	if err != nil {
		return data, nil, closeImage, err
	}

	if isMultipart(ctx) {
		data = news.UpdateNewsItem{
			Title:    ctx.FormValue("title"),
			Summary:  ctx.FormValue("summary"),
			Body:     ctx.FormValue("body"),
			Status:   ctx.FormValue("status"),
			Category: ctx.FormValue("category"),
			Tags:     splitList(ctx.FormValue("tags")),
		}
		return data, image, closeImage, nil
	}

	if err := ctx.Bind(&data); err != nil {
		closeImage()
		return data, nil, func() {}, err
	}
	return data, image, closeImage, nil
}
