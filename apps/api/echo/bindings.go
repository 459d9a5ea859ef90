package echoapi

import (
	"mime/multipart"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/vocsite/chuo/core"
	"github.com/vocsite/chuo/core/news"
	"github.com/vocsite/chuo/core/session"
	"github.com/vocsite/chuo/core/teacher"
)

type (
	LoginRequest struct {
		Identity string `json:"identity" form:"identity"`
		Secret   string `json:"secret" form:"secret"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}

	SessionResponse struct {
		State    string                    `json:"state"`
		Identity *session.ResolvedIdentity `json:"identity,omitempty"`
	}

	TeacherResponse struct {
		teacher.Teacher
		PhotoURL string `json:"photo_url,omitempty"`
	}

	NewsItemResponse struct {
		news.NewsItem
		ImageURL string `json:"image_url,omitempty"`
	}
)

func newTeacherResponse(t teacher.Teacher, svc *teacher.Service) TeacherResponse {
	return TeacherResponse{Teacher: t, PhotoURL: svc.PublicURL(t.PhotoPath)}
}

func newTeacherResponses(ts []teacher.Teacher, svc *teacher.Service) []TeacherResponse {
	out := make([]TeacherResponse, 0, len(ts))
	for _, t := range ts {
		out = append(out, newTeacherResponse(t, svc))
	}
	return out
}

func newNewsItemResponse(n news.NewsItem, svc *news.Service) NewsItemResponse {
	return NewsItemResponse{NewsItem: n, ImageURL: svc.PublicURL(n.ImagePath)}
}

func newNewsItemResponses(ns []news.NewsItem, svc *news.Service) []NewsItemResponse {
	out := make([]NewsItemResponse, 0, len(ns))
	for _, n := range ns {
		out = append(out, newNewsItemResponse(n, svc))
	}
	return out
}

func isMultipart(ctx echo.Context) bool {
	return strings.HasPrefix(ctx.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm)
}

// bindUpload extracts an optional multipart file attachment; JSON requests
// simply have none.
func bindUpload(ctx echo.Context, field string) (*core.Upload, func(), error) {
	if !isMultipart(ctx) {
		return nil, func() {}, nil
	}
	fh, err := ctx.FormFile(field)
	if err != nil {
		// multipart form without the file field is a request without an upload
		return nil, func() {}, nil
	}
	return openUpload(fh)
}

func openUpload(fh *multipart.FileHeader) (*core.Upload, func(), error) {
	f, err := fh.Open()
	if err != nil {
		return nil, func() {}, err
	}
	up := &core.Upload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Body:        f,
	}
	return up, func() { _ = f.Close() }, nil
}

// splitList turns a comma-separated form value into a trimmed slice.
func splitList(val string) []string {
	if val == "" {
		return nil
	}
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
