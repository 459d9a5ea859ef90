package news

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/vocsite/chuo/core"
)

// Publication states
const (
	StatusPublished = "published"
	StatusDraft     = "draft"
)

// Categories (closed enum)
const (
	CategoryPengumuman = "pengumuman"
	CategoryPrestasi   = "prestasi"
	CategoryKegiatan   = "kegiatan"
	CategoryAkademik   = "akademik"
	CategoryUmum       = "umum"
)

var Categories = []string{
	CategoryPengumuman,
	CategoryPrestasi,
	CategoryKegiatan,
	CategoryAkademik,
	CategoryUmum,
}

// NewsItem is one article of the news roster. Ids and timestamps are
// assigned by the gateway at insert time; the author is attributed from the
// resolved identity of the session performing the insert.
type NewsItem struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Summary   string    `json:"summary"`
	Body      string    `json:"body"`
	Status    string    `json:"status"`
	Category  string    `json:"category"`
	Tags      []string  `json:"tags,omitempty"`
	ImagePath string    `json:"image_path,omitempty"`
	AuthorID  string    `json:"author_id,omitempty"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

func (n NewsItem) RecordID() string           { return n.ID }
func (n NewsItem) RecordCreatedAt() time.Time { return n.CreatedAt }

func (n NewsItem) IsPublished() bool { return n.Status == StatusPublished }

type NewNewsItem struct {
	Title    string   `json:"title" validate:"required"`
	Summary  string   `json:"summary" validate:"required"`
	Body     string   `json:"body" validate:"required"`
	Status   string   `json:"status" validate:"required,newsstatus"`
	Category string   `json:"category" validate:"required,newscategory"`
	Tags     []string `json:"tags"`
}

func (nn *NewNewsItem) Clean() {
	nn.Title = core.CleanString(nn.Title)
	nn.Summary = core.CleanString(nn.Summary)
	nn.Status = core.CleanString(nn.Status, true)
	nn.Category = core.CleanString(nn.Category, true)
}

func (nn *NewNewsItem) Validate(validate *validator.Validate) error {
	nn.Clean()
	return validate.Struct(nn)
}

// UpdateNewsItem is a targeted field patch; zero-valued fields are left
// untouched.
type UpdateNewsItem struct {
	Title     string   `json:"title"`
	Summary   string   `json:"summary"`
	Body      string   `json:"body"`
	Status    string   `json:"status" validate:"omitempty,newsstatus"`
	Category  string   `json:"category" validate:"omitempty,newscategory"`
	Tags      []string `json:"tags"`
	ImagePath *string  `json:"-"`
}

func (un *UpdateNewsItem) Clean() {
	un.Title = core.CleanString(un.Title)
	un.Summary = core.CleanString(un.Summary)
	un.Status = core.CleanString(un.Status, true)
	un.Category = core.CleanString(un.Category, true)
}

func (un *UpdateNewsItem) Validate(validate *validator.Validate) error {
	un.Clean()
	return validate.Struct(un)
}
