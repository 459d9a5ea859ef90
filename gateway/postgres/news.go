package postgresgw

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/vocsite/chuo/core"
	"github.com/vocsite/chuo/core/livecache"
	"github.com/vocsite/chuo/core/news"
)

const newsChannel = "news_item_changes"

type newsRepository struct {
	db     *sqlx.DB
	conf   *core.Config
	logger core.Logger
}

func NewNewsRepository(db *sqlx.DB, conf *core.Config, logger core.Logger) news.Repository {
	return &newsRepository{db: db, conf: conf, logger: logger}
}

type dbNewsItem struct {
	ID         string         `db:"id" json:"id"`
	Title      string         `db:"title" json:"title"`
	Summary    string         `db:"summary" json:"summary"`
	Body       string         `db:"body" json:"body"`
	Status     string         `db:"status" json:"status"`
	Category   string         `db:"category" json:"category"`
	Tags       pq.StringArray `db:"tags" json:"-"`
	ImagePath  sql.NullString `db:"image_path" json:"-"`
	ImageJSON  *string        `db:"-" json:"image_path"`
	AuthorID   sql.NullString `db:"author_id" json:"-"`
	AuthorJSON *string        `db:"-" json:"author_id"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at" json:"updated_at"`
}

func (row dbNewsItem) model() news.NewsItem {
	n := news.NewsItem{
		ID:        row.ID,
		Title:     row.Title,
		Summary:   row.Summary,
		Body:      row.Body,
		Status:    row.Status,
		Category:  row.Category,
		Tags:      row.Tags,
		CreatedAt: row.CreatedAt.UTC(),
		UpdatedAt: row.UpdatedAt.UTC(),
	}
	if row.ImagePath.Valid {
		n.ImagePath = row.ImagePath.String
	} else if row.ImageJSON != nil {
		n.ImagePath = *row.ImageJSON
	}
	if row.AuthorID.Valid {
		n.AuthorID = row.AuthorID.String
	} else if row.AuthorJSON != nil {
		n.AuthorID = *row.AuthorJSON
	}
	return n
}

const newsColumns = `id, title, summary, body, status, category, tags, image_path, author_id, created_at, updated_at`

func (repo *newsRepository) Query(ctx context.Context) ([]news.NewsItem, error) {
	var rows []dbNewsItem
	q := `SELECT ` + newsColumns + ` FROM news_item ORDER BY created_at DESC`
	if err := repo.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying news items")
	}
	out := make([]news.NewsItem, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.model())
	}
	return out, nil
}

func (repo *newsRepository) Changes(ctx context.Context) (<-chan livecache.Event[news.NewsItem], error) {
	return changeFeed(ctx, repo.conf, newsChannel, decodeNewsRow, repo.logger)
}

func decodeNewsRow(raw json.RawMessage) (news.NewsItem, error) {
	var row struct {
		dbNewsItem
		Tags []string `json:"tags"`
	}
	if err := json.Unmarshal(raw, &row); err != nil {
		return news.NewsItem{}, err
	}
	row.dbNewsItem.Tags = pq.StringArray(row.Tags)
	return row.dbNewsItem.model(), nil
}

func (repo *newsRepository) Insert(ctx context.Context, n news.NewsItem) (news.NewsItem, error) {
	var row dbNewsItem
	q := `
		INSERT INTO news_item (title, summary, body, status, category, tags, image_path, author_id)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), NULLIF($8, '')::uuid)
		RETURNING ` + newsColumns
	err := repo.db.GetContext(
		ctx, &row, q,
		n.Title, n.Summary, n.Body, n.Status, n.Category, pq.Array(n.Tags), n.ImagePath, n.AuthorID,
	)
	if err != nil {
		return news.NewsItem{}, errors.Wrap(err, "inserting news item")
	}
	return row.model(), nil
}

func (repo *newsRepository) Update(ctx context.Context, id string, patch news.UpdateNewsItem) (news.NewsItem, error) {
	sets := []string{"updated_at = now()"}
	args := []interface{}{id}
	arg := func(v interface{}) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if patch.Title != "" {
		sets = append(sets, "title = "+arg(patch.Title))
	}
	if patch.Summary != "" {
		sets = append(sets, "summary = "+arg(patch.Summary))
	}
	if patch.Body != "" {
		sets = append(sets, "body = "+arg(patch.Body))
	}
	if patch.Status != "" {
		sets = append(sets, "status = "+arg(patch.Status))
	}
	if patch.Category != "" {
		sets = append(sets, "category = "+arg(patch.Category))
	}
	if patch.Tags != nil {
		sets = append(sets, "tags = "+arg(pq.Array(patch.Tags)))
	}
	if patch.ImagePath != nil {
		sets = append(sets, "image_path = NULLIF("+arg(*patch.ImagePath)+", '')")
	}

	var row dbNewsItem
	q := `UPDATE news_item SET ` + strings.Join(sets, ", ") + ` WHERE id = $1 RETURNING ` + newsColumns
	if err := repo.db.GetContext(ctx, &row, q, args...); err != nil {
		if err == sql.ErrNoRows {
			return news.NewsItem{}, core.ErrNotFound
		}
		return news.NewsItem{}, errors.Wrap(err, "updating news item")
	}
	return row.model(), nil
}

func (repo *newsRepository) Delete(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM news_item WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting news item")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return nil
}
