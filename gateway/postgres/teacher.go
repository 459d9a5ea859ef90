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
	"github.com/vocsite/chuo/core/teacher"
)

const teacherChannel = "teacher_changes"

type teacherRepository struct {
	db     *sqlx.DB
	conf   *core.Config
	logger core.Logger
}

func NewTeacherRepository(db *sqlx.DB, conf *core.Config, logger core.Logger) teacher.Repository {
	return &teacherRepository{db: db, conf: conf, logger: logger}
}

type dbTeacher struct {
	ID         string         `db:"id" json:"id"`
	Name       string         `db:"name" json:"name"`
	NIP        string         `db:"nip" json:"nip"`
	Title      sql.NullString `db:"title" json:"-"`
	TitleJSON  *string        `db:"-" json:"title"`
	Subjects   pq.StringArray `db:"subjects" json:"subjects"`
	Programs   pq.StringArray `db:"programs" json:"programs"`
	PhotoPath  sql.NullString `db:"photo_path" json:"-"`
	PhotoJSON  *string        `db:"-" json:"photo_path"`
	Registered bool           `db:"registered" json:"registered"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at" json:"updated_at"`
}

func (row dbTeacher) model() teacher.Teacher {
	t := teacher.Teacher{
		ID:         row.ID,
		Name:       row.Name,
		NIP:        row.NIP,
		Subjects:   row.Subjects,
		Programs:   row.Programs,
		Registered: row.Registered,
		CreatedAt:  row.CreatedAt.UTC(),
		UpdatedAt:  row.UpdatedAt.UTC(),
	}
	if row.Title.Valid {
		t.Title = row.Title.String
	} else if row.TitleJSON != nil {
		t.Title = *row.TitleJSON
	}
	if row.PhotoPath.Valid {
		t.PhotoPath = row.PhotoPath.String
	} else if row.PhotoJSON != nil {
		t.PhotoPath = *row.PhotoJSON
	}
	return t
}

const teacherColumns = `id, name, nip, title, subjects, programs, photo_path, registered, created_at, updated_at`

func (repo *teacherRepository) Query(ctx context.Context) ([]teacher.Teacher, error) {
	var rows []dbTeacher
	q := `SELECT ` + teacherColumns + ` FROM teacher ORDER BY created_at DESC`
	if err := repo.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying teachers")
	}
	out := make([]teacher.Teacher, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.model())
	}
	return out, nil
}

func (repo *teacherRepository) Changes(ctx context.Context) (<-chan livecache.Event[teacher.Teacher], error) {
	return changeFeed(ctx, repo.conf, teacherChannel, decodeTeacherRow, repo.logger)
}

// decodeTeacherRow parses a row_to_json payload. Array columns arrive as
// JSON arrays, so only the JSON tags matter here.
func decodeTeacherRow(raw json.RawMessage) (teacher.Teacher, error) {
	var row struct {
		dbTeacher
		Subjects []string `json:"subjects"`
		Programs []string `json:"programs"`
	}
	if err := json.Unmarshal(raw, &row); err != nil {
		return teacher.Teacher{}, err
	}
	row.dbTeacher.Subjects = pq.StringArray(row.Subjects)
	row.dbTeacher.Programs = pq.StringArray(row.Programs)
	return row.dbTeacher.model(), nil
}

func (repo *teacherRepository) Insert(ctx context.Context, t teacher.Teacher) (teacher.Teacher, error) {
	var row dbTeacher
	q := `
		INSERT INTO teacher (name, nip, title, subjects, programs, photo_path, registered)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, NULLIF($6, ''), $7)
		RETURNING ` + teacherColumns
	err := repo.db.GetContext(
		ctx, &row, q,
		t.Name, t.NIP, t.Title, pq.Array(t.Subjects), pq.Array(t.Programs), t.PhotoPath, t.Registered,
	)
	if err != nil {
		return teacher.Teacher{}, errors.Wrap(err, "inserting teacher")
	}
	return row.model(), nil
}

func (repo *teacherRepository) Update(ctx context.Context, id string, patch teacher.UpdateTeacher) (teacher.Teacher, error) {
	sets := []string{"updated_at = now()"}
	args := []interface{}{id}
	arg := func(v interface{}) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if patch.Name != "" {
		sets = append(sets, "name = "+arg(patch.Name))
	}
	if patch.NIP != "" {
		sets = append(sets, "nip = "+arg(patch.NIP))
	}
	if patch.Title != nil {
		sets = append(sets, "title = NULLIF("+arg(*patch.Title)+", '')")
	}
	if patch.Subjects != nil {
		sets = append(sets, "subjects = "+arg(pq.Array(patch.Subjects)))
	}
	if patch.Programs != nil {
		sets = append(sets, "programs = "+arg(pq.Array(patch.Programs)))
	}
	if patch.PhotoPath != nil {
		sets = append(sets, "photo_path = NULLIF("+arg(*patch.PhotoPath)+", '')")
	}
	if patch.Registered != nil {
		sets = append(sets, "registered = "+arg(*patch.Registered))
	}

	var row dbTeacher
	q := `UPDATE teacher SET ` + strings.Join(sets, ", ") + ` WHERE id = $1 RETURNING ` + teacherColumns
	if err := repo.db.GetContext(ctx, &row, q, args...); err != nil {
		if err == sql.ErrNoRows {
			return teacher.Teacher{}, core.ErrNotFound
		}
		return teacher.Teacher{}, errors.Wrap(err, "updating teacher")
	}
	return row.model(), nil
}

func (repo *teacherRepository) Delete(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM teacher WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting teacher")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return nil
}
