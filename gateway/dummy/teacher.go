package dummygw

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/vocsite/chuo/core"
	"github.com/vocsite/chuo/core/livecache"
	"github.com/vocsite/chuo/core/teacher"
)

type teacherRepository struct {
	db *DB
}

func NewTeacherRepository(db *DB) teacher.Repository {
	return &teacherRepository{db: db}
}

func (repo *teacherRepository) Query(_ context.Context) ([]teacher.Teacher, error) {
	if repo.db.TeacherQueryErr != nil {
		return nil, repo.db.TeacherQueryErr
	}
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	rows := make([]teacher.Teacher, 0, len(repo.db.teachers))
	for _, t := range repo.db.teachers {
		rows = append(rows, *t)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].CreatedAt.After(rows[j].CreatedAt) })
	return rows, nil
}

func (repo *teacherRepository) Changes(ctx context.Context) (<-chan livecache.Event[teacher.Teacher], error) {
	repo.db.mu.Lock()
	repo.db.subSeq++
	key := repo.db.subSeq
	ch := make(chan livecache.Event[teacher.Teacher], feedBuffer)
	repo.db.teacherSubs[key] = ch
	repo.db.mu.Unlock()

	go func() {
		<-ctx.Done()
		repo.db.mu.Lock()
		delete(repo.db.teacherSubs, key)
		close(ch)
		repo.db.mu.Unlock()
	}()
	return ch, nil
}

func (repo *teacherRepository) Insert(_ context.Context, t teacher.Teacher) (teacher.Teacher, error) {
	if repo.db.TeacherWriteErr != nil {
		return teacher.Teacher{}, repo.db.TeacherWriteErr
	}
	repo.db.mu.Lock()
	now := time.Now().UTC()
	t.ID = uuid.New().String()
	t.CreatedAt = now
	t.UpdatedAt = now
	repo.db.teachers[t.ID] = &t
	repo.broadcast(livecache.Event[teacher.Teacher]{Type: livecache.EventInsert, Row: t})
	repo.db.mu.Unlock()
	return t, nil
}

func (repo *teacherRepository) Update(_ context.Context, id string, patch teacher.UpdateTeacher) (teacher.Teacher, error) {
	if repo.db.TeacherWriteErr != nil {
		return teacher.Teacher{}, repo.db.TeacherWriteErr
	}
	repo.db.mu.Lock()
	orig, ok := repo.db.teachers[id]
	if !ok {
		repo.db.mu.Unlock()
		return teacher.Teacher{}, core.ErrNotFound
	}
	if patch.Name != "" {
		orig.Name = patch.Name
	}
	if patch.NIP != "" {
		orig.NIP = patch.NIP
	}
	if patch.Title != nil {
		orig.Title = *patch.Title
	}
	if patch.Subjects != nil {
		orig.Subjects = patch.Subjects
	}
	if patch.Programs != nil {
		orig.Programs = patch.Programs
	}
	if patch.PhotoPath != nil {
		orig.PhotoPath = *patch.PhotoPath
	}
	if patch.Registered != nil {
		orig.Registered = *patch.Registered
	}
	orig.UpdatedAt = time.Now().UTC()
	t := *orig
	repo.broadcast(livecache.Event[teacher.Teacher]{Type: livecache.EventUpdate, Row: t})
	repo.db.mu.Unlock()
	return t, nil
}

func (repo *teacherRepository) Delete(_ context.Context, id string) error {
	if repo.db.TeacherWriteErr != nil {
		return repo.db.TeacherWriteErr
	}
	repo.db.mu.Lock()
	t, ok := repo.db.teachers[id]
	if !ok {
		repo.db.mu.Unlock()
		return core.ErrNotFound
	}
	delete(repo.db.teachers, id)
	row := *t
	repo.broadcast(livecache.Event[teacher.Teacher]{Type: livecache.EventDelete, Row: row})
	repo.db.mu.Unlock()
	return nil
}

// broadcast delivers evt to every live subscriber. Callers hold db.mu, the
// same lock Changes closes channels under, so a send can never hit a closed
// channel. Subscribers drain without touching db.mu.
func (repo *teacherRepository) broadcast(evt livecache.Event[teacher.Teacher]) {
	for _, sub := range repo.db.teacherSubs {
		sub <- evt
	}
}
