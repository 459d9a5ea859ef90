package dummygw

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/vocsite/chuo/core"
	"github.com/vocsite/chuo/core/livecache"
	"github.com/vocsite/chuo/core/news"
)

type newsRepository struct {
	db *DB
}

func NewNewsRepository(db *DB) news.Repository {
	return &newsRepository{db: db}
}

func (repo *newsRepository) Query(_ context.Context) ([]news.NewsItem, error) {
	if repo.db.NewsQueryErr != nil {
		return nil, repo.db.NewsQueryErr
	}
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	rows := make([]news.NewsItem, 0, len(repo.db.newsRows))
	for _, n := range repo.db.newsRows {
		rows = append(rows, *n)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].CreatedAt.After(rows[j].CreatedAt) })
	return rows, nil
}

func (repo *newsRepository) Changes(ctx context.Context) (<-chan livecache.Event[news.NewsItem], error) {
	repo.db.mu.Lock()
	repo.db.subSeq++
	key := repo.db.subSeq
	ch := make(chan livecache.Event[news.NewsItem], feedBuffer)
	repo.db.newsSubs[key] = ch
	repo.db.mu.Unlock()

	go func() {
		<-ctx.Done()
		repo.db.mu.Lock()
		delete(repo.db.newsSubs, key)
		close(ch)
		repo.db.mu.Unlock()
	}()
	return ch, nil
}

func (repo *newsRepository) Insert(_ context.Context, n news.NewsItem) (news.NewsItem, error) {
	if repo.db.NewsWriteErr != nil {
		return news.NewsItem{}, repo.db.NewsWriteErr
	}
	repo.db.mu.Lock()
	now := time.Now().UTC()
	n.ID = uuid.New().String()
	n.CreatedAt = now
	n.UpdatedAt = now
	repo.db.newsRows[n.ID] = &n
	repo.broadcast(livecache.Event[news.NewsItem]{Type: livecache.EventInsert, Row: n})
	repo.db.mu.Unlock()
	return n, nil
}

func (repo *newsRepository) Update(_ context.Context, id string, patch news.UpdateNewsItem) (news.NewsItem, error) {
	if repo.db.NewsWriteErr != nil {
		return news.NewsItem{}, repo.db.NewsWriteErr
	}
	repo.db.mu.Lock()
	orig, ok := repo.db.newsRows[id]
	if !ok {
		repo.db.mu.Unlock()
		return news.NewsItem{}, core.ErrNotFound
	}
	if patch.Title != "" {
		orig.Title = patch.Title
	}
	if patch.Summary != "" {
		orig.Summary = patch.Summary
	}
	if patch.Body != "" {
		orig.Body = patch.Body
	}
	if patch.Status != "" {
		orig.Status = patch.Status
	}
	if patch.Category != "" {
		orig.Category = patch.Category
	}
	if patch.Tags != nil {
		orig.Tags = patch.Tags
	}
	if patch.ImagePath != nil {
		orig.ImagePath = *patch.ImagePath
	}
	orig.UpdatedAt = time.Now().UTC()
	n := *orig
	repo.broadcast(livecache.Event[news.NewsItem]{Type: livecache.EventUpdate, Row: n})
	repo.db.mu.Unlock()
	return n, nil
}

func (repo *newsRepository) Delete(_ context.Context, id string) error {
	if repo.db.NewsWriteErr != nil {
		return repo.db.NewsWriteErr
	}
	repo.db.mu.Lock()
	n, ok := repo.db.newsRows[id]
	if !ok {
		repo.db.mu.Unlock()
		return core.ErrNotFound
	}
	delete(repo.db.newsRows, id)
	row := *n
	repo.broadcast(livecache.Event[news.NewsItem]{Type: livecache.EventDelete, Row: row})
	repo.db.mu.Unlock()
	return nil
}

// broadcast delivers evt to every live subscriber. Callers hold db.mu, the
// same lock Changes closes channels under, so a send can never hit a closed
// channel. Subscribers drain without touching db.mu.
func (repo *newsRepository) broadcast(evt livecache.Event[news.NewsItem]) {
	for _, sub := range repo.db.newsSubs {
		sub <- evt
	}
}
