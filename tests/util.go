package testutil

import (
	"io"
	"log"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/vocsite/chuo/core"
	"github.com/vocsite/chuo/core/news"
	"github.com/vocsite/chuo/core/teacher"
	logsvc "github.com/vocsite/chuo/services/logger"
)

// NewLogger returns a quiet logger for tests.
func NewLogger() core.Logger {
	return logsvc.NewStdLogger(log.New(io.Discard, "", 0))
}

// Eventually polls cond until it holds or the timeout elapses. Change feeds
// deliver asynchronously, so assertions on mirror state go through here.
func Eventually(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met within timeout")
}

// NewTeacher builds a seeded roster row with a gateway-style id.
func NewTeacher(name, nip string, createdAt time.Time) teacher.Teacher {
	createdAt = createdAt.UTC()
	return teacher.Teacher{
		ID:        uuid.New().String(),
		Name:      name,
		NIP:       nip,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

// NewNewsItem builds a seeded article with a gateway-style id.
func NewNewsItem(title, status string, createdAt time.Time) news.NewsItem {
	createdAt = createdAt.UTC()
	return news.NewsItem{
		ID:        uuid.New().String(),
		Title:     title,
		Summary:   "summary",
		Body:      "body",
		Status:    status,
		Category:  news.CategoryUmum,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}
