package dummygw

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vocsite/chuo/core/teacher"
)

// A subscriber cancelling while a push is in flight must never crash the
// publisher: channel close and delivery share db.mu.
func TestSessionFeedUnsubscribeRace(t *testing.T) {
	db, err := Open()
	assert.NoError(t, err)
	_, err = db.RegisterAccount("ani@vocsite.sch.id", "Bu Ani", "s3cret")
	assert.NoError(t, err)

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
				_, _ = db.Exchange(context.Background(), "ani@vocsite.sch.id", "s3cret")
			}
		}
	}()

	for i := 0; i < 200; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		ch, serr := db.SessionChanges(ctx)
		assert.NoError(t, serr)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range ch {
			}
		}()
		cancel()
	}

	close(done)
	wg.Wait()
}

func TestTeacherFeedUnsubscribeRace(t *testing.T) {
	db, err := Open()
	assert.NoError(t, err)
	repo := NewTeacherRepository(db)

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
				_, _ = repo.Insert(context.Background(), teacher.Teacher{Name: "Pak Budi", NIP: "196512241989031003"})
			}
		}
	}()

	for i := 0; i < 200; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		ch, serr := repo.Changes(ctx)
		assert.NoError(t, serr)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range ch {
			}
		}()
		cancel()
	}

	close(done)
	wg.Wait()
}
