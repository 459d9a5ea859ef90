package news

import (
	"context"
	"fmt"
	"path"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/vocsite/chuo/core"
	"github.com/vocsite/chuo/core/livecache"
	"github.com/vocsite/chuo/core/session"
)

type (
	// Repository is the gateway side of the news collection.
	Repository interface {
		livecache.Source[NewsItem]
		Insert(ctx context.Context, n NewsItem) (NewsItem, error)
		Update(ctx context.Context, id string, patch UpdateNewsItem) (NewsItem, error)
		Delete(ctx context.Context, id string) error
	}

	Service struct {
		repo     Repository
		objs     core.ObjectStorage
		sessions *session.Store
		validate *validator.Validate
		logger   core.Logger
		cache    *livecache.Cache[NewsItem]
	}
)

func NewService(
	repo Repository,
	objs core.ObjectStorage,
	sessions *session.Store,
	validate *validator.Validate,
	logger core.Logger,
) *Service {
	return &Service{
		repo:     repo,
		objs:     objs,
		sessions: sessions,
		validate: validate,
		logger:   logger,
		cache:    livecache.New[NewsItem](repo, logger),
	}
}

func (svc *Service) Start(ctx context.Context) error { return svc.cache.Start(ctx) }
func (svc *Service) Stop()                           { svc.cache.Stop() }

func (svc *Service) List() []NewsItem { return svc.cache.List() }

// Published filters the mirror down to publicly visible articles.
func (svc *Service) Published() []NewsItem {
	items := svc.cache.List()
	out := make([]NewsItem, 0, len(items))
	for _, n := range items {
		if n.IsPublished() {
			out = append(out, n)
		}
	}
	return out
}

func (svc *Service) Get(id string) (NewsItem, bool) { return svc.cache.Get(id) }
func (svc *Service) Loading() bool                  { return svc.cache.Loading() }
func (svc *Service) LoadErr() error                 { return svc.cache.LoadErr() }

func (svc *Service) PublicURL(objPath string) string {
	if objPath == "" {
		return ""
	}
	return svc.objs.PublicURL(objPath)
}

// Create mirrors teacher.Service.Create: image first (failure aborts before
// any row exists), then the gateway insert, then the authoritative row is
// reduced into the cache; the feed confirmation de-duplicates by id. The
// article is attributed to the current resolved identity, when there is one.
func (svc *Service) Create(ctx context.Context, nn NewNewsItem, image *core.Upload) (NewsItem, error) {
	if err := nn.Validate(svc.validate); err != nil {
		return NewsItem{}, err
	}

	n := NewsItem{
		Title:    nn.Title,
		Summary:  nn.Summary,
		Body:     nn.Body,
		Status:   nn.Status,
		Category: nn.Category,
		Tags:     nn.Tags,
	}
	if snap := svc.sessions.State(); snap.Identity != nil {
		n.AuthorID = snap.Identity.IdentityID
	}

	if image != nil {
		objPath := objectPath(image.Filename)
		if err := svc.objs.Upload(ctx, objPath, image.Body, image.ContentType); err != nil {
			return NewsItem{}, &core.UploadError{Path: objPath, Err: err}
		}
		n.ImagePath = objPath
	}

	n, err := svc.repo.Insert(ctx, n)
	if err != nil {
		return NewsItem{}, errors.Wrap(err, "inserting news item")
	}
	svc.cache.Apply(livecache.Event[NewsItem]{Type: livecache.EventInsert, Row: n})
	return n, nil
}

func (svc *Service) Update(ctx context.Context, id string, un UpdateNewsItem, image *core.Upload) (NewsItem, error) {
	if err := un.Validate(svc.validate); err != nil {
		return NewsItem{}, err
	}

	if image != nil {
		if prev, ok := svc.cache.Get(id); ok && prev.ImagePath != "" {
			if err := svc.objs.Remove(ctx, prev.ImagePath); err != nil {
				svc.logger.Error(fmt.Sprintf("removing stale image %s: %v", prev.ImagePath, err), err)
			}
		}
		objPath := objectPath(image.Filename)
		if err := svc.objs.Upload(ctx, objPath, image.Body, image.ContentType); err != nil {
			return NewsItem{}, &core.UploadError{Path: objPath, Err: err}
		}
		un.ImagePath = &objPath
	}

	n, err := svc.repo.Update(ctx, id, un)
	if err != nil {
		return NewsItem{}, errors.Wrap(err, "updating news item")
	}
	svc.cache.Apply(livecache.Event[NewsItem]{Type: livecache.EventUpdate, Row: n})
	return n, nil
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	return errors.Wrap(svc.repo.Delete(ctx, id), "deleting news item")
}

func objectPath(filename string) string {
	return "news/" + uuid.New().String() + path.Ext(filename)
}
