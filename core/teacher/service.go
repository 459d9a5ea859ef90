package teacher

import (
	"context"
	"fmt"
	"path"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/vocsite/chuo/core"
	"github.com/vocsite/chuo/core/livecache"
)

var errNIPTaken = core.NewValidationError(
	errors.New("a teacher with this NIP already exists"),
	core.FieldError{Field: "nip", Error: "a teacher with this NIP already exists"},
)

type (
	// Repository is the gateway side of the teacher collection. Query returns
	// rows newest-first; Insert assigns the id and timestamps and returns the
	// authoritative row.
	Repository interface {
		livecache.Source[Teacher]
		Insert(ctx context.Context, t Teacher) (Teacher, error)
		Update(ctx context.Context, id string, patch UpdateTeacher) (Teacher, error)
		Delete(ctx context.Context, id string) error
	}

	Service struct {
		repo     Repository
		objs     core.ObjectStorage
		validate *validator.Validate
		logger   core.Logger
		cache    *livecache.Cache[Teacher]
	}
)

func NewService(repo Repository, objs core.ObjectStorage, validate *validator.Validate, logger core.Logger) *Service {
	return &Service{
		repo:     repo,
		objs:     objs,
		validate: validate,
		logger:   logger,
		cache:    livecache.New[Teacher](repo, logger),
	}
}

// Start loads the roster mirror and begins consuming the change feed.
func (svc *Service) Start(ctx context.Context) error { return svc.cache.Start(ctx) }
func (svc *Service) Stop()                           { svc.cache.Stop() }

func (svc *Service) List() []Teacher               { return svc.cache.List() }
func (svc *Service) Get(id string) (Teacher, bool) { return svc.cache.Get(id) }
func (svc *Service) Loading() bool                 { return svc.cache.Loading() }
func (svc *Service) LoadErr() error                { return svc.cache.LoadErr() }

func (svc *Service) PublicURL(objPath string) string {
	if objPath == "" {
		return ""
	}
	return svc.objs.PublicURL(objPath)
}

// Create uploads the photo first (an upload failure aborts before any row
// mutation, so no roster row ever points at missing media), inserts through
// the gateway, and feeds the authoritative row through the cache's reducer.
// The change-feed confirmation for the same row de-duplicates by id.
func (svc *Service) Create(ctx context.Context, nt NewTeacher, photo *core.Upload) (Teacher, error) {
	if err := nt.Validate(svc.validate); err != nil {
		return Teacher{}, err
	}
	// the gateway enforces NIP uniqueness too; checking the mirror first
	// turns the common case into a field error instead of a raw insert
	// failure
	if svc.nipTaken(nt.NIP, "") {
		return Teacher{}, errNIPTaken
	}

	t := Teacher{
		Name:       nt.Name,
		NIP:        nt.NIP,
		Title:      nt.Title,
		Subjects:   nt.Subjects,
		Programs:   nt.Programs,
		Registered: nt.Registered,
	}

	if photo != nil {
		objPath := objectPath(photo.Filename)
		if err := svc.objs.Upload(ctx, objPath, photo.Body, photo.ContentType); err != nil {
			return Teacher{}, &core.UploadError{Path: objPath, Err: err}
		}
		t.PhotoPath = objPath
	}

	t, err := svc.repo.Insert(ctx, t)
	if err != nil {
		return Teacher{}, errors.Wrap(err, "inserting teacher")
	}
	svc.cache.Apply(livecache.Event[Teacher]{Type: livecache.EventInsert, Row: t})
	return t, nil
}

// Update patches the row through the gateway and splices the returned row in
// place. A replacement photo removes the previous object best-effort: a
// failed removal is logged, never a reason to block the update.
func (svc *Service) Update(ctx context.Context, id string, ut UpdateTeacher, photo *core.Upload) (Teacher, error) {
	if err := ut.Validate(svc.validate); err != nil {
		return Teacher{}, err
	}
	if ut.NIP != "" && svc.nipTaken(ut.NIP, id) {
		return Teacher{}, errNIPTaken
	}

	if photo != nil {
		if prev, ok := svc.cache.Get(id); ok && prev.PhotoPath != "" {
			if err := svc.objs.Remove(ctx, prev.PhotoPath); err != nil {
				svc.logger.Error(fmt.Sprintf("removing stale photo %s: %v", prev.PhotoPath, err), err)
			}
		}
		objPath := objectPath(photo.Filename)
		if err := svc.objs.Upload(ctx, objPath, photo.Body, photo.ContentType); err != nil {
			return Teacher{}, &core.UploadError{Path: objPath, Err: err}
		}
		ut.PhotoPath = &objPath
	}

	t, err := svc.repo.Update(ctx, id, ut)
	if err != nil {
		return Teacher{}, errors.Wrap(err, "updating teacher")
	}
	svc.cache.Apply(livecache.Event[Teacher]{Type: livecache.EventUpdate, Row: t})
	return t, nil
}

// Delete issues the gateway delete only; the local removal arrives through
// the change feed, the same as a delete performed by any other session.
func (svc *Service) Delete(ctx context.Context, id string) error {
	return errors.Wrap(svc.repo.Delete(ctx, id), "deleting teacher")
}

// nipTaken reports whether another mirrored row already carries nip.
func (svc *Service) nipTaken(nip, excludeID string) bool {
	for _, t := range svc.cache.List() {
		if t.NIP == nip && t.ID != excludeID {
			return true
		}
	}
	return false
}

func objectPath(filename string) string {
	return "teachers/" + uuid.New().String() + path.Ext(filename)
}
