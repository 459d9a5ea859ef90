package echoapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	echoapi "github.com/vocsite/chuo/apps/api/echo"
	"github.com/vocsite/chuo/core"
	"github.com/vocsite/chuo/core/news"
	"github.com/vocsite/chuo/core/session"
	"github.com/vocsite/chuo/core/teacher"
	dummygw "github.com/vocsite/chuo/gateway/dummy"
	memstore "github.com/vocsite/chuo/storage/object/memory"
	testutil "github.com/vocsite/chuo/tests"
)

type testApp struct {
	app      *echoapi.Server
	db       *dummygw.DB
	sessions *session.Store
	newsSvc  *news.Service
}

func newTestApp(t *testing.T, gateWaitBudget time.Duration) *testApp {
	return newSeededApp(t, gateWaitBudget, nil)
}

// newSeededApp runs seed between opening the gateway and starting the
// services, so seeded rows are part of the initial load.
func newSeededApp(t *testing.T, gateWaitBudget time.Duration, seed func(db *dummygw.DB)) *testApp {
	t.Helper()

	db, err := dummygw.Open()
	if err != nil {
		t.Fatalf("dummygw.Open() failed: %v", err)
	}
	if seed != nil {
		seed(db)
	}

	conf := &core.Config{
		Debug:    true,
		TestMode: true,
		Env:      "TEST",
		AppName:  "Chuo",
		Server: core.ServerConfig{
			GateWaitBudget:  gateWaitBudget,
			AdminPathPrefix: "/admin",
		},
	}
	logger := testutil.NewLogger()

	validate := validator.New()
	lang := en.New()
	uni := ut.New(lang, lang)
	translator, _ := uni.GetTranslator("en")
	core.InitValidators(validate, translator)
	news.InitValidators(validate, translator)

	sessions := session.NewStore(db, db, logger)
	objs := memstore.New(conf.Storage.Bucket)
	teacherSvc := teacher.NewService(dummygw.NewTeacherRepository(db), objs, validate, logger)
	newsSvc := news.NewService(dummygw.NewNewsRepository(db), objs, sessions, validate, logger)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err = sessions.Start(ctx); err != nil {
		t.Fatalf("sessions.Start() failed: %v", err)
	}
	if err = teacherSvc.Start(ctx); err != nil {
		t.Fatalf("teacherSvc.Start() failed: %v", err)
	}
	t.Cleanup(teacherSvc.Stop)
	if err = newsSvc.Start(ctx); err != nil {
		t.Fatalf("newsSvc.Start() failed: %v", err)
	}
	t.Cleanup(newsSvc.Stop)

	app := echoapi.NewServer(echoapi.ServerDeps{
		Conf:       conf,
		Logger:     logger,
		Sessions:   sessions,
		TeacherSvc: teacherSvc,
		NewsSvc:    newsSvc,
		Translator: translator,
	})
	return &testApp{app: app, db: db, sessions: sessions, newsSvc: newsSvc}
}

func (ta *testApp) get(path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	ta.app.ServeHTTP(rec, req)
	return rec
}

func (ta *testApp) postForm(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := httptest.NewRecorder()
	ta.app.ServeHTTP(rec, req)
	return rec
}

func (ta *testApp) registerAdmin(t *testing.T, email, secret string) string {
	t.Helper()
	id, err := ta.db.RegisterAccount(email, "Bu Ani", secret)
	assert.NoError(t, err)
	ta.db.GrantRole(id, session.RoleAdmin)
	return id
}

func (ta *testApp) login(t *testing.T, email, secret string) {
	t.Helper()
	rec := ta.postForm("/login", url.Values{"identity": {email}, "secret": {secret}})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func waitForState(t *testing.T, store *session.Store, want session.State) {
	t.Helper()
	testutil.Eventually(t, 2*time.Second, func() bool {
		return store.State().State == want
	})
}

func TestHome(t *testing.T) {
	ta := newTestApp(t, 2*time.Second)
	rec := ta.get("/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to Chuo!", rec.Body.String())
}

func TestGateRedirectsAnonymous(t *testing.T) {
	ta := newTestApp(t, 2*time.Second)

	rec := ta.get("/admin/teachers")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login?next=%2Fadmin%2Fteachers", rec.Header().Get(echo.HeaderLocation))
}

func TestGateDeniesWhenResolutionHangs(t *testing.T) {
	// the wait for the store is bounded; a role lookup that never answers
	// within the budget means a redirect, not a hung request
	ta := newTestApp(t, 50*time.Millisecond)

	release := make(chan struct{})
	defer close(release)
	ta.db.RoleLookupHook = func(string) { <-release }

	ta.registerAdmin(t, "ani@vocsite.sch.id", "s3cret")
	ta.login(t, "ani@vocsite.sch.id", "s3cret")

	rec := ta.get("/admin/session")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get(echo.HeaderLocation), "/login?next="))
}

func TestGateServesAdmin(t *testing.T) {
	ta := newTestApp(t, 2*time.Second)

	ta.registerAdmin(t, "ani@vocsite.sch.id", "s3cret")
	ta.login(t, "ani@vocsite.sch.id", "s3cret")

	// the gate absorbs the resolution delay inside its budget
	rec := ta.get("/admin/session")
	assert.Equal(t, http.StatusOK, rec.Code)

	var sess echoapi.SessionResponse
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))
	assert.Equal(t, "authenticated", sess.State)
	if assert.NotNil(t, sess.Identity) {
		assert.Equal(t, "ani@vocsite.sch.id", sess.Identity.Email)
		assert.True(t, sess.Identity.IsAdmin())
	}

	rec = ta.get("/admin/teachers")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGateRedirectsNonAdmin(t *testing.T) {
	ta := newTestApp(t, 2*time.Second)

	// authenticated but never granted a role
	_, err := ta.db.RegisterAccount("guru@vocsite.sch.id", "Pak Guru", "s3cret")
	assert.NoError(t, err)
	ta.login(t, "guru@vocsite.sch.id", "s3cret")
	waitForState(t, ta.sessions, session.Authenticated)

	// denied towards the landing page, never the login page
	rec := ta.get("/admin/news")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/", rec.Header().Get(echo.HeaderLocation))
}

func TestLoginFailure(t *testing.T) {
	ta := newTestApp(t, 2*time.Second)
	ta.registerAdmin(t, "ani@vocsite.sch.id", "s3cret")

	for name, form := range map[string]url.Values{
		"wrong secret":    {"identity": {"ani@vocsite.sch.id"}, "secret": {"nope"}},
		"unknown account": {"identity": {"ghost@vocsite.sch.id"}, "secret": {"s3cret"}},
	} {
		t.Run(name, func(t *testing.T) {
			rec := ta.postForm("/login", form)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestLoginNextRedirect(t *testing.T) {
	ta := newTestApp(t, 2*time.Second)
	ta.registerAdmin(t, "ani@vocsite.sch.id", "s3cret")

	rec := ta.postForm("/login?next=%2Fadmin%2Fsession", url.Values{
		"identity": {"ani@vocsite.sch.id"},
		"secret":   {"s3cret"},
	})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/admin/session", rec.Header().Get(echo.HeaderLocation))
}

func TestPublicNewsHidesDrafts(t *testing.T) {
	now := time.Now().UTC()
	pub := testutil.NewNewsItem("Pengumuman PPDB", news.StatusPublished, now)
	draft := testutil.NewNewsItem("Draft Rapat", news.StatusDraft, now.Add(-time.Minute))
	ta := newSeededApp(t, 2*time.Second, func(db *dummygw.DB) {
		db.SeedNewsItem(pub)
		db.SeedNewsItem(draft)
	})
	assert.Len(t, ta.newsSvc.List(), 2)

	rec := ta.get("/news")
	assert.Equal(t, http.StatusOK, rec.Code)
	var items []echoapi.NewsItemResponse
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
	if assert.Len(t, items, 1) {
		assert.Equal(t, pub.ID, items[0].ID)
	}

	assert.Equal(t, http.StatusOK, ta.get("/news/"+pub.ID).Code)
	assert.Equal(t, http.StatusNotFound, ta.get("/news/"+draft.ID).Code)
}

func TestStaleSessionClearedOnPublicRoute(t *testing.T) {
	ta := newTestApp(t, 2*time.Second)
	ta.registerAdmin(t, "ani@vocsite.sch.id", "s3cret")
	ta.login(t, "ani@vocsite.sch.id", "s3cret")
	waitForState(t, ta.sessions, session.Authenticated)

	// an identity observed on the public surface is signed out
	rec := ta.get("/news")
	assert.Equal(t, http.StatusOK, rec.Code)
	waitForState(t, ta.sessions, session.Anonymous)
}
