package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof" // register /debug/pprof handlers
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	echoapi "github.com/vocsite/chuo/apps/api/echo"
	"github.com/vocsite/chuo/core"
	"github.com/vocsite/chuo/core/news"
	"github.com/vocsite/chuo/core/session"
	"github.com/vocsite/chuo/core/teacher"
	dummygw "github.com/vocsite/chuo/gateway/dummy"
	postgresgw "github.com/vocsite/chuo/gateway/postgres"
	logsvc "github.com/vocsite/chuo/services/logger"
	gcsstore "github.com/vocsite/chuo/storage/object/gcs"
	memstore "github.com/vocsite/chuo/storage/object/memory"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	std := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	var logger core.Logger
	if conf.Debug {
		logger = logsvc.NewStdLogger(std)
	} else {
		logger = logsvc.NewRollbarLogger(std, conf)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deps, err := setUpGateway(ctx, conf, logger)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up gateway: %v", err), err)
	}
	defer deps.close()

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	news.InitValidators(validate, translator)

	sessions := session.NewStore(deps.auth, deps.directory, logger)
	teacherSvc := teacher.NewService(deps.teacherRepo, deps.objects, validate, logger)
	newsSvc := news.NewService(deps.newsRepo, deps.objects, sessions, validate, logger)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	if err = sessions.Start(ctx); err != nil {
		logger.Fatal(fmt.Sprintf("starting session store: %v", err), err)
	}
	if err = teacherSvc.Start(ctx); err != nil {
		// a failed initial load leaves an empty mirror; the process stays up
		logger.Error(fmt.Sprintf("loading teacher roster: %v", err), err)
	}
	if err = newsSvc.Start(ctx); err != nil {
		logger.Error(fmt.Sprintf("loading news roster: %v", err), err)
	}
	defer teacherSvc.Stop()
	defer newsSvc.Stop()

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:       conf,
			Logger:     logger,
			Sessions:   sessions,
			TeacherSvc: teacherSvc,
			NewsSvc:    newsSvc,
			Translator: translator,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err = server.Shutdown(shutdownCtx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

type gatewayDeps struct {
	auth        core.AuthGateway
	directory   core.AdminDirectory
	teacherRepo teacher.Repository
	newsRepo    news.Repository
	objects     core.ObjectStorage
	close       func()
}

// setUpGateway picks the backing gateway: the postgres adapter in deployed
// environments, the in-memory one in DEV so the process runs standalone.
func setUpGateway(ctx context.Context, conf *core.Config, logger core.Logger) (*gatewayDeps, error) {
	if conf.Debug {
		db, err := dummygw.Open()
		if err != nil {
			return nil, err
		}
		return &gatewayDeps{
			auth:        db,
			directory:   db,
			teacherRepo: dummygw.NewTeacherRepository(db),
			newsRepo:    dummygw.NewNewsRepository(db),
			objects:     memstore.New(conf.Storage.Bucket),
			close:       func() {},
		}, nil
	}

	if err := postgresgw.CreateIfNotExist(conf); err != nil {
		return nil, err
	}
	db, err := postgresgw.Open(conf)
	if err != nil {
		return nil, err
	}
	if err = postgresgw.Migrate(db.DB); err != nil {
		_ = db.Close()
		return nil, err
	}

	objects, err := gcsstore.New(ctx, conf)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &gatewayDeps{
		auth:        postgresgw.NewAuthGateway(db, conf),
		directory:   postgresgw.NewAdminDirectory(db),
		teacherRepo: postgresgw.NewTeacherRepository(db, conf, logger),
		newsRepo:    postgresgw.NewNewsRepository(db, conf, logger),
		objects:     objects,
		close: func() {
			_ = objects.Close()
			_ = db.Close()
		},
	}, nil
}

func newTranslator() ut.Translator {
	lang := en.New()
	uni := ut.New(lang, lang)
	translator, _ := uni.GetTranslator("en")
	return translator
}
