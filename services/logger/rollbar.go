package logsvc

import (
	"log"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/vocsite/chuo/core"
)

type RollbarLogger struct {
	std *log.Logger
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.Rollbar.Token)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	return &RollbarLogger{std: std}
}

func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// expected fmt: msg | error, map[string]interface{}, core.Session
func (l RollbarLogger) prepare(msg string, extras []interface{}) []interface{} {
	var sessSet bool
	newExtras := make([]interface{}, 0, len(extras)+1)
	newExtras = append(newExtras, msg)
	for _, extra := range extras {
		// attribute the report to the acting session
		if sess, ok := extra.(core.Session); ok {
			if !sessSet { // only set one
				rollbar.SetPerson(sess.IdentityID, sess.Name, sess.Email)
				sessSet = true
			}
		} else {
			newExtras = append(newExtras, extra)
		}
	}
	if !sessSet {
		rollbar.ClearPerson()
	}
	return newExtras
}

func (l RollbarLogger) print(msg string, extras []interface{}) {
	l.std.Println(msg)
	for _, extra := range extras {
		l.std.Printf("%+v\n", extra)
	}
}

func (l RollbarLogger) Debug(msg string, extras ...interface{}) {
	rollbar.Debug(l.prepare(msg, extras)...)
	l.print(msg, extras)
}

func (l RollbarLogger) Info(msg string, extras ...interface{}) {
	rollbar.Info(l.prepare(msg, extras)...)
	l.print(msg, extras)
}

func (l RollbarLogger) Error(msg string, extras ...interface{}) {
	rollbar.Error(l.prepare(msg, extras)...)
	l.print(msg, extras)
}

func (l RollbarLogger) Fatal(msg string, extras ...interface{}) {
	rollbar.Critical(l.prepare(msg, extras)...)
	l.print(msg, extras)
	l.std.Fatal(msg)
}
