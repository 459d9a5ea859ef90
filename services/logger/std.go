package logsvc

import (
	"log"

	"github.com/vocsite/chuo/core"
)

// StdLogger writes to the standard logger only; DEV and TEST runs use it so
// nothing is reported upstream.
type StdLogger struct {
	std *log.Logger
}

var _ core.Logger = (*StdLogger)(nil)

func NewStdLogger(std *log.Logger) *StdLogger {
	return &StdLogger{std: std}
}

func (l StdLogger) print(msg string, extras []interface{}) {
	l.std.Println(msg)
	for _, extra := range extras {
		l.std.Printf("%+v\n", extra)
	}
}

func (l StdLogger) Debug(msg string, extras ...interface{}) { l.print(msg, extras) }
func (l StdLogger) Info(msg string, extras ...interface{})  { l.print(msg, extras) }
func (l StdLogger) Error(msg string, extras ...interface{}) { l.print(msg, extras) }
func (l StdLogger) Fatal(msg string, extras ...interface{}) {
	l.print(msg, extras)
	l.std.Fatal(msg)
}
