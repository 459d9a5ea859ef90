package core

// Logger is the application-wide logging contract. Implementations live in
// services/logger; extras may carry any context worth reporting upstream
// (errors, maps, the acting session).
type Logger interface {
	Debug(msg string, extras ...interface{})
	Info(msg string, extras ...interface{})
	Error(msg string, extras ...interface{})
	Fatal(msg string, extras ...interface{})
}
