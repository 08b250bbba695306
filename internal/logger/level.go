package logger

// Level is a log level.
type Level int

// Log levels.
const (
	Debug Level = iota
	Info
	Warn
	Error
)

// Destination is a log destination.
type Destination int

// Log destinations.
const (
	DestinationStdout Destination = iota
	DestinationFile
	DestinationSyslog
)

// Writer is implemented by any object that can receive log lines.
type Writer interface {
	Log(Level, string, ...interface{})
}
