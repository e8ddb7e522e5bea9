package types

type RunMode string

const (
	// ModeLocal runs the API and the temporal worker in one process
	ModeLocal  RunMode = "local"
	ModeAPI    RunMode = "api"
	ModeWorker RunMode = "worker"
)

type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)
