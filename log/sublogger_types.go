package log

import "go.uber.org/zap"

// Global vars related to the logger package
var (
	subLoggers = map[string]*SubLogger{}

	Global    *SubLogger
	Engine    *SubLogger
	Feed      *SubLogger
	Dispatch  *SubLogger
	SimBroker *SubLogger
	Strategy  *SubLogger
	ConfigMgr *SubLogger
	TaskMgr   *SubLogger
)

// SubLogger defines a named logging channel with its own levels and outputs
type SubLogger struct {
	name   string
	levels Levels
	logger *zap.Logger
}

// Fields carries structured key/value pairs for a single log line
type Fields struct {
	sl     *SubLogger
	fields []zap.Field
}
