package log

import (
	"sync"

	"go.uber.org/zap"
)

const (
	timestampFormat = "02/01/2006 15:04:05"
	defaultLevels   = "INFO|DEBUG|WARN|ERROR"
)

var (
	globalLogConfig = GenDefaultSettings()
	// root is the zap logger every sub logger is derived from
	root = zap.NewNop()

	// read/write mutex for logger
	mu = &sync.RWMutex{}
)

// Config holds configuration settings for the logger
type Config struct {
	Enabled *bool `json:"enabled"`
	SubLoggerConfig
	FileName         string            `json:"filename,omitempty"`
	AdvancedSettings advancedSettings  `json:"advanced-settings"`
	SubLoggers       []SubLoggerConfig `json:"subloggers,omitempty"`
}

type advancedSettings struct {
	ShowLogSystemName *bool  `json:"show-log-system-name"`
	TimeStampFormat   string `json:"timestamp-format"`
	JSONEncoding      bool   `json:"json-encoding"`
}

// SubLoggerConfig holds sub logger configuration settings
type SubLoggerConfig struct {
	Name   string `json:"name,omitempty"`
	Level  string `json:"level"`
	Output string `json:"output"`
}

// Levels flags for each sub logger type
type Levels struct {
	Info, Debug, Warn, Error bool
}
