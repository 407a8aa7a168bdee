package log

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	errSubloggerConfigIsNil  = errors.New("sublogger config is nil")
	errUnhandledOutputWriter = errors.New("unhandled output writer")
	errSubLoggerNotFound     = errors.New("sub logger not found")
	errFileNameNotSet        = errors.New("file output requested without a filename")
)

func getWriters(s *SubLoggerConfig, fileName string) (zapcore.WriteSyncer, error) {
	if s == nil {
		return nil, errSubloggerConfigIsNil
	}
	outputWriters := strings.Split(s.Output, "|")
	syncers := make([]zapcore.WriteSyncer, 0, len(outputWriters))
	for x := range outputWriters {
		switch strings.ToLower(strings.TrimSpace(outputWriters[x])) {
		case "stdout", "console":
			syncers = append(syncers, zapcore.Lock(os.Stdout))
		case "stderr":
			syncers = append(syncers, zapcore.Lock(os.Stderr))
		case "file":
			if fileName == "" {
				return nil, errFileNameNotSet
			}
			f, _, err := zap.Open(fileName)
			if err != nil {
				return nil, err
			}
			syncers = append(syncers, f)
		default:
			return nil, fmt.Errorf("%w: %s", errUnhandledOutputWriter, outputWriters[x])
		}
	}
	return zapcore.NewMultiWriteSyncer(syncers...), nil
}

// GenDefaultSettings return struct with known sane/working logger settings
func GenDefaultSettings() Config {
	enabled, showName := true, true
	return Config{
		Enabled: &enabled,
		SubLoggerConfig: SubLoggerConfig{
			Level:  defaultLevels,
			Output: "console",
		},
		AdvancedSettings: advancedSettings{
			ShowLogSystemName: &showName,
			TimeStampFormat:   timestampFormat,
		},
	}
}

func newEncoder(c *Config) zapcore.Encoder {
	encCfg := zap.NewDevelopmentEncoderConfig()
	format := c.AdvancedSettings.TimeStampFormat
	if format == "" {
		format = timestampFormat
	}
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout(format)
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	encCfg.CallerKey = zapcore.OmitKey
	if c.AdvancedSettings.ShowLogSystemName == nil || !*c.AdvancedSettings.ShowLogSystemName {
		encCfg.NameKey = zapcore.OmitKey
	}
	if c.AdvancedSettings.JSONEncoding {
		return zapcore.NewJSONEncoder(encCfg)
	}
	return zapcore.NewConsoleEncoder(encCfg)
}

func buildLogger(c *Config, s *SubLoggerConfig) (*zap.Logger, error) {
	ws, err := getWriters(s, c.FileName)
	if err != nil {
		return nil, err
	}
	return zap.New(zapcore.NewCore(newEncoder(c), ws, zapcore.DebugLevel)), nil
}

// SetupGlobalLogger configures every sub logger from the supplied config,
// then applies the per sub logger overrides
func SetupGlobalLogger(c *Config) error {
	if c == nil {
		return errSubloggerConfigIsNil
	}
	mu.Lock()
	defer mu.Unlock()
	if c.Enabled != nil && !*c.Enabled {
		root = zap.NewNop()
		for _, sl := range subLoggers {
			sl.logger = root
			sl.levels = Levels{}
		}
		globalLogConfig = *c
		return nil
	}
	l, err := buildLogger(c, &c.SubLoggerConfig)
	if err != nil {
		return err
	}
	root = l
	for name, sl := range subLoggers {
		sl.logger = root.Named(name)
		sl.levels = splitLevel(c.Level)
	}
	for x := range c.SubLoggers {
		if err := configureSubLogger(c, &c.SubLoggers[x]); err != nil {
			return err
		}
	}
	globalLogConfig = *c
	return nil
}

func configureSubLogger(c *Config, s *SubLoggerConfig) error {
	name := strings.ToUpper(s.Name)
	sl, found := subLoggers[name]
	if !found {
		return fmt.Errorf("%w: %v", errSubLoggerNotFound, s.Name)
	}
	if s.Output != "" {
		l, err := buildLogger(c, s)
		if err != nil {
			return err
		}
		sl.logger = l.Named(name)
	}
	if s.Level != "" {
		sl.levels = splitLevel(s.Level)
	}
	return nil
}

// Sync flushes any buffered log entries
func Sync() error {
	mu.RLock()
	defer mu.RUnlock()
	return root.Sync()
}

func splitLevel(level string) (l Levels) {
	enabledLevels := strings.Split(level, "|")
	for x := range enabledLevels {
		switch strings.ToUpper(strings.TrimSpace(enabledLevels[x])) {
		case "DEBUG":
			l.Debug = true
		case "INFO":
			l.Info = true
		case "WARN":
			l.Warn = true
		case "ERROR":
			l.Error = true
		}
	}
	return
}

func registerNewSubLogger(subLogger string) *SubLogger {
	name := strings.ToUpper(subLogger)
	temp := &SubLogger{
		name:   name,
		levels: splitLevel(defaultLevels),
		logger: root.Named(name),
	}
	subLoggers[name] = temp
	return temp
}

// register all loggers at package init()
func init() {
	Global = registerNewSubLogger("LOG")
	Engine = registerNewSubLogger("ENGINE")
	Feed = registerNewSubLogger("FEED")
	Dispatch = registerNewSubLogger("DISPATCH")
	SimBroker = registerNewSubLogger("SIMBROKER")
	Strategy = registerNewSubLogger("STRATEGY")
	ConfigMgr = registerNewSubLogger("CONFIG")
	TaskMgr = registerNewSubLogger("TASKMANAGER")

	if l, err := buildLogger(&globalLogConfig, &globalLogConfig.SubLoggerConfig); err == nil {
		root = l
		for name, sl := range subLoggers {
			sl.logger = root.Named(name)
		}
	}
}
