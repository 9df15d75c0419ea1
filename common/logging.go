package common

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type LogLevel int32

const (
	DEBUG_INFO_DETAIL     LogLevel = 1
	DEBUG_INFO            LogLevel = 2
	BUFFER_INTERNAL_STATE LogLevel = 4
	INFO                  LogLevel = 8
	WARN                  LogLevel = 16
	ERROR                 LogLevel = 32
	FATAL                 LogLevel = 64
)

// LogLevelSetting is the mask of enabled levels
var LogLevelSetting = INFO | WARN | ERROR | FATAL

// Logger is the process wide logrus logger every package writes through
var Logger = newLogger()

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return l
}

// ShPrintf prints a message when logLevel is enabled in LogLevelSetting
func ShPrintf(logLevel LogLevel, fmtStl string, a ...interface{}) {
	if logLevel&LogLevelSetting == 0 {
		return
	}
	msg := strings.TrimRight(fmtStl, "\n")
	switch {
	case logLevel >= FATAL:
		Logger.Errorf("FATAL: "+msg, a...)
	case logLevel >= ERROR:
		Logger.Errorf(msg, a...)
	case logLevel >= WARN:
		Logger.Warnf(msg, a...)
	case logLevel >= INFO:
		Logger.Infof(msg, a...)
	default:
		Logger.Debugf(msg, a...)
	}
}

// SetLogLevel sets both LogLevelSetting and the logrus level from a config name
func SetLogLevel(name string) error {
	switch strings.ToLower(name) {
	case "debug":
		LogLevelSetting = DEBUG_INFO | BUFFER_INTERNAL_STATE | INFO | WARN | ERROR | FATAL
		Logger.SetLevel(logrus.DebugLevel)
	case "", "info":
		LogLevelSetting = INFO | WARN | ERROR | FATAL
		Logger.SetLevel(logrus.InfoLevel)
	case "warn":
		LogLevelSetting = WARN | ERROR | FATAL
		Logger.SetLevel(logrus.WarnLevel)
	case "error":
		LogLevelSetting = ERROR | FATAL
		Logger.SetLevel(logrus.ErrorLevel)
	default:
		return errors.Errorf("unknown log level %q", name)
	}
	return nil
}
