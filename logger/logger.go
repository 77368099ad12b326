package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

var (
	// Logger is the global log instance.
	Logger *logrus.Logger
)

// LogConfig carries the logging section of the server config.
type LogConfig struct {
	LogPath  string
	LogLevel string
}

// CustomFormatter renders one line per entry: timestamp, 4-char level,
// caller, message.
type CustomFormatter struct {
	TimestampFormat string
}

func (f *CustomFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	timestamp := entry.Time.Format("15:04:05 MST 2006/01/02")

	level := strings.ToUpper(entry.Level.String())
	if len(level) > 4 {
		level = level[:4]
	}

	logMsg := fmt.Sprintf("[%s] [%s] (%s) %s\n",
		timestamp,
		level,
		getCaller(),
		entry.Message)

	return []byte(logMsg), nil
}

// getCaller walks past the logging frames to the actual call site.
func getCaller() string {
	for i := 2; i < 20; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}

		if strings.Contains(file, "/logrus/") ||
			strings.Contains(file, "/logger.go") ||
			strings.Contains(file, "sirupsen") ||
			strings.Contains(file, "/entry.go") {
			continue
		}

		funcName := runtime.FuncForPC(pc).Name()
		fileName := filepath.Base(file)
		return fmt.Sprintf("%s:%s:%d", fileName, funcName, line)
	}

	return "unknown:unknown:0"
}

func parseLogLevel(level string) logrus.Level {
	switch strings.ToLower(level) {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.InfoLevel
	}
}

// InitLogger initializes the global logger from config.
func InitLogger(config LogConfig) error {
	customFormatter := &CustomFormatter{
		TimestampFormat: "15:04:05 MST 2006/01/02",
	}

	Logger = logrus.New()
	Logger.SetFormatter(customFormatter)
	Logger.SetLevel(parseLogLevel(config.LogLevel))
	Logger.SetOutput(os.Stdout)

	if config.LogPath != "" {
		f, err := openLogFile(config.LogPath)
		if err != nil {
			return err
		}
		Logger.SetOutput(f)
	}
	return nil
}

func openLogFile(logPath string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return nil, err
	}
	return os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
}

func std() *logrus.Logger {
	if Logger == nil {
		InitLogger(LogConfig{LogLevel: "info"})
	}
	return Logger
}

func Info(args ...interface{}) {
	std().Info(args...)
}

func Infof(format string, args ...interface{}) {
	std().Infof(format, args...)
}

func Debug(args ...interface{}) {
	std().Debug(args...)
}

func Debugf(format string, args ...interface{}) {
	std().Debugf(format, args...)
}

func Warn(args ...interface{}) {
	std().Warn(args...)
}

func Warnf(format string, args ...interface{}) {
	std().Warnf(format, args...)
}

func Error(args ...interface{}) {
	std().Error(args...)
}

func Errorf(format string, args ...interface{}) {
	std().Errorf(format, args...)
}

func Printf(format string, args ...interface{}) {
	std().Infof(format, args...)
}

func Println(args ...interface{}) {
	std().Infoln(args...)
}
