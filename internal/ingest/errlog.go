package ingest

import (
	"io"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/roach88/chronicle/internal/config"
)

// newErrorLogger builds the side error log for one storage root: an
// append-only rotating file, never the process's stdout or stderr. The
// logger itself must not be able to fail ingestion, so construction always
// succeeds; in the worst case entries are discarded.
func newErrorLogger(root string) *logrus.Logger {
	lg := logrus.New()
	lg.SetLevel(logrus.ErrorLevel)
	lg.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02T15:04:05Z07:00",
		DisableColors:   true,
	})

	if root == "" {
		lg.SetOutput(io.Discard)
		return lg
	}
	lg.SetOutput(&lumberjack.Logger{
		Filename:   config.ErrorLogPath(root),
		MaxSize:    10, // megabytes
		MaxBackups: 3,
	})
	return lg
}
