package badgerstore

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

// slogAdapter routes badger's internal logging to slog.
type slogAdapter struct {
	l *slog.Logger
}

var _ badger.Logger = slogAdapter{}

func (a slogAdapter) Errorf(format string, args ...interface{}) {
	a.l.Error(msg(format, args))
}

func (a slogAdapter) Warningf(format string, args ...interface{}) {
	a.l.Warn(msg(format, args))
}

func (a slogAdapter) Infof(format string, args ...interface{}) {
	a.l.Info(msg(format, args))
}

func (a slogAdapter) Debugf(format string, args ...interface{}) {
	a.l.Debug(msg(format, args))
}

func msg(format string, args []interface{}) string {
	return strings.TrimSpace(fmt.Sprintf(format, args...))
}
