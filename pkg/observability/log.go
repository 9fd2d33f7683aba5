package observability

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
)

// LogHooks logs every gallery and HTTP event at debug level.
type LogHooks struct {
	Logger *log.Logger
}

var (
	_ GalleryHooks = (*LogHooks)(nil)
	_ HTTPHooks    = (*LogHooks)(nil)
)

// NewLogHooks returns hooks writing to logger (log.Default() if nil).
func NewLogHooks(logger *log.Logger) *LogHooks {
	if logger == nil {
		logger = log.Default()
	}
	return &LogHooks{Logger: logger.WithPrefix("hooks")}
}

func (h *LogHooks) OnFetchStart(_ context.Context, kind, key string) {
	h.Logger.Debug("fetch start", "kind", kind, "key", key)
}

func (h *LogHooks) OnFetchComplete(_ context.Context, kind, key string, d time.Duration, err error) {
	if err != nil {
		h.Logger.Debug("fetch failed", "kind", kind, "key", key, "duration", d.Round(time.Millisecond), "error", err)
		return
	}
	h.Logger.Debug("fetch done", "kind", kind, "key", key, "duration", d.Round(time.Millisecond))
}

func (h *LogHooks) OnResolve(_ context.Context, name, moniker string, found bool, d time.Duration) {
	h.Logger.Debug("resolve", "assembly", name, "moniker", moniker, "found", found, "duration", d.Round(time.Millisecond))
}

func (h *LogHooks) OnRequest(_ context.Context, method, host, path string) {
	h.Logger.Debug("http request", "method", method, "host", host, "path", path)
}

func (h *LogHooks) OnResponse(_ context.Context, method, host, path string, status int, d time.Duration) {
	h.Logger.Debug("http response", "method", method, "host", host, "path", path, "status", status, "duration", d.Round(time.Millisecond))
}

func (h *LogHooks) OnError(_ context.Context, method, host, path string, err error) {
	h.Logger.Debug("http error", "method", method, "host", host, "path", path, "error", err)
}
