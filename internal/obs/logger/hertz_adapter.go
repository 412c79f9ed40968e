package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/cloudwego/hertz/pkg/common/hlog"
)

// HertzSlogAdapter lets the thin HTTP intake adapter's Hertz engine log
// through the same slog.Logger as the rest of the process.
type HertzSlogAdapter struct {
	logger *slog.Logger
}

func NewHertzSlogAdapter(logger *slog.Logger) *HertzSlogAdapter {
	return &HertzSlogAdapter{logger: logger}
}

func (h *HertzSlogAdapter) Trace(v ...interface{})  { h.logger.Debug(formatMessage(v...)) }
func (h *HertzSlogAdapter) Debug(v ...interface{})  { h.logger.Debug(formatMessage(v...)) }
func (h *HertzSlogAdapter) Info(v ...interface{})   { h.logger.Info(formatMessage(v...)) }
func (h *HertzSlogAdapter) Notice(v ...interface{}) { h.logger.Info(formatMessage(v...)) }
func (h *HertzSlogAdapter) Warn(v ...interface{})   { h.logger.Warn(formatMessage(v...)) }
func (h *HertzSlogAdapter) Error(v ...interface{})  { h.logger.Error(formatMessage(v...)) }
func (h *HertzSlogAdapter) Fatal(v ...interface{})  { h.logger.Error(formatMessage(v...)) }

func (h *HertzSlogAdapter) Tracef(format string, v ...interface{})  { h.logger.Debug(fmt.Sprintf(format, v...)) }
func (h *HertzSlogAdapter) Debugf(format string, v ...interface{})  { h.logger.Debug(fmt.Sprintf(format, v...)) }
func (h *HertzSlogAdapter) Infof(format string, v ...interface{})   { h.logger.Info(fmt.Sprintf(format, v...)) }
func (h *HertzSlogAdapter) Noticef(format string, v ...interface{}) { h.logger.Info(fmt.Sprintf(format, v...)) }
func (h *HertzSlogAdapter) Warnf(format string, v ...interface{})   { h.logger.Warn(fmt.Sprintf(format, v...)) }
func (h *HertzSlogAdapter) Errorf(format string, v ...interface{})  { h.logger.Error(fmt.Sprintf(format, v...)) }
func (h *HertzSlogAdapter) Fatalf(format string, v ...interface{})  { h.logger.Error(fmt.Sprintf(format, v...)) }

func (h *HertzSlogAdapter) CtxTracef(ctx context.Context, format string, v ...interface{}) {
	h.logger.DebugContext(ctx, fmt.Sprintf(format, v...))
}
func (h *HertzSlogAdapter) CtxDebugf(ctx context.Context, format string, v ...interface{}) {
	h.logger.DebugContext(ctx, fmt.Sprintf(format, v...))
}
func (h *HertzSlogAdapter) CtxInfof(ctx context.Context, format string, v ...interface{}) {
	h.logger.InfoContext(ctx, fmt.Sprintf(format, v...))
}
func (h *HertzSlogAdapter) CtxNoticef(ctx context.Context, format string, v ...interface{}) {
	h.logger.InfoContext(ctx, fmt.Sprintf(format, v...))
}
func (h *HertzSlogAdapter) CtxWarnf(ctx context.Context, format string, v ...interface{}) {
	h.logger.WarnContext(ctx, fmt.Sprintf(format, v...))
}
func (h *HertzSlogAdapter) CtxErrorf(ctx context.Context, format string, v ...interface{}) {
	h.logger.ErrorContext(ctx, fmt.Sprintf(format, v...))
}
func (h *HertzSlogAdapter) CtxFatalf(ctx context.Context, format string, v ...interface{}) {
	h.logger.ErrorContext(ctx, fmt.Sprintf(format, v...))
}

func (h *HertzSlogAdapter) SetLevel(level hlog.Level)  {}
func (h *HertzSlogAdapter) SetOutput(writer io.Writer) {}

func formatMessage(v ...interface{}) string {
	if len(v) == 1 {
		if s, ok := v[0].(string); ok {
			return s
		}
	}
	return fmt.Sprint(v...)
}
