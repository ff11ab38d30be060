package sandbox

import (
	"html"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/dop251/goja"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
)

var (
	stripOnce   sync.Once
	stripPolicy *bluemonday.Policy
)

// stripMarkup reduces a console line to plain text
func stripMarkup(s string) string {
	stripOnce.Do(func() { stripPolicy = bluemonday.StrictPolicy() })
	return html.UnescapeString(stripPolicy.Sanitize(s))
}

func (p *Page) installConsole() error {
	console := p.vm.NewObject()
	for _, level := range []string{"log", "info", "warn", "error", "debug"} {
		level := level
		if err := console.Set(level, func(call goja.FunctionCall) goja.Value {
			p.consoleLine(level, call.Arguments)
			return goja.Undefined()
		}); err != nil {
			return err
		}
	}
	return p.vm.Set("console", console)
}

func (p *Page) consoleLine(level string, args []goja.Value) {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = formatArg(a)
	}

	origin := p.origin
	if origin == "" {
		origin = HostOrigin
	}
	entry := LogEntry{
		Level:   level,
		Message: stripMarkup(strings.Join(parts, " ")),
		Origin:  origin,
		Page:    p.id.String(),
		Time:    time.Now(),
	}

	fields := []zap.Field{zap.String("origin", entry.Origin), zap.String("message", entry.Message)}
	switch level {
	case "error":
		p.logger.Error("page console", fields...)
	case "warn":
		p.logger.Warn("page console", fields...)
	case "debug":
		p.logger.Debug("page console", fields...)
	default:
		p.logger.Info("page console", fields...)
	}

	p.metrics.RecordConsoleLine(level)
	if p.console != nil {
		p.console(entry)
	}
}

func formatArg(v goja.Value) string {
	if v == nil || goja.IsUndefined(v) {
		return "undefined"
	}
	if goja.IsNull(v) {
		return "null"
	}
	if obj, ok := v.(*goja.Object); ok {
		if _, isFn := goja.AssertFunction(obj); !isFn {
			if s, err := sonic.MarshalString(obj.Export()); err == nil {
				return s
			}
		}
	}
	return v.String()
}
