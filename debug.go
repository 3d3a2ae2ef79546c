package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"
)

var (
	initDebugLogOnce sync.Once
	debugLogger      *slog.Logger
)

// debugLog writes the provided message and key/value pairs to stdout using structured logging
func debugLog(msg string, kvs ...any) {
	if !logLevel.debugMode {
		return
	}
	initDebugLogOnce.Do(func() {
		opts := slog.HandlerOptions{
			AddSource: true,
			Level:     slog.LevelDebug,
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				switch a.Key {
				case slog.SourceKey:
					// trim "source" down to relative path within this module
					val := a.Value.String()
					if idx := strings.Index(val, "github.com/chenyongxin/mytools/"); idx != -1 {
						a.Value = slog.StringValue(val[idx+31:])
					}
				case slog.LevelKey:
					// don't output "level" since we're only ever generating debug logs
					a = slog.Attr{}
				default:
				}
				return a
			},
		}
		if inK8S() {
			debugLogger = slog.New(slog.NewJSONHandler(os.Stdout, &opts))
		} else {
			debugLogger = slog.New(slog.NewTextHandler(os.Stdout, &opts))
		}
	})

	ctx := context.Background()
	if len(kvs) == 0 {
		debugLogger.Log(ctx, slog.LevelDebug, msg)
		return
	}

	attrs := make([]slog.Attr, 0, len(kvs)/2)
	for i := 0; i+1 < len(kvs); i += 2 {
		k, ok := kvs[i].(string)
		if !ok {
			k = fmt.Sprintf("%v", kvs[i])
		}
		attrs = append(attrs, slog.Any(k, kvs[i+1]))
	}
	var pcs [1]uintptr
	runtime.Callers(2, pcs[:])
	rec := slog.NewRecord(time.Now(), slog.LevelDebug, msg, pcs[0])
	rec.AddAttrs(attrs...)
	_ = debugLogger.Handler().Handle(ctx, rec)
}

func inK8S() bool {
	_, ok := os.LookupEnv("KUBERNETES_SERVICE_HOST")
	return ok
}
