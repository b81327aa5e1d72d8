package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
	"github.com/rs/zerolog"
)

// Options 日志输出配置
type Options struct {
	Level       string // trace/debug/info/warn/error
	Format      string // console 或 json
	GelfEnabled bool
	GelfAddress string
	Out         io.Writer // 为空时写到 stderr
}

// ParseLevel 解析日志级别，无法识别时返回 info
func ParseLevel(s string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// New 构造根日志。启用 GELF 时同时发往 Graylog，返回的 closer 负责关闭它。
func New(opts Options) (zerolog.Logger, io.Closer, error) {
	out := opts.Out
	if out == nil {
		out = os.Stderr
	}

	var w io.Writer = out
	if opts.Format != "json" {
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	closer := io.Closer(nopCloser{})
	if opts.GelfEnabled {
		gw, err := gelf.NewWriter(opts.GelfAddress)
		if err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("连接 graylog 失败: %w", err)
		}
		w = zerolog.MultiLevelWriter(w, gw)
		closer = gw
	}

	logger := zerolog.New(w).
		Level(ParseLevel(opts.Level)).
		With().
		Timestamp().
		Logger()
	return logger, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
