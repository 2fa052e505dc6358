package graphstore

import "go.uber.org/zap"

// newLogger builds a zap.SugaredLogger, level selected by name from
// Config. talent-plan-tinykv's cluster/scheduler internals log structural
// events the same way, through a package logger rather than only at the
// RPC boundary; graphstore threads its logger down into the transaction
// engine for the same reason.
func newLogger(level string) (*zap.SugaredLogger, error) {
	cfg := zap.NewProductionConfig()
	if level == "" {
		level = "info"
	}
	var l zap.AtomicLevel
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}
	cfg.Level = l
	base, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return base.Sugar(), nil
}
