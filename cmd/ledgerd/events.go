package main

import (
	"log/slog"

	"marginledger/core/events"
	"marginledger/core/types"
)

// logEmitter writes every committed ledger event to the log.
type logEmitter struct {
	logger *slog.Logger
}

func (e logEmitter) Emit(evt events.Event) {
	if evt == nil {
		return
	}
	attrs := []any{slog.String("type", evt.EventType())}
	if typed, ok := evt.(*types.Event); ok {
		for k, v := range typed.Attributes {
			attrs = append(attrs, slog.String(k, v))
		}
	}
	e.logger.Debug("ledger event", attrs...)
}
