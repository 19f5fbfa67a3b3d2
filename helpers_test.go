package main

import (
	"io"
	"log/slog"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type keyItem string

func (k keyItem) Key() string            { return string(k) }
func (k keyItem) Fields() map[string]any { return map[string]any{"url": string(k)} }
