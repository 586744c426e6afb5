// Package relay drains the outbound promise queue and delivers each promise to its
// receiver exactly once. Outcomes are kept in a receipt log for operators; nothing is
// reported back to the contract that scheduled the call.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/Cogwheel-Validator/spectra-zap/zapper/runtime"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "relay").Logger()
}

// SetLogger replaces the package logger.
func SetLogger(l zerolog.Logger) {
	log = l.With().Str("component", "relay").Logger()
}

var (
	ErrUnknownReceiver = errors.New("no exchange registered for receiver")
	ErrUnknownMethod   = errors.New("method not supported by receiver")
)

// Sink delivers a promise to wherever its receiver lives.
type Sink interface {
	// Name labels the sink in metrics and logs.
	Name() string
	// Deliver executes p and returns the receiver's result. It is called once per
	// promise; a returned error is final.
	Deliver(ctx context.Context, p runtime.Promise) (json.RawMessage, error)
}
