// Package telemetry defines the key event relayed from the page to the worker
// and its newline-delimited JSON wire form.
package telemetry

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/bytedance/sonic"
	"github.com/go-playground/validator/v10"
)

// Action is the key transition carried by an Event.
type Action string

const (
	ActionDown Action = "down"
	ActionUp   Action = "up"
)

// MaxKeyLen bounds the key so an encoded line stays well under PIPE_BUF.
const MaxKeyLen = 64

var ErrInvalidEvent = errors.New("invalid telemetry event")

// Event is one key transition. It is a value type and is never mutated after
// construction.
type Event struct {
	Key    string  `json:"key" validate:"required,max=64"`
	Action Action  `json:"action" validate:"required,oneof=down up"`
	Time   float64 `json:"time" validate:"gte=0"`
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// New builds and validates an Event.
func New(key string, action Action, ts float64) (Event, error) {
	ev := Event{Key: key, Action: action, Time: ts}
	if err := ev.Validate(); err != nil {
		return Event{}, err
	}
	return ev, nil
}

// Validate reports whether the event is well formed.
func (e Event) Validate() error {
	if err := validatorInstance().Struct(e); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if !utf8.ValidString(e.Key) {
		return fmt.Errorf("%w: key is not valid UTF-8", ErrInvalidEvent)
	}
	return nil
}

// Encode returns the event as a single newline-terminated JSON line.
// Invalid events are refused.
func Encode(e Event) ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	data, err := sonic.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode telemetry event: %w", err)
	}
	return append(data, '\n'), nil
}

// Decode parses one line produced by Encode. Surrounding whitespace is ignored.
func Decode(line []byte) (Event, error) {
	var ev Event
	if err := sonic.Unmarshal(bytes.TrimSpace(line), &ev); err != nil {
		return Event{}, fmt.Errorf("decode telemetry event: %w", err)
	}
	if err := ev.Validate(); err != nil {
		return Event{}, err
	}
	return ev, nil
}
