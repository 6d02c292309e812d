package rws

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthFailed — аутентификация не удалась, продолжать сессию нельзя.
	ErrAuthFailed = errors.New("rws: authentication failed")
	// ErrRequestFailed — REST-вызов вернул не-2xx.
	ErrRequestFailed = errors.New("rws: request failed")
	// ErrDecoding — в ответе нет ожидаемого конверта или он не разбирается.
	ErrDecoding = errors.New("rws: unexpected response envelope")
	// ErrEmptyResult — конверт есть, но последовательность _state пуста.
	ErrEmptyResult = errors.New("rws: empty result")
	// ErrSubscriptionUnavailable — подписку создать или открыть не удалось.
	ErrSubscriptionUnavailable = errors.New("rws: subscription unavailable")
	// ErrChannelClosed — удалённая сторона закрыла канал событий.
	ErrChannelClosed = errors.New("rws: event channel closed")
)

// StatusError описывает не-2xx ответ на конкретный вызов.
type StatusError struct {
	Method string
	Path   string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("rws: %s %s: status %d", e.Method, e.Path, e.Status)
}

func (e *StatusError) Unwrap() error { return ErrRequestFailed }
