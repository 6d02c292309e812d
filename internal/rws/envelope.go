package rws

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// DefaultPageLimit — размер страницы для листингов с limit/start.
const DefaultPageLimit = 100

// envelope — общий вид ответа RWS: {"_embedded": {"_state": [...]}}.
type envelope struct {
	Embedded *struct {
		State *[]json.RawMessage `json:"_state"`
	} `json:"_embedded"`
}

// embeddedState возвращает элементы _state и признак того, что конверт вообще есть.
// Документ другой формы (массив, строка, _state не массив) — «конверта нет», не ошибка.
func embeddedState(raw []byte) ([]json.RawMessage, bool, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, false, nil
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%w: %v", ErrDecoding, err)
	}
	if env.Embedded == nil || env.Embedded.State == nil {
		return nil, false, nil
	}
	return *env.Embedded.State, true, nil
}

// DecodeOne — первый элемент _state. Нет конверта — ErrDecoding,
// пустая последовательность — ErrEmptyResult.
func DecodeOne[T any](raw []byte) (T, error) {
	var zero T
	items, ok, err := embeddedState(raw)
	if err != nil {
		return zero, err
	}
	if !ok {
		return zero, fmt.Errorf("%w: no _embedded._state", ErrDecoding)
	}
	if len(items) == 0 {
		return zero, ErrEmptyResult
	}
	var v T
	if err := json.Unmarshal(items[0], &v); err != nil {
		return zero, fmt.Errorf("%w: %v", ErrDecoding, err)
	}
	return v, nil
}

// DecodeMany — все элементы _state по порядку. Без конверта — пустой срез без ошибки.
func DecodeMany[T any](raw []byte) ([]T, error) {
	items, ok, err := embeddedState(raw)
	if err != nil {
		return []T{}, err
	}
	out := make([]T, 0, len(items))
	if !ok {
		return out, nil
	}
	for i, item := range items {
		var v T
		if err := json.Unmarshal(item, &v); err != nil {
			return out, fmt.Errorf("%w: element %d: %v", ErrDecoding, i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// PageFunc загружает одну страницу листинга.
type PageFunc[T any] func(ctx context.Context, start, limit int) ([]T, error)

// Paginate запрашивает страницы со смещениями start, start+limit, ... пока
// страница полная (ровно limit элементов). Каждая страница сдвигает смещение,
// первая неполная завершает обход. При ошибке возвращает уже собранное и ошибку.
func Paginate[T any](ctx context.Context, start, limit int, fetch PageFunc[T]) ([]T, error) {
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if start < 0 {
		start = 0
	}

	all := make([]T, 0, limit)
	for {
		if err := ctx.Err(); err != nil {
			return all, err
		}
		page, err := fetch(ctx, start, limit)
		if err != nil {
			return all, err
		}
		all = append(all, page...)
		if len(page) != limit {
			return all, nil
		}
		start += limit
	}
}
