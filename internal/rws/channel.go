package rws

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"
)

// Outcome — тег исхода одного Receive; цикл событий переключается по нему
// явно, а не по типу ошибки.
type Outcome int

const (
	OutcomeFrame Outcome = iota
	OutcomeCancelled
	OutcomeClosed
	OutcomeTransient
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFrame:
		return "frame"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeClosed:
		return "closed"
	case OutcomeTransient:
		return "transient"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

const (
	closeWait    = 500 * time.Millisecond
	maxFrameSize = 4 << 20
)

// EventChannel — открытый WebSocket подписки. Читает его ровно одна горутина.
type EventChannel struct {
	conn   *websocket.Conn
	url    string
	closed atomic.Bool
}

// OpenEventChannel выполняет апгрейд на URL канала, предъявляя cookie
// сессии и sub-protocol robapi2_subscription.
func (c *Client) OpenEventChannel(ctx context.Context, channelURL string) (*EventChannel, error) {
	header := http.Header{}
	if cookie := c.cookieHeader(); cookie != "" {
		header.Set("Cookie", cookie)
	}

	conn, resp, err := c.dialer.DialContext(ctx, channelURL, header)
	if err != nil {
		if resp != nil {
			c.logger.Error("websocket handshake rejected", "url", channelURL, "status", resp.StatusCode)
			return nil, fmt.Errorf("%w: handshake status %d", ErrSubscriptionUnavailable, resp.StatusCode)
		}
		c.logger.Error("websocket connection error", "url", channelURL, "err", err)
		return nil, fmt.Errorf("%w: %v", ErrSubscriptionUnavailable, err)
	}
	if conn.Subprotocol() != SubProtocol {
		c.logger.Warn("server did not confirm sub-protocol", "got", conn.Subprotocol())
	}
	conn.SetReadLimit(maxFrameSize)

	c.logger.Info("event channel open", "url", channelURL)
	return &EventChannel{conn: conn, url: channelURL}, nil
}

func (ch *EventChannel) URL() string { return ch.url }

// Receive блокируется до одного кадра, отмены ctx или закрытия канала.
// Отмена прерывает ожидание через read deadline.
//
// После любой ошибки чтения gorilla/websocket больше не отдаёт кадры, поэтому
// сетевые ошибки — OutcomeClosed. OutcomeTransient — кадр пришёл, но
// непригоден (не текст или не UTF-8); чтение можно продолжать.
func (ch *EventChannel) Receive(ctx context.Context) (string, Outcome, error) {
	if ch.closed.Load() {
		return "", OutcomeClosed, ErrChannelClosed
	}
	if err := ctx.Err(); err != nil {
		return "", OutcomeCancelled, err
	}

	stop := context.AfterFunc(ctx, func() {
		_ = ch.conn.SetReadDeadline(time.Now())
	})
	kind, data, err := ch.conn.ReadMessage()
	stop()

	if err != nil {
		if ctx.Err() != nil {
			return "", OutcomeCancelled, ctx.Err()
		}
		var ce *websocket.CloseError
		if errors.As(err, &ce) {
			return "", OutcomeClosed, fmt.Errorf("%w: %d %s", ErrChannelClosed, ce.Code, ce.Text)
		}
		return "", OutcomeClosed, fmt.Errorf("%w: %v", ErrChannelClosed, err)
	}

	if kind != websocket.TextMessage {
		return "", OutcomeTransient, fmt.Errorf("rws: unexpected frame type %d", kind)
	}
	if !utf8.Valid(data) {
		return "", OutcomeTransient, errors.New("rws: frame is not valid UTF-8")
	}
	return string(data), OutcomeFrame, nil
}

// Close — штатный close handshake, если канал открыт; повторный вызов ничего не делает.
func (ch *EventChannel) Close() error {
	if !ch.closed.CompareAndSwap(false, true) {
		return nil
	}
	_ = ch.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "closing"),
		time.Now().Add(closeWait))
	return ch.conn.Close()
}
