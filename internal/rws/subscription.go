package rws

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const subscriptionPath = "/subscription"

// Приоритет уведомлений для ресурса подписки.
const (
	PriorityLow    = "0"
	PriorityMedium = "1"
	PriorityHigh   = "2"
)

// Resource — путь ресурса и токен приоритета. Порядок в срезе задаёт индекс
// 1..N в запросе, это часть протокола.
type Resource struct {
	Path     string `json:"path" yaml:"path"`
	Priority string `json:"priority" yaml:"priority"`
}

// EncodeSubscription собирает тело `resources=N&1=path&1-p=token&2=...`
// в порядке ресурсов. url.Values не подходит: он сортирует ключи.
func EncodeSubscription(resources []Resource) (string, error) {
	if len(resources) == 0 {
		return "", errors.New("rws: no resources to subscribe")
	}
	seen := make(map[string]struct{}, len(resources))
	for _, r := range resources {
		if r.Path == "" {
			return "", errors.New("rws: empty resource path")
		}
		if _, dup := seen[r.Path]; dup {
			return "", fmt.Errorf("rws: duplicate resource %q", r.Path)
		}
		seen[r.Path] = struct{}{}
	}

	var b strings.Builder
	b.WriteString("resources=")
	b.WriteString(strconv.Itoa(len(resources)))
	for i, r := range resources {
		idx := strconv.Itoa(i + 1)
		prio := r.Priority
		if prio == "" {
			prio = PriorityMedium
		}
		b.WriteString("&" + idx + "=" + url.QueryEscape(r.Path))
		b.WriteString("&" + idx + "-p=" + url.QueryEscape(prio))
	}
	return b.String(), nil
}

// CreateSubscription регистрирует ресурсы и возвращает URL канала из заголовка
// Location. Без 2xx или без Location — ErrSubscriptionUnavailable, без повторов.
func (c *Client) CreateSubscription(ctx context.Context, resources []Resource) (string, error) {
	body, err := EncodeSubscription(resources)
	if err != nil {
		return "", err
	}

	resp, err := c.do(ctx, http.MethodPost, subscriptionPath, formContentType, strings.NewReader(body))
	if err != nil {
		c.logger.Error("subscription request failed", "err", err)
		return "", fmt.Errorf("%w: %v", ErrSubscriptionUnavailable, err)
	}
	if !resp.OK() {
		c.logger.Error("subscription rejected", "status", resp.Status)
		return "", fmt.Errorf("%w: status %d", ErrSubscriptionUnavailable, resp.Status)
	}
	location := resp.Header.Get("Location")
	if location == "" {
		c.logger.Error("subscription response has no Location header")
		return "", fmt.Errorf("%w: no Location header", ErrSubscriptionUnavailable)
	}

	c.logger.Info("subscription created", "resources", len(resources), "channel", location)
	return location, nil
}
