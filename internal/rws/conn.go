package rws

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// ========================= low-level =========================

const (
	formContentType = "application/x-www-form-urlencoded"
	maxBodySize     = 16 << 20
)

// Response — статус, заголовки и тело одного REST-вызова.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

func (r *Response) OK() bool { return r.Status/100 == 2 }

// Request — единый примитив для всех REST-методов и подписки.
// form != nil отправляется как application/x-www-form-urlencoded.
// Ошибка возвращается только при сбое транспорта; не-2xx проверяет вызывающий.
func (c *Client) Request(ctx context.Context, method, path string, form url.Values) (*Response, error) {
	if form == nil {
		return c.do(ctx, method, path, "", nil)
	}
	return c.do(ctx, method, path, formContentType, strings.NewReader(form.Encode()))
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, err
	}
	c.logger.Debug("rws request", "method", method, "path", path, "status", resp.StatusCode)

	return &Response{Status: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

// get возвращает тело успешного ответа или *StatusError.
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	resp, err := c.Request(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, &StatusError{Method: http.MethodGet, Path: path, Status: resp.Status}
	}
	return resp.Body, nil
}

func (c *Client) post(ctx context.Context, path string, form url.Values) error {
	if form == nil {
		form = url.Values{}
	}
	resp, err := c.Request(ctx, http.MethodPost, path, form)
	if err != nil {
		return err
	}
	if !resp.OK() {
		return &StatusError{Method: http.MethodPost, Path: path, Status: resp.Status}
	}
	return nil
}

// cookieHeader собирает Cookie для апгрейда WebSocket из jar по базовому адресу:
// URL канала может указывать на другой host-алиас контроллера.
func (c *Client) cookieHeader() string {
	cookies := c.jar.Cookies(c.baseURL)
	parts := make([]string, 0, len(cookies))
	for _, ck := range cookies {
		parts = append(parts, ck.Name+"="+ck.Value)
	}
	return strings.Join(parts, "; ")
}
