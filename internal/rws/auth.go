package rws

import (
	"io"
	"net/http"
	"strings"

	"github.com/icholy/digest"
)

// newAuthTransport: Digest (RobotWare 6) отвечает digest.Transport,
// Basic (RobotWare 7) — authTransport поверх него.
func newAuthTransport(next http.RoundTripper, username, password string) http.RoundTripper {
	return &authTransport{
		next: &digest.Transport{
			Username:  username,
			Password:  password,
			Transport: next,
		},
		username: username,
		password: password,
	}
}

// authTransport отвечает на Basic challenge контроллера. Запрос повторяется
// один раз; после успешного ответа сессию держит cookie.
type authTransport struct {
	next     http.RoundTripper
	username string
	password string
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.next.RoundTrip(req)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}
	if !hasChallenge(resp.Header.Values("WWW-Authenticate"), "Basic") {
		return resp, nil
	}

	retry, err := rewind(req)
	if err != nil || retry == nil {
		// тело не перечитать — отдаём исходный 401
		return resp, nil
	}
	retry.SetBasicAuth(t.username, t.password)

	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return t.next.RoundTrip(retry)
}

func rewind(req *http.Request) (*http.Request, error) {
	r := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody {
		return r, nil
	}
	if req.GetBody == nil {
		return nil, nil
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	r.Body = body
	return r, nil
}

func hasChallenge(values []string, scheme string) bool {
	for _, v := range values {
		v = strings.TrimSpace(v)
		if len(v) >= len(scheme) && strings.EqualFold(v[:len(scheme)], scheme) {
			return true
		}
	}
	return false
}
