package session

import (
	"net/http"

	"smart_irrigation/internal/apperr"
)

// Transport returns a RoundTripper that attaches the current credential as a
// bearer token, read at send time, and ends the session when the backend
// answers 401 or 403 to the credential still in use. The response itself is
// returned unchanged.
func (m *Manager) Transport(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &bearerTransport{session: m, base: base}
}

type bearerTransport struct {
	session *Manager
	base    http.RoundTripper
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req.Clone(req.Context())
	token := t.session.Token()
	if token != "" {
		out.Header.Set("Authorization", "Bearer "+token)
	} else {
		out.Header.Del("Authorization")
	}

	resp, err := t.base.RoundTrip(out)
	if err != nil {
		return nil, err
	}
	if apperr.IsAuthStatus(resp.StatusCode) {
		// A denial of a credential that was replaced in flight says nothing
		// about the current one.
		if t.session.Token() == token {
			t.session.expire(req.Context(), req.Method+" "+req.URL.Path, resp.StatusCode)
		}
	}
	return resp, nil
}
