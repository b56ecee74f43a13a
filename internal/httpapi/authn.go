package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"spcs.org/internal/auth"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

// principalHandler serves a request on behalf of a verified principal.
type principalHandler func(w http.ResponseWriter, r *http.Request, p auth.Principal)

func (a *API) citizen(h principalHandler) http.Handler {
	return a.requireKind(auth.KindCitizen, h)
}

func (a *API) officer(h principalHandler) http.Handler {
	return a.requireKind(auth.KindOfficer, h)
}

// requireKind verifies the bearer token and rejects principals of the other
// kind with 403.
func (a *API) requireKind(kind auth.Kind, next principalHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="spcs"`)
			writeError(w, r, http.StatusUnauthorized, err.Error())
			return
		}
		p, err := a.deps.Auth.Sessions().VerifyKind(r.Context(), token, kind)
		if err != nil {
			if auth.IsTokenError(err) && !errors.Is(err, auth.ErrWrongKind) {
				w.Header().Set("WWW-Authenticate", `Bearer realm="spcs", error="invalid_token"`)
			}
			a.fail(w, r, err)
			return
		}
		ctx := auth.ContextWithPrincipal(r.Context(), p)
		next(w, r.WithContext(ctx), p)
	})
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}
