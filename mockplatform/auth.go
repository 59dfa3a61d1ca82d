package mockplatform

import (
	"context"
	"net/http"
)

type userContextKey struct{}

// authenticate requires HTTP basic authentication as a known user on every request.
func (p *Platform) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userName, password, ok := r.BasicAuth()
		if ok {
			p.lock.Lock()
			u := p.people[userName]
			ok = u != nil && u.password == password
			p.lock.Unlock()
		}
		if !ok {
			p.log.Info().Str("user", userName).Str("path", r.URL.Path).Msg("authentication failed")
			w.Header().Set("WWW-Authenticate", `Basic realm="Alfresco"`)
			writeWebScriptError(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userContextKey{}, userName)))
	})
}

func currentUser(r *http.Request) string {
	s, _ := r.Context().Value(userContextKey{}).(string)
	return s
}

func (p *Platform) isAdmin(userName string) bool {
	return userName == p.opts.AdminUserName
}
