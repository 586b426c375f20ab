package web

import (
	"net/http"

	log "github.com/go-pkgz/lgr"
	"golang.org/x/crypto/bcrypt"
)

const authUser = "boltz"

// authMiddleware requires basic auth as authUser with password matching the bcrypt hash.
// Health and metrics endpoints stay open for probes and scrapers.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ping" || r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		username, password, ok := r.BasicAuth()
		if ok && username == authUser {
			if err := bcrypt.CompareHashAndPassword([]byte(s.passwordHash), []byte(password)); err == nil {
				next.ServeHTTP(w, r)
				return
			}
		}
		if ok {
			log.Printf("[WARN] failed login attempt from %s", r.RemoteAddr)
		}

		w.Header().Set("WWW-Authenticate", `Basic realm="boltzweb"`)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	})
}
