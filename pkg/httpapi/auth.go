package httpapi

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/substratefabric/core/pkg/identity"
)

// OperatorAuth returns middleware requiring a valid EdDSA-signed bearer
// token issued by keySet. This guards an operator console mounted beside
// the substrate API; it is unrelated to the payload-level authenticated
// envelope the validator package checks (that one authenticates writers,
// this one authenticates operators).
func OperatorAuth(keySet *identity.InMemoryKeySet) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			tokenStr, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || tokenStr == "" {
				writeError(w, r, http.StatusUnauthorized, "missing bearer token")
				return
			}

			token, err := jwt.Parse(tokenStr, keySet.KeyFunc())
			if err != nil || !token.Valid {
				writeError(w, r, http.StatusUnauthorized, "invalid bearer token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
