package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"github.com/itellico/mono/internal/database"
	"github.com/itellico/mono/internal/models"
	"github.com/itellico/mono/internal/tenant"
)

// APIKeyMiddleware authenticates requests carrying an API key header. Without
// the header the request falls through to JWT auth.
type APIKeyMiddleware struct {
	db            database.DB
	headerName    string
	tenantService *tenant.Service
}

func NewAPIKeyMiddleware(db database.DB, headerName string, ts *tenant.Service) *APIKeyMiddleware {
	return &APIKeyMiddleware{
		db:            db,
		headerName:    headerName,
		tenantService: ts,
	}
}

func (m *APIKeyMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(m.headerName)
		if key == "" {
			next.ServeHTTP(w, r)
			return
		}

		hash := HashAPIKey(key)

		var ak models.APIKey
		var scopesJSON json.RawMessage
		err := m.db.QueryRow(r.Context(),
			`SELECT id, tenant_id, user_id, key_hash, name, scopes, expires_at, created_at
			 FROM api_keys WHERE key_hash = $1`, hash,
		).Scan(&ak.ID, &ak.TenantID, &ak.UserID, &ak.KeyHash, &ak.Name, &scopesJSON, &ak.ExpiresAt, &ak.CreatedAt)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid API key")
			return
		}

		if err := json.Unmarshal(scopesJSON, &ak.Scopes); err != nil {
			writeError(w, http.StatusUnauthorized, "invalid API key")
			return
		}

		if ak.ExpiresAt != nil && ak.ExpiresAt.Before(time.Now()) {
			writeError(w, http.StatusUnauthorized, "API key expired")
			return
		}

		t, err := m.tenantService.GetByID(r.Context(), ak.TenantID)
		if err != nil || !t.IsActive {
			writeError(w, http.StatusUnauthorized, "tenant not found")
			return
		}

		_, _ = m.db.Exec(r.Context(), "UPDATE api_keys SET last_used_at = now() WHERE id = $1", ak.ID)

		ctx := tenant.WithTenant(r.Context(), t)

		if ak.UserID != nil {
			user, err := m.tenantService.GetUserByID(r.Context(), *ak.UserID)
			if err == nil {
				ctx = tenant.WithUser(ctx, user)
			}
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func HashAPIKey(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:])
}

// GenerateAPIKey returns a new plaintext key with the platform prefix. Only
// the hash is stored.
func GenerateAPIKey() string {
	buf := make([]byte, 24)
	rand.Read(buf)
	return "mono_" + hex.EncodeToString(buf)
}
