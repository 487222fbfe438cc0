package auth

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ealmetes/HealthExtent/internal/shared/config"
	"github.com/golang-jwt/jwt/v5"
)

// TokenRequest describes the identity a development token is minted for
type TokenRequest struct {
	Username   string   `json:"username"`
	TenantID   int      `json:"tenantId"`
	TenantCode string   `json:"tenantCode,omitempty"`
	Roles      []string `json:"roles,omitempty"`
}

// TokenResponse is returned by the development token endpoint
type TokenResponse struct {
	Token    string    `json:"token"`
	Expires  time.Time `json:"expires"`
	TenantID int       `json:"tenantId"`
	Username string    `json:"username"`
}

// withDefaults fills the values the token endpoint has always assumed
func (r TokenRequest) withDefaults() TokenRequest {
	if r.Username == "" {
		r.Username = "api-user"
	}
	if r.TenantID == 0 {
		r.TenantID = 1
	}
	if len(r.Roles) == 0 {
		r.Roles = []string{string(RoleAdmin)}
	}
	return r
}

// IssueToken signs an HS256 token for the request. Permissions are derived from roles.
func IssueToken(cfg config.AuthConfig, req TokenRequest, now time.Time) (TokenResponse, error) {
	req = req.withDefaults()

	roles := make([]Role, 0, len(req.Roles))
	for _, name := range req.Roles {
		role, ok := ParseRole(name)
		if !ok {
			return TokenResponse{}, fmt.Errorf("unknown role %q", name)
		}
		roles = append(roles, role)
	}

	expiresAt := now.Add(cfg.TokenTTL)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   req.Username,
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		TenantID:    strconv.Itoa(req.TenantID),
		TenantCode:  req.TenantCode,
		Roles:       req.Roles,
		Permissions: PermissionsFor(roles...),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.JWTSecret))
	if err != nil {
		return TokenResponse{}, fmt.Errorf("sign token: %w", err)
	}

	return TokenResponse{
		Token:    signed,
		Expires:  expiresAt,
		TenantID: req.TenantID,
		Username: req.Username,
	}, nil
}

// TokenHandler serves POST /api/auth/token for local development
func TokenHandler(cfg config.AuthConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req TokenRequest
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
		}

		resp, err := IssueToken(cfg, req, time.Now().UTC())
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}
