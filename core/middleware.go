package core

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
)

const principalKey = "principal"

// authenticateRequest resolves an Authorization header to a principal.
// The header must be exactly "Bearer " + token; any other scheme,
// casing, or a malformed/expired/forged token yields no principal. The
// distinct failure modes are deliberately collapsed here so protected
// endpoints answer every bad credential the same way.
func authenticateRequest(codec *TokenCodec, header string) (*Principal, bool) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return nil, false
	}
	claims, err := codec.ValidateToken(strings.TrimPrefix(header, prefix))
	if err != nil {
		return nil, false
	}
	return &Principal{Username: claims.Username, Role: claims.Role}, true
}

// AuthMiddleware is the request gate: resolve the caller, consult the
// access policy, then either dispatch or reject. Authentication always
// runs, even on public routes, so public handlers can still see who is
// calling; a bad token on a public route is simply an anonymous
// request, not an error. Role checks stay in the handlers (AdminOnly).
func AuthMiddleware(codec *TokenCodec, policy *AccessPolicy) gin.HandlerFunc {
	return func(c *gin.Context) {
		if principal, ok := authenticateRequest(codec, c.GetHeader("Authorization")); ok {
			c.Set(principalKey, principal)
		}

		switch policy.Decide(c.Request.Method, c.Request.URL.Path) {
		case DecisionPublic:
			c.Next()
		case DecisionAuthenticated:
			if _, ok := PrincipalFrom(c); !ok {
				respondError(c, http.StatusUnauthorized, "Authentication required")
				c.Abort()
				return
			}
			c.Next()
		default:
			// No rule matched. Unlisted paths are closed by default.
			respondError(c, http.StatusForbidden, "Access denied")
			c.Abort()
		}
	}
}

// PrincipalFrom returns the request principal set by AuthMiddleware.
func PrincipalFrom(c *gin.Context) (*Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil, false
	}
	p, ok := v.(*Principal)
	return p, ok && p != nil
}

// AdminOnly rejects requests whose principal does not carry the admin
// role. It sits behind AuthMiddleware, so a missing principal here is
// still answered as unauthenticated rather than forbidden.
func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := PrincipalFrom(c)
		if !ok {
			respondError(c, http.StatusUnauthorized, "Authentication required")
			c.Abort()
			return
		}
		if p.Role != RoleAdmin {
			respondError(c, http.StatusForbidden, "Access denied")
			c.Abort()
			return
		}
		c.Next()
	}
}

// CORSMiddleware validates Origin/Referer against the allowed list and
// sets CORS headers, including preflight handling.
func CORSMiddleware(cfg Config) gin.HandlerFunc {
	allowed := map[string]struct{}{}
	for _, o := range cfg.AllowedOrigins {
		allowed[strings.ToLower(o)] = struct{}{}
	}

	isAllowed := func(origin string) bool {
		if origin == "" {
			// Same-origin navigation (no Origin header) is allowed.
			return true
		}
		if len(allowed) == 0 {
			return false
		}
		_, ok := allowed[strings.ToLower(origin)]
		return ok
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		referer := c.GetHeader("Referer")
		if origin == "" && referer != "" {
			if u, err := url.Parse(referer); err == nil {
				origin = u.Scheme + "://" + u.Host
			}
		}

		// Preflight handling
		if c.Request.Method == http.MethodOptions && origin != "" {
			if !isAllowed(origin) {
				respondError(c, http.StatusForbidden, "Origin not allowed")
				c.Abort()
				return
			}
			setCORSHeaders(c, origin)
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}

		if !isAllowed(origin) {
			respondError(c, http.StatusForbidden, "Origin not allowed")
			c.Abort()
			return
		}
		if origin != "" {
			setCORSHeaders(c, origin)
		}
		c.Next()
	}
}

func setCORSHeaders(c *gin.Context, origin string) {
	c.Header("Access-Control-Allow-Origin", origin)
	c.Header("Vary", "Origin")
	c.Header("Access-Control-Allow-Credentials", "true")
	c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
	c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
}
