package middleware

import (
	"errors"
	"slices"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"archivia/internal/model"
)

// IdentityLocalKey is the Fiber locals key holding the verified model.Identity.
const IdentityLocalKey = "identity"

// Claims is the token payload issued by the session layer: the subject is
// the numeric user id.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

var errBadSubject = errors.New("subject is not a user id")

// Identity verifies an HS256 bearer token and stores the caller in locals.
// Requests without a valid token end with 401; tokens for roles outside
// allowed end with 403. An empty allowed list accepts every role.
func Identity(secret []byte, allowed ...string) fiber.Handler {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	keyFunc := func(*jwt.Token) (any, error) { return secret, nil }

	return func(c *fiber.Ctx) error {
		raw, ok := bearer(c.Get(fiber.HeaderAuthorization))
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
		}

		var claims Claims
		if _, err := parser.ParseWithClaims(raw, &claims, keyFunc); err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
		}
		id, err := identityFromClaims(claims)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
		}
		if len(allowed) > 0 && !slices.Contains(allowed, id.Role) {
			return fiber.NewError(fiber.StatusForbidden, "forbidden")
		}

		c.Locals(IdentityLocalKey, id)
		return c.Next()
	}
}

// IdentityFromCtx returns the identity stored by Identity.
func IdentityFromCtx(c *fiber.Ctx) (model.Identity, bool) {
	id, ok := c.Locals(IdentityLocalKey).(model.Identity)
	return id, ok
}

// SignIdentity issues a token Identity accepts. Used by the session layer
// and by tests.
func SignIdentity(secret []byte, id model.Identity, claims jwt.RegisteredClaims) (string, error) {
	claims.Subject = strconv.FormatInt(id.UserID, 10)
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{Role: id.Role, RegisteredClaims: claims})
	return tok.SignedString(secret)
}

func bearer(h string) (string, bool) {
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func identityFromClaims(c Claims) (model.Identity, error) {
	uid, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || uid <= 0 {
		return model.Identity{}, errBadSubject
	}
	return model.Identity{UserID: uid, Role: strings.ToLower(strings.TrimSpace(c.Role))}, nil
}
