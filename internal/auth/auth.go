// Package auth issues and verifies the bearer tokens identifying teachers and students.
package auth

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/victornm/quizroom/internal/errors"
)

const defaultTTL = 24 * time.Hour

type Role string

const (
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

func (r Role) Valid() bool {
	return r == RoleTeacher || r == RoleStudent
}

// Identity is the authenticated caller.
type Identity struct {
	UserID string
	Email  string
	Role   Role
}

type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Role  Role   `json:"role"`
}

type Config struct {
	Secret string
	Issuer string
	TTL    time.Duration
	Now    func() time.Time
}

// Authenticator signs and verifies HS256 tokens.
type Authenticator struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewAuthenticator(c Config) *Authenticator {
	a := &Authenticator{
		secret: []byte(c.Secret),
		issuer: c.Issuer,
		ttl:    c.TTL,
		now:    c.Now,
	}

	if a.ttl <= 0 {
		a.ttl = defaultTTL
	}
	if a.now == nil {
		a.now = time.Now
	}

	return a
}

// Issue returns a signed token for the identity.
func (a *Authenticator) Issue(id Identity) (string, error) {
	if id.UserID == "" || !id.Role.Valid() {
		return "", errors.InvalidArgument("user id and a valid role are required")
	}

	now := a.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
		Email: id.Email,
		Role:  id.Role,
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return token, nil
}

// Verify parses the token and returns the identity it carries.
// Any failure is reported as errors.CodeUnauthenticated.
func (a *Authenticator) Verify(token string) (*Identity, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		msg := "invalid token"
		if stderrors.Is(err, jwt.ErrTokenExpired) {
			msg = "token has expired"
		}
		return nil, errors.New(errors.CodeUnauthenticated, errors.WithMessagef("%s", msg), errors.WithCause(err))
	}

	if claims.Subject == "" || !claims.Role.Valid() {
		return nil, errors.New(errors.CodeUnauthenticated, errors.WithMessagef("token has no subject or role"))
	}

	return &Identity{
		UserID: claims.Subject,
		Email:  claims.Email,
		Role:   claims.Role,
	}, nil
}

type ctxKey struct{}

func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identity stored by the HTTP middleware or the gRPC interceptor.
func FromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(*Identity)
	return id, ok && id != nil
}

// Require returns the caller's identity, checking its role when roles are given.
func Require(ctx context.Context, roles ...Role) (*Identity, error) {
	id, ok := FromContext(ctx)
	if !ok {
		return nil, errors.New(errors.CodeUnauthenticated, errors.WithMessagef("authentication required"))
	}

	if len(roles) == 0 {
		return id, nil
	}

	for _, r := range roles {
		if id.Role == r {
			return id, nil
		}
	}

	return nil, errors.PermissionDenied("this action requires role %s", roles[0])
}
