package usecase

import (
	"context"
	"encoding/base64"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"bidchat/internal/domain/entity"
	"bidchat/pkg/errors"
	"bidchat/pkg/logger"
)

type AuthUseCase struct {
	script    ScriptService
	sessions  *SessionStore
	jwtSecret []byte
	jwtExpiry time.Duration
}

func NewAuthUseCase(script ScriptService, sessions *SessionStore, jwtSecret string, jwtExpirySeconds int64) *AuthUseCase {
	return &AuthUseCase{
		script:    script,
		sessions:  sessions,
		jwtSecret: []byte(jwtSecret),
		jwtExpiry: time.Duration(jwtExpirySeconds) * time.Second,
	}
}

type AuthResult struct {
	Session *entity.Session
	// Token is the gateway's own signed token that the browser holds; the
	// upstream opaque token never leaves this process.
	Token string
}

type sessionClaims struct {
	Email     string `json:"email"`
	AdminType string `json:"adminType"`
	jwt.RegisteredClaims
}

func (uc *AuthUseCase) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	// The backend expects the password base64-encoded, not hashed; it does
	// the verification itself.
	result, err := uc.script.LoginUser(ctx, email, base64.StdEncoding.EncodeToString([]byte(password)))
	if err != nil {
		if errors.Is(err, "BAD_REQUEST") {
			return nil, errors.Unauthorized("Invalid email or password", err)
		}
		return nil, err
	}

	session := &entity.Session{
		Email:     email,
		Token:     result.Token,
		FirstName: result.FirstName,
		LastName:  result.LastName,
		AdminType: result.AdminType,
	}
	return uc.issue(session)
}

func (uc *AuthUseCase) Register(ctx context.Context, email, password, firstName, lastName string) (*AuthResult, error) {
	result, err := uc.script.RegisterUser(ctx, email, base64.StdEncoding.EncodeToString([]byte(password)), firstName, lastName)
	if err != nil {
		return nil, err
	}

	session := &entity.Session{
		Email:     email,
		Token:     result.Token,
		FirstName: firstName,
		LastName:  lastName,
		AdminType: result.AdminType,
	}
	return uc.issue(session)
}

// Authenticate resolves a gateway token back to its session. Used by the
// auth middleware on every request.
func (uc *AuthUseCase) Authenticate(tokenString string) (*entity.Session, error) {
	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Unauthorized("Unexpected signing method", nil)
		}
		return uc.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, errors.Unauthorized("Invalid or expired token", err)
	}

	session, ok := uc.sessions.Get(claims.ID)
	if !ok {
		return nil, errors.Unauthorized("Session no longer active", nil)
	}
	return session, nil
}

func (uc *AuthUseCase) Logout(tokenString string) {
	claims := &sessionClaims{}
	if _, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return uc.jwtSecret, nil
	}); err != nil {
		logger.Debug("Logout with unparsable token: %v", err)
		return
	}
	uc.sessions.Delete(claims.ID)
}

func (uc *AuthUseCase) CheckAdmin(ctx context.Context, session *entity.Session) (bool, error) {
	isAdmin, err := uc.script.CheckAdmin(ctx, session.Email, session.Token)
	if err != nil {
		uc.InvalidateOnUnauthorized(session, err)
		return false, err
	}
	return isAdmin, nil
}

// InvalidateOnUnauthorized forces logout when the backend rejects the
// upstream token mid-session. Any other failure leaves the session alone.
func (uc *AuthUseCase) InvalidateOnUnauthorized(session *entity.Session, err error) {
	if !errors.Is(err, "UNAUTHORIZED") {
		return
	}
	uc.sessions.DeleteByEmail(session.Email)
	logger.Info("Session for %s invalidated after token rejection", session.Email)
}

func (uc *AuthUseCase) issue(session *entity.Session) (*AuthResult, error) {
	id := uuid.New().String()
	now := time.Now()
	claims := sessionClaims{
		Email:     session.Email,
		AdminType: session.AdminType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(uc.jwtExpiry)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(uc.jwtSecret)
	if err != nil {
		return nil, errors.Internal("Failed to sign session token", err)
	}

	uc.sessions.Put(id, session)
	return &AuthResult{Session: session, Token: signed}, nil
}
