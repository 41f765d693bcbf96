package auth

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

const (
	sessionCookie   = "shortly_session"
	sessionLifetime = 30 * 24 * time.Hour
	// sessions older than this get a fresh cookie on their next admin request
	sessionRefresh = sessionLifetime / 2
)

type Authenticator struct {
	admin  Credentials
	secret []byte
	now    func() time.Time
}

func NewAuthenticator(admin Credentials, jwtSecret string) *Authenticator {
	return &Authenticator{admin: admin, secret: []byte(jwtSecret), now: time.Now}
}

// Login checks creds and returns a session cookie for the admin.
func (a *Authenticator) Login(creds Credentials) (*http.Cookie, error) {
	if !a.admin.Matches(creds) {
		return nil, ErrUnauthorized
	}
	return a.sessionCookie(creds.Username)
}

func (a *Authenticator) sessionCookie(subject string) (*http.Cookie, error) {
	now := a.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(sessionLifetime)),
	})

	signed, err := token.SignedString(a.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign session: %w", err)
	}

	return &http.Cookie{
		Name:     sessionCookie,
		Value:    signed,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(sessionLifetime.Seconds()),
	}, nil
}

func (a *Authenticator) parseSession(value string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(value, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(a.now))
	if err != nil {
		return nil, err
	}
	if claims.Subject != a.admin.Username {
		return nil, errors.New("session subject is not the admin")
	}
	return claims, nil
}

// Middleware admits a request with a valid session cookie or with the admin's
// basic auth credentials. Basic auth clients get no cookie.
func (a *Authenticator) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cookie, err := c.Cookie(sessionCookie); err == nil {
				if claims, err := a.parseSession(cookie.Value); err == nil {
					a.maybeRefresh(c, claims)
					return next(c)
				}
			}

			if username, password, ok := c.Request().BasicAuth(); ok {
				if a.admin.Matches(Credentials{Username: username, Password: password}) {
					return next(c)
				}
				log.Warn().Str("username", username).Msg("rejected basic auth")
			}

			c.Response().Header().Set(echo.HeaderWWWAuthenticate, `Basic realm="shortly"`)
			return echo.ErrUnauthorized
		}
	}
}

func (a *Authenticator) maybeRefresh(c echo.Context, claims *jwt.RegisteredClaims) {
	if claims.IssuedAt == nil || a.now().Sub(claims.IssuedAt.Time) < sessionRefresh {
		return
	}

	cookie, err := a.sessionCookie(claims.Subject)
	if err != nil {
		log.Error().Err(err).Msg("failed to refresh session")
		return
	}
	cookie.Secure = c.IsTLS()
	c.SetCookie(cookie)
}

// LogoutCookie clears the session cookie.
func LogoutCookie() *http.Cookie {
	return &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	}
}
