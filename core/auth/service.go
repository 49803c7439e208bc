package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-admin/core"
	"github.com/trezcool/masomo-admin/services/apiclient"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

type (
	LoginRequest struct {
		Username   string `json:"username" form:"username" validate:"required,notblank"`
		Password   string `json:"password" form:"password" validate:"required"`
		RememberMe bool   `json:"rememberMe" form:"rememberMe"`
	}

	LoginResponse struct {
		Token string `json:"token"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Username = core.CleanString(lr.Username)
	return validate.Struct(lr)
}

// Service maps authentication to the school API.
type Service struct {
	api apiclient.Doer
}

func NewService(api apiclient.Doer) *Service {
	return &Service{api: api}
}

// Login exchanges credentials for a bearer token. It never touches the session: the caller
// dispatches LoginSuccess on success.
func (svc *Service) Login(ctx context.Context, lr LoginRequest) (LoginResponse, error) {
	var resp LoginResponse
	if err := svc.api.Request(ctx, http.MethodPost, "/login", lr, &resp); err != nil {
		if apiclient.IsStatus(err, http.StatusBadRequest) || apiclient.IsUnauthorized(err) {
			return LoginResponse{}, errors.Wrap(ErrInvalidCredentials, err.Error())
		}
		return LoginResponse{}, errors.Wrap(err, "logging in")
	}
	if resp.Token == "" {
		return LoginResponse{}, errors.New("logging in: empty token in response")
	}
	return resp, nil
}

// Claims is what the UI shows about the signed-in user.
type Claims struct {
	Subject   string
	Username  string
	ExpiresAt time.Time
}

// PeekClaims reads the claims of a JWT bearer token without verifying it. The token stays opaque
// for authorization purposes; this is display only. ok is false for non-JWT tokens.
func PeekClaims(token string) (Claims, bool) {
	mc := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, mc); err != nil {
		return Claims{}, false
	}

	var c Claims
	c.Subject, _ = mc.GetSubject()
	for _, key := range []string{"username", "preferred_username", "name"} {
		if v, ok := mc[key].(string); ok && v != "" {
			c.Username = v
			break
		}
	}
	if c.Username == "" {
		c.Username = c.Subject
	}
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		c.ExpiresAt = exp.Time
	}
	return c, true
}
