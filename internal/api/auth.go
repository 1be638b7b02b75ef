package api

import (
	"context"
	"net/http"

	"tourprism/internal/models"
)

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (c *Client) Register(ctx context.Context, cred Credentials) (*models.AuthResponse, error) {
	var out models.AuthResponse
	if err := c.sendJSON(ctx, http.MethodPost, "POST /auth/register", "/auth/register", cred, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Login(ctx context.Context, cred Credentials) (*models.AuthResponse, error) {
	var out models.AuthResponse
	if err := c.sendJSON(ctx, http.MethodPost, "POST /auth/login", "/auth/login", cred, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GoogleAuthURL is where the browser is sent to start the OAuth flow.
func (c *Client) GoogleAuthURL() string { return c.baseURL + "/auth/google" }

func (c *Client) Profile(ctx context.Context) (*models.User, error) {
	var out models.User
	if err := c.getJSON(ctx, "GET /auth/user/profile", "/auth/user/profile", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ForgotPassword(ctx context.Context, email string) (*models.AuthResponse, error) {
	var out models.AuthResponse
	in := map[string]string{"email": email}
	if err := c.sendJSON(ctx, http.MethodPost, "POST /auth/forgot-password", "/auth/forgot-password", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyEmail confirms a signup or login OTP; on success the response carries the token.
func (c *Client) VerifyEmail(ctx context.Context, userID, otp string) (*models.AuthResponse, error) {
	var out models.AuthResponse
	in := map[string]string{"userId": userID, "otp": otp}
	if err := c.sendJSON(ctx, http.MethodPost, "POST /auth/verify-email", "/auth/verify-email", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) VerifyResetOTP(ctx context.Context, userID, otp string) error {
	in := map[string]string{"userId": userID, "otp": otp}
	return c.sendJSON(ctx, http.MethodPost, "POST /auth/verify-reset-otp", "/auth/verify-reset-otp", in, nil)
}

func (c *Client) ResetPassword(ctx context.Context, userID, otp, newPassword string) error {
	in := map[string]string{"userId": userID, "otp": otp, "newPassword": newPassword}
	return c.sendJSON(ctx, http.MethodPost, "POST /auth/reset-password", "/auth/reset-password", in, nil)
}

func (c *Client) ResendOTP(ctx context.Context, userID string) error {
	in := map[string]string{"userId": userID}
	return c.sendJSON(ctx, http.MethodPost, "POST /auth/resend-otp", "/auth/resend-otp", in, nil)
}

func (c *Client) ResendResetOTP(ctx context.Context, userID string) error {
	in := map[string]string{"userId": userID}
	return c.sendJSON(ctx, http.MethodPost, "POST /auth/resend-reset-otp", "/auth/resend-reset-otp", in, nil)
}
