package forms

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tourprism/internal/api"
	"tourprism/internal/models"
	"tourprism/pkg/errors"
	"tourprism/pkg/scheduler"
)

type fakeAuth struct {
	calls []string

	loginResp  *models.AuthResponse
	loginErr   error
	verifyResp *models.AuthResponse
	verifyErr  error
	resendErr  error
}

func (f *fakeAuth) Login(_ context.Context, _ api.Credentials) (*models.AuthResponse, error) {
	f.calls = append(f.calls, "login")
	return f.loginResp, f.loginErr
}

func (f *fakeAuth) Register(_ context.Context, _ api.Credentials) (*models.AuthResponse, error) {
	f.calls = append(f.calls, "register")
	return &models.AuthResponse{UserID: "u-new"}, nil
}

func (f *fakeAuth) VerifyEmail(_ context.Context, userID, otp string) (*models.AuthResponse, error) {
	f.calls = append(f.calls, "verify:"+userID+":"+otp)
	return f.verifyResp, f.verifyErr
}

func (f *fakeAuth) ResendOTP(_ context.Context, userID string) error {
	f.calls = append(f.calls, "resend:"+userID)
	return f.resendErr
}

func (f *fakeAuth) ForgotPassword(_ context.Context, email string) (*models.AuthResponse, error) {
	f.calls = append(f.calls, "forgot:"+email)
	return &models.AuthResponse{UserID: "u-reset"}, nil
}

func (f *fakeAuth) VerifyResetOTP(_ context.Context, userID, otp string) error {
	f.calls = append(f.calls, "verify-reset:"+otp)
	return nil
}

func (f *fakeAuth) ResetPassword(_ context.Context, userID, otp, pw string) error {
	f.calls = append(f.calls, "reset:"+userID+":"+otp+":"+pw)
	return nil
}

func (f *fakeAuth) ResendResetOTP(_ context.Context, userID string) error {
	f.calls = append(f.calls, "resend-reset:"+userID)
	return nil
}

type fakeSession struct {
	token string
	user  *models.User
}

func (s *fakeSession) Establish(_ context.Context, token string, user *models.User) error {
	s.token, s.user = token, user
	return nil
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newCooldown() (*Cooldown, *clock) {
	c := &clock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	return NewCooldown(DefaultCooldown, c.now), c
}

func TestValidateOTP(t *testing.T) {
	assert.Empty(t, ValidateOTP("123456"))
	for _, bad := range []string{"12345", "1234567", "12a456", " 123456", "١٢٣٤٥٦"} {
		assert.Equal(t, "otp.invalid", ValidateOTP(bad), bad)
	}
	assert.Equal(t, "otp.required", ValidateOTP(""))
}

func TestValidatePasswordDistinctErrors(t *testing.T) {
	cases := map[string]string{
		"":        "password.required",
		"Ab1":     "password.short",
		"abcdef1": "password.no_upper",
		"ABCDEF1": "password.no_lower",
		"Abcdefg": "password.no_digit",
		"Abcdef1": "",
	}
	for pw, want := range cases {
		assert.Equal(t, want, ValidatePassword(pw), pw)
	}
	assert.Empty(t, ValidateLoginPassword("abcdef"), "login only checks length")
}

func TestValidateEmail(t *testing.T) {
	assert.Empty(t, ValidateEmail("traveller@example.co.uk"))
	assert.Equal(t, "email.invalid", ValidateEmail("traveller@example"))
	assert.Equal(t, "email.required", ValidateEmail(" "))
}

func TestLoginVerifiedGoesStraightToLanding(t *testing.T) {
	auth := &fakeAuth{loginResp: &models.AuthResponse{Token: "tok", User: &models.User{ID: "u1"}}}
	sess := &fakeSession{}
	cd, _ := newCooldown()
	f := NewLoginFlow(auth, sess, cd, "")

	require.NoError(t, f.SubmitCredentials(context.Background(), "a@b.co", "secret"))
	assert.Equal(t, StepDone, f.Step())
	assert.Equal(t, "/feed", f.Redirect())
	assert.Equal(t, "tok", sess.token)
	assert.False(t, cd.Active())
}

func TestLoginUnverifiedGoesThroughOTP(t *testing.T) {
	auth := &fakeAuth{
		loginResp:  &models.AuthResponse{NeedsVerification: true, UserID: "u9"},
		verifyResp: &models.AuthResponse{Token: "tok9", User: &models.User{ID: "u9"}},
	}
	sess := &fakeSession{}
	cd, _ := newCooldown()
	f := NewLoginFlow(auth, sess, cd, "/post-alert")
	ctx := context.Background()

	require.NoError(t, f.SubmitCredentials(ctx, "a@b.co", "secret"))
	assert.Equal(t, StepOTP, f.Step())
	assert.True(t, cd.Active())
	assert.Empty(t, sess.token)

	err := f.SubmitOTP(ctx, "12ab56")
	require.Error(t, err)
	assert.Equal(t, "otp.invalid", errors.GetFields(err)[FieldOTP])
	assert.Equal(t, []string{"login"}, auth.calls, "no call on invalid input")

	require.NoError(t, f.SubmitOTP(ctx, "123456"))
	assert.Equal(t, StepDone, f.Step())
	assert.Equal(t, "/post-alert", f.Redirect())
	assert.Equal(t, "tok9", sess.token)
}

func TestLoginValidationMakesNoCall(t *testing.T) {
	auth := &fakeAuth{}
	cd, _ := newCooldown()
	f := NewLoginFlow(auth, &fakeSession{}, cd, "")

	err := f.SubmitCredentials(context.Background(), "nope", "123")
	require.Error(t, err)
	fields := errors.GetFields(err)
	assert.Equal(t, "email.invalid", fields[FieldEmail])
	assert.Equal(t, "password.short", fields[FieldPassword])
	assert.Empty(t, auth.calls)
}

func TestLoginBackendMessages(t *testing.T) {
	cd, _ := newCooldown()
	auth := &fakeAuth{loginErr: errors.WithCode(400, "Invalid credentials").WithMsgID(api.KnownMessageID("Invalid credentials"))}
	f := NewLoginFlow(auth, &fakeSession{}, cd, "")
	err := f.SubmitCredentials(context.Background(), "a@b.co", "secret")
	assert.Equal(t, "error.invalid_credentials", errors.GetMsgID(err))

	auth.loginErr = errors.WithCode(500, "")
	err = f.SubmitCredentials(context.Background(), "a@b.co", "secret")
	assert.Equal(t, "error.login_failed", errors.GetMsgID(err))

	auth.loginErr = errors.WithCode(400, "Account locked for review")
	err = f.SubmitCredentials(context.Background(), "a@b.co", "secret")
	assert.Empty(t, errors.GetMsgID(err))
	assert.Equal(t, "Account locked for review", errors.GetMessage(err))
	assert.Equal(t, 400, errors.GetCode(err))
}

func TestResendCooldown(t *testing.T) {
	auth := &fakeAuth{}
	cd, clk := newCooldown()
	f := NewSignUpFlow(auth, &fakeSession{}, cd)
	ctx := context.Background()

	require.NoError(t, f.SubmitCredentials(ctx, "a@b.co", "Abcdef1", true))
	assert.Equal(t, StepOTP, f.Step())
	assert.Equal(t, 60, cd.Seconds())

	clk.t = clk.t.Add(59*time.Second + 500*time.Millisecond)
	err := f.Resend(ctx)
	require.Error(t, err)
	assert.Equal(t, "otp.cooldown", errors.GetMsgID(err))
	assert.Equal(t, 1, cd.Seconds())
	assert.Equal(t, []string{"register"}, auth.calls)

	clk.t = clk.t.Add(time.Second)
	require.NoError(t, f.Resend(ctx))
	assert.Equal(t, []string{"register", "resend:u-new"}, auth.calls)
	assert.True(t, cd.Active())
}

func TestSignUpRequiresTerms(t *testing.T) {
	auth := &fakeAuth{}
	cd, _ := newCooldown()
	f := NewSignUpFlow(auth, &fakeSession{}, cd)

	err := f.SubmitCredentials(context.Background(), "a@b.co", "abcdef", false)
	fields := errors.GetFields(err)
	assert.Equal(t, "terms.required", fields[FieldTerms])
	assert.Equal(t, "password.no_upper", fields[FieldPassword])
	assert.Empty(t, auth.calls)
}

func TestSignUpCompletesAfterOTP(t *testing.T) {
	auth := &fakeAuth{verifyResp: &models.AuthResponse{Token: "t", User: &models.User{ID: "u-new"}}}
	sess := &fakeSession{}
	cd, _ := newCooldown()
	f := NewSignUpFlow(auth, sess, cd)
	ctx := context.Background()

	require.NoError(t, f.SubmitCredentials(ctx, "a@b.co", "Abcdef1", true))
	require.NoError(t, f.SubmitOTP(ctx, "654321"))
	assert.Equal(t, "/feed", f.Redirect())
	assert.Equal(t, "t", sess.token)
}

func TestForgotPasswordFlow(t *testing.T) {
	auth := &fakeAuth{}
	cd, _ := newCooldown()
	f := NewForgotPasswordFlow(auth, cd)
	ctx := context.Background()

	require.NoError(t, f.SubmitEmail(ctx, "a@b.co"))
	assert.Equal(t, StepOTP, f.Step())
	require.NoError(t, f.SubmitOTP(ctx, "111222"))
	assert.Equal(t, StepNewPassword, f.Step())

	err := f.SubmitNewPassword(ctx, "Abcdef1", "Abcdef2")
	assert.Equal(t, "password.mismatch", errors.GetFields(err)[FieldConfirmPassword])

	require.NoError(t, f.SubmitNewPassword(ctx, "Abcdef1", "Abcdef1"))
	assert.Equal(t, StepDone, f.Step())
	assert.Equal(t, "/login", f.Redirect())
	assert.Contains(t, auth.calls, "reset:u-reset:111222:Abcdef1")
}

func TestWrongStep(t *testing.T) {
	cd, _ := newCooldown()
	f := NewLoginFlow(&fakeAuth{}, &fakeSession{}, cd, "")
	assert.ErrorIs(t, f.SubmitOTP(context.Background(), "123456"), ErrWrongStep)
	assert.ErrorIs(t, f.Resend(context.Background()), ErrWrongStep)
}

func TestSafeReturnPath(t *testing.T) {
	assert.Equal(t, "/post-alert", SafeReturnPath("/post-alert"))
	assert.Empty(t, SafeReturnPath("https://evil.example"))
	assert.Empty(t, SafeReturnPath("//evil.example"))
	assert.Empty(t, SafeReturnPath("/login"))
}

func TestCooldownWatch(t *testing.T) {
	s := scheduler.New()
	defer s.Stop()
	cd := NewCooldown(1500*time.Millisecond, nil)
	cd.Start()

	ticks := make(chan int, 8)
	stop := cd.Watch(s, func(n int) { ticks <- n })
	defer stop()

	var got []int
	timeout := time.After(5 * time.Second)
	for {
		select {
		case n := <-ticks:
			got = append(got, n)
			if n == 0 {
				assert.Equal(t, []int{1, 0}, got)
				return
			}
		case <-timeout:
			t.Fatalf("no final tick, got %v", got)
		}
	}
}
