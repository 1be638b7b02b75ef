package forms

import (
	"context"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"tourprism/internal/api"
	"tourprism/internal/models"
	"tourprism/pkg/errors"
	"tourprism/pkg/logger"
)

// Auth is the part of api.Client the form flows call.
type Auth interface {
	Login(ctx context.Context, cred api.Credentials) (*models.AuthResponse, error)
	Register(ctx context.Context, cred api.Credentials) (*models.AuthResponse, error)
	VerifyEmail(ctx context.Context, userID, otp string) (*models.AuthResponse, error)
	ResendOTP(ctx context.Context, userID string) error
	ForgotPassword(ctx context.Context, email string) (*models.AuthResponse, error)
	VerifyResetOTP(ctx context.Context, userID, otp string) error
	ResetPassword(ctx context.Context, userID, otp, newPassword string) error
	ResendResetOTP(ctx context.Context, userID string) error
}

// SessionWriter establishes the session once a flow completes.
type SessionWriter interface {
	Establish(ctx context.Context, token string, user *models.User) error
}

type Step int

const (
	StepCredentials Step = iota
	StepOTP
	StepNewPassword
	StepDone
)

func (s Step) String() string {
	switch s {
	case StepCredentials:
		return "credentials"
	case StepOTP:
		return "otp"
	case StepNewPassword:
		return "new_password"
	case StepDone:
		return "done"
	}
	return "unknown"
}

// DefaultLanding is where a completed sign in goes without a return path.
const DefaultLanding = "/feed"

// ErrWrongStep is returned when a submit does not match the current step.
var ErrWrongStep = errors.New(errors.KindValidation, "form is not at this step")

// failure resolves what a backend error shows: a known message id, the raw backend
// text, or fallback. The original error stays in the chain.
func failure(err error, fallback string) error {
	id, raw := api.Describe(err, fallback)
	e := errors.Wrap(errors.KindOf(err), err, raw).WithMsgID(id)
	e.Code = errors.GetCode(err)
	return e
}

func cooldownError(c *Cooldown) error {
	e := errors.New(errors.KindValidation, "resend is cooling down").WithMsgID("otp.cooldown")
	e.Fields = map[string]string{FieldOTP: "otp.cooldown"}
	return e.WithContext("seconds", strconv.Itoa(c.Seconds()))
}

// otpFlow holds what every flow shares once an OTP was sent.
type otpFlow struct {
	auth     Auth
	cooldown *Cooldown
	step     Step
	userID   string
	email    string
	redirect string
}

func (f *otpFlow) Step() Step { return f.step }

func (f *otpFlow) UserID() string { return f.userID }

func (f *otpFlow) Email() string { return f.email }

func (f *otpFlow) Redirect() string { return f.redirect }

func (f *otpFlow) Cooldown() *Cooldown { return f.cooldown }

func (f *otpFlow) Done() bool { return f.step == StepDone }

func (f *otpFlow) toOTP(userID string) {
	f.userID = userID
	f.step = StepOTP
	f.cooldown.Start()
}

func (f *otpFlow) finish(redirect string) {
	f.step = StepDone
	f.redirect = redirect
}

// resend calls send unless the cooldown is active, in which case nothing goes out.
func (f *otpFlow) resend(ctx context.Context, send func(context.Context, string) error, fallback string) error {
	if f.step != StepOTP {
		return ErrWrongStep
	}
	if f.cooldown.Active() {
		return cooldownError(f.cooldown)
	}
	if err := send(ctx, f.userID); err != nil {
		return failure(err, fallback)
	}
	f.cooldown.Start()
	return nil
}

// LoginFlow 登录：凭据 -> (未验证时) OTP -> 完成
type LoginFlow struct {
	otpFlow
	sess     SessionWriter
	returnTo string
}

func NewLoginFlow(auth Auth, sess SessionWriter, cooldown *Cooldown, returnTo string) *LoginFlow {
	return &LoginFlow{otpFlow: otpFlow{auth: auth, cooldown: cooldown}, sess: sess, returnTo: SafeReturnPath(returnTo)}
}

func (f *LoginFlow) ReturnTo() string { return f.returnTo }

func (f *LoginFlow) landing() string {
	if f.returnTo != "" {
		return f.returnTo
	}
	return DefaultLanding
}

func (f *LoginFlow) SubmitCredentials(ctx context.Context, email, password string) error {
	if f.step != StepCredentials {
		return ErrWrongStep
	}
	fe := fieldErrors{}
	fe.check(FieldEmail, ValidateEmail(email))
	fe.check(FieldPassword, ValidateLoginPassword(password))
	if err := errors.Validation(fe); err != nil {
		return err
	}
	f.email = strings.TrimSpace(email)

	resp, err := f.auth.Login(ctx, api.Credentials{Email: f.email, Password: password})
	if err != nil {
		return failure(err, "error.login_failed")
	}
	if resp.NeedsVerification {
		f.toOTP(resp.UserID)
		logger.Info("login needs verification", zap.String("user", resp.UserID))
		return nil
	}
	if err := f.sess.Establish(ctx, resp.Token, resp.User); err != nil {
		return errors.Wrap(errors.KindUnknown, err, "store session").WithMsgID("error.generic")
	}
	f.finish(f.landing())
	return nil
}

func (f *LoginFlow) SubmitOTP(ctx context.Context, otp string) error {
	if f.step != StepOTP {
		return ErrWrongStep
	}
	if err := verifyAndEstablish(ctx, f.auth, f.sess, f.userID, otp); err != nil {
		return err
	}
	f.finish(f.landing())
	return nil
}

func (f *LoginFlow) Resend(ctx context.Context) error {
	return f.resend(ctx, f.auth.ResendOTP, "error.resend_failed")
}

// SignUpFlow 注册：凭据 + 条款 -> OTP -> 完成
type SignUpFlow struct {
	otpFlow
	sess SessionWriter
}

func NewSignUpFlow(auth Auth, sess SessionWriter, cooldown *Cooldown) *SignUpFlow {
	return &SignUpFlow{otpFlow: otpFlow{auth: auth, cooldown: cooldown}, sess: sess}
}

func (f *SignUpFlow) SubmitCredentials(ctx context.Context, email, password string, termsAccepted bool) error {
	if f.step != StepCredentials {
		return ErrWrongStep
	}
	fe := fieldErrors{}
	fe.check(FieldEmail, ValidateEmail(email))
	fe.check(FieldPassword, ValidatePassword(password))
	if !termsAccepted {
		fe[FieldTerms] = "terms.required"
	}
	if err := errors.Validation(fe); err != nil {
		return err
	}
	f.email = strings.TrimSpace(email)

	resp, err := f.auth.Register(ctx, api.Credentials{Email: f.email, Password: password})
	if err != nil {
		return failure(err, "error.register_failed")
	}
	if resp.UserID == "" && resp.Token != "" {
		if err := f.sess.Establish(ctx, resp.Token, resp.User); err != nil {
			return errors.Wrap(errors.KindUnknown, err, "store session").WithMsgID("error.generic")
		}
		f.finish(DefaultLanding)
		return nil
	}
	f.toOTP(resp.UserID)
	return nil
}

func (f *SignUpFlow) SubmitOTP(ctx context.Context, otp string) error {
	if f.step != StepOTP {
		return ErrWrongStep
	}
	if err := verifyAndEstablish(ctx, f.auth, f.sess, f.userID, otp); err != nil {
		return err
	}
	f.finish(DefaultLanding)
	return nil
}

func (f *SignUpFlow) Resend(ctx context.Context) error {
	return f.resend(ctx, f.auth.ResendOTP, "error.resend_failed")
}

func verifyAndEstablish(ctx context.Context, auth Auth, sess SessionWriter, userID, otp string) error {
	if id := ValidateOTP(otp); id != "" {
		return errors.Validation(map[string]string{FieldOTP: id})
	}
	resp, err := auth.VerifyEmail(ctx, userID, otp)
	if err != nil {
		return failure(err, "otp.invalid")
	}
	if resp.Token != "" {
		if err := sess.Establish(ctx, resp.Token, resp.User); err != nil {
			return errors.Wrap(errors.KindUnknown, err, "store session").WithMsgID("error.generic")
		}
	}
	return nil
}

// ForgotPasswordFlow 找回密码：邮箱 -> OTP -> 新密码 -> 回到登录页
type ForgotPasswordFlow struct {
	otpFlow
	otp string
}

func NewForgotPasswordFlow(auth Auth, cooldown *Cooldown) *ForgotPasswordFlow {
	return &ForgotPasswordFlow{otpFlow: otpFlow{auth: auth, cooldown: cooldown}}
}

func (f *ForgotPasswordFlow) SubmitEmail(ctx context.Context, email string) error {
	if f.step != StepCredentials {
		return ErrWrongStep
	}
	if id := ValidateEmail(email); id != "" {
		return errors.Validation(map[string]string{FieldEmail: id})
	}
	f.email = strings.TrimSpace(email)
	resp, err := f.auth.ForgotPassword(ctx, f.email)
	if err != nil {
		return failure(err, "error.reset_email_failed")
	}
	f.toOTP(resp.UserID)
	return nil
}

func (f *ForgotPasswordFlow) SubmitOTP(ctx context.Context, otp string) error {
	if f.step != StepOTP {
		return ErrWrongStep
	}
	if id := ValidateOTP(otp); id != "" {
		return errors.Validation(map[string]string{FieldOTP: id})
	}
	if err := f.auth.VerifyResetOTP(ctx, f.userID, otp); err != nil {
		return failure(err, "otp.invalid")
	}
	f.otp = otp
	f.step = StepNewPassword
	f.cooldown.Start()
	return nil
}

func (f *ForgotPasswordFlow) SubmitNewPassword(ctx context.Context, password, confirm string) error {
	if f.step != StepNewPassword {
		return ErrWrongStep
	}
	fe := fieldErrors{}
	fe.check(FieldPassword, ValidatePassword(password))
	switch {
	case confirm == "":
		fe[FieldConfirmPassword] = "password.confirm_required"
	case confirm != password:
		fe[FieldConfirmPassword] = "password.mismatch"
	}
	if err := errors.Validation(fe); err != nil {
		return err
	}
	if err := f.auth.ResetPassword(ctx, f.userID, f.otp, password); err != nil {
		return failure(err, "error.reset_failed")
	}
	f.finish("/login")
	return nil
}

func (f *ForgotPasswordFlow) Resend(ctx context.Context) error {
	return f.resend(ctx, f.auth.ResendResetOTP, "error.resend_failed")
}

// SafeReturnPath keeps only local absolute paths, so a "from" value cannot redirect off site.
func SafeReturnPath(p string) string {
	if p == "" || !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.HasPrefix(p, "/\\") {
		return ""
	}
	if p == "/login" || p == "/signup" {
		return ""
	}
	return p
}
