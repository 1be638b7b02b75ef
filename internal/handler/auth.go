package handlers

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tourprism/internal/forms"
	"tourprism/pkg/logger"
)

// flow is what every form flow exposes to the pages.
type flow interface {
	Step() forms.Step
	Email() string
	Redirect() string
	Done() bool
	Cooldown() *forms.Cooldown
}

// authForm 登录 / 注册 / 找回密码页面的数据
type authForm struct {
	Step     string
	Email    string
	From     string
	Cooldown int
	Info     string
	Error    string
	Errors   map[string]string
}

func (h *Handlers) cooldown() *forms.Cooldown {
	return forms.NewCooldown(h.cfg.OTPCooldown, h.now)
}

// requireSession 未登录时跳转到 /login?from=<原路径>
func (h *Handlers) requireSession(c *gin.Context) {
	v := h.view(c)
	if !v.sess.Current(c.Request.Context()).Authenticated() {
		h.redirectToLogin(c, "guard.login_required", c.Request.URL.RequestURI())
		return
	}
	c.Next()
}

// redirectIfAuthenticated 已登录访问 /login、/signup 时直接进入 feed
func (h *Handlers) redirectIfAuthenticated(c *gin.Context) {
	v := h.view(c)
	if v.sess.Current(c.Request.Context()).Authenticated() {
		c.Redirect(http.StatusFound, forms.DefaultLanding)
		c.Abort()
		return
	}
	c.Next()
}

// renderFlow re-renders a flow page after a submit, or follows the flow's redirect once done.
// Callers hold v.mu.
func (h *Handlers) renderFlow(c *gin.Context, v *view, name string, f flow, from string, err error, info string) {
	if err == nil && f.Done() {
		v.stopCountdownLocked()
		v.feedLoaded.Store(false)
		c.Redirect(http.StatusSeeOther, f.Redirect())
		return
	}
	form := authForm{
		Step:     f.Step().String(),
		Email:    f.Email(),
		From:     from,
		Cooldown: f.Cooldown().Seconds(),
	}
	if info != "" {
		form.Info = h.tr(c, info, nil)
	}
	form.Error, form.Errors = h.describe(c, err, map[string]interface{}{"Seconds": form.Cooldown})
	if f.Step() != forms.StepCredentials {
		h.watchCountdown(v, f.Cooldown())
	}
	h.render(c, statusFor(err), name, form)
}

// restart sends the visitor back to a fresh form when a submit does not match the flow.
func restart(c *gin.Context, err error, page string) bool {
	if stderrors.Is(err, forms.ErrWrongStep) {
		c.Redirect(http.StatusSeeOther, page)
		return true
	}
	return false
}

// ---- login ----

func (h *Handlers) handleLoginPage(c *gin.Context) {
	v := h.view(c)
	v.mu.Lock()
	defer v.mu.Unlock()
	v.stopCountdownLocked()
	v.login = forms.NewLoginFlow(v.client, v.sess, h.cooldown(), c.Query("from"))
	h.renderFlow(c, v, "login.html", v.login, v.login.ReturnTo(), nil, "")
}

func (h *Handlers) handleLogin(c *gin.Context) {
	v := h.view(c)
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.login == nil || v.login.Step() != forms.StepCredentials {
		v.login = forms.NewLoginFlow(v.client, v.sess, h.cooldown(), c.PostForm("from"))
	}
	err := v.login.SubmitCredentials(c.Request.Context(), c.PostForm("email"), c.PostForm("password"))
	h.renderFlow(c, v, "login.html", v.login, v.login.ReturnTo(), err, "")
}

func (h *Handlers) handleLoginOTP(c *gin.Context) {
	v := h.view(c)
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.login == nil {
		c.Redirect(http.StatusSeeOther, "/login")
		return
	}
	err := v.login.SubmitOTP(c.Request.Context(), c.PostForm("otp"))
	if restart(c, err, "/login") {
		return
	}
	h.renderFlow(c, v, "login.html", v.login, v.login.ReturnTo(), err, "")
}

func (h *Handlers) handleLoginResend(c *gin.Context) {
	v := h.view(c)
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.login == nil {
		c.Redirect(http.StatusSeeOther, "/login")
		return
	}
	err := v.login.Resend(c.Request.Context())
	if restart(c, err, "/login") {
		return
	}
	h.renderFlow(c, v, "login.html", v.login, v.login.ReturnTo(), err, sentNotice(err))
}

// ---- sign up ----

func (h *Handlers) handleSignUpPage(c *gin.Context) {
	v := h.view(c)
	v.mu.Lock()
	defer v.mu.Unlock()
	v.stopCountdownLocked()
	v.signup = forms.NewSignUpFlow(v.client, v.sess, h.cooldown())
	h.renderFlow(c, v, "signup.html", v.signup, "", nil, "")
}

func (h *Handlers) handleSignUp(c *gin.Context) {
	v := h.view(c)
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.signup == nil || v.signup.Step() != forms.StepCredentials {
		v.signup = forms.NewSignUpFlow(v.client, v.sess, h.cooldown())
	}
	terms := c.PostForm("terms") != ""
	err := v.signup.SubmitCredentials(c.Request.Context(), c.PostForm("email"), c.PostForm("password"), terms)
	h.renderFlow(c, v, "signup.html", v.signup, "", err, "")
}

func (h *Handlers) handleSignUpOTP(c *gin.Context) {
	v := h.view(c)
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.signup == nil {
		c.Redirect(http.StatusSeeOther, "/signup")
		return
	}
	err := v.signup.SubmitOTP(c.Request.Context(), c.PostForm("otp"))
	if restart(c, err, "/signup") {
		return
	}
	h.renderFlow(c, v, "signup.html", v.signup, "", err, "")
}

func (h *Handlers) handleSignUpResend(c *gin.Context) {
	v := h.view(c)
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.signup == nil {
		c.Redirect(http.StatusSeeOther, "/signup")
		return
	}
	err := v.signup.Resend(c.Request.Context())
	if restart(c, err, "/signup") {
		return
	}
	h.renderFlow(c, v, "signup.html", v.signup, "", err, sentNotice(err))
}

// ---- forgot password ----

func (h *Handlers) handleForgotPage(c *gin.Context) {
	v := h.view(c)
	v.mu.Lock()
	defer v.mu.Unlock()
	v.stopCountdownLocked()
	v.forgot = forms.NewForgotPasswordFlow(v.client, h.cooldown())
	h.renderFlow(c, v, "forgot.html", v.forgot, "", nil, "")
}

func (h *Handlers) handleForgot(c *gin.Context) {
	v := h.view(c)
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.forgot == nil || v.forgot.Step() != forms.StepCredentials {
		v.forgot = forms.NewForgotPasswordFlow(v.client, h.cooldown())
	}
	err := v.forgot.SubmitEmail(c.Request.Context(), c.PostForm("email"))
	h.renderFlow(c, v, "forgot.html", v.forgot, "", err, "")
}

func (h *Handlers) handleForgotOTP(c *gin.Context) {
	v := h.view(c)
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.forgot == nil {
		c.Redirect(http.StatusSeeOther, "/forgot-password")
		return
	}
	err := v.forgot.SubmitOTP(c.Request.Context(), c.PostForm("otp"))
	if restart(c, err, "/forgot-password") {
		return
	}
	h.renderFlow(c, v, "forgot.html", v.forgot, "", err, "")
}

func (h *Handlers) handleForgotReset(c *gin.Context) {
	v := h.view(c)
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.forgot == nil {
		c.Redirect(http.StatusSeeOther, "/forgot-password")
		return
	}
	err := v.forgot.SubmitNewPassword(c.Request.Context(), c.PostForm("password"), c.PostForm("confirmPassword"))
	if restart(c, err, "/forgot-password") {
		return
	}
	if err == nil && v.forgot.Done() {
		h.flash(c, "password.reset_done")
	}
	h.renderFlow(c, v, "forgot.html", v.forgot, "", err, "")
}

func (h *Handlers) handleForgotResend(c *gin.Context) {
	v := h.view(c)
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.forgot == nil {
		c.Redirect(http.StatusSeeOther, "/forgot-password")
		return
	}
	err := v.forgot.Resend(c.Request.Context())
	if restart(c, err, "/forgot-password") {
		return
	}
	h.renderFlow(c, v, "forgot.html", v.forgot, "", err, sentNotice(err))
}

func sentNotice(err error) string {
	if err != nil {
		return ""
	}
	return "otp.sent"
}

// ---- google / logout ----

// handleGoogleLogin hands the browser to the backend's OAuth entry point.
func (h *Handlers) handleGoogleLogin(c *gin.Context) {
	c.Redirect(http.StatusFound, h.client.GoogleAuthURL())
}

// handleGoogleCallback 后端回调携带 token，拉取资料后进入 feed；任何失败回到登录页
func (h *Handlers) handleGoogleCallback(c *gin.Context) {
	v := h.view(c)
	ctx := c.Request.Context()
	token := c.Query("token")
	if token == "" {
		h.flash(c, "error.login_failed")
		c.Redirect(http.StatusFound, "/login")
		return
	}
	if err := v.sess.Establish(ctx, token, nil); err != nil {
		logger.Warn("store oauth token failed", zap.Error(err))
		h.flash(c, "error.generic")
		c.Redirect(http.StatusFound, "/login")
		return
	}
	user, err := v.client.Profile(ctx)
	if err != nil {
		logger.Warn("fetch profile after oauth failed", zap.Error(err))
		if cerr := v.sess.Clear(ctx); cerr != nil {
			logger.Warn("clear session failed", zap.Error(cerr))
		}
		h.flash(c, "error.login_failed")
		c.Redirect(http.StatusFound, "/login")
		return
	}
	if err := v.sess.SetUser(ctx, user); err != nil {
		logger.Warn("store profile failed", zap.Error(err))
	}
	v.feedLoaded.Store(false)
	c.Redirect(http.StatusFound, forms.DefaultLanding)
}

func (h *Handlers) handleLogout(c *gin.Context) {
	v := h.view(c)
	if err := v.sess.Clear(c.Request.Context()); err != nil {
		logger.Warn("logout failed", zap.Error(err))
	}
	v.mu.Lock()
	v.stopCountdownLocked()
	v.login, v.signup, v.forgot = nil, nil, nil
	v.mu.Unlock()
	c.Redirect(http.StatusSeeOther, "/")
}
