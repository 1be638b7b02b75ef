package middleware

import (
	"github.com/gin-gonic/gin"

	"tourprism/pkg/i18n"
)

const LangKey = "lang"

// LanguageMiddleware 依次按 ?lang、lang cookie、Accept-Language 选择语言
func LanguageMiddleware(i18nSupport *i18n.I18nSupport) gin.HandlerFunc {
	return func(c *gin.Context) {
		cookie, _ := c.Cookie(LangKey)
		lang := i18nSupport.Match(c.Query(LangKey), cookie, c.GetHeader("Accept-Language"))
		if q := c.Query(LangKey); q != "" && q == lang {
			c.SetCookie(LangKey, lang, 365*24*3600, "/", "", false, true)
		}
		c.Set(LangKey, lang)
		c.Next()
	}
}

// Lang returns the negotiated language, "en" when the middleware did not run.
func Lang(c *gin.Context) string {
	if v := c.GetString(LangKey); v != "" {
		return v
	}
	return "en"
}
