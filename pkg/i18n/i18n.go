package i18n

import (
	"embed"
	"encoding/json"
	"path"
	"strings"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"go.uber.org/zap"
	"golang.org/x/text/language"

	"tourprism/pkg/logger"
)

//go:embed locales/*.json
var localeFS embed.FS

// I18nSupport 国际化支持结构体
type I18nSupport struct {
	bundle  *i18n.Bundle
	matcher language.Matcher
	tags    []language.Tag
}

// NewI18nSupport 初始化国际化支持，加载内嵌的全部语言文件
func NewI18nSupport(defaultLang string) (*I18nSupport, error) {
	def, err := language.Parse(defaultLang)
	if err != nil {
		def = language.English
	}
	bundle := i18n.NewBundle(def)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		return nil, err
	}
	tags := []language.Tag{def}
	for _, e := range entries {
		p := path.Join("locales", e.Name())
		buf, err := localeFS.ReadFile(p)
		if err != nil {
			return nil, err
		}
		mf, err := bundle.ParseMessageFileBytes(buf, p)
		if err != nil {
			return nil, err
		}
		if mf.Tag != def {
			tags = append(tags, mf.Tag)
		}
	}

	return &I18nSupport{
		bundle:  bundle,
		matcher: language.NewMatcher(tags),
		tags:    tags,
	}, nil
}

// Match 根据 Accept-Language 选出支持的语言
func (i *I18nSupport) Match(accept ...string) string {
	for _, a := range accept {
		if strings.TrimSpace(a) == "" {
			continue
		}
		prefs, _, err := language.ParseAcceptLanguage(a)
		if err != nil || len(prefs) == 0 {
			continue
		}
		_, idx, conf := i.matcher.Match(prefs...)
		if conf != language.No {
			base, _ := i.tags[idx].Base()
			return base.String()
		}
	}
	base, _ := i.tags[0].Base()
	return base.String()
}

// T 获取翻译文本，找不到时返回 key
func (i *I18nSupport) T(languageTag, key string, templateData map[string]interface{}) string {
	localizer := i18n.NewLocalizer(i.bundle, languageTag)

	translation, err := localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    key,
		TemplateData: templateData,
	})
	if err != nil {
		logger.Debug("missing translation", zap.String("key", key), zap.String("lang", languageTag), zap.Error(err))
		return key
	}
	return translation
}

// TWithDefaultLang 使用默认语言获取翻译文本
func (i *I18nSupport) TWithDefaultLang(key string, templateData map[string]interface{}) string {
	return i.T("", key, templateData)
}

// Has reports whether key exists in the default language.
func (i *I18nSupport) Has(key string) bool {
	_, err := i18n.NewLocalizer(i.bundle).Localize(&i18n.LocalizeConfig{MessageID: key})
	return err == nil
}
