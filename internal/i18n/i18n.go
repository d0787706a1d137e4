package i18n

import "strings"

type Lang string

const (
	ZH Lang = "zh"
	EN Lang = "en"
)

// Default is the language of the reader base.
const Default = ZH

func FromLanguageCode(code string) Lang {
	code = strings.ToLower(strings.TrimSpace(code))
	switch {
	case strings.HasPrefix(code, "zh"):
		return ZH
	case strings.HasPrefix(code, "en"):
		return EN
	default:
		return Default
	}
}

// FromAcceptLanguage picks the first supported language from an Accept-Language header.
func FromAcceptLanguage(header string) Lang {
	for _, part := range strings.Split(header, ",") {
		tag, _, _ := strings.Cut(part, ";")
		tag = strings.ToLower(strings.TrimSpace(tag))
		switch {
		case strings.HasPrefix(tag, "zh"):
			return ZH
		case strings.HasPrefix(tag, "en"):
			return EN
		}
	}
	return Default
}

func Parse(s string) Lang {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "zh":
		return ZH
	case "en":
		return EN
	default:
		return Default
	}
}
