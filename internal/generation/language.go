package generation

import (
	"errors"
	"fmt"
)

// ErrUnsupportedLanguage is returned for a target language outside the fixed set.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// Language is a translation target code.
type Language string

const (
	English Language = "en"
	Urdu    Language = "ur"
	German  Language = "de"
	French  Language = "fr"

	// SourceLanguage is the language the textbook is written in.
	SourceLanguage = English
)

var languageNames = map[Language]string{
	English: "English",
	Urdu:    "Urdu",
	German:  "German",
	French:  "French",
}

// ParseLanguage validates a language code.
func ParseLanguage(code string) (Language, error) {
	l := Language(code)
	if _, ok := languageNames[l]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedLanguage, code)
	}
	return l, nil
}

// Name returns the English name of the language.
func (l Language) Name() string {
	if n, ok := languageNames[l]; ok {
		return n
	}
	return "English"
}
