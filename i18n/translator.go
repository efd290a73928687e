package i18n

import (
	"strings"
	"sync"
)

// Translator retrieves localized messages for validation issue codes.
// data provides optional values to embed in the message; a placeholder
// {key} in the template is replaced by data["key"].
type Translator interface {
	Message(code string, data map[string]string) string
}

// dictTranslator is the built-in dictionary-based Translator.
type dictTranslator struct{ lang string }

var dictionaries = map[string]map[string]string{
	"en": {
		"too_short":    "must be at least {min} characters",
		"too_long":     "must be at most {max} characters",
		"wrong_length": "must be exactly {len} characters",
		"pattern":      "does not match the expected format",
		"too_small":    "must be greater than or equal to {min}",
		"too_big":      "must be less than or equal to {max}",
		"invalid_enum": "must be one of {enum}",
		"required":     "is required",
		"forbidden":    "must not satisfy {rule}",
	},
	"it": {
		"too_short":    "deve contenere almeno {min} caratteri",
		"too_long":     "deve contenere al massimo {max} caratteri",
		"wrong_length": "deve contenere esattamente {len} caratteri",
		"pattern":      "non corrisponde al formato previsto",
		"too_small":    "deve essere maggiore o uguale a {min}",
		"too_big":      "deve essere minore o uguale a {max}",
		"invalid_enum": "deve essere uno tra {enum}",
		"required":     "è obbligatorio",
		"forbidden":    "non deve soddisfare {rule}",
	},
}

func (t dictTranslator) Message(code string, data map[string]string) string {
	tmpl, ok := dictionaries[t.lang][code]
	if !ok {
		return code
	}
	return Expand(tmpl, data)
}

// Expand replaces {key} placeholders in tmpl with values from data. Unknown
// placeholders are left as they are.
func Expand(tmpl string, data map[string]string) string {
	if len(data) == 0 || !strings.Contains(tmpl, "{") {
		return tmpl
	}
	pairs := make([]string, 0, 2*len(data))
	for k, v := range data {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

var (
	mu                sync.RWMutex
	currentTranslator Translator = dictTranslator{lang: "en"}
)

// SetLanguage switches the built-in Translator language ("en"/"it").
func SetLanguage(lang string) {
	if _, ok := dictionaries[lang]; !ok {
		lang = "en"
	}
	mu.Lock()
	currentTranslator = dictTranslator{lang: lang}
	mu.Unlock()
}

// SetTranslator replaces the Translator implementation (not limited to the
// dictionary version).
func SetTranslator(tr Translator) {
	mu.Lock()
	defer mu.Unlock()
	if tr == nil {
		currentTranslator = dictTranslator{lang: "en"}
		return
	}
	currentTranslator = tr
}

// For returns the built-in Translator for lang without changing the current one.
func For(lang string) Translator {
	if _, ok := dictionaries[lang]; !ok {
		lang = "en"
	}
	return dictTranslator{lang: lang}
}

// T fetches a message for the given code using the current Translator.
func T(code string, data map[string]string) string {
	mu.RLock()
	tr := currentTranslator
	mu.RUnlock()
	return tr.Message(code, data)
}
