package translate

// Language pairs an ISO 639-1 code with its display name.
type Language struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// languageNames maps the codes the service supports to names the
// translation model is prompted with.
var languageNames = map[string]string{
	"en": "English",
	"hi": "Hindi",
	"te": "Telugu",
	"ta": "Tamil",
	"kn": "Kannada",
	"ml": "Malayalam",
	"mr": "Marathi",
	"gu": "Gujarati",
	"bn": "Bengali",
	"pa": "Punjabi",
	"ur": "Urdu",
	"es": "Spanish",
	"fr": "French",
	"de": "German",
	"ja": "Japanese",
	"ko": "Korean",
	"zh": "Chinese",
	"ar": "Arabic",
	"pt": "Portuguese",
	"ru": "Russian",
}

// LanguageName resolves a code to a display name, falling back to the code
// itself for languages outside the supported set.
func LanguageName(code string) string {
	if name, ok := languageNames[code]; ok {
		return name
	}
	return code
}

// SupportedLanguages returns the full supported set in a stable order.
func SupportedLanguages() []Language {
	codes := []string{
		"en", "es", "fr", "de", "hi", "te", "ta", "kn", "ml", "mr",
		"gu", "bn", "pa", "ur", "ja", "ko", "zh", "ar", "pt", "ru",
	}
	languages := make([]Language, 0, len(codes))
	for _, code := range codes {
		languages = append(languages, Language{Code: code, Name: languageNames[code]})
	}
	return languages
}
