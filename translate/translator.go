//go:generate go run go.uber.org/mock/mockgen -source=translator.go -destination=../mocks/mock_translator.go -package=mocks

// Package translate reaches the remote text-to-text translation provider.
// The send pipeline must never fail solely because translation failed, so
// every implementation degrades to returning the original text.
package translate

import "context"

// Result is a finished translation. SourceLanguage is always a resolved
// language code, never "auto".
type Result struct {
	TranslatedText string `json:"translatedText"`
	SourceLanguage string `json:"sourceLanguage"`
	TargetLanguage string `json:"targetLanguage"`
}

// Translator converts text into targetLang. Passing sourceLang "auto" asks
// the implementation to detect the source from the text itself, which copes
// with transliterated or code-mixed input better than trusting the sender's
// stated language.
//
// On failure implementations return a usable pass-through Result (original
// text, best-known source guess) alongside the error; callers log the
// degradation and keep going.
type Translator interface {
	Translate(ctx context.Context, text, targetLang, sourceLang string) (Result, error)
}

// Auto requests source-language detection.
const Auto = "auto"
