package translate

import "github.com/abadojack/whatlanggo"

// LocalDetector is the in-process fallback classifier used when the remote
// detection call fails or no API key is configured. It trades accuracy on
// transliterated text for zero latency and no network dependency.
type LocalDetector struct{}

// Detect returns the ISO 639-1 code of the text's language and whether the
// trigram model considers its own answer reliable. Short or mixed inputs
// commonly come back unreliable; callers then default to English.
func (LocalDetector) Detect(text string) (string, bool) {
	info := whatlanggo.Detect(text)
	code := info.Lang.Iso6391()
	if code == "" || !info.IsReliable() {
		return "", false
	}
	return code, true
}
