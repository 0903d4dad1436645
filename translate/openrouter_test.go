package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

// completionServer answers detection calls with detectAnswer and translation
// calls with translateAnswer, counting each kind.
func completionServer(t *testing.T, detectAnswer, translateAnswer string, detectCalls, translateCalls *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)

		answer := translateAnswer
		if strings.Contains(req.Messages[0].Content, "language detection expert") {
			detectCalls.Add(1)
			answer = detectAnswer
		} else {
			translateCalls.Add(1)
		}

		response := fmt.Sprintf(`{"choices":[{"message":{"role":"assistant","content":%q}}]}`, answer)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(response))
	}))
}

func TestTranslate_Detects_Then_Translates(t *testing.T) {
	req := require.New(t)
	var detectCalls, translateCalls atomic.Int32
	server := completionServer(t, "es", "hello, how are you", &detectCalls, &translateCalls)
	defer server.Close()

	client := NewOpenRouterClient(slog.Default(), ClientConfig{
		APIKey:   "test-key",
		Endpoint: server.URL,
	})

	result, err := client.Translate(context.Background(), "hola, como estas", "en", Auto)
	req.NoError(err)
	req.Equal("hello, how are you", result.TranslatedText)
	req.Equal("es", result.SourceLanguage)
	req.Equal("en", result.TargetLanguage)
	req.Equal(int32(1), detectCalls.Load())
	req.Equal(int32(1), translateCalls.Load())
}

func TestTranslate_Same_Language_Skips_Remote_Translation(t *testing.T) {
	req := require.New(t)
	var detectCalls, translateCalls atomic.Int32
	server := completionServer(t, "es", "should never be used", &detectCalls, &translateCalls)
	defer server.Close()

	client := NewOpenRouterClient(slog.Default(), ClientConfig{
		APIKey:   "test-key",
		Endpoint: server.URL,
	})

	// When the detected source equals the target
	result, err := client.Translate(context.Background(), "hola", "es", Auto)

	// Then the original text passes through and no translation call is made
	req.NoError(err)
	req.Equal("hola", result.TranslatedText)
	req.Equal("es", result.SourceLanguage)
	req.Equal("es", result.TargetLanguage)
	req.Equal(int32(0), translateCalls.Load())
}

func TestTranslate_Remote_Failure_Returns_Original_Text(t *testing.T) {
	req := require.New(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewOpenRouterClient(slog.Default(), ClientConfig{
		APIKey:   "test-key",
		Endpoint: server.URL,
	})

	text := "Ceci est un message suffisamment long pour la détection locale de langue."
	result, err := client.Translate(context.Background(), text, "ja", Auto)

	// The send path must never fail solely because translation failed
	req.Error(err)
	req.Equal(text, result.TranslatedText)
	req.Equal("ja", result.TargetLanguage)
	req.NotEqual(Auto, result.SourceLanguage)
}

func TestTranslate_Without_API_Key_Uses_Local_Detection(t *testing.T) {
	req := require.New(t)
	client := NewOpenRouterClient(slog.Default(), ClientConfig{})

	text := "Este es un mensaje bastante largo escrito completamente en español."
	result, err := client.Translate(context.Background(), text, "es", Auto)

	// Local detection resolves "es"; same-language no-op, no error
	req.NoError(err)
	req.Equal(text, result.TranslatedText)
	req.Equal("es", result.SourceLanguage)
}

func TestTranslate_Explicit_Source_Skips_Detection(t *testing.T) {
	req := require.New(t)
	var detectCalls, translateCalls atomic.Int32
	server := completionServer(t, "xx", "bonjour", &detectCalls, &translateCalls)
	defer server.Close()

	client := NewOpenRouterClient(slog.Default(), ClientConfig{
		APIKey:   "test-key",
		Endpoint: server.URL,
	})

	result, err := client.Translate(context.Background(), "hello", "fr", "en")
	req.NoError(err)
	req.Equal("bonjour", result.TranslatedText)
	req.Equal("en", result.SourceLanguage)
	req.Equal(int32(0), detectCalls.Load())
}
