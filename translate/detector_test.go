package translate

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocalDetector_Recognizes_Clear_Languages(t *testing.T) {
	req := require.New(t)
	detector := LocalDetector{}

	code, ok := detector.Detect("Это достаточно длинное сообщение, написанное полностью на русском языке.")
	req.True(ok)
	req.Equal("ru", code)

	code, ok = detector.Detect("This is a reasonably long message written entirely in the English language.")
	req.True(ok)
	req.Equal("en", code)
}

func TestLocalDetector_Unreliable_On_Noise(t *testing.T) {
	req := require.New(t)
	detector := LocalDetector{}

	_, ok := detector.Detect("")
	req.False(ok)
}
