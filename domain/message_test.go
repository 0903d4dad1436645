package domain

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMessageStatus_Forward_Transitions(t *testing.T) {
	req := require.New(t)

	req.True(StatusSent.CanAdvanceTo(StatusDelivered))
	req.True(StatusSent.CanAdvanceTo(StatusRead))
	req.True(StatusDelivered.CanAdvanceTo(StatusRead))
}

func TestMessageStatus_Never_Regresses(t *testing.T) {
	req := require.New(t)

	req.False(StatusRead.CanAdvanceTo(StatusDelivered))
	req.False(StatusRead.CanAdvanceTo(StatusSent))
	req.False(StatusDelivered.CanAdvanceTo(StatusSent))
	req.False(StatusSent.CanAdvanceTo(StatusSent))
}

// Random interleavings of delivery/read events must never move a status
// backwards once transitions are guarded by CanAdvanceTo.
func TestMessageStatus_Random_Interleavings_Stay_Monotonic(t *testing.T) {
	req := require.New(t)
	rng := rand.New(rand.NewSource(42))
	events := []MessageStatus{StatusDelivered, StatusRead}

	for i := 0; i < 1000; i++ {
		status := StatusSent
		for j := 0; j < 10; j++ {
			next := events[rng.Intn(len(events))]
			before := status
			if status.CanAdvanceTo(next) {
				status = next
			}
			req.GreaterOrEqual(status.rank(), before.rank())
		}
	}
}

func TestParseMessageType_Defaults_To_Text(t *testing.T) {
	req := require.New(t)

	req.Equal(TypeText, ParseMessageType(""))
	req.Equal(TypeText, ParseMessageType("sticker"))
	req.Equal(TypeImage, ParseMessageType("image"))
	req.Equal(TypeFile, ParseMessageType("file"))
	req.Equal(TypeAudio, ParseMessageType("audio"))
}
