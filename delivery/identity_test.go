package delivery

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"talkify/domain"
	"talkify/errors"
	"talkify/mocks"
)

func TestConversationResolver_Creates_On_First_Contact(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	convs := mocks.NewMockIConversationRepository(ctrl)
	resolver := NewConversationResolver(convs)

	created := domain.Conversation{ID: uuid.New(), Participants: [2]string{"alice", "bob"}}
	gomock.InOrder(
		convs.EXPECT().FindByParticipants("alice", "bob").Return(domain.Conversation{}, errors.ErrNotFound),
		convs.EXPECT().Create("alice", "bob").Return(created, nil),
	)

	conv, err := resolver.Resolve("alice", "bob")
	req.NoError(err)
	req.Equal(created.ID, conv.ID)
}

func TestConversationResolver_Adopts_Winner_After_Lost_Race(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	convs := mocks.NewMockIConversationRepository(ctrl)
	resolver := NewConversationResolver(convs)

	winner := domain.Conversation{ID: uuid.New(), Participants: [2]string{"alice", "bob"}}
	gomock.InOrder(
		convs.EXPECT().FindByParticipants("alice", "bob").Return(domain.Conversation{}, errors.ErrNotFound),
		convs.EXPECT().Create("alice", "bob").Return(domain.Conversation{}, errors.ErrConversationExists),
		convs.EXPECT().FindByParticipants("alice", "bob").Return(winner, nil),
	)

	conv, err := resolver.Resolve("alice", "bob")
	req.NoError(err)
	req.Equal(winner.ID, conv.ID)
}

func TestConversationResolver_Returns_Existing(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	convs := mocks.NewMockIConversationRepository(ctrl)
	resolver := NewConversationResolver(convs)

	existing := domain.Conversation{ID: uuid.New(), Participants: [2]string{"alice", "bob"}}
	convs.EXPECT().FindByParticipants("bob", "alice").Return(existing, nil)

	conv, err := resolver.Resolve("bob", "alice")
	req.NoError(err)
	req.Equal(existing.ID, conv.ID)
}
