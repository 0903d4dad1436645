package delivery

import (
	stderrors "errors"

	"talkify/domain"
	"talkify/errors"
	"talkify/repositories"
)

// ConversationResolver finds or creates the single conversation for a user
// pair. The store enforces uniqueness on the canonical pair key, so a racing
// first contact loses the create and adopts the winner.
type ConversationResolver struct {
	convs repositories.IConversationRepository
}

func NewConversationResolver(convs repositories.IConversationRepository) *ConversationResolver {
	return &ConversationResolver{convs: convs}
}

// Resolve returns the conversation for the pair, creating it on first
// contact. Never returns two different conversations for the same pair.
func (r *ConversationResolver) Resolve(userA, userB string) (domain.Conversation, error) {
	conv, err := r.convs.FindByParticipants(userA, userB)
	if err == nil {
		return conv, nil
	}
	if !stderrors.Is(err, errors.ErrNotFound) {
		return domain.Conversation{}, err
	}

	conv, err = r.convs.Create(userA, userB)
	if err == nil {
		return conv, nil
	}
	if stderrors.Is(err, errors.ErrConversationExists) {
		// Lost the first-contact race, the other create won.
		return r.convs.FindByParticipants(userA, userB)
	}
	return domain.Conversation{}, err
}
