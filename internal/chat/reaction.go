package chat

import "github.com/weiawesome/wes-chat/internal/domain"

// ApplyReaction records user's reaction on m, replacing any earlier one
// from the same user. The new entry goes to the end of the list.
func ApplyReaction(m *domain.Message, user, emoji string) ([]domain.Reaction, error) {
	if emoji == "" {
		return nil, ErrEmptyReaction
	}

	reactions := make([]domain.Reaction, 0, len(m.Reactions)+1)
	for _, r := range m.Reactions {
		if r.Username != user {
			reactions = append(reactions, r)
		}
	}
	reactions = append(reactions, domain.Reaction{Username: user, Emoji: emoji})

	m.Reactions = reactions
	return reactions, nil
}
