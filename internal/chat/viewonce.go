package chat

import "github.com/weiawesome/wes-chat/internal/domain"

// ConsumeViewOnce records that viewer opened a view-once image.
// The media itself is left untouched.
func ConsumeViewOnce(m *domain.Message, viewer string) error {
	if !m.IsViewOnce || !m.HasImage() {
		return ErrNotViewOnce
	}
	for _, v := range m.ViewedBy {
		if v == viewer {
			return ErrAlreadyViewed
		}
	}
	m.ViewedBy = append(m.ViewedBy, viewer)
	return nil
}
