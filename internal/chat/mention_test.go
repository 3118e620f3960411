package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/weiawesome/wes-chat/internal/domain"
)

func TestResolveMentions(t *testing.T) {
	g := &domain.Group{Name: "devs", Members: []string{"alice", "Carol", "bob"}}

	tests := []struct {
		name string
		body string
		want []string
	}{
		{"all and member", "hey @all and @Carol", []string{"@all", "Carol"}},
		{"all any case", "@ALL @All", []string{"@all"}},
		{"case sensitive member", "@carol @Carol", []string{"Carol"}},
		{"non member dropped", "@dave @bob", []string{"bob"}},
		{"duplicates collapsed", "@bob @bob @alice @bob", []string{"bob", "alice"}},
		{"embedded token", "mail me at x@alice.dev", []string{"alice"}},
		{"no mentions", "plain text", nil},
		{"empty", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveMentions(tt.body, g))
		})
	}
}

func TestResolveMentions_NoGroup(t *testing.T) {
	assert.Nil(t, ResolveMentions("@all @bob", nil))
}

func TestMentionedMembers(t *testing.T) {
	assert.Equal(t, []string{"Carol", "bob"}, MentionedMembers([]string{"@all", "Carol", "bob"}))
	assert.Empty(t, MentionedMembers([]string{"@all"}))
}
