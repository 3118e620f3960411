package chat

import (
	"regexp"
	"strings"

	"github.com/weiawesome/wes-chat/internal/domain"
)

// AllMarker is the mention that flags a message for every group member.
const AllMarker = "@all"

var mentionPattern = regexp.MustCompile(`@(\w+)`)

// ResolveMentions extracts @word tokens from body. "all" in any case maps
// to AllMarker; any other token is kept only when it exactly matches a
// member of g. The result is ordered by first appearance, without
// duplicates. The body itself is not changed.
func ResolveMentions(body string, g *domain.Group) []string {
	if g == nil || body == "" {
		return nil
	}

	var mentions []string
	seen := make(map[string]struct{})
	for _, match := range mentionPattern.FindAllStringSubmatch(body, -1) {
		token := match[1]
		if strings.EqualFold(token, "all") {
			token = AllMarker
		} else if !g.IsMember(token) {
			continue
		}
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}
		mentions = append(mentions, token)
	}
	return mentions
}

// MentionedMembers returns the individual members named in mentions,
// dropping the all-marker.
func MentionedMembers(mentions []string) []string {
	names := make([]string, 0, len(mentions))
	for _, m := range mentions {
		if m != AllMarker {
			names = append(names, m)
		}
	}
	return names
}
