// ABOUTME: Mention extraction from message content
// ABOUTME: Best-effort: malformed content degrades to a message with no references

package chat

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/samber/lo"

	"github.com/azmaveth/jido-chat/internal/store"
)

// mentionsMetadataKey holds the comma-joined ids of mentioned participants.
const mentionsMetadataKey = "mentions"

var mentionPattern = regexp.MustCompile(`@([\w.-]+)`)

// extractMentions returns the ids of room participants referenced as
// @tokens in the content, matched against participant ids and display
// names. Returns ErrParse for content that cannot be scanned.
func extractMentions(content string, participants []store.Participant) ([]string, error) {
	if !utf8.ValidString(content) {
		return nil, ErrParse
	}

	matches := mentionPattern.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		return nil, nil
	}

	byName := make(map[string]string, len(participants)*2)
	for _, p := range participants {
		byName[strings.ToLower(p.ID)] = p.ID
		if p.DisplayName != "" {
			byName[strings.ToLower(p.DisplayName)] = p.ID
		}
	}

	var ids []string
	for _, m := range matches {
		if id, ok := byName[strings.ToLower(m[1])]; ok {
			ids = append(ids, id)
		}
	}
	return lo.Uniq(ids), nil
}
