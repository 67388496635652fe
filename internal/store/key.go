// Conversation key builder and parser.
//
// Conversation keys follow the canonical format:
//
//	conv:{orgID}:{contactExternalID}
//
// The key is stable for the lifetime of a contact within an organization;
// every ephemeral primitive (dedup aside) and the conversation aggregate are
// addressed by it.
package store

import (
	"fmt"
	"strings"
)

// ConversationKey builds the canonical key for an org + external contact.
func ConversationKey(orgID, contactExternalID string) string {
	return fmt.Sprintf("conv:%s:%s", orgID, contactExternalID)
}

// ParseConversationKey splits a canonical key into org id and external
// contact id. Returns ok=false for malformed keys.
func ParseConversationKey(key string) (orgID, contactExternalID string, ok bool) {
	parts := strings.SplitN(key, ":", 3)
	if len(parts) != 3 || parts[0] != "conv" || parts[1] == "" || parts[2] == "" {
		return "", "", false
	}
	return parts[1], parts[2], true
}
