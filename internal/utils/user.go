package utils

import (
	"hash/fnv"
)

var avatarEmojis = []string{"🌱", "🌿", "🍃", "🌾", "🎋", "🎍", "🌲", "🌳", "🐼", "🦊", "🐨", "🐸"}

// DefaultAvatar picks a stable emoji avatar for a user id.
func DefaultAvatar(userID string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return avatarEmojis[h.Sum32()%uint32(len(avatarEmojis))]
}
