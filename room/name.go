// Package room covers room identity and the locally persisted display name.
package room

import (
	"hash/fnv"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

var (
	adjectives = []string{"Happy", "Jolly", "Dreamy", "Sparkling", "Golden", "Brave", "Clever", "Kind", "Vivid", "Silent"}
	nouns      = []string{"River", "Forest", "Mountain", "Meadow", "Sky", "Ocean", "Island", "Star", "Comet", "Planet"}
)

func NewID() string {
	return uuid.NewString()
}

// DisplayName derives a stable, human friendly label such as
// "Golden Comet 4a1f" from a room id.
func DisplayName(id string) string {
	parts := strings.Split(id, "-")
	if len(parts) < 3 {
		return prefix(id, 8)
	}

	adj := adjectives[pick(parts[0], len(adjectives))]
	noun := nouns[pick(parts[1], len(nouns))]

	return adj + " " + noun + " " + prefix(parts[2], 4)
}

// pick reads the first two characters as hex. Parts that are not hex fall
// back to an fnv hash so any id still maps to a word.
func pick(part string, n int) int {
	v, err := strconv.ParseUint(prefix(part, 2), 16, 32)
	if err != nil {
		h := fnv.New32a()
		h.Write([]byte(part))
		return int(h.Sum32() % uint32(n))
	}
	return int(v % uint64(n))
}

func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
