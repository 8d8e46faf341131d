package presence

import (
	"sort"
	"strings"

	"github.com/samber/lo"
)

// TokenSeparator joins displayName and connectionId inside a membership
// token. Display names containing it are rejected at join time: the
// decoder splits on the LAST occurrence, so a separator inside the name
// would silently shift the split. Connection ids are uuids and can never
// contain it.
const TokenSeparator = "#"

// Member is one decoded membership token.
type Member struct {
	Name         string `json:"name"`
	ConnectionID string `json:"connectionId"`
}

// EncodeToken builds the set element stored for one live connection.
func EncodeToken(name, connID string) string {
	return name + TokenSeparator + connID
}

// DecodeToken splits a token on the last separator occurrence.
func DecodeToken(token string) Member {
	idx := strings.LastIndex(token, TokenSeparator)
	if idx < 0 {
		return Member{ConnectionID: token}
	}
	return Member{Name: token[:idx], ConnectionID: token[idx+1:]}
}

// DecodeTokens decodes a membership snapshot. The set has no inherent
// order, so members are sorted for stable payloads.
func DecodeTokens(tokens []string) []Member {
	members := lo.Map(tokens, func(t string, _ int) Member {
		return DecodeToken(t)
	})
	sort.Slice(members, func(i, j int) bool {
		if members[i].Name != members[j].Name {
			return members[i].Name < members[j].Name
		}
		return members[i].ConnectionID < members[j].ConnectionID
	})
	return members
}
