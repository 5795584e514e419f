package reservation

import (
	"fmt"
	"strings"
)

// BlockPolicy decides how submission treats an owner-blocked slot.
type BlockPolicy string

const (
	// BlockPolicyEnforce rejects submissions for blocked slots.
	BlockPolicyEnforce BlockPolicy = "enforce"
	// BlockPolicyAdvisory lets submissions through and releases the block in
	// the same transaction.
	BlockPolicyAdvisory BlockPolicy = "advisory"
)

// ParseBlockPolicy converts a string to a BlockPolicy. Empty means enforce.
func ParseBlockPolicy(s string) (BlockPolicy, error) {
	switch p := BlockPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return BlockPolicyEnforce, nil
	case BlockPolicyEnforce, BlockPolicyAdvisory:
		return p, nil
	default:
		return "", fmt.Errorf("invalid block policy: %s", s)
	}
}
