package validate

import (
	"fmt"
	"regexp"
	"strings"
)

var nodeNameRegex = regexp.MustCompile(`^[a-z0-9_-]+$`)

// NodeNameFormat validates gossip node names: only [a-z0-9_-], not starting
// or ending with a separator.
func NodeNameFormat(name string) error {
	if name == "" {
		return fmt.Errorf("node name cannot be empty")
	}
	if !nodeNameRegex.MatchString(name) {
		return fmt.Errorf("node name '%s' must contain only lowercase letters [a-z], numbers [0-9], hyphens (-), and underscores (_)", name)
	}
	if strings.HasPrefix(name, "-") || strings.HasPrefix(name, "_") ||
		strings.HasSuffix(name, "-") || strings.HasSuffix(name, "_") {
		return fmt.Errorf("node name '%s' cannot start or end with hyphen (-) or underscore (_)", name)
	}
	return nil
}

// MemberAddress validates a member's account address.
func MemberAddress(addr string) error {
	if err := ValidateField(addr, "required,eth_addr"); err != nil {
		return fmt.Errorf("invalid member address '%s'", addr)
	}
	return nil
}

// ContentHash validates a 0x-prefixed sha256 hash.
func ContentHash(hash string) error {
	if err := ValidateField(hash, "required,hash32"); err != nil {
		return fmt.Errorf("invalid hash '%s'", hash)
	}
	return nil
}
