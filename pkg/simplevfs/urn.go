package simplevfs

import (
	"fmt"
	"strings"
)

// Scheme is the URN scheme prefix shared by every addressable object.
const Scheme = "aff4:"

// URN is a hierarchical, case-sensitive, root-anchored object identifier of
// the form aff4:/<root-id>/... Only the top-level hierarchy uses "/" as a
// structural separator; inner components may contain literal slashes or
// backslashes carried over from raw path content.
type URN string

// ParseURN validates a textual URN. It is the only gate between caller input
// and the store: malformed identifiers never reach the backend.
func ParseURN(s string) (URN, error) {
	if !strings.HasPrefix(s, Scheme+"/") {
		return "", fmt.Errorf("%w: %q must start with %q", ErrInvalidURN, s, Scheme+"/")
	}
	if s == Scheme+"/" {
		return "", fmt.Errorf("%w: %q has no root component", ErrInvalidURN, s)
	}
	return URN(s), nil
}

// ClientURN returns the URN addressing a client object.
func ClientURN(clientID string) (URN, error) {
	if clientID == "" || strings.ContainsAny(clientID, "/\\") {
		return "", fmt.Errorf("%w: invalid client id %q", ErrInvalidURN, clientID)
	}
	return URN(Scheme + "/" + clientID), nil
}

// Add appends one hierarchy component. The component is joined with a single
// structural "/"; any separators inside it are preserved as path content.
func (u URN) Add(component string) URN {
	return URN(string(u) + "/" + component)
}

func (u URN) String() string { return string(u) }
