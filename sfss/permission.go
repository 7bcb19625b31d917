// Package sfss implements the Simple File Storage Service: a stateless
// UDP datagram server that answers SFP requests against a flat directory
// tree, per spec §4.5.
package sfss

import (
	"fmt"
	"strings"
)

// CheckOwnerPrefix implements the permission check of spec §4.5: path
// must begin with exactly "/A{owner}" or exactly "/A0", where "exactly"
// means the prefix equals the path or is followed by a slash. This
// explicitly forbids a prefix like "/A5" matching a path of "/A50".
func CheckOwnerPrefix(owner int32, path string) bool {
	ownerPrefix := fmt.Sprintf("/A%d", owner)
	return hasExactPrefix(path, ownerPrefix) || hasExactPrefix(path, "/A0")
}

func hasExactPrefix(path, prefix string) bool {
	if path == prefix {
		return true
	}
	return strings.HasPrefix(path, prefix+"/")
}
