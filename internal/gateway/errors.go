// internal/gateway/errors.go
package gateway

import (
	"strings"
)

// Node implementations phrase the "I have seen this transaction before"
// rejection differently; none of them expose a stable error code for it.
var alreadyKnownFragments = []string{
	"already known",
	"known transaction",
	"alreadyknown",
	"transaction already imported",
	"already exists",
}

// IsAlreadyKnown reports whether a broadcast error means the ledger has
// previously accepted the same signed payload. Re-broadcasting is
// idempotent in that case.
func IsAlreadyKnown(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, fragment := range alreadyKnownFragments {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}
