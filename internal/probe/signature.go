package probe

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// signatureLen is the number of hex characters kept from the hash.
const signatureLen = 12

// Signature canonicalizes (probe name, arguments) into a short content
// hash. encoding/json emits map keys in sorted order at every nesting
// level, so argument order never changes the hash.
func Signature(probeName string, args map[string]interface{}) string {
	if args == nil {
		args = map[string]interface{}{}
	}
	canonical, err := json.Marshal(args)
	if err != nil {
		// Unmarshalable values (channels, funcs) never appear in plan
		// arguments; fall back to a stable textual form anyway.
		canonical = []byte(fmt.Sprintf("%v", args))
	}
	sum := sha256.Sum256([]byte(probeName + ":" + string(canonical)))
	return hex.EncodeToString(sum[:])[:signatureLen]
}
