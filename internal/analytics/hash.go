package analytics

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashIP returns the hex sha256 of salt followed by ip. An empty ip hashes to "".
func HashIP(salt, ip string) string {
	if ip == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(salt + ip))
	return hex.EncodeToString(sum[:])
}
