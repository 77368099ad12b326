package util

import (
	"crypto/rand"
)

// RandomBytes returns n random bytes with no embedded zero, suitable for
// auth plugin seeds which are sent as null-terminated strings.
func RandomBytes(size int) []byte {
	result := make([]byte, size)
	rand.Read(result)
	for i := range result {
		if result[i] == 0 {
			result[i] = 1
		}
	}
	return result
}
