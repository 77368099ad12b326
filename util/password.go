package util

import (
	"crypto/sha1"
)

// Scramble411 computes the mysql_native_password client token:
// SHA1(password) XOR SHA1(seed || SHA1(SHA1(password))).
func Scramble411(pass []byte, seed []byte) []byte {
	if len(pass) == 0 {
		return nil
	}
	sh := sha1.New()
	sh.Write(pass)
	stage1 := sh.Sum(nil)

	sh.Reset()
	sh.Write(stage1)
	stage2 := sh.Sum(nil)

	sh.Reset()
	sh.Write(seed)
	sh.Write(stage2)
	stage3 := sh.Sum(nil)

	ret := make([]byte, len(stage3))
	for i := range stage3 {
		ret[i] = stage1[i] ^ stage3[i]
	}
	return ret
}

// DoubleSHA1 is the stored form of a native password: SHA1(SHA1(password)).
func DoubleSHA1(pass []byte) []byte {
	if len(pass) == 0 {
		return nil
	}
	sh := sha1.New()
	sh.Write(pass)
	stage1 := sh.Sum(nil)
	sh.Reset()
	sh.Write(stage1)
	return sh.Sum(nil)
}

// CheckScramble verifies a client token against the stored double hash.
// token XOR SHA1(seed || stage2) recovers stage1; accept iff SHA1(stage1)
// equals stage2. Empty token matches only an empty stored hash.
func CheckScramble(token []byte, seed []byte, stage2 []byte) bool {
	if len(token) == 0 || len(stage2) == 0 {
		return len(token) == 0 && len(stage2) == 0
	}
	if len(token) != sha1.Size || len(stage2) != sha1.Size {
		return false
	}
	sh := sha1.New()
	sh.Write(seed)
	sh.Write(stage2)
	stage3 := sh.Sum(nil)

	stage1 := make([]byte, sha1.Size)
	for i := range token {
		stage1[i] = token[i] ^ stage3[i]
	}

	sh.Reset()
	sh.Write(stage1)
	candidate := sh.Sum(nil)
	for i := range candidate {
		if candidate[i] != stage2[i] {
			return false
		}
	}
	return true
}
