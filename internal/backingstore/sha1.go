package backingstore

import "crypto/sha1"

func sha1Sum(data []byte) Sha1 {
	return Sha1(sha1.Sum(data))
}
