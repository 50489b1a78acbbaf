package krypto

// Zero overwrites a byte slice in place to reduce the lifetime of key
// material in memory. The garbage collector gives no erase guarantee, so
// every transient key must be wiped explicitly.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
