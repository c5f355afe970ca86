// Package goid extracts the identifier of the running goroutine.
//
// The runtime does not expose it, so it is parsed out of the header line of
// runtime.Stack ("goroutine 123 [running]:"). It is only used to key
// goroutine-scoped state, never for scheduling decisions.
package goid

import "runtime"

// Get returns the current goroutine ID, or 0 when it cannot be parsed.
func Get() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	return parse(buf[:n])
}

func parse(buf []byte) int64 {
	const prefix = "goroutine "
	if len(buf) < len(prefix) || string(buf[:len(prefix)]) != prefix {
		return 0
	}

	var gid int64
	for _, c := range buf[len(prefix):] {
		if c < '0' || c > '9' {
			break
		}
		gid = gid*10 + int64(c-'0')
	}
	return gid
}
