package abi

// addresser assigns the address a pinned buffer is known by on the host side.
type addresser interface {
	addressOf(buf []byte) uint32
}
