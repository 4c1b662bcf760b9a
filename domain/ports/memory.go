package ports

import "github.com/reglet-dev/runnable-sdk/domain/entities"

// Memory defines the boundary adapter between raw linear-memory addresses and owned buffers.
type Memory interface {
	// Reconstruct returns an owned copy of exactly size bytes starting at ptr.
	// The range must lie inside a region the guest granted to the host.
	Reconstruct(ptr, size uint32) ([]byte, error)

	// Expose pins data and returns the region the host reads it from.
	// The region stays owned by the guest until the host releases it.
	Expose(data []byte) (entities.Region, error)
}
