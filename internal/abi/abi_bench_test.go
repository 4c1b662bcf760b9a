//go:build !wasip1

// Package abi provides benchmark tests for the boundary hot path.
// Every invocation performs one Allocate/Write/Reconstruct for its input and one
// Expose/Release for its payload.
package abi

import "testing"

// BenchmarkPackPtrLen measures pointer packing performance.
func BenchmarkPackPtrLen(b *testing.B) {
	ptr := uint32(0x12345678)
	length := uint32(256)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		packed := PackPtrLen(ptr, length)
		_ = packed
	}
}

// BenchmarkInputRoundtrip measures the input side of one invocation.
func BenchmarkInputRoundtrip(b *testing.B) {
	a := NewArena()
	input := make([]byte, 1024)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ptr, err := a.Allocate(uint32(len(input)))
		if err != nil {
			b.Fatal(err)
		}
		_ = a.Write(ptr, input)
		if _, err := a.Reconstruct(ptr, uint32(len(input))); err != nil {
			b.Fatal(err)
		}
		_ = a.Release(ptr, uint32(len(input)))
	}
}

// BenchmarkExposeRelease measures the payload side of one invocation.
func BenchmarkExposeRelease(b *testing.B) {
	a := NewArena()
	payload := make([]byte, 1024)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		region, err := a.Expose(payload)
		if err != nil {
			b.Fatal(err)
		}
		_ = a.Release(region.Ptr, region.Size)
	}
}
