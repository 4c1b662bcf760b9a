// Package ports defines the interfaces dispatch depends on at the guest/host boundary.
// These ports enable dependency inversion - dispatch logic depends on abstractions,
// and the wasip1 shims (or test doubles) implement them.
package ports
