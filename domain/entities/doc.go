// Package entities provides the core value types shared by the guest SDK and the host harness.
// They describe regions of linear memory and the outcome of a single invocation; neither
// side holds raw pointers outside the boundary layers.
package entities
