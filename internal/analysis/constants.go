// Package analysis recovers peripheral register accesses from raw
// Cortex-M firmware dumps by following the addresses that PC-relative
// literal loads place into low registers.
package analysis

// Cortex-M memory map windows that hold memory-mapped registers. See the
// ARM Cortex-M3 technical reference, "Memory model": 0x40000000-0x5FFFFFFF
// is the peripheral region, 0xA0000000-0xDFFFFFFF covers the external
// device and private peripheral regions.
const (
	peripheralLo = 0x40000000
	peripheralHi = 0x60000000
	deviceLo     = 0xA0000000
	deviceHi     = 0xE0000000
)

// inRegisterWindow reports whether addr can be a memory-mapped register.
// The windows are a small slice of the address space, which also filters
// out garbage values read from padding or truncated literal pools.
func inRegisterWindow(addr uint32) bool {
	return (addr >= peripheralLo && addr < peripheralHi) ||
		(addr >= deviceLo && addr < deviceHi)
}
