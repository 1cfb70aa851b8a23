package analysis

import (
	"github.com/erdnaxe/chiprec/internal/firmware"
	"github.com/erdnaxe/chiprec/internal/thumb"
)

// Options tunes the recovery scan.
type Options struct {
	// ScanLimit bounds the forward dataflow scan, in halfwords, from its
	// starting literal load. Zero means unbounded, which is quadratic in
	// the worst case over adversarial inputs.
	ScanLimit int
}

// Recover scans an entire firmware image for PC-relative literal loads
// and follows each loaded value through subsequent register-offset loads
// and stores, collecting every access that lands in a Cortex-M register
// window. The returned set is in discovery order.
func Recover(img *firmware.Image, opts Options) *EvidenceSet {
	ev := NewEvidenceSet()
	for off := 0; off+2 <= img.Len(); off += 2 {
		hw, _ := img.Halfword(off)
		inst := thumb.Decode(hw)
		if inst.Kind != thumb.LoadLiteral {
			continue
		}

		// A halfword that looks like a literal load may be the second
		// half of a 32-bit encoding; the preceding halfword tells.
		if prev, ok := img.Halfword(off - 2); ok && thumb.IsWidePrefix(prev) {
			continue
		}

		// The load reads relative to the next word-aligned instruction
		// address plus 4 (pipeline effect). A slot past the end of the
		// image means the candidate was not a real literal load.
		slot := (off+int(inst.Imm)*4)/4*4 + 4
		data, ok := img.Word(slot)
		if !ok {
			continue
		}

		scanForward(img, off+2, inst.Rd, data, opts.ScanLimit, ev)
	}
	return ev
}

// scanForward follows the registers known to still hold data, starting at
// off, recording register-window accesses based off any of them. The scan
// stops once every tracked register has been overwritten, or at the first
// instruction whose effect on the tracked registers cannot be modeled.
func scanForward(img *firmware.Image, off int, rd uint8, data uint32, limit int, ev *EvidenceSet) {
	tracked := uint8(1) << rd
	for n := 0; off+2 <= img.Len(); off, n = off+2, n+1 {
		if limit > 0 && n >= limit {
			return
		}
		hw, _ := img.Halfword(off)
		inst := thumb.Decode(hw)

		switch inst.Kind {
		case thumb.LoadWord:
			if tracked&(1<<inst.Rn) != 0 {
				record(ev, data+inst.Offset(), AccessRead)
			} else if tracked&(1<<inst.Rd) != 0 {
				// Loading from an untracked base overwrites Rd.
				tracked &^= 1 << inst.Rd
			}
		case thumb.StoreWord, thumb.StoreHalf, thumb.StoreByte:
			if tracked&(1<<inst.Rn) != 0 {
				record(ev, data+inst.Offset(), AccessWrite)
			}
		case thumb.LoadLiteral, thumb.MovImm, thumb.SubReg:
			tracked &^= 1 << inst.Rd
		case thumb.WidePrefix, thumb.Unknown:
			// 32-bit and unrecognized instructions can redefine any
			// register; stop rather than guess.
			return
		}

		if tracked == 0 {
			return
		}
	}
}

func record(ev *EvidenceSet, addr uint32, kind Access) {
	if inRegisterWindow(addr) {
		ev.Add(addr, kind)
	}
}
