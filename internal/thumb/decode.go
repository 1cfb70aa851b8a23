// Package thumb classifies 16-bit Thumb halfwords into the small set of
// instruction shapes the peripheral-access scan cares about. It is not a
// disassembler: anything outside that set decodes to Unknown, and the two
// halfwords of a 32-bit Thumb-2 encoding are never interpreted beyond the
// WidePrefix marker on the first one.
package thumb

// Kind identifies the instruction class of a halfword.
type Kind int

const (
	Unknown Kind = iota
	LoadLiteral // LDR Rd, [PC, #imm8*4]
	LoadWord    // LDR Rd, [Rn, #imm5*4]
	StoreWord   // STR Rd, [Rn, #imm5*4]
	StoreHalf   // STRH Rd, [Rn, #imm5*2]
	StoreByte   // STRB Rd, [Rn, #imm5]
	MovImm      // MOVS Rd, #imm8
	SubReg      // SUBS Rd, Rn, Rm
	WidePrefix  // first halfword of a 32-bit Thumb-2 encoding
)

func (k Kind) String() string {
	switch k {
	case LoadLiteral:
		return "ldr-literal"
	case LoadWord:
		return "ldr"
	case StoreWord:
		return "str"
	case StoreHalf:
		return "strh"
	case StoreByte:
		return "strb"
	case MovImm:
		return "movs"
	case SubReg:
		return "subs"
	case WidePrefix:
		return "wide-prefix"
	}
	return "unknown"
}

// Inst is one decoded 16-bit instruction. Only the fields meaningful for
// the Kind are set; the rest are zero.
type Inst struct {
	Kind Kind
	Rd   uint8  // destination register, 0..7
	Rn   uint8  // base register for register-offset loads/stores, 0..7
	Imm  uint32 // imm8 for LoadLiteral/MovImm, imm5 for loads/stores
}

// Decode classifies a single halfword. It is a pure function of its
// argument: no state, no errors, unrecognized values yield Unknown.
func Decode(hw uint16) Inst {
	// 0xExxx and 0xFxxx top bits mark 32-bit encodings (and the
	// unconditional branch, which we also do not follow). Check first so
	// the operand bits of a wide instruction never match a load mask.
	if IsWidePrefix(hw) {
		return Inst{Kind: WidePrefix}
	}

	switch hw & 0xF800 {
	case 0x4800:
		return Inst{Kind: LoadLiteral, Rd: uint8(hw>>8) & 0x07, Imm: uint32(hw & 0xFF)}
	case 0x6800:
		return Inst{Kind: LoadWord, Rd: uint8(hw) & 0x07, Rn: uint8(hw>>3) & 0x07, Imm: uint32(hw>>6) & 0x1F}
	case 0x6000:
		return Inst{Kind: StoreWord, Rd: uint8(hw) & 0x07, Rn: uint8(hw>>3) & 0x07, Imm: uint32(hw>>6) & 0x1F}
	case 0x8000:
		return Inst{Kind: StoreHalf, Rd: uint8(hw) & 0x07, Rn: uint8(hw>>3) & 0x07, Imm: uint32(hw>>6) & 0x1F}
	case 0x7000:
		return Inst{Kind: StoreByte, Rd: uint8(hw) & 0x07, Rn: uint8(hw>>3) & 0x07, Imm: uint32(hw>>6) & 0x1F}
	case 0x2000:
		return Inst{Kind: MovImm, Rd: uint8(hw>>8) & 0x07, Imm: uint32(hw & 0xFF)}
	}

	if hw&0xFE00 == 0x1A00 {
		return Inst{Kind: SubReg, Rd: uint8(hw) & 0x07, Rn: uint8(hw>>3) & 0x07}
	}

	return Inst{}
}

// IsWidePrefix reports whether hw is the first halfword of a 32-bit
// Thumb-2 encoding. A halfword following a wide prefix must never be
// decoded as a standalone instruction.
func IsWidePrefix(hw uint16) bool {
	return hw&0xE000 == 0xE000
}

// Offset returns the byte offset encoded by a register-offset load or
// store (the immediate scaled by the access width). Zero for other kinds.
func (i Inst) Offset() uint32 {
	switch i.Kind {
	case LoadWord, StoreWord:
		return i.Imm * 4
	case StoreHalf:
		return i.Imm * 2
	case StoreByte:
		return i.Imm
	}
	return 0
}
