package svd

import (
	"strings"
	"testing"
)

const sampleSVD = `<?xml version="1.0" encoding="utf-8"?>
<device schemaVersion="1.1">
  <name>STM32F103</name>
  <vendor>STMicroelectronics</vendor>
  <peripherals>
    <peripheral>
      <name>gpioa</name>
      <baseAddress>0x40010800</baseAddress>
      <addressBlock>
        <offset>0</offset>
        <size>0x400</size>
      </addressBlock>
      <registers>
        <register>
          <name>CRL</name>
          <addressOffset>0x0</addressOffset>
          <access>read-wirte</access>
        </register>
        <register>
          <name>IDR</name>
          <addressOffset>0x8</addressOffset>
          <size>16</size>
          <access>read</access>
        </register>
      </registers>
    </peripheral>
    <peripheral derivedFrom="GPIOA">
      <name>GPIOB</name>
      <baseAddress>0x40010C00</baseAddress>
    </peripheral>
    <peripheral>
      <name>BROKEN</name>
      <registers>
        <register>
          <name>X</name>
          <addressOffset>0</addressOffset>
        </register>
      </registers>
    </peripheral>
  </peripherals>
</device>`

func TestParse(t *testing.T) {
	dev, warnings, err := Parse(strings.NewReader(sampleSVD), "STM32F103.svd")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if dev.Name != "STM32F103" || dev.Vendor != "STMicroelectronics" || dev.SVDFile != "STM32F103.svd" {
		t.Errorf("device identity = %+v", dev)
	}

	// BROKEN has no base address and must be skipped with a warning.
	if len(dev.Peripherals) != 2 {
		t.Fatalf("Peripherals = %v, want GPIOA and GPIOB", dev.Peripherals)
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], "BROKEN") {
		t.Errorf("warnings = %v, want one about BROKEN", warnings)
	}

	gpioa := dev.Peripherals[0]
	if gpioa.Name != "GPIOA" {
		t.Errorf("name = %q, want upper-cased GPIOA", gpioa.Name)
	}
	if len(gpioa.Registers) != 2 {
		t.Fatalf("GPIOA registers = %v", gpioa.Registers)
	}

	// CRL: vendor typo in access, default 32-bit size.
	crl := gpioa.Registers[0]
	if crl.Access != "read-write" || crl.SizeBits != 32 || crl.Address != 0x40010800 {
		t.Errorf("CRL = %+v", crl)
	}

	// IDR: bare "read" normalizes, explicit size kept, absolute address.
	idr := gpioa.Registers[1]
	if idr.Access != "read-only" || idr.SizeBits != 16 || idr.Address != 0x40010808 {
		t.Errorf("IDR = %+v", idr)
	}

	// GPIOB derives from GPIOA: base address plus the parent's block offset.
	gpiob := dev.Peripherals[1]
	if gpiob.Name != "GPIOB" || gpiob.Address != 0x40010C00 {
		t.Errorf("GPIOB = %+v", gpiob)
	}
}

func TestParseDerivedFromOffset(t *testing.T) {
	const doc = `<device><name>X</name><peripherals>
	  <peripheral>
	    <name>TMR1</name>
	    <baseAddress>0x40000000</baseAddress>
	    <addressBlock><offset>0x100</offset></addressBlock>
	  </peripheral>
	  <peripheral derivedFrom="TMR1">
	    <name>TMR2</name>
	    <baseAddress>0x40001000</baseAddress>
	  </peripheral>
	</peripherals></device>`

	dev, _, err := Parse(strings.NewReader(doc), "x.svd")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := dev.Peripherals[0].Address; got != 0x40000100 {
		t.Errorf("TMR1 address = %#x, want own block offset applied", got)
	}
	if got := dev.Peripherals[1].Address; got != 0x40001100 {
		t.Errorf("TMR2 address = %#x, want parent block offset applied", got)
	}
}

func TestParseRejectsNamelessDevice(t *testing.T) {
	if _, _, err := Parse(strings.NewReader(`<device><peripherals/></device>`), "x.svd"); err == nil {
		t.Error("Parse should fail on a device with no name")
	}
}

func TestNormalizeAccess(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"read-write", "read-write", true},
		{"read-only", "read-only", true},
		{"write-only", "write-only", true},
		{"read-onlye", "read-only", true},
		{"read-wirte", "read-write", true},
		{"read_write", "read-write", true},
		{"read-writeonce", "read-write", true},
		{"writeonce", "write-only", true},
		{"read", "read-only", true},
		{"write", "write-only", true},
		{"nonsense", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeAccess(tt.in)
			if tt.ok && (err != nil || got != tt.want) {
				t.Errorf("NormalizeAccess(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
			}
			if !tt.ok && err == nil {
				t.Errorf("NormalizeAccess(%q) should fail", tt.in)
			}
		})
	}
}
