package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/erdnaxe/chiprec/internal/catalog"
	"github.com/erdnaxe/chiprec/internal/svd"
)

func writeFirmware(t *testing.T, halfwords ...uint16) string {
	t.Helper()
	data := make([]byte, 0, 2*len(halfwords))
	for _, hw := range halfwords {
		data = append(data, byte(hw), byte(hw>>8))
	}
	path := filepath.Join(t.TempDir(), "dump.bin")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write firmware: %v", err)
	}
	return path
}

func openTestCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("open catalog: %v", err)
	}
	t.Cleanup(func() { cat.Close() })
	if err := cat.Init(); err != nil {
		t.Fatalf("init catalog: %v", err)
	}
	if err := cat.Import(&svd.Device{
		Name:    "STM32F103",
		Vendor:  "STMicroelectronics",
		SVDFile: "STM32F103.svd",
		Peripherals: []svd.Peripheral{{
			Name:    "GPIOA",
			Address: 0x40010800,
			Registers: []svd.Register{
				{Name: "CRL", Access: "read-write", Address: 0x40010800, SizeBits: 32},
			},
		}},
	}); err != nil {
		t.Fatalf("import: %v", err)
	}
	return cat
}

func TestIdentifyEndToEnd(t *testing.T) {
	// LDR r3, [pc, #0] picks up 0x40010800 from the literal pool, then
	// LDR r2, [r3] reads GPIOA CRL.
	fw := writeFirmware(t, 0x4B00, 0x681A, 0x0800, 0x4001)
	cat := openTestCatalog(t)

	rep := identify(cat, fw, 0)
	if rep.Error != "" {
		t.Fatalf("identify error: %s", rep.Error)
	}
	if len(rep.Evidence) != 1 || rep.Evidence[0].Address != "0x40010800" || rep.Evidence[0].Access != "read" {
		t.Fatalf("Evidence = %v", rep.Evidence)
	}
	if !rep.Identified || len(rep.Candidates) != 1 {
		t.Fatalf("Candidates = %v, want the one owning device", rep.Candidates)
	}
	cand := rep.Candidates[0]
	if cand.Device != "STM32F103" || cand.Vendor != "STMicroelectronics" {
		t.Errorf("candidate = %+v", cand)
	}
	if len(cand.Registers) != 1 || cand.Registers[0].Register != "CRL" || cand.Registers[0].Access != "read" {
		t.Errorf("registers = %v", cand.Registers)
	}

	var buf bytes.Buffer
	newRenderer(false).render(&buf, rep)
	out := buf.String()
	for _, want := range []string{
		"0x40010800 (read)",
		"STMicroelectronics STM32F103 (STM32F103.svd)",
		"read register CRL of GPIOA",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report output missing %q:\n%s", want, out)
		}
	}
}

func TestIdentifyNoEvidence(t *testing.T) {
	fw := writeFirmware(t) // empty image
	cat := openTestCatalog(t)

	rep := identify(cat, fw, 0)
	if rep.Error != "" {
		t.Fatalf("identify error: %s", rep.Error)
	}
	if rep.Identified || rep.Candidates != nil {
		t.Fatalf("report = %+v, want the explicit no-identification outcome", rep)
	}

	var buf bytes.Buffer
	newRenderer(false).render(&buf, rep)
	if !strings.Contains(buf.String(), "no candidate devices identified") {
		t.Errorf("report output missing terminal outcome:\n%s", buf.String())
	}
}

func TestIdentifyMissingFile(t *testing.T) {
	cat := openTestCatalog(t)
	rep := identify(cat, filepath.Join(t.TempDir(), "nope.bin"), 0)
	if rep.Error == "" {
		t.Error("identify of a missing file should report an error, not panic")
	}
}
