package catalog

import (
	"path/filepath"
	"testing"

	"github.com/erdnaxe/chiprec/internal/svd"
)

func testDevice() *svd.Device {
	return &svd.Device{
		Name:    "STM32F103",
		Vendor:  "STMicroelectronics",
		SVDFile: "STM32F103.svd",
		Peripherals: []svd.Peripheral{
			{
				Name:    "GPIOA",
				Address: 0x40010800,
				Registers: []svd.Register{
					{Name: "CRL", Access: "read-write", Address: 0x40010800, SizeBits: 32},
					{Name: "IDR", Access: "read-only", Address: 0x40010808, SizeBits: 16},
				},
			},
		},
	}
}

func openTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	// A file-backed database: with a connection pool, every pooled
	// connection to :memory: would see its own empty database.
	cat, err := Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { cat.Close() })
	if err := cat.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return cat
}

func rowCount(t *testing.T, cat *Catalog, table string) int {
	t.Helper()
	var n int
	if err := cat.db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

func TestImportIsIdempotent(t *testing.T) {
	cat := openTestCatalog(t)

	for i := 0; i < 2; i++ {
		if err := cat.Import(testDevice()); err != nil {
			t.Fatalf("Import #%d: %v", i+1, err)
		}
	}

	if n := rowCount(t, cat, "device"); n != 1 {
		t.Errorf("device rows = %d, want 1", n)
	}
	if n := rowCount(t, cat, "peripheral"); n != 1 {
		t.Errorf("peripheral rows = %d, want 1", n)
	}
	if n := rowCount(t, cat, "register"); n != 2 {
		t.Errorf("register rows = %d, want 2", n)
	}
}

func TestLookupByAddress(t *testing.T) {
	cat := openTestCatalog(t)
	if err := cat.Import(testDevice()); err != nil {
		t.Fatalf("Import: %v", err)
	}

	tests := []struct {
		name string
		addr uint32
		want int
	}{
		{"register start", 0x40010800, 1},
		{"inside 32-bit register", 0x40010803, 1},
		{"just past 32-bit register", 0x40010804, 0},
		{"inside 16-bit register", 0x40010809, 1},
		{"past 16-bit register", 0x4001080A, 0},
		{"unrelated address", 0x50000000, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hits, err := cat.LookupByAddress(tt.addr)
			if err != nil {
				t.Fatalf("LookupByAddress: %v", err)
			}
			if len(hits) != tt.want {
				t.Errorf("hits for %#08x = %v, want %d", tt.addr, hits, tt.want)
			}
		})
	}

	hits, err := cat.LookupByAddress(0x40010808)
	if err != nil {
		t.Fatalf("LookupByAddress: %v", err)
	}
	if len(hits) != 1 || hits[0].Peripheral != "GPIOA" || hits[0].Register != "IDR" {
		t.Fatalf("hits = %v, want IDR of GPIOA", hits)
	}

	dev, err := cat.Device(hits[0].DeviceID)
	if err != nil {
		t.Fatalf("Device: %v", err)
	}
	if dev.Name != "STM32F103" || dev.Vendor != "STMicroelectronics" || dev.SVDFile != "STM32F103.svd" {
		t.Errorf("Device = %+v", dev)
	}
}
