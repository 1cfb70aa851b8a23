// Package svd parses CMSIS System View Description files into the flat
// device/peripheral/register shape the catalog stores. Only the fields
// relevant for address matching are read; everything else in the XML is
// ignored.
package svd

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Device is one parsed SVD file with absolute register addresses.
type Device struct {
	Name        string
	Vendor      string
	SVDFile     string
	Peripherals []Peripheral
}

// Peripheral groups the registers under one base address.
type Peripheral struct {
	Name      string
	Address   uint64
	Registers []Register
}

// Register is one memory-mapped register. Address is absolute and covers
// the byte range [Address, Address+SizeBits/8).
type Register struct {
	Name     string
	Access   string // read-only, write-only or read-write
	Address  uint64
	SizeBits int
}

type xmlDevice struct {
	XMLName     xml.Name        `xml:"device"`
	Name        string          `xml:"name"`
	Vendor      string          `xml:"vendor"`
	Peripherals []xmlPeripheral `xml:"peripherals>peripheral"`
}

type xmlPeripheral struct {
	DerivedFrom  string `xml:"derivedFrom,attr"`
	Name         string `xml:"name"`
	BaseAddress  string `xml:"baseAddress"`
	AddressBlock struct {
		Offset string `xml:"offset"`
	} `xml:"addressBlock"`
	Registers []xmlRegister `xml:"registers>register"`
}

type xmlRegister struct {
	Name          string `xml:"name"`
	AddressOffset string `xml:"addressOffset"`
	Size          string `xml:"size"`
	Access        string `xml:"access"`
}

// Parse reads one SVD document. Peripherals without a base address are
// skipped and reported in warnings rather than failing the whole file.
func Parse(r io.Reader, filename string) (*Device, []string, error) {
	d := xml.NewDecoder(r)
	// Vendors declare assorted charsets; the fields we read are ASCII.
	d.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		return input, nil
	}

	var doc xmlDevice
	if err := d.Decode(&doc); err != nil {
		return nil, nil, fmt.Errorf("parse svd: %w", err)
	}
	if strings.TrimSpace(doc.Name) == "" {
		return nil, nil, fmt.Errorf("parse svd: device has no name")
	}

	// Address block offsets by peripheral name, needed to resolve
	// derivedFrom peripherals that inherit a block from their parent.
	offsets := make(map[string]uint64)
	for _, p := range doc.Peripherals {
		if off, err := parseNumber(p.AddressBlock.Offset); err == nil && p.AddressBlock.Offset != "" {
			offsets[strings.TrimSpace(p.Name)] = off
		}
	}

	dev := &Device{
		Name:    strings.TrimSpace(doc.Name),
		Vendor:  strings.TrimSpace(doc.Vendor),
		SVDFile: filename,
	}
	var warnings []string

	for _, p := range doc.Peripherals {
		name := strings.ToUpper(strings.TrimSpace(p.Name))
		base, err := parseNumber(p.BaseAddress)
		if err != nil || strings.TrimSpace(p.BaseAddress) == "" {
			warnings = append(warnings, fmt.Sprintf("%s/%s: missing base address, skipping", filename, name))
			continue
		}

		parent := strings.TrimSpace(p.DerivedFrom)
		if parent == "" {
			parent = strings.TrimSpace(p.Name)
		}
		base += offsets[parent]

		per := Peripheral{Name: name, Address: base}
		for _, reg := range p.Registers {
			off, err := parseNumber(reg.AddressOffset)
			if err != nil {
				warnings = append(warnings, fmt.Sprintf("%s/%s/%s: bad address offset %q, skipping",
					filename, name, reg.Name, reg.AddressOffset))
				continue
			}

			size := 32
			if strings.TrimSpace(reg.Size) != "" {
				n, err := parseNumber(reg.Size)
				if err != nil {
					warnings = append(warnings, fmt.Sprintf("%s/%s/%s: bad size %q, skipping",
						filename, name, reg.Name, reg.Size))
					continue
				}
				size = int(n)
			}

			access := strings.ToLower(strings.TrimSpace(reg.Access))
			if access == "" {
				access = "read-write"
			}
			access, err = NormalizeAccess(access)
			if err != nil {
				warnings = append(warnings, fmt.Sprintf("%s/%s/%s: %v, skipping", filename, name, reg.Name, err))
				continue
			}

			per.Registers = append(per.Registers, Register{
				Name:     strings.TrimSpace(reg.Name),
				Access:   access,
				Address:  base + off,
				SizeBits: size,
			})
		}
		dev.Peripherals = append(dev.Peripherals, per)
	}

	return dev, warnings, nil
}

var accessFixes = strings.NewReplacer(
	"read-onlye", "read-only",
	"read-wirte", "read-write",
	"read_write", "read-write",
	"read-writeonce", "read-write",
	"writeonce", "write-only",
)

// NormalizeAccess maps an SVD access value onto one of read-only,
// write-only or read-write, fixing typos some vendors ship.
func NormalizeAccess(access string) (string, error) {
	access = accessFixes.Replace(access)
	switch access {
	case "read":
		access = "read-only"
	case "write":
		access = "write-only"
	}
	switch access {
	case "read-only", "write-only", "read-write":
		return access, nil
	}
	return "", fmt.Errorf("bad access value %q", access)
}

// parseNumber accepts the decimal, 0x and 0b spellings SVD files use.
func parseNumber(s string) (uint64, error) {
	return strconv.ParseUint(strings.TrimSpace(s), 0, 64)
}
