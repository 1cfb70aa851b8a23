package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss/v2"

	"github.com/erdnaxe/chiprec/internal/analysis"
	"github.com/erdnaxe/chiprec/internal/catalog"
	"github.com/erdnaxe/chiprec/internal/firmware"
	"github.com/erdnaxe/chiprec/internal/match"
)

type evidenceJSON struct {
	Address string `json:"address"`
	Access  string `json:"access"`
}

type registerJSON struct {
	Peripheral string `json:"peripheral"`
	Register   string `json:"register"`
	Access     string `json:"access"`
}

type candidateJSON struct {
	Device    string         `json:"device"`
	Vendor    string         `json:"vendor,omitempty"`
	SVDFile   string         `json:"svd_file"`
	Registers []registerJSON `json:"registers"`
}

// report is the per-image outcome. Identified distinguishes "narrowed to
// these candidates" from "no evidence ever matched" — the latter has no
// candidate list at all, which is not the same as an empty one.
type report struct {
	File        string          `json:"file"`
	Error       string          `json:"error,omitempty"`
	Evidence    []evidenceJSON  `json:"evidence"`
	Diagnostics []string        `json:"diagnostics,omitempty"`
	Identified  bool            `json:"identified"`
	Candidates  []candidateJSON `json:"candidates,omitempty"`
}

// identify runs the full pipeline on one firmware image. Failures land
// in the report so one bad image never aborts a batch.
func identify(cat *catalog.Catalog, path string, scanLimit int) *report {
	rep := &report{File: path}

	img, err := firmware.Load(path)
	if err != nil {
		rep.Error = err.Error()
		return rep
	}

	ev := analysis.Recover(img, analysis.Options{ScanLimit: scanLimit})
	for _, item := range ev.Items() {
		rep.Evidence = append(rep.Evidence, evidenceJSON{
			Address: fmt.Sprintf("0x%08x", item.Addr),
			Access:  item.Kind.String(),
		})
	}

	res, err := match.Match(ev, cat)
	if err != nil {
		rep.Error = err.Error()
		return rep
	}
	rep.Diagnostics = res.Diagnostics

	if !res.State.Constrained() {
		return rep
	}
	rep.Identified = true

	for _, dh := range res.State.Devices() {
		dev, err := cat.Device(dh.DeviceID)
		if err != nil {
			rep.Error = err.Error()
			return rep
		}
		cand := candidateJSON{Device: dev.Name, Vendor: dev.Vendor, SVDFile: dev.SVDFile}
		for _, hit := range dh.Hits {
			cand.Registers = append(cand.Registers, registerJSON{
				Peripheral: hit.Peripheral,
				Register:   hit.Register,
				Access:     hit.Access.String(),
			})
		}
		rep.Candidates = append(rep.Candidates, cand)
	}
	return rep
}

// renderer prints reports, styled when stdout is a terminal.
type renderer struct {
	header lipgloss.Style
	device lipgloss.Style
	dim    lipgloss.Style
}

func newRenderer(colored bool) *renderer {
	r := &renderer{
		header: lipgloss.NewStyle(),
		device: lipgloss.NewStyle(),
		dim:    lipgloss.NewStyle(),
	}
	if colored {
		r.header = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("81"))
		r.device = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
		r.dim = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	}
	return r
}

func (r *renderer) render(w io.Writer, rep *report) {
	fmt.Fprintln(w, r.header.Render(fmt.Sprintf("=== %s ===", rep.File)))

	if rep.Error != "" {
		fmt.Fprintf(w, "error: %s\n\n", rep.Error)
		return
	}

	var addrs []string
	for _, e := range rep.Evidence {
		addrs = append(addrs, fmt.Sprintf("%s (%s)", e.Address, e.Access))
	}
	fmt.Fprintf(w, "Found addresses: %s\n", strings.Join(addrs, ", "))
	fmt.Fprintln(w)

	if !rep.Identified {
		fmt.Fprintln(w, r.dim.Render("no candidate devices identified"))
		fmt.Fprintln(w)
		return
	}

	for _, cand := range rep.Candidates {
		name := cand.Device
		if cand.Vendor != "" {
			name = cand.Vendor + " " + name
		}
		fmt.Fprintf(w, "%s %s\n", r.device.Render(name), r.dim.Render("("+cand.SVDFile+")"))
		for _, reg := range cand.Registers {
			fmt.Fprintf(w, "    %s register %s of %s\n", reg.Access, reg.Register, reg.Peripheral)
		}
		fmt.Fprintln(w)
	}
}
