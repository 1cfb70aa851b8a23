// Package keil collects SVD files from ARM Keil firmware-description
// packs. The public pack index lists one pdsc entry per line; each pack
// is a zip archive that may contain SVD documents alongside everything
// else a vendor ships.
package keil

import (
	"archive/zip"
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

const (
	// DefaultIndexURL is the public Keil pack index.
	DefaultIndexURL = "https://www.keil.com/pack/index.pidx"

	// Some vendor servers reject requests without a browser User-Agent.
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:133.0) Gecko/20100101 Firefox/133.0"
)

// The index is generated XML with one pdsc element per line, so a
// line-wise regexp is enough.
var packRe = regexp.MustCompile(`<pdsc\s+url="([^"]+)"\s+vendor="([^"]+)"\s+name="([^"]+)"\s+version="([^"]+)"`)

// Pack is one downloadable firmware-description pack.
type Pack struct {
	Vendor string
	URL    string
}

// Client fetches the index and packs.
type Client struct {
	HTTP     *http.Client
	IndexURL string // defaults to DefaultIndexURL
}

func (c *Client) get(url string) ([]byte, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	httpc := c.HTTP
	if httpc == nil {
		httpc = http.DefaultClient
	}
	resp, err := httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: %s", url, resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// Index returns the non-deprecated packs listed by the index.
func (c *Client) Index() ([]Pack, error) {
	url := c.IndexURL
	if url == "" {
		url = DefaultIndexURL
	}
	body, err := c.get(url)
	if err != nil {
		return nil, fmt.Errorf("fetch pack index: %w", err)
	}

	var packs []Pack
	for _, line := range strings.Split(string(body), "\n") {
		if strings.Contains(line, "deprecated") {
			continue
		}
		m := packRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		base, vendor, name, version := m[1], m[2], m[3], m[4]
		if !strings.HasSuffix(base, "/") {
			base += "/" // trailing slash may be missing
		}
		packs = append(packs, Pack{
			Vendor: vendor,
			URL:    fmt.Sprintf("%s%s.%s.%s.pack", base, vendor, name, version),
		})
	}
	return packs, nil
}

// FetchPack downloads one pack and writes the SVD documents it contains
// into outDir, returning the file names written. Archive members are
// kept when they end in .svd or .xml and actually describe a device.
func (c *Client) FetchPack(p Pack, outDir string) ([]string, error) {
	body, err := c.get(p.URL)
	if err != nil {
		return nil, fmt.Errorf("fetch pack: %w", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return nil, fmt.Errorf("open pack %s: %w", p.URL, err)
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, err
	}

	var written []string
	for _, f := range zr.File {
		switch strings.ToLower(path.Ext(f.Name)) {
		case ".svd", ".xml":
		default:
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return written, fmt.Errorf("open %s in %s: %w", f.Name, p.URL, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return written, fmt.Errorf("read %s in %s: %w", f.Name, p.URL, err)
		}

		if !bytes.Contains(content, []byte("<device")) || !bytes.Contains(content, []byte("<peripherals")) {
			continue // an .xml that is not a SVD
		}

		name := filepath.Join(outDir, path.Base(f.Name))
		if err := os.WriteFile(name, bytes.TrimSpace(content), 0o644); err != nil {
			return written, err
		}
		written = append(written, name)
	}
	return written, nil
}

// Ledger remembers pack URLs fetched by earlier runs so they can be
// skipped.
type Ledger struct {
	path string
	seen map[string]bool
}

// LoadLedger reads the ledger at path, which need not exist yet.
func LoadLedger(path string) (*Ledger, error) {
	l := &Ledger{path: path, seen: make(map[string]bool)}
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return l, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			l.seen[line] = true
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	return l, nil
}

// Seen reports whether url was already fetched.
func (l *Ledger) Seen(url string) bool { return l.seen[url] }

// Record appends url to the ledger on disk.
func (l *Ledger) Record(url string) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("record ledger: %w", err)
	}
	defer f.Close()
	if _, err := fmt.Fprintln(f, url); err != nil {
		return fmt.Errorf("record ledger: %w", err)
	}
	l.seen[url] = true
	return nil
}
