// Package writer serializes context groups as a definecontextgroups XML
// document.
package writer

import (
	"bufio"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gofhir/contextgroups/pkg/contextgroup"
	"github.com/gofhir/contextgroups/pool"
)

const (
	// XSINamespace is bound to the xsi prefix on the root element.
	XSINamespace = "http://www.w3.org/2001/XMLSchema-instance"

	// DefaultSchemaLocation is the default xsi:noNamespaceSchemaLocation.
	DefaultSchemaLocation = "http://www.pixelmed.com/schemas/contextgroups.xsd"

	indent = "    "
)

// Order selects how concepts are ordered within a group.
type Order string

const (
	// OrderSorted sorts concepts by coding scheme, then code value.
	OrderSorted Order = "sorted"

	// OrderInsertion keeps the order concepts were added in, own concepts
	// first and then those of each include.
	OrderInsertion Order = "insertion"
)

// ParseOrder parses "sorted" or "insertion". An empty string is OrderSorted.
func ParseOrder(s string) (Order, error) {
	switch Order(s) {
	case "", OrderSorted:
		return OrderSorted, nil
	case OrderInsertion:
		return OrderInsertion, nil
	default:
		return "", fmt.Errorf("unknown concept order %q (want sorted or insertion)", s)
	}
}

type xmlDocument struct {
	XMLName        xml.Name   `xml:"definecontextgroups"`
	XSI            string     `xml:"xmlns:xsi,attr"`
	SchemaLocation string     `xml:"xsi:noNamespaceSchemaLocation,attr"`
	Groups         []xmlGroup `xml:"definecontextgroup"`
}

type xmlGroup struct {
	CID        string    `xml:"cid,attr"`
	Name       string    `xml:"name,attr"`
	Extensible string    `xml:"extensible,attr"`
	Version    string    `xml:"version,attr"`
	Codes      []xmlCode `xml:"contextgroupcode"`
}

type xmlCode struct {
	CSD string `xml:"csd,attr"`
	CV  string `xml:"cv,attr"`
	CM  string `xml:"cm,attr"`
}

type options struct {
	order          Order
	schemaLocation string
}

// Option configures Write.
type Option func(*options)

// WithOrder sets the concept order. The default is OrderSorted.
func WithOrder(o Order) Option {
	return func(opts *options) {
		opts.order = o
	}
}

// WithSchemaLocation overrides the xsi:noNamespaceSchemaLocation value.
func WithSchemaLocation(loc string) Option {
	return func(opts *options) {
		opts.schemaLocation = loc
	}
}

// Write serializes groups in identifier order. The group's keyword is
// written as its name attribute.
func Write(w io.Writer, groups []*contextgroup.Group, opts ...Option) error {
	o := options{order: OrderSorted, schemaLocation: DefaultSchemaLocation}
	for _, opt := range opts {
		opt(&o)
	}

	sorted := make([]*contextgroup.Group, len(groups))
	copy(sorted, groups)
	contextgroup.SortGroups(sorted)

	doc := xmlDocument{
		XSI:            XSINamespace,
		SchemaLocation: o.schemaLocation,
		Groups:         make([]xmlGroup, 0, len(sorted)),
	}
	for _, g := range sorted {
		doc.Groups = append(doc.Groups, toXML(g, o.order))
	}

	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(bw)
	enc.Indent("", indent)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode context groups: %w", err)
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}
	return bw.Flush()
}

func toXML(g *contextgroup.Group, order Order) xmlGroup {
	var concepts []contextgroup.Concept
	if order == OrderInsertion {
		concepts = g.Concepts().Items()
	} else {
		concepts = g.Concepts().Sorted()
	}

	xg := xmlGroup{
		CID:        g.ID.String(),
		Name:       g.Keyword,
		Extensible: g.Extensible,
		Version:    g.Version,
		Codes:      make([]xmlCode, 0, len(concepts)),
	}
	for _, c := range concepts {
		xg.Codes = append(xg.Codes, xmlCode{CSD: c.Scheme, CV: c.Value, CM: c.Meaning})
	}
	return xg
}

// WriteFile writes groups to path through AtomicWrite.
func WriteFile(path string, groups []*contextgroup.Group, opts ...Option) error {
	return AtomicWrite(path, func(w io.Writer) error {
		return Write(w, groups, opts...)
	})
}

// AtomicWrite renders encode into a temporary file next to path and renames
// it over path once encode succeeds. On failure path is left untouched.
func AtomicWrite(path string, encode func(io.Writer) error) error {
	buf := pool.AcquireBuffer()
	defer pool.ReleaseBuffer(buf)
	if err := encode(buf); err != nil {
		return err
	}

	temp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tempPath := temp.Name()

	if _, err := temp.Write(buf.Bytes()); err != nil {
		_ = temp.Close()
		_ = os.Remove(tempPath)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := temp.Close(); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tempPath, 0o644); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("setting permissions: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
