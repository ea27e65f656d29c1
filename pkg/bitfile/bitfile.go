// Package bitfile parses FPGA bitfile descriptor documents (.lvbitx) into
// register and DMA channel descriptions.
//
// Registers or channels whose data types are not supported are dropped and
// reported through Diagnostics; a document missing required nodes fails to
// parse as a whole.
package bitfile

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/OpenTraceLab/OpenTraceFPGA/pkg/fpgatype"
)

// Bitfile is a parsed descriptor document.
type Bitfile struct {
	Path        string // absolute path when loaded from disk
	Signature   string // upper-cased
	BaseAddress uint32
	Registers   []*Register
	Channels    []*Channel

	// Diagnostics lists the registers and channels that were skipped.
	Diagnostics []error
}

// Register returns the first register with the given name.
func (b *Bitfile) Register(name string) (*Register, bool) {
	for _, r := range b.Registers {
		if r.Name == name {
			return r, true
		}
	}
	return nil, false
}

// Channel returns the channel with the given name.
func (b *Bitfile) Channel(name string) (*Channel, bool) {
	for _, c := range b.Channels {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// Err combines all diagnostics into a single error, or nil if nothing was
// skipped.
func (b *Bitfile) Err() error {
	return multierr.Combine(b.Diagnostics...)
}

// Load parses the bitfile at path.
func Load(path string) (*Bitfile, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("bitfile: %w", err)
	}
	file, err := os.Open(abs)
	if err != nil {
		return nil, fmt.Errorf("bitfile: failed to open file: %w", err)
	}
	defer file.Close()

	bf, err := Parse(file)
	if err != nil {
		return nil, err
	}
	bf.Path = abs
	return bf, nil
}

// ParseString parses a bitfile held in memory.
func ParseString(contents string) (*Bitfile, error) {
	return Parse(strings.NewReader(contents))
}

// Parse parses a bitfile from a reader.
func Parse(r io.Reader) (*Bitfile, error) {
	var root node
	if err := xml.NewDecoder(r).Decode(&root); err != nil {
		return nil, &MalformedDocumentError{Field: "Bitfile", Err: err}
	}
	return build(&root)
}

func build(root *node) (*Bitfile, error) {
	top := fields{root, root.name()}

	signature, err := top.text("SignatureRegister")
	if err != nil {
		return nil, err
	}

	niPath := []string{"Project", "CompilationResultsTree", "CompilationResults", "NiFpga"}
	nifpga := root.find(niPath...)
	if nifpga == nil {
		return nil, &MalformedDocumentError{Field: root.name() + "/" + strings.Join(niPath, "/")}
	}
	ni := fields{nifpga, root.name() + "/" + strings.Join(niPath, "/")}
	base, err := ni.unsigned("BaseAddressOnDevice")
	if err != nil {
		return nil, err
	}

	bf := &Bitfile{
		Signature:   strings.ToUpper(signature),
		BaseAddress: base,
	}

	regList := root.find("VI", "RegisterList")
	if regList == nil {
		return nil, &MalformedDocumentError{Field: root.name() + "/VI/RegisterList"}
	}
	for _, rn := range regList.Children {
		reg, err := parseRegister(rn)
		if err != nil {
			if !recoverable(err) {
				return nil, err
			}
			bf.skip("register", registerName(rn), err)
			continue
		}
		bf.Registers = append(bf.Registers, reg)
	}

	// Designs without DMA have no allocation list.
	if list := nifpga.child("DmaChannelAllocationList"); list != nil {
		for _, cn := range list.Children {
			ch, err := parseChannel(cn)
			if err != nil {
				if !recoverable(err) {
					return nil, err
				}
				name, _ := cn.attr("name")
				bf.skip("channel", name, err)
				continue
			}
			bf.Channels = append(bf.Channels, ch)
		}
	}

	Logger().Debug("parsed bitfile",
		zap.String("signature", bf.Signature),
		zap.Int("registers", len(bf.Registers)),
		zap.Int("channels", len(bf.Channels)),
		zap.Int("skipped", len(bf.Diagnostics)))

	return bf, nil
}

func (b *Bitfile) skip(kind, name string, err error) {
	Logger().Warn("skipping "+kind, zap.String("name", name), zap.Error(err))
	b.Diagnostics = append(b.Diagnostics, fmt.Errorf("bitfile: skipping %s %q: %w", kind, name, err))
}

// recoverable reports whether a parse error only affects a single register
// or channel.
func recoverable(err error) bool {
	var unsupported *UnsupportedTypeError
	var dup *fpgatype.DuplicateMemberNameError
	return errors.As(err, &unsupported) || errors.As(err, &dup)
}

func registerName(n *node) string {
	if c := n.child("Name"); c != nil {
		return c.text()
	}
	return ""
}

func parseRegister(n *node) (*Register, error) {
	name := registerName(n)
	f := fields{n, "Register[" + name + "]"}

	if _, err := f.node("Name"); err != nil {
		return nil, err
	}
	offset, err := f.unsigned("Offset")
	if err != nil {
		return nil, err
	}
	indicator, err := f.flag("Indicator")
	if err != nil {
		return nil, err
	}
	mayTimeout, err := f.flag("AccessMayTimeout")
	if err != nil {
		return nil, err
	}
	internal, err := f.flag("Internal")
	if err != nil {
		return nil, err
	}
	dt, err := f.node("Datatype")
	if err != nil {
		return nil, err
	}
	typeNode := dt.firstElement()
	if typeNode == nil {
		return nil, &MalformedDocumentError{Field: f.path + "/Datatype/<element>"}
	}
	typ, err := parseType(typeNode, f.path+"/Datatype")
	if err != nil {
		return nil, err
	}

	return &Register{
		Name:             name,
		Offset:           offset,
		Indicator:        indicator,
		AccessMayTimeout: mayTimeout,
		Internal:         internal,
		Type:             typ,
	}, nil
}

func parseChannel(n *node) (*Channel, error) {
	name, ok := n.attr("name")
	if !ok {
		return nil, &MalformedDocumentError{Field: "Channel/@name"}
	}
	f := fields{n, "Channel[" + name + "]"}

	number, err := f.unsigned("Number")
	if err != nil {
		return nil, err
	}
	dt, err := f.node("DataType")
	if err != nil {
		return nil, err
	}
	sub := dt.child("SubType")
	if sub == nil || sub.text() == "" {
		return nil, &UnsupportedTypeError{Tag: dt.name(), Detail: "channel data type has no SubType"}
	}
	typ, err := parseType(dt, f.path+"/DataType")
	if err != nil {
		return nil, err
	}
	if !typ.IsPrimitive() || typ.Kind == fpgatype.KindArray {
		return nil, &UnsupportedTypeError{Tag: sub.text(), Detail: "channel elements must be scalar"}
	}

	ch := &Channel{Name: name, Number: number, Type: typ}
	if d := n.child("Direction"); d != nil {
		ch.Direction = parseDirection(d.text())
	}
	return ch, nil
}
