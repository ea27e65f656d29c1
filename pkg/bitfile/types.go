package bitfile

import (
	"fmt"
	"strings"

	"github.com/OpenTraceLab/OpenTraceFPGA/pkg/fpgatype"
	"github.com/OpenTraceLab/OpenTraceFPGA/pkg/fxp"
)

var integerTypes = map[string]struct {
	width  int
	signed bool
}{
	"I8":  {8, true},
	"I16": {16, true},
	"I32": {32, true},
	"I64": {64, true},
	"U8":  {8, false},
	"U16": {16, false},
	"U32": {32, false},
	"U64": {64, false},
}

// parseType builds the type described by a type element. If the element
// has a SubType child (DMA channel data types), its text is the tag and the
// type is unnamed. Otherwise the element's own name is the tag and its Name
// child is the label.
func parseType(n *node, path string) (*fpgatype.Type, error) {
	var tag, name string
	if sub := n.child("SubType"); sub != nil {
		tag = sub.text()
	} else {
		tag = n.name()
		path += "/" + tag
		label, err := fields{n, path}.text("Name")
		if err != nil {
			return nil, err
		}
		name = label
	}
	tag = strings.ReplaceAll(tag, "Enum", "")
	f := fields{n, path}

	if it, ok := integerTypes[tag]; ok {
		return fpgatype.NewInt(name, it.width, it.signed)
	}

	switch tag {
	case "Boolean":
		return fpgatype.NewBool(name), nil

	case "FXP":
		signed, err := f.flag("Signed")
		if err != nil {
			return nil, err
		}
		wl, err := f.number("WordLength")
		if err != nil {
			return nil, err
		}
		iwl, err := f.number("IntegerWordLength")
		if err != nil {
			return nil, err
		}
		overflow := false
		if o := n.child("IncludeOverflowStatus"); o != nil {
			overflow = strings.EqualFold(o.text(), "true")
		}
		info := fxp.TypeInfo{WordLength: wl, IntegerWordLength: iwl, Signed: signed}
		if err := info.Validate(); err != nil {
			return nil, &UnsupportedTypeError{Tag: tag, Detail: err.Error()}
		}
		return fpgatype.NewFixedPoint(name, info, overflow)

	case "Array":
		size, err := f.number("Size")
		if err != nil {
			return nil, err
		}
		if size < 0 {
			return nil, &MalformedDocumentError{Field: path + "/Size", Err: fmt.Errorf("negative size %d", size)}
		}
		typeNode, err := f.node("Type")
		if err != nil {
			return nil, err
		}
		elemNode := typeNode.firstElement()
		if elemNode == nil {
			return nil, &MalformedDocumentError{Field: path + "/Type/<element>"}
		}
		elem, err := parseType(elemNode, path+"/Type")
		if err != nil {
			return nil, err
		}
		return fpgatype.NewArray(name, elem, size)

	case "Cluster":
		list, err := f.node("TypeList")
		if err != nil {
			return nil, err
		}
		members := make([]*fpgatype.Type, 0, len(list.Children))
		for _, c := range list.Children {
			m, err := parseType(c, path+"/TypeList")
			if err != nil {
				return nil, err
			}
			members = append(members, m)
		}
		return fpgatype.NewCluster(name, members...)

	case "String":
		// Strings only appear inside error clusters and never reach the
		// register bus.
		return fpgatype.NewOpaque(name), nil
	}

	return nil, &UnsupportedTypeError{Tag: tag}
}
