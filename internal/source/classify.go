package source

import (
	"errors"
	"fmt"

	"dmd/internal/catalogue"
)

// ErrUnexpectedShape is returned for documents whose structure does not
// match their fragment.
var ErrUnexpectedShape = errors.New("source: unexpected document shape")

// combinationContent marks VMPP/AMPP combination pack groups, which are not
// imported.
const combinationContent = "CCONTENT"

// Group is a run of records of one kind.
type Group struct {
	Kind    *catalogue.Kind
	Records []*Element
}

// Classify splits a parsed fragment into groups.
//
//   - lookup: every child is a group named after its lookup kind.
//   - ingredient, vtm: the children are the records.
//   - gtin: reshaped first, see reshapeGTIN.
//   - everything else: every child is an unnamed group whose kind is the
//     tag of its first record. Empty and combination-content groups are
//     skipped.
func Classify(fragment string, root *Element) ([]Group, error) {
	switch fragment {
	case "lookup":
		return classifyLookup(root)
	case "ingredient", "vtm":
		return classifyFlat(root)
	case "gtin":
		return reshapeGTIN(root)
	default:
		return classifyNested(root)
	}
}

func kindFor(label string) (*catalogue.Kind, error) {
	k, ok := catalogue.Lookup(label)
	if !ok {
		return nil, fmt.Errorf("%w: unknown record kind %s", ErrUnexpectedShape, label)
	}
	return k, nil
}

func classifyLookup(root *Element) ([]Group, error) {
	var out []Group
	for _, g := range root.Children {
		k, err := kindFor(g.Tag)
		if err != nil {
			return nil, err
		}
		if k.Class != catalogue.ClassLookup {
			return nil, fmt.Errorf("%w: %s is not a lookup", ErrUnexpectedShape, g.Tag)
		}
		out = append(out, Group{Kind: k, Records: g.Children})
	}
	return out, nil
}

func classifyFlat(root *Element) ([]Group, error) {
	if len(root.Children) == 0 {
		return nil, nil
	}
	k, err := kindFor(root.Children[0].Tag)
	if err != nil {
		return nil, err
	}
	return []Group{{Kind: k, Records: root.Children}}, nil
}

func classifyNested(root *Element) ([]Group, error) {
	var out []Group
	for _, g := range root.Children {
		if len(g.Children) == 0 {
			continue
		}
		first := g.Children[0].Tag
		if first == combinationContent {
			continue
		}
		k, err := kindFor(first)
		if err != nil {
			return nil, err
		}
		out = append(out, Group{Kind: k, Records: g.Children})
	}
	return out, nil
}

// reshapeGTIN turns the GTIN document into plain GTIN records.
//
// Each AMPP element in the first group holds an AMPPID and one or more
// GTINDATA blocks. AMPPID is renamed APPID, the key of the AMPP it belongs
// to, and every GTINDATA block becomes its own record with its children
// lifted one level.
func reshapeGTIN(root *Element) ([]Group, error) {
	if len(root.Children) == 0 {
		return nil, nil
	}
	var records []*Element
	for _, el := range root.Children[0].Children {
		if len(el.Children) < 2 || el.Children[0].Tag != "AMPPID" {
			return nil, fmt.Errorf("%w: GTIN record <%s> does not start with AMPPID", ErrUnexpectedShape, el.Tag)
		}
		id := &Element{Tag: "APPID", Text: el.Children[0].Text}
		for _, data := range el.Children[1:] {
			if data.Tag != "GTINDATA" {
				return nil, fmt.Errorf("%w: GTIN record has <%s>, want GTINDATA", ErrUnexpectedShape, data.Tag)
			}
			rec := &Element{Tag: catalogue.GTIN, Children: []*Element{id}}
			rec.Children = append(rec.Children, data.Children...)
			records = append(records, rec)
		}
	}
	if len(records) == 0 {
		return nil, nil
	}
	return []Group{{Kind: catalogue.MustKind(catalogue.GTIN), Records: records}}, nil
}

// Load locates, parses and classifies every fragment of the release in dir,
// returning groups in document order. Nothing is returned unless every
// fragment is present and well formed.
func Load(dir string) ([]Group, error) {
	paths, err := LocateAll(dir)
	if err != nil {
		return nil, err
	}
	var out []Group
	for _, frag := range Fragments {
		root, err := ParseFile(paths[frag])
		if err != nil {
			return nil, err
		}
		groups, err := Classify(frag, root)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", paths[frag], err)
		}
		out = append(out, groups...)
	}
	return out, nil
}
