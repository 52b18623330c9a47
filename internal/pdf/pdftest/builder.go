// Package pdftest builds small AcroForm documents for tests
package pdftest

import (
	"bytes"
	"fmt"
	"strings"
)

type fieldKind int

const (
	kindText fieldKind = iota
	kindCheckbox
	kindDropdown
	kindRadio
	kindSignature
	kindGroup
)

type fieldSpec struct {
	kind     fieldKind
	name     string
	value    string
	checked  bool
	options  []string
	editable bool
	children []string
}

// Builder assembles a one-page PDF with form fields
type Builder struct {
	fields     []fieldSpec
	xfa        string
	noAcroForm bool
	header     string
}

// New returns an empty builder
func New() *Builder {
	return &Builder{header: "%PDF-1.7"}
}

// Text adds a text field with an optional current value
func (b *Builder) Text(name, value string) *Builder {
	b.fields = append(b.fields, fieldSpec{kind: kindText, name: name, value: value})
	return b
}

// Checkbox adds a checkbox whose on state is "Yes"
func (b *Builder) Checkbox(name string, checked bool) *Builder {
	b.fields = append(b.fields, fieldSpec{kind: kindCheckbox, name: name, checked: checked})
	return b
}

// Dropdown adds a combo box. An option written as "export=display" becomes
// an export/display pair
func (b *Builder) Dropdown(name string, options []string, value string) *Builder {
	b.fields = append(b.fields, fieldSpec{kind: kindDropdown, name: name, options: options, value: value})
	return b
}

// EditableDropdown adds a combo box that accepts values outside its options
func (b *Builder) EditableDropdown(name string, options []string) *Builder {
	b.fields = append(b.fields, fieldSpec{kind: kindDropdown, name: name, options: options, editable: true})
	return b
}

// Radio adds a two-button radio group
func (b *Builder) Radio(name string) *Builder {
	b.fields = append(b.fields, fieldSpec{kind: kindRadio, name: name})
	return b
}

// Signature adds a signature field
func (b *Builder) Signature(name string) *Builder {
	b.fields = append(b.fields, fieldSpec{kind: kindSignature, name: name})
	return b
}

// Group adds a non-terminal field whose text children are named
// "parent.child"
func (b *Builder) Group(name string, children ...string) *Builder {
	b.fields = append(b.fields, fieldSpec{kind: kindGroup, name: name, children: children})
	return b
}

// XFA attaches an uncompressed XFA stream to the AcroForm
func (b *Builder) XFA(xml string) *Builder {
	b.xfa = xml
	return b
}

// WithoutAcroForm omits the AcroForm dictionary entirely
func (b *Builder) WithoutAcroForm() *Builder {
	b.noAcroForm = true
	return b
}

type objects struct {
	bodies []string
}

func (o *objects) reserve() int {
	o.bodies = append(o.bodies, "")
	return len(o.bodies)
}

func (o *objects) set(n int, body string) {
	o.bodies[n-1] = body
}

func (o *objects) add(body string) int {
	n := o.reserve()
	o.set(n, body)
	return n
}

func ref(n int) string {
	return fmt.Sprintf("%d 0 R", n)
}

func refs(ns []int) string {
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = ref(n)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

var literalEscaper = strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)

func lit(s string) string {
	return "(" + literalEscaper.Replace(s) + ")"
}

func stream(dict, data string) string {
	return fmt.Sprintf("<< %s /Length %d >>\nstream\n%s\nendstream", dict, len(data), data)
}

// Build renders the document
func (b *Builder) Build() []byte {
	var o objects
	catalog := o.reserve()
	pages := o.reserve()
	page := o.reserve()

	appearance := o.add(stream("/Type /XObject /Subtype /Form /BBox [0 0 12 12]", ""))

	var fieldRefs, annots []int
	y := 740
	rect := func() string {
		r := fmt.Sprintf("/Rect [72 %d 300 %d]", y, y+14)
		y -= 24
		return r
	}
	widget := fmt.Sprintf("/Type /Annot /Subtype /Widget /F 4 /P %s", ref(page))

	for _, f := range b.fields {
		switch f.kind {
		case kindText:
			body := fmt.Sprintf("<< %s /FT /Tx /T %s %s", widget, lit(f.name), rect())
			if f.value != "" {
				body += " /V " + lit(f.value)
			}
			n := o.add(body + " >>")
			fieldRefs, annots = append(fieldRefs, n), append(annots, n)

		case kindCheckbox:
			state := "/Off"
			if f.checked {
				state = "/Yes"
			}
			n := o.add(fmt.Sprintf("<< %s /FT /Btn /T %s %s /V %s /AS %s /AP << /N << /Yes %s /Off %s >> >> >>",
				widget, lit(f.name), rect(), state, state, ref(appearance), ref(appearance)))
			fieldRefs, annots = append(fieldRefs, n), append(annots, n)

		case kindDropdown:
			flags := 1 << 17
			if f.editable {
				flags |= 1 << 18
			}
			opts := make([]string, len(f.options))
			for i, opt := range f.options {
				if export, display, ok := strings.Cut(opt, "="); ok {
					opts[i] = "[" + lit(export) + " " + lit(display) + "]"
				} else {
					opts[i] = lit(opt)
				}
			}
			body := fmt.Sprintf("<< %s /FT /Ch /Ff %d /T %s %s /Opt [%s]",
				widget, flags, lit(f.name), rect(), strings.Join(opts, " "))
			if f.value != "" {
				body += " /V " + lit(f.value)
			}
			n := o.add(body + " >>")
			fieldRefs, annots = append(fieldRefs, n), append(annots, n)

		case kindRadio:
			parent := o.reserve()
			var kids []int
			for _, state := range []string{"A", "B"} {
				k := o.add(fmt.Sprintf("<< %s /Parent %s %s /AS /Off /AP << /N << /%s %s /Off %s >> >> >>",
					widget, ref(parent), rect(), state, ref(appearance), ref(appearance)))
				kids = append(kids, k)
				annots = append(annots, k)
			}
			o.set(parent, fmt.Sprintf("<< /FT /Btn /Ff %d /T %s /V /Off /Kids %s >>", 1<<15, lit(f.name), refs(kids)))
			fieldRefs = append(fieldRefs, parent)

		case kindSignature:
			n := o.add(fmt.Sprintf("<< %s /FT /Sig /T %s %s >>", widget, lit(f.name), rect()))
			fieldRefs, annots = append(fieldRefs, n), append(annots, n)

		case kindGroup:
			parent := o.reserve()
			var kids []int
			for _, child := range f.children {
				k := o.add(fmt.Sprintf("<< %s /Parent %s /T %s %s >>", widget, ref(parent), lit(child), rect()))
				kids = append(kids, k)
				annots = append(annots, k)
			}
			o.set(parent, fmt.Sprintf("<< /FT /Tx /T %s /Kids %s >>", lit(f.name), refs(kids)))
			fieldRefs = append(fieldRefs, parent)
		}
	}

	catalogBody := fmt.Sprintf("<< /Type /Catalog /Pages %s", ref(pages))
	if !b.noAcroForm {
		acro := fmt.Sprintf("<< /Fields %s /DA (/Helv 0 Tf 0 g)", refs(fieldRefs))
		if b.xfa != "" {
			acro += " /XFA " + ref(o.add(stream("", b.xfa)))
		}
		catalogBody += " /AcroForm " + ref(o.add(acro+" >>"))
	}
	o.set(catalog, catalogBody+" >>")
	o.set(pages, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count 1 >>", ref(page)))

	pageBody := fmt.Sprintf("<< /Type /Page /Parent %s /MediaBox [0 0 612 792]", ref(pages))
	if len(annots) > 0 {
		pageBody += " /Annots " + refs(annots)
	}
	o.set(page, pageBody+" >>")

	return b.serialize(o.bodies, catalog)
}

func (b *Builder) serialize(bodies []string, root int) []byte {
	var buf bytes.Buffer
	buf.WriteString(b.header + "\n%\xe2\xe3\xcf\xd3\n")

	offsets := make([]int, len(bodies))
	for i, body := range bodies {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(bodies)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root %s >>\nstartxref\n%d\n%%%%EOF\n", len(bodies)+1, ref(root), xref)
	return buf.Bytes()
}
