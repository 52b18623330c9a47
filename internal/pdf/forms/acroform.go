package forms

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf16"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// Field flag bits (PDF 32000-1, 12.7.4)
const (
	flagRadio      = 1 << 15
	flagPushbutton = 1 << 16
	flagCombo      = 1 << 17
	flagEdit       = 1 << 18
)

// maxFieldDepth bounds the field tree walk; deeper trees are malformed or cyclic
const maxFieldDepth = 32

// ErrOptionNotFound is returned when a dropdown has no option for a value
var ErrOptionNotFound = errors.New("value not in dropdown options")

// ErrUnsupportedKind is returned when a field kind cannot be written
var ErrUnsupportedKind = errors.New("unsupported field type")

// Option is one choice of a dropdown. Export is written to the document,
// Display is what the viewer shows; they are equal for plain string options
type Option struct {
	Export  string `json:"export"`
	Display string `json:"display"`
}

// Node is a terminal AcroForm field together with its widget annotations
type Node struct {
	Field
	Flags    int
	Options  []Option
	dict     types.Dict
	widgets  []widget
	onState  string
	position int
}

type widget struct {
	dict    types.Dict
	onState string
}

// Editable reports whether a dropdown accepts values outside its options
func (n *Node) Editable() bool {
	return n.Flags&flagEdit != 0
}

// Document is a loaded PDF whose AcroForm fields can be read and written.
// A Document is not safe for concurrent use; load one per operation
type Document struct {
	ctx         *model.Context
	acroForm    types.Dict
	nodes       []*Node
	byName      map[string]*Node
	hasXFAEntry bool
	// ValidationErr holds a non-fatal relaxed-validation failure
	ValidationErr error
}

// inherited carries the inheritable field attributes down the tree
type inherited struct {
	ft    string
	flags int
	value types.Object
}

// Load parses data with pdfcpu and collects its terminal form fields. Parser
// panics are turned into errors
func Load(data []byte) (doc *Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			doc, err = nil, fmt.Errorf("pdf parser panic: %v", r)
		}
	}()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(bytes.NewReader(data), conf)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF context: %w", err)
	}

	if err := ctx.EnsurePageCount(); err != nil {
		return nil, fmt.Errorf("failed to ensure page count: %w", err)
	}

	doc = &Document{ctx: ctx, byName: make(map[string]*Node)}
	doc.ValidationErr = api.ValidateContext(ctx)

	if err := doc.collect(); err != nil {
		return nil, err
	}
	return doc, nil
}

// PageCount returns the number of pages
func (d *Document) PageCount() int {
	return d.ctx.PageCount
}

// HasXFAEntry reports whether the AcroForm dictionary carries an XFA stream
func (d *Document) HasXFAEntry() bool {
	return d.hasXFAEntry
}

// Nodes returns the terminal fields in document order
func (d *Document) Nodes() []*Node {
	return d.nodes
}

// Node looks a field up by its fully qualified name
func (d *Document) Node(name string) (*Node, bool) {
	n, ok := d.byName[name]
	return n, ok
}

// Fields returns the field descriptors in document order
func (d *Document) Fields() []Field {
	fields := make([]Field, len(d.nodes))
	for i, n := range d.nodes {
		fields[i] = n.Field
	}
	return fields
}

// collect walks the AcroForm field tree
func (d *Document) collect() error {
	rootDict, err := d.ctx.Catalog()
	if err != nil {
		return fmt.Errorf("failed to get catalog: %w", err)
	}

	acroFormObj, found := rootDict.Find("AcroForm")
	if !found {
		return nil
	}

	acroFormDict, err := d.ctx.DereferenceDict(acroFormObj)
	if err != nil {
		return fmt.Errorf("failed to dereference AcroForm: %w", err)
	}
	if acroFormDict == nil {
		return nil
	}
	d.acroForm = acroFormDict

	if _, found := acroFormDict.Find("XFA"); found {
		d.hasXFAEntry = true
	}

	fieldsObj, found := acroFormDict.Find("Fields")
	if !found {
		return nil
	}

	fieldsArray, err := d.ctx.DereferenceArray(fieldsObj)
	if err != nil {
		return fmt.Errorf("failed to dereference Fields array: %w", err)
	}

	for i, fieldRef := range fieldsArray {
		d.visit(fieldRef, "", fmt.Sprintf("field_%d", i), inherited{}, 0)
	}
	return nil
}

// visit records obj as a terminal field, or descends into its child fields.
// Kids carrying a /T entry are fields; kids without one are widgets
func (d *Document) visit(obj types.Object, parent, fallback string, inh inherited, depth int) {
	if depth > maxFieldDepth {
		return
	}

	fieldDict, err := d.ctx.DereferenceDict(obj)
	if err != nil || fieldDict == nil {
		return
	}

	name := parent
	if partial := d.stringEntry(fieldDict, "T"); partial != "" {
		if name != "" {
			name += "." + partial
		} else {
			name = partial
		}
	}
	if name == "" {
		name = fallback
	}

	if ft, err := d.nameEntry(fieldDict, "FT"); err == nil && ft != "" {
		inh.ft = ft
	}
	if flags, ok := d.intEntry(fieldDict, "Ff"); ok {
		inh.flags = flags
	}
	if v, found := fieldDict.Find("V"); found {
		inh.value = v
	}

	var childFields, widgets []types.Dict
	if kidsObj, found := fieldDict.Find("Kids"); found {
		if kids, err := d.ctx.DereferenceArray(kidsObj); err == nil {
			for _, k := range kids {
				kd, err := d.ctx.DereferenceDict(k)
				if err != nil || kd == nil {
					continue
				}
				if _, isField := kd.Find("T"); isField {
					childFields = append(childFields, kd)
				} else {
					widgets = append(widgets, kd)
				}
			}
		}
	}

	if len(childFields) > 0 {
		for i, kd := range childFields {
			d.visit(kd, name, fmt.Sprintf("%s_%d", name, i), inh, depth+1)
		}
		return
	}

	if len(widgets) == 0 {
		widgets = []types.Dict{fieldDict}
	}
	d.addNode(name, fieldDict, widgets, inh)
}

func (d *Document) addNode(name string, fieldDict types.Dict, widgets []types.Dict, inh inherited) {
	if _, dup := d.byName[name]; dup {
		return
	}

	n := &Node{
		Field:    Field{Name: name, Kind: kindOf(inh.ft, inh.flags)},
		Flags:    inh.flags,
		dict:     fieldDict,
		position: len(d.nodes),
	}

	for _, w := range widgets {
		ws := widget{dict: w, onState: d.widgetOnState(w)}
		if n.onState == "" {
			n.onState = ws.onState
		}
		n.widgets = append(n.widgets, ws)
	}
	if n.onState == "" {
		n.onState = "Yes"
	}

	if n.Kind == KindDropdown || inh.ft == "Ch" {
		n.Options = d.options(fieldDict)
	}

	n.Value = d.currentValue(n, inh.value)

	d.nodes = append(d.nodes, n)
	d.byName[name] = n
}

// kindOf maps the FT entry and flags to a coarse kind. Push buttons, list boxes
// and signatures are reported as unknown
func kindOf(ft string, flags int) FieldKind {
	switch ft {
	case "Tx":
		return KindText
	case "Btn":
		switch {
		case flags&flagRadio != 0:
			return KindRadio
		case flags&flagPushbutton != 0:
			return KindUnknown
		default:
			return KindCheckbox
		}
	case "Ch":
		if flags&flagCombo != 0 {
			return KindDropdown
		}
		return KindUnknown
	default:
		return KindUnknown
	}
}

// currentValue reads the field value. Failures leave the value unset
func (d *Document) currentValue(n *Node, v types.Object) (value *string) {
	defer func() {
		if recover() != nil {
			value = nil
		}
	}()

	switch n.Kind {
	case KindText:
		if v == nil {
			return nil
		}
		if s, err := d.ctx.DereferenceStringOrHexLiteral(v, model.V10, nil); err == nil && s != "" {
			return &s
		}
	case KindCheckbox:
		state := "unchecked"
		if v != nil {
			if name, err := d.ctx.DereferenceName(v, model.V10, nil); err == nil && name != "" && name != "Off" {
				state = "checked"
			}
		}
		return &state
	case KindDropdown:
		if v == nil {
			return nil
		}
		if s, err := d.ctx.DereferenceStringOrHexLiteral(v, model.V10, nil); err == nil {
			return &s
		}
		if arr, err := d.ctx.DereferenceArray(v); err == nil && len(arr) > 0 {
			if s, err := d.ctx.DereferenceStringOrHexLiteral(arr[0], model.V10, nil); err == nil {
				return &s
			}
		}
	}
	return nil
}

// options reads the Opt array; entries are strings or [export display] pairs
func (d *Document) options(fieldDict types.Dict) []Option {
	var opts []Option

	optObj, found := fieldDict.Find("Opt")
	if !found {
		return opts
	}

	optArray, err := d.ctx.DereferenceArray(optObj)
	if err != nil {
		return opts
	}

	for _, opt := range optArray {
		if s, err := d.ctx.DereferenceStringOrHexLiteral(opt, model.V10, nil); err == nil {
			opts = append(opts, Option{Export: s, Display: s})
		} else if arr, err := d.ctx.DereferenceArray(opt); err == nil && len(arr) >= 2 {
			export, err1 := d.ctx.DereferenceStringOrHexLiteral(arr[0], model.V10, nil)
			display, err2 := d.ctx.DereferenceStringOrHexLiteral(arr[1], model.V10, nil)
			if err1 == nil && err2 == nil {
				opts = append(opts, Option{Export: export, Display: display})
			}
		}
	}

	return opts
}

// widgetOnState returns the non-Off normal appearance state of a widget
func (d *Document) widgetOnState(w types.Dict) string {
	apObj, found := w.Find("AP")
	if !found {
		return ""
	}
	ap, err := d.ctx.DereferenceDict(apObj)
	if err != nil || ap == nil {
		return ""
	}
	nObj, found := ap.Find("N")
	if !found {
		return ""
	}
	normal, err := d.ctx.DereferenceDict(nObj)
	if err != nil || normal == nil {
		return ""
	}

	var states []string
	for k := range normal {
		if k != "Off" {
			states = append(states, k)
		}
	}
	if len(states) == 0 {
		return ""
	}
	sort.Strings(states)
	return states[0]
}

func (d *Document) stringEntry(dict types.Dict, key string) string {
	obj, found := dict.Find(key)
	if !found {
		return ""
	}
	s, err := d.ctx.DereferenceStringOrHexLiteral(obj, model.V10, nil)
	if err != nil {
		return ""
	}
	return s
}

func (d *Document) nameEntry(dict types.Dict, key string) (string, error) {
	obj, found := dict.Find(key)
	if !found {
		return "", nil
	}
	name, err := d.ctx.DereferenceName(obj, model.V10, nil)
	if err != nil {
		return "", err
	}
	return string(name), nil
}

func (d *Document) intEntry(dict types.Dict, key string) (int, bool) {
	obj, found := dict.Find(key)
	if !found {
		return 0, false
	}
	i, err := d.ctx.DereferenceInteger(obj)
	if err != nil || i == nil {
		return 0, false
	}
	return int(*i), true
}

// SetText writes a text value
func (d *Document) SetText(n *Node, value string) error {
	if n.Kind != KindText {
		return fmt.Errorf("%w: %s is %s", ErrUnsupportedKind, n.Name, n.Kind)
	}
	n.dict.Update("V", encodeText(value))
	n.setValue(value)
	return nil
}

// SetChecked checks or unchecks a checkbox, keeping each widget's appearance
// state in line with the value
func (d *Document) SetChecked(n *Node, checked bool) error {
	if n.Kind != KindCheckbox {
		return fmt.Errorf("%w: %s is %s", ErrUnsupportedKind, n.Name, n.Kind)
	}

	value := types.Name("Off")
	if checked {
		value = types.Name(n.onState)
	}
	n.dict.Update("V", value)

	for _, w := range n.widgets {
		state := types.Name("Off")
		if checked && (w.onState == "" || w.onState == n.onState) {
			state = types.Name(n.onState)
		}
		w.dict.Update("AS", state)
	}

	if checked {
		n.setValue("checked")
	} else {
		n.setValue("unchecked")
	}
	return nil
}

// Select chooses the dropdown option matching value by export or display
// text, exactly first and then case-insensitively. Editable dropdowns take
// any value. It returns the export value written
func (d *Document) Select(n *Node, value string) (string, error) {
	if n.Kind != KindDropdown {
		return "", fmt.Errorf("%w: %s is %s", ErrUnsupportedKind, n.Name, n.Kind)
	}

	export, ok := matchOption(n.Options, value)
	if !ok {
		if !n.Editable() {
			return "", ErrOptionNotFound
		}
		export = value
	}

	n.dict.Update("V", encodeText(export))
	n.setValue(export)
	return export, nil
}

func matchOption(opts []Option, value string) (string, bool) {
	for _, o := range opts {
		if o.Export == value || o.Display == value {
			return o.Export, true
		}
	}
	for _, o := range opts {
		if strings.EqualFold(o.Export, value) || strings.EqualFold(o.Display, value) {
			return o.Export, true
		}
	}
	return "", false
}

func (n *Node) setValue(v string) {
	n.Value = &v
}

// Save asks viewers to regenerate field appearances and serializes the
// document into a new buffer
func (d *Document) Save() (out []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("pdf writer panic: %v", r)
		}
	}()

	if d.acroForm != nil {
		d.acroForm.Update("NeedAppearances", types.Boolean(true))
	}

	var buf bytes.Buffer
	if err := api.WriteContext(d.ctx, &buf); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	return buf.Bytes(), nil
}

var literalEscaper = strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`, "\r", `\r`, "\n", `\n`)

// encodeText encodes a text string as a literal when it is plain ASCII and as
// UTF-16BE hex with a byte order mark otherwise
func encodeText(s string) types.Object {
	ascii := true
	for _, r := range s {
		if r > 0x7e || (r < 0x20 && r != '\n' && r != '\r' && r != '\t') {
			ascii = false
			break
		}
	}
	if ascii {
		return types.StringLiteral(literalEscaper.Replace(s))
	}

	units := utf16.Encode([]rune(s))
	raw := make([]byte, 2, 2+2*len(units))
	raw[0], raw[1] = 0xfe, 0xff
	for _, u := range units {
		raw = append(raw, byte(u>>8), byte(u))
	}
	return types.HexLiteral(strings.ToUpper(hex.EncodeToString(raw)))
}
