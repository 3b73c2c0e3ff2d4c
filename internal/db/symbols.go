package db

import (
	"fmt"

	"nesdis/internal/addr"
)

// ReverseKind tags what kind of owner a ReverseReference points back to.
type ReverseKind int

const (
	RefOperand     ReverseKind = iota // a MemoryObject's operand expression
	RefComment                        // a comment line's embedded {expr}
	RefDefine                         // another Define's expression
	RefEnumElement                    // another EnumElement's value expression
)

// ReverseReference identifies one referencing site. It is comparable, so
// a referenceable's reverse set is simply a map[ReverseReference]struct{}.
type ReverseReference struct {
	Kind        ReverseKind
	Where       addr.GlobalMemoryLocation // RefOperand / RefComment
	CommentPart string                    // decimal index of the referencing comment line, only for RefComment
	DefineName  string                    // RefDefine
	EnumName    string                    // RefEnumElement
	ElementName string                    // RefEnumElement
}

// referenceable is embedded by every symbol table entry (Label, Define,
// EnumElement) that other expressions can point at. It tracks who points
// at it (the reference graph's reverse-lookup / rename-impact-analysis
// side) and a small set of change callbacks fired when the symbol's value
// changes.
type referenceable struct {
	reverse  map[ReverseReference]struct{}
	onChange []func()
}

func (r *referenceable) addReverse(ref ReverseReference) {
	if r.reverse == nil {
		r.reverse = make(map[ReverseReference]struct{})
	}
	r.reverse[ref] = struct{}{}
}

func (r *referenceable) removeReverse(ref ReverseReference) {
	delete(r.reverse, ref)
}

func (r *referenceable) ReverseReferences() []ReverseReference {
	out := make([]ReverseReference, 0, len(r.reverse))
	for ref := range r.reverse {
		out = append(out, ref)
	}
	return out
}

func (r *referenceable) ReferenceCount() int { return len(r.reverse) }

func (r *referenceable) OnChange(f func()) {
	r.onChange = append(r.onChange, f)
}

func (r *referenceable) notifyChanged() {
	for _, f := range r.onChange {
		f()
	}
}

// Label names one address. Several labels may share an address; their
// relative order at that address is Index, the same ordinal a LabelNode's
// Nth selects.
type Label struct {
	referenceable
	Name  string
	Where addr.GlobalMemoryLocation
	Index int
}

// Define is a named constant expression, evaluated lazily and cached
// until invalidated.
type Define struct {
	referenceable
	Name  string
	Expr  Node
	cache *int64
}

func (d *Define) Evaluate() (int64, error) {
	if d.cache != nil {
		return *d.cache, nil
	}
	if d.Expr == nil {
		return 0, fmt.Errorf("define %q has no expression", d.Name)
	}
	v, err := d.Expr.Evaluate(&EvalContext{})
	if err != nil {
		return 0, err
	}
	d.cache = &v
	return v, nil
}

// Invalidate clears the cached value, called when Expr is reassigned or
// when something it (transitively) depends on changes.
func (d *Define) Invalidate() {
	d.cache = nil
	d.notifyChanged()
}

// Enum is a named set of EnumElements sharing a storage size (1 or 2
// bytes). Besides the by-name map, a secondary index keyed
// by evaluated value serves the disassembler's "what enum element(s) name
// this byte" lookup; it is rebuilt lazily since element expressions may not
// be resolvable at insertion time (a freshly loaded project resolves
// symbol expressions in a later pass).
type Enum struct {
	Name      string
	SizeBytes int
	byName    map[string]*EnumElement
	order     []*EnumElement

	byValue    map[int64][]*EnumElement
	valueStale bool
}

func NewEnum(name string, sizeBytes int) *Enum {
	return &Enum{Name: name, SizeBytes: sizeBytes, byName: make(map[string]*EnumElement)}
}

func (e *Enum) AddElement(el *EnumElement) {
	el.Enum = e
	e.byName[el.Name] = el
	e.order = append(e.order, el)
	e.valueStale = true
}

func (e *Enum) Element(name string) (*EnumElement, bool) {
	el, ok := e.byName[name]
	return el, ok
}

func (e *Enum) Elements() []*EnumElement { return e.order }

// ElementsByValue returns every element whose expression currently
// evaluates to v, in insertion order. Elements whose expression cannot yet
// be evaluated are simply absent from the index, not an error.
func (e *Enum) ElementsByValue(v int64) []*EnumElement {
	if e.valueStale || e.byValue == nil {
		e.byValue = make(map[int64][]*EnumElement)
		for _, el := range e.order {
			if val, err := el.Value(); err == nil {
				e.byValue[val] = append(e.byValue[val], el)
			}
		}
		e.valueStale = false
	}
	return e.byValue[v]
}

// EnumElement is one named value within an Enum.
type EnumElement struct {
	referenceable
	Enum  *Enum
	Name  string
	Expr  Node
	cache *int64
}

func (el *EnumElement) Value() (int64, error) {
	if el.cache != nil {
		return *el.cache, nil
	}
	if el.Expr == nil {
		return 0, fmt.Errorf("enum element %s::%s has no expression", el.Enum.Name, el.Name)
	}
	v, err := el.Expr.Evaluate(&EvalContext{})
	if err != nil {
		return 0, err
	}
	el.cache = &v
	return v, nil
}

func (el *EnumElement) Invalidate() {
	el.cache = nil
	if el.Enum != nil {
		el.Enum.valueStale = true
	}
	el.notifyChanged()
}

// SymbolTable is the shared lookup surface expression fixup and the
// disassembler both use: labels by name and by address, defines by name,
// enums by name, plus the quick-expression list offered in
// autocompletion.
type SymbolTable struct {
	// Events carries the table's mutation signals; a host subscribes here,
	// the mutators below emit.
	Events *EventBus

	labelsByName    map[string]*Label
	labelsByAddress map[uint64][]*Label
	defines         map[string]*Define
	enums           map[string]*Enum
	quickExprs      []string
}

func NewSymbolTable() *SymbolTable {
	return &SymbolTable{
		Events:          NewEventBus(),
		labelsByName:    make(map[string]*Label),
		labelsByAddress: make(map[uint64][]*Label),
		defines:         make(map[string]*Define),
		enums:           make(map[string]*Enum),
	}
}

// AddLabel inserts a user-created label. The disassembler and default-label
// seeding go through AddLabelWithOrigin instead so subscribers can tell the
// two apart (a UI typically scrolls to a user-created label, not to the
// hundredth auto-generated branch target).
func (t *SymbolTable) AddLabel(l *Label) error {
	return t.AddLabelWithOrigin(l, true)
}

func (t *SymbolTable) AddLabelWithOrigin(l *Label, userCreated bool) error {
	if _, exists := t.labelsByName[l.Name]; exists {
		return fmt.Errorf("label %q already defined", l.Name)
	}
	key := l.Where.Key()
	l.Index = len(t.labelsByAddress[key])
	t.labelsByAddress[key] = append(t.labelsByAddress[key], l)
	t.labelsByName[l.Name] = l
	t.Events.emitLabelCreated(LabelEvent{Label: l, UserCreated: userCreated})
	return nil
}

func (t *SymbolTable) RemoveLabel(l *Label) {
	delete(t.labelsByName, l.Name)
	nth := l.Index
	key := l.Where.Key()
	labels := t.labelsByAddress[key]
	for i, cand := range labels {
		if cand == l {
			labels = append(labels[:i], labels[i+1:]...)
			break
		}
	}
	for i, cand := range labels {
		cand.Index = i
	}
	if len(labels) == 0 {
		delete(t.labelsByAddress, key)
	} else {
		t.labelsByAddress[key] = labels
	}
	t.Events.emitLabelDeleted(LabelEvent{Label: l, Nth: nth})
}

// RenameLabel changes l's name in place. Referring expressions keep their
// resolved pointer and re-print through it, so the new name shows up on the
// next listing rebuild without walking the reference graph; only the
// by-name index needs updating here.
func (t *SymbolTable) RenameLabel(l *Label, newName string) error {
	if newName == l.Name {
		return nil
	}
	if _, exists := t.labelsByName[newName]; exists {
		return fmt.Errorf("label %q already defined", newName)
	}
	if t.labelsByName[l.Name] != l {
		return fmt.Errorf("label %q is not in this table", l.Name)
	}
	delete(t.labelsByName, l.Name)
	l.Name = newName
	t.labelsByName[newName] = l
	l.notifyChanged()
	return nil
}

func (t *SymbolTable) LabelByName(name string) (*Label, bool) {
	l, ok := t.labelsByName[name]
	return l, ok
}

// LabelsAt returns every label defined at Where, in occurrence order, so a
// LabelNode's Nth can select among them via Nth % len(labels).
func (t *SymbolTable) LabelsAt(where addr.GlobalMemoryLocation) []*Label {
	return t.labelsByAddress[where.Key()]
}

func (t *SymbolTable) AddDefine(d *Define) error {
	if _, exists := t.defines[d.Name]; exists {
		return fmt.Errorf("define %q already defined", d.Name)
	}
	t.defines[d.Name] = d
	t.Events.emitDefineCreated(DefineEvent{Define: d})
	return nil
}

func (t *SymbolTable) Define(name string) (*Define, bool) {
	d, ok := t.defines[name]
	return d, ok
}

// RemoveDefine refuses while anything still references the define; the
// caller surfaces the error and leaves cleanup of the referrers to the
// user.
func (t *SymbolTable) RemoveDefine(name string) error {
	d, ok := t.defines[name]
	if !ok {
		return fmt.Errorf("define %q not found", name)
	}
	if n := d.ReferenceCount(); n > 0 {
		return fmt.Errorf("define %q still has %d reference(s)", name, n)
	}
	delete(t.defines, name)
	return nil
}

func (t *SymbolTable) AddEnum(e *Enum) error {
	if _, exists := t.enums[e.Name]; exists {
		return fmt.Errorf("enum %q already defined", e.Name)
	}
	t.enums[e.Name] = e
	t.Events.emitEnum(EnumEvent{Kind: EnumCreated, Enum: e})
	return nil
}

func (t *SymbolTable) Enum(name string) (*Enum, bool) {
	e, ok := t.enums[name]
	return e, ok
}

// RemoveEnum refuses while any element is still referenced (deleting the
// enum would strand every memory object typed by it and every expression
// naming an element).
func (t *SymbolTable) RemoveEnum(name string) error {
	e, ok := t.enums[name]
	if !ok {
		return fmt.Errorf("enum %q not found", name)
	}
	for _, el := range e.order {
		if n := el.ReferenceCount(); n > 0 {
			return fmt.Errorf("enum element %s::%s still has %d reference(s)", name, el.Name, n)
		}
	}
	delete(t.enums, name)
	t.Events.emitEnum(EnumEvent{Kind: EnumDeleted, Enum: e})
	return nil
}

// AddEnumElement appends el to e and announces it. Load paths call
// Enum.AddElement directly instead, since restoring a saved project is not
// a mutation anyone should observe element-by-element.
func (t *SymbolTable) AddEnumElement(e *Enum, el *EnumElement) error {
	if _, exists := e.byName[el.Name]; exists {
		return fmt.Errorf("enum element %s::%s already defined", e.Name, el.Name)
	}
	e.AddElement(el)
	t.Events.emitEnum(EnumEvent{Kind: EnumElementAdded, Enum: e, Element: el})
	return nil
}

// SetEnumElementExpression replaces el's value expression. Forbidden
// while el has reverse-references: a referenced element's value is
// load-bearing for every site that names it, and silently moving it would
// corrupt the by-value index those sites were chosen from.
func (t *SymbolTable) SetEnumElementExpression(el *EnumElement, expr Node) error {
	if n := el.ReferenceCount(); n > 0 {
		return fmt.Errorf("enum element %s::%s still has %d reference(s); value cannot change", el.Enum.Name, el.Name, n)
	}
	el.Expr = expr
	el.Invalidate()
	t.Events.emitEnum(EnumEvent{Kind: EnumElementChanged, Enum: el.Enum, Element: el})
	return nil
}

// RemoveEnumElement refuses while el is still referenced, mirroring
// RemoveDefine's contract.
func (t *SymbolTable) RemoveEnumElement(e *Enum, name string) error {
	el, ok := e.byName[name]
	if !ok {
		return fmt.Errorf("enum element %s::%s not found", e.Name, name)
	}
	if n := el.ReferenceCount(); n > 0 {
		return fmt.Errorf("enum element %s::%s still has %d reference(s)", e.Name, name, n)
	}
	delete(e.byName, name)
	for i, cand := range e.order {
		if cand == el {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
	e.valueStale = true
	t.Events.emitEnum(EnumEvent{Kind: EnumElementDeleted, Enum: e, Element: el})
	return nil
}

// AddQuickExpression records a frequently-typed expression string for
// autocompletion; duplicates are ignored.
func (t *SymbolTable) AddQuickExpression(expr string) {
	for _, e := range t.quickExprs {
		if e == expr {
			return
		}
	}
	t.quickExprs = append(t.quickExprs, expr)
}

func (t *SymbolTable) QuickExpressions() []string { return t.quickExprs }
