package db

// Explore walks n pre-order, calling visit at every node. visit may return a
// replacement node; Explore then continues into that replacement's children
// (not the original's) whenever visit asks it to. This generic walk replaces
// the original's per-node-kind Explore() overrides: because every Node
// implements Children()/SetChildren(), one traversal function serves all of
// them, rather than one override per expression kind.
func Explore(n Node, visit VisitFunc) Node {
	if n == nil {
		return nil
	}
	replacement, cont := visit(n)
	if replacement == nil {
		replacement = n
	}
	if !cont {
		return replacement
	}
	kids := replacement.Children()
	if len(kids) == 0 {
		return replacement
	}
	changed := make([]Node, len(kids))
	for i, k := range kids {
		changed[i] = Explore(k, visit)
	}
	replacement.SetChildren(changed)
	return replacement
}

// FixupContext supplies the live tables Fixup resolves Name nodes
// against. ResolveAll first turns enum element qualifiers (Enum::Element)
// into EnumElementNodes; Fixup then tries labels (an address always wins
// over a coincidentally-named define), then defines, then system-instance
// state names. A Name that matches nothing is left as-is —
// callers can detect that by walking the result and checking for *Name
// nodes surviving the pass, which is a display/ evaluate-time error, not a
// panic.
type FixupContext struct {
	Symbols *SymbolTable
	// StateGetter resolves a bare identifier to a live instance-state getter
	// (e.g. "a", "pc", "scanline") if it names one. May be nil outside an
	// instance context (project-level fixup).
	StateGetter func(name string) (func() int64, bool)
	// Deref is bound onto every DereferenceOp encountered so evaluation can
	// read through memory. May be nil for a pure syntax-only fixup pass.
	Deref func(int64) (int64, error)
}

// Fixup rewrites a freshly parsed expression tree's Name leaves into
// resolved domain nodes (Label/Define/EnumElement/SystemInstanceState),
// wires Deref into every DereferenceOp, and registers the new reverse
// references the resulting tree creates (the ReverseReference of owner
// pointing at whatever it now names). ownerRef describes the
// reverse-reference entry to record on every resolved symbol — e.g. a
// MemoryObject's operand expression passes its own Where/RefOperand.
func Fixup(root Node, ctx *FixupContext, ownerRef ReverseReference) Node {
	return Explore(root, func(n Node) (Node, bool) {
		switch t := n.(type) {
		case *Name:
			if l, ok := ctx.Symbols.LabelByName(t.Text); ok {
				ln := &LabelNode{Where: l.Where, Nth: l.Index, Display: t.Text}
				ln.resolved = l
				l.addReverse(ownerRef)
				return ln, true
			}
			if d, ok := ctx.Symbols.Define(t.Text); ok {
				dn := &DefineNode{Name: t.Text, resolved: d}
				d.addReverse(ownerRef)
				return dn, true
			}
			if ctx.StateGetter != nil {
				if getter, ok := ctx.StateGetter(t.Text); ok {
					return &SystemInstanceState{Name: t.Text, Getter: getter}, true
				}
			}
			return t, true
		case *DereferenceOp:
			t.Deref = ctx.Deref
			return t, true
		default:
			return t, true
		}
	})
}

// fixupEnumQualified resolves a Enum::Element BinaryOp("::") pair produced
// by the parser into an EnumElementNode. Fixup's Name case cannot do this
// (the qualifier is a binary "::" node, not a single Name), so ResolveAll
// runs this as a separate Explore pass before Fixup.
func fixupEnumQualified(root Node, ctx *FixupContext, ownerRef ReverseReference) Node {
	return Explore(root, func(n Node) (Node, bool) {
		bin, ok := n.(*BinaryOp)
		if !ok || bin.Op != "::" {
			return n, true
		}
		enumName, ok1 := bin.Left.(*Name)
		elemName, ok2 := bin.Right.(*Name)
		if !ok1 || !ok2 {
			return n, true
		}
		enum, ok := ctx.Symbols.Enum(enumName.Text)
		if !ok {
			return n, true
		}
		el, ok := enum.Element(elemName.Text)
		if !ok {
			return n, true
		}
		node := &EnumElementNode{EnumName: enumName.Text, ElementName: elemName.Text, resolved: el}
		el.addReverse(ownerRef)
		return node, false
	})
}

// ResolveAll runs the full fixup pipeline (enum qualifiers, then
// names/derefs) in the order the parser's output actually needs: "::" pairs
// are resolved first so a subsequent Name pass never mistakes an enum name
// for an unrelated label/define of the same spelling.
func ResolveAll(root Node, ctx *FixupContext, ownerRef ReverseReference) Node {
	root = fixupEnumQualified(root, ctx, ownerRef)
	root = Fixup(root, ctx, ownerRef)
	return root
}

// Unlink walks root and removes ownerRef from every resolved symbol's
// reverse-reference set, the inverse of ResolveAll's bookkeeping. Call this
// before replacing or deleting an operand expression / comment / define
// body so stale reverse references don't accumulate: every forward
// reference must keep a matching reverse entry.
func Unlink(root Node, ownerRef ReverseReference) {
	Explore(root, func(n Node) (Node, bool) {
		switch t := n.(type) {
		case *LabelNode:
			if t.resolved != nil {
				t.resolved.removeReverse(ownerRef)
			}
		case *DefineNode:
			if t.resolved != nil {
				t.resolved.removeReverse(ownerRef)
			}
		case *EnumElementNode:
			if t.resolved != nil {
				t.resolved.removeReverse(ownerRef)
			}
		}
		return n, true
	})
}
