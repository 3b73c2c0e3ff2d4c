package db

import "nesdis/internal/binio"

// Save writes every label, define, enum, and quick-expression string. Labels
// are saved flat (name + location) rather than nested inside their owning
// MemoryRegion's object stream, since a region's object load happens
// before the symbol table exists to resolve label identity against — the
// load is two-pass: symbol tables first, then every region's per-object
// label list is fixed up against them.
func (t *SymbolTable) Save(w *binio.Writer) {
	binio.WriteVector(w, labelSlice(t), func(w *binio.Writer, l *Label) {
		w.WriteString(l.Name)
		w.WriteVarUint(uint64(l.Where.Address))
		w.WriteBool(l.Where.IsCHR)
		w.WriteVarUint(uint64(l.Where.PRGROMBank))
		w.WriteVarUint(uint64(l.Where.CHRROMBank))
		w.WriteVarUint(uint64(l.Index))
	})
	binio.WriteVector(w, enumSlice(t), func(w *binio.Writer, e *Enum) {
		w.WriteString(e.Name)
		w.WriteVarUint(uint64(e.SizeBytes))
		binio.WriteVector(w, e.Elements(), func(w *binio.Writer, el *EnumElement) {
			w.WriteString(el.Name)
			SaveNode(w, el.Expr)
		})
	})
	binio.WriteVector(w, defineSlice(t), func(w *binio.Writer, d *Define) {
		w.WriteString(d.Name)
		SaveNode(w, d.Expr)
	})
	binio.WriteVector(w, t.quickExprs, (*binio.Writer).WriteString)
}

func labelSlice(t *SymbolTable) []*Label {
	out := make([]*Label, 0, len(t.labelsByName))
	for _, l := range t.labelsByName {
		out = append(out, l)
	}
	return out
}

func enumSlice(t *SymbolTable) []*Enum {
	out := make([]*Enum, 0, len(t.enums))
	for _, e := range t.enums {
		out = append(out, e)
	}
	return out
}

func defineSlice(t *SymbolTable) []*Define {
	out := make([]*Define, 0, len(t.defines))
	for _, d := range t.defines {
		out = append(out, d)
	}
	return out
}

// LoadSymbolTable reads labels, enums, and defines back. Enum element and
// define expressions are left unresolved (they may reference each other, or
// labels not yet visible); call ResolveSymbolExpressions afterward once
// every label/enum/define name exists in the table.
func LoadSymbolTable(r *binio.Reader) *SymbolTable {
	t := NewSymbolTable()

	labels := binio.ReadVector(r, func(r *binio.Reader) *Label {
		l := &Label{}
		l.Name = r.ReadString()
		l.Where.Address = uint16(r.ReadVarUint())
		l.Where.IsCHR = r.ReadBool()
		l.Where.PRGROMBank = uint16(r.ReadVarUint())
		l.Where.CHRROMBank = uint16(r.ReadVarUint())
		l.Index = int(r.ReadVarUint())
		return l
	})
	for _, l := range labels {
		key := l.Where.Key()
		t.labelsByName[l.Name] = l
		t.labelsByAddress[key] = append(t.labelsByAddress[key], l)
	}

	enums := binio.ReadVector(r, func(r *binio.Reader) *Enum {
		name := r.ReadString()
		size := int(r.ReadVarUint())
		e := NewEnum(name, size)
		elements := binio.ReadVector(r, func(r *binio.Reader) *EnumElement {
			el := &EnumElement{Name: r.ReadString(), Expr: LoadNode(r)}
			return el
		})
		for _, el := range elements {
			e.AddElement(el)
		}
		return e
	})
	for _, e := range enums {
		t.enums[e.Name] = e
	}

	defines := binio.ReadVector(r, func(r *binio.Reader) *Define {
		return &Define{Name: r.ReadString(), Expr: LoadNode(r)}
	})
	for _, d := range defines {
		t.defines[d.Name] = d
	}

	t.quickExprs = binio.ReadVector(r, (*binio.Reader).ReadString)
	return t
}

// ResolveSymbolExpressions fixes up every define's and enum element's
// expression tree against the now-complete table (labels/defines/enums may
// reference each other; order doesn't matter since resolution only installs
// pointers, it doesn't evaluate).
func (t *SymbolTable) ResolveSymbolExpressions(ctx *FixupContext) {
	for name, d := range t.defines {
		if d.Expr != nil {
			d.Expr = ResolveAll(d.Expr, ctx, ReverseReference{Kind: RefDefine, DefineName: name})
		}
	}
	for _, e := range t.enums {
		for _, el := range e.Elements() {
			if el.Expr != nil {
				el.Expr = ResolveAll(el.Expr, ctx, ReverseReference{Kind: RefEnumElement, EnumName: e.Name, ElementName: el.Name})
			}
		}
	}
}
