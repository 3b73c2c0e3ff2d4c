package db

import (
	"fmt"

	"nesdis/internal/binio"
)

// nodeFactories produces a zero-value node of a given kind so its payload
// can be read into it: a lookup table from wire id to constructor, rather
// than a virtual factory object per node kind.
var nodeFactories = map[NodeKind]func() Node{
	KindName:                func() Node { return &Name{} },
	KindConstant:            func() Node { return &Constant{} },
	KindBinaryOp:            func() Node { return &BinaryOp{} },
	KindUnaryOp:             func() Node { return &UnaryOp{} },
	KindParens:              func() Node { return &Parens{} },
	KindExpressionList:      func() Node { return &ExpressionList{} },
	KindDereferenceOp:       func() Node { return &DereferenceOp{} },
	KindFunctionCall:        func() Node { return &FunctionCall{} },
	KindLabel:               func() Node { return &LabelNode{} },
	KindDefine:              func() Node { return &DefineNode{} },
	KindEnumElement:         func() Node { return &EnumElementNode{} },
	KindImmediate:           func() Node { return &Immediate{} },
	KindIndexedX:            func() Node { return &IndexedX{} },
	KindIndexedY:            func() Node { return &IndexedY{} },
	KindAccum:               func() Node { return &Accum{} },
	KindSystemInstanceState: func() Node { return &SystemInstanceState{} },
}

// SaveNode writes n's wire representation: kind id, then the node's own
// payload, then the generic child-count/children trailer.
// Unresolved symbol references (Label/Define/EnumElement) are
// saved by name/address, not by pointer; LoadNode leaves them unresolved
// until a subsequent ResolveAll pass runs against the loaded SymbolTable.
func SaveNode(w *binio.Writer, n Node) {
	w.WriteByte(byte(n.Kind()))
	writePayload(w, n)
	children := n.Children()
	w.WriteVarUint(uint64(len(children)))
	for _, c := range children {
		SaveNode(w, c)
	}
}

func writePayload(w *binio.Writer, n Node) {
	switch t := n.(type) {
	case *Name:
		w.WriteString(t.Text)
	case *Constant:
		w.WriteVarInt(t.Value)
		w.WriteString(t.Display)
	case *BinaryOp:
		w.WriteString(t.Op)
	case *UnaryOp:
		w.WriteString(t.Op)
	case *Parens:
		// no payload; Inner is the sole child
	case *ExpressionList:
		// no payload; Items are the children
	case *DereferenceOp:
		// no payload; Inner is the sole child, Deref rebound on load
	case *FunctionCall:
		w.WriteString(t.Name)
	case *LabelNode:
		w.WriteVarUint(uint64(t.Where.Address))
		w.WriteBool(t.Where.IsCHR)
		w.WriteVarUint(uint64(t.Where.PRGROMBank))
		w.WriteVarUint(uint64(t.Where.CHRROMBank))
		w.WriteVarUint(uint64(t.Nth))
		w.WriteString(t.Display)
		w.WriteBool(t.LongMode)
	case *DefineNode:
		w.WriteString(t.Name)
	case *EnumElementNode:
		w.WriteString(t.EnumName)
		w.WriteString(t.ElementName)
	case *Immediate, *IndexedX, *IndexedY, *Accum:
		// no payload
	case *SystemInstanceState:
		w.WriteString(t.Name)
	default:
		if w.Err() == nil {
			panic(fmt.Sprintf("db: SaveNode: unhandled node type %T", n))
		}
	}
}

// LoadNode reads one node back (kind, payload, children). The returned tree
// still needs ResolveAll run over it (with Deref/StateGetter rebound) before
// Evaluate will succeed on any domain leaf.
func LoadNode(r *binio.Reader) Node {
	if r.Err() != nil {
		return nil
	}
	kind := NodeKind(r.ReadByte())
	factory, ok := nodeFactories[kind]
	if !ok {
		return nil
	}
	n := factory()
	readPayload(r, n)
	count := r.ReadVarUint()
	if count > 0 {
		children := make([]Node, 0, count)
		for i := uint64(0); i < count; i++ {
			children = append(children, LoadNode(r))
		}
		n.SetChildren(children)
	}
	return n
}

func readPayload(r *binio.Reader, n Node) {
	switch t := n.(type) {
	case *Name:
		t.Text = r.ReadString()
	case *Constant:
		t.Value = r.ReadVarInt()
		t.Display = r.ReadString()
	case *BinaryOp:
		t.Op = r.ReadString()
	case *UnaryOp:
		t.Op = r.ReadString()
	case *FunctionCall:
		t.Name = r.ReadString()
	case *LabelNode:
		t.Where.Address = uint16(r.ReadVarUint())
		t.Where.IsCHR = r.ReadBool()
		t.Where.PRGROMBank = uint16(r.ReadVarUint())
		t.Where.CHRROMBank = uint16(r.ReadVarUint())
		t.Nth = int(r.ReadVarUint())
		t.Display = r.ReadString()
		t.LongMode = r.ReadBool()
	case *DefineNode:
		t.Name = r.ReadString()
	case *EnumElementNode:
		t.EnumName = r.ReadString()
		t.ElementName = r.ReadString()
	case *SystemInstanceState:
		t.Name = r.ReadString()
	case *Parens, *ExpressionList, *DereferenceOp, *Immediate, *IndexedX, *IndexedY, *Accum:
		// no payload
	}
}
