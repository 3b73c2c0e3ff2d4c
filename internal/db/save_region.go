package db

import "nesdis/internal/binio"

// Save writes the region header, its raw bytes (if Backed), and then every
// object in address order with its type, labels, operand expression, and
// comments. Object boundaries are recovered on load purely from each
// object's own Size field, so no separate object-count or object-refs
// table needs to be saved — Load re-derives both while rebuilding the
// tree.
func (r *MemoryRegion) Save(w *binio.Writer) {
	w.WriteString(r.Name)
	w.WriteVarUint(uint64(r.Base))
	w.WriteVarUint(uint64(r.Size))
	w.WriteBool(r.Backed)
	w.WriteBool(r.IsCHR)
	w.WriteVarUint(uint64(r.Bank))
	if r.Backed {
		w.WriteBytes(r.flatMemory)
	}

	if r.root == nil {
		return
	}
	node := leftmostLeaf(r.root)
	for node != nil {
		saveObject(w, node.object)
		node = successor(node)
	}
}

func saveObject(w *binio.Writer, o *MemoryObject) {
	w.WriteVarUint(uint64(o.Size))
	w.WriteByte(byte(o.Type))
	if o.Type == EnumType {
		w.WriteString(o.Enum.Name)
	}
	w.WriteVarUint(uint64(len(o.Labels)))
	for _, l := range o.Labels {
		w.WriteString(l.Name)
	}
	w.WriteBool(o.OperandExpression != nil)
	if o.OperandExpression != nil {
		SaveNode(w, o.OperandExpression)
	}
	saveOptionalComment(w, o.PreComment)
	saveOptionalComment(w, o.EOLComment)
	saveOptionalComment(w, o.PostComment)
	w.WriteBool(o.BlankLineBefore)
}

func saveOptionalComment(w *binio.Writer, c *Comment) {
	w.WriteBool(c != nil)
	if c != nil {
		c.Save(w)
	}
}

func loadOptionalComment(r *binio.Reader) *Comment {
	if !r.ReadBool() {
		return nil
	}
	return LoadComment(r)
}

// pendingObjectRef is an object awaiting label/enum name resolution against
// a live SymbolTable, which only exists once the whole project has
// finished loading (labels across every region must all be registered
// before any one object's label names can be looked up).
type pendingObjectRef struct {
	object     *MemoryObject
	labelNames []string
	enumName   string
}

// LoadRegion reads a region back. The returned pending list must be resolved
// by calling ResolveLabelsAndEnums once the full SymbolTable (and its Enum
// table) has been populated, then ResolveExpressions to fix up every
// loaded operand expression and comment.
func LoadRegion(r *binio.Reader) (*MemoryRegion, []pendingObjectRef) {
	region := &MemoryRegion{}
	region.Name = r.ReadString()
	region.Base = uint16(r.ReadVarUint())
	region.Size = int(r.ReadVarUint())
	region.Backed = r.ReadBool()
	region.IsCHR = r.ReadBool()
	region.Bank = uint16(r.ReadVarUint())
	if region.Backed {
		region.flatMemory = r.ReadBytes()
	}

	region.objectRefs = make([]*MemoryObject, region.Size)
	var objs []*MemoryObject
	var pending []pendingObjectRef
	offset := 0
	for offset < region.Size {
		obj, pend := loadObject(r, offset)
		objs = append(objs, obj)
		for i := 0; i < obj.Size; i++ {
			region.objectRefs[offset+i] = obj
		}
		offset += obj.Size
		if pend.object != nil {
			pending = append(pending, pend)
		}
	}
	if len(objs) > 0 {
		region.root = buildBalanced(objs)
	}
	return region, pending
}

func loadObject(r *binio.Reader, baseOffset int) (*MemoryObject, pendingObjectRef) {
	o := &MemoryObject{BaseOffset: baseOffset}
	o.Size = int(r.ReadVarUint())
	o.Type = ObjectType(r.ReadByte())
	var pend pendingObjectRef
	if o.Type == EnumType {
		pend.enumName = r.ReadString()
	}
	labelCount := r.ReadVarUint()
	for i := uint64(0); i < labelCount; i++ {
		pend.labelNames = append(pend.labelNames, r.ReadString())
	}
	if r.ReadBool() {
		o.OperandExpression = LoadNode(r)
	}
	o.PreComment = loadOptionalComment(r)
	o.EOLComment = loadOptionalComment(r)
	o.PostComment = loadOptionalComment(r)
	o.BlankLineBefore = r.ReadBool()
	o.rebuildListingItems()
	if pend.enumName != "" || len(pend.labelNames) > 0 {
		pend.object = o
	}
	return o, pend
}

// ResolveLabelsAndEnums re-attaches each pending object's label names and
// enum reference against the fully populated symbol table, after every
// region in the project has been loaded.
func ResolveLabelsAndEnums(pending []pendingObjectRef, symbols *SymbolTable) {
	for _, p := range pending {
		if p.enumName != "" {
			if e, ok := symbols.Enum(p.enumName); ok {
				p.object.Enum = e
			}
		}
		for _, name := range p.labelNames {
			if l, ok := symbols.LabelByName(name); ok {
				p.object.Labels = append(p.object.Labels, l)
			}
		}
		p.object.rebuildListingItems()
	}
}

// ResolveExpressions re-fixes-up every object's operand expression and
// comments in the region against the live symbol table, rebinding
// DereferenceOp.Deref and reverse references.
func (r *MemoryRegion) ResolveExpressions(ctx *FixupContext) {
	if r.root == nil {
		return
	}
	node := leftmostLeaf(r.root)
	for node != nil {
		obj := node.object
		where := r.Where(obj.BaseOffset)
		if obj.OperandExpression != nil {
			obj.OperandExpression = ResolveAll(obj.OperandExpression, ctx, ReverseReference{Kind: RefOperand, Where: where})
		}
		if obj.PreComment != nil {
			obj.PreComment.Where = where
			obj.PreComment.ResolveReferences(ctx)
		}
		if obj.EOLComment != nil {
			obj.EOLComment.Where = where
			obj.EOLComment.ResolveReferences(ctx)
		}
		if obj.PostComment != nil {
			obj.PostComment.Where = where
			obj.PostComment.ResolveReferences(ctx)
		}
		node = successor(node)
	}
}
