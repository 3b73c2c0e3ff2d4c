package db

import (
	"fmt"

	"nesdis/internal/addr"
)

// treeNode is one node of a MemoryRegion's object tree. Interior nodes
// cache the byte span and listing-row count of their subtree so both
// address→row and row→object lookups are O(log N); leaf nodes each own
// exactly one MemoryObject. Parent pointers make detach-and-splice
// (widening) and in-order successor walks (listing iteration) both
// O(log N) without a full tree rebuild.
type treeNode struct {
	parent, left, right *treeNode
	object              *MemoryObject

	byteCount        int
	listingItemCount int
}

func (n *treeNode) isLeaf() bool { return n.left == nil && n.right == nil }

// buildBalanced builds a tree over objs by recursive halving; no
// rebalancing is ever needed afterward because tree shape tracks object
// count, not order statistics. objs must be in
// increasing address order; each object's leaf back-pointer is set.
func buildBalanced(objs []*MemoryObject) *treeNode {
	if len(objs) == 1 {
		obj := objs[0]
		leaf := &treeNode{object: obj, byteCount: obj.Size, listingItemCount: obj.listingItemCount()}
		obj.leaf = leaf
		return leaf
	}
	mid := len(objs) / 2
	left := buildBalanced(objs[:mid])
	right := buildBalanced(objs[mid:])
	node := &treeNode{left: left, right: right}
	left.parent = node
	right.parent = node
	node.byteCount = left.byteCount + right.byteCount
	node.listingItemCount = left.listingItemCount + right.listingItemCount
	return node
}

// recomputeFrom walks from node up to the root, refreshing each interior
// node's cached counts from its children. Called after any structural change
// below node.
func recomputeFrom(node *treeNode) {
	for node != nil {
		if !node.isLeaf() {
			node.byteCount = node.left.byteCount + node.right.byteCount
			node.listingItemCount = node.left.listingItemCount + node.right.listingItemCount
		}
		node = node.parent
	}
}

// successor returns n's in-order successor leaf, or nil if n is the
// rightmost leaf in the tree.
func successor(n *treeNode) *treeNode {
	cur := n
	for cur.parent != nil && cur.parent.right == cur {
		cur = cur.parent
	}
	if cur.parent == nil {
		return nil
	}
	cur = cur.parent.right
	for !cur.isLeaf() {
		cur = cur.left
	}
	return cur
}

func leftmostLeaf(n *treeNode) *treeNode {
	for !n.isLeaf() {
		n = n.left
	}
	return n
}

// MemoryRegion is one named, contiguous span of address space (a PRG bank, a
// CHR bank, RAM, a register window) with per-byte type/label/comment
// metadata layered over it. Backed regions additionally carry
// the actual ROM bytes (needed for disassembly and string/byte display);
// unbacked regions (RAM, registers) track metadata only — their live bytes
// come from the memory view at runtime, not from this struct.
type MemoryRegion struct {
	Name   string
	Base   uint16
	Size   int
	Backed bool
	IsCHR  bool
	Bank   uint16

	flatMemory []byte
	objectRefs []*MemoryObject
	root       *treeNode
}

// InitializeEmpty builds an unbacked region of size single-byte Undefined
// objects.
func InitializeEmpty(name string, base uint16, size int) *MemoryRegion {
	r := &MemoryRegion{Name: name, Base: base, Size: size, Backed: false}
	r.buildUndefined()
	return r
}

// InitializeFromData builds a backed region snapshotting data, again as
// size single-byte Undefined objects ready for disassembly to widen.
func InitializeFromData(name string, base uint16, data []byte) *MemoryRegion {
	r := &MemoryRegion{Name: name, Base: base, Size: len(data), Backed: true}
	r.flatMemory = append([]byte(nil), data...)
	r.buildUndefined()
	return r
}

func (r *MemoryRegion) buildUndefined() {
	objs := make([]*MemoryObject, r.Size)
	r.objectRefs = make([]*MemoryObject, r.Size)
	for i := 0; i < r.Size; i++ {
		obj := &MemoryObject{Type: Undefined, Size: 1, BaseOffset: i}
		obj.rebuildListingItems()
		objs[i] = obj
		r.objectRefs[i] = obj
	}
	if r.Size > 0 {
		r.root = buildBalanced(objs)
	}
}

// Where returns the global location of the byte at offset within this
// region.
func (r *MemoryRegion) Where(offset int) addr.GlobalMemoryLocation {
	return addr.GlobalMemoryLocation{
		Address:    r.Base + uint16(offset),
		IsCHR:      r.IsCHR,
		PRGROMBank: boolPick(!r.IsCHR, r.Bank, 0),
		CHRROMBank: boolPick(r.IsCHR, r.Bank, 0),
	}
}

func boolPick(cond bool, a, b uint16) uint16 {
	if cond {
		return a
	}
	return b
}

// TotalListingItems is the region's total cached row count.
func (r *MemoryRegion) TotalListingItems() int {
	if r.root == nil {
		return 0
	}
	return r.root.listingItemCount
}

// GetObject returns the object owning offset and the byte offset within it.
func (r *MemoryRegion) GetObject(offset int) (*MemoryObject, int, error) {
	if offset < 0 || offset >= r.Size {
		return nil, 0, fmt.Errorf("db: offset %d out of range [0,%d)", offset, r.Size)
	}
	obj := r.objectRefs[offset]
	return obj, offset - obj.BaseOffset, nil
}

// ReadByte reads a single raw byte from a backed region's snapshot.
func (r *MemoryRegion) ReadByte(offset int) (byte, error) {
	if !r.Backed {
		return 0, fmt.Errorf("db: region %q is unbacked", r.Name)
	}
	if offset < 0 || offset >= r.Size {
		return 0, fmt.Errorf("db: offset %d out of range [0,%d)", offset, r.Size)
	}
	return r.flatMemory[offset], nil
}

var errNotUndefined = fmt.Errorf("db: InvalidTypeConversion: target bytes are not all Undefined")

// checkAllUndefined validates every byte in [offset, offset+count) is
// owned by a distinct 1-byte Undefined object, the widening precondition
// for every MarkAs operation.
func (r *MemoryRegion) checkAllUndefined(offset, count int) error {
	if offset < 0 || count <= 0 || offset+count > r.Size {
		return fmt.Errorf("db: range [%d,%d) out of bounds", offset, offset+count)
	}
	for i := offset; i < offset+count; i++ {
		obj := r.objectRefs[i]
		if obj.Type != Undefined || obj.Size != 1 {
			return errNotUndefined
		}
	}
	return nil
}

// widen merges the count bytes starting at offset into a single object of
// newType, detaching the trailing count-1 single-byte leaves from the tree
// (spec §4.E widening algorithm). configure, if non-nil, sets type-specific
// fields (e.g. Enum) on the surviving object before its listing items are
// rebuilt.
func (r *MemoryRegion) widen(offset, count int, newType ObjectType, configure func(*MemoryObject)) (*MemoryObject, error) {
	if err := r.checkAllUndefined(offset, count); err != nil {
		return nil, err
	}
	primary := r.objectRefs[offset]
	for i := offset + 1; i < offset+count; i++ {
		victim := r.objectRefs[i]
		r.detachLeaf(victim.leaf)
		victim.leaf = nil
		r.objectRefs[i] = primary
	}
	primary.Type = newType
	primary.Size = count
	if configure != nil {
		configure(primary)
	}
	primary.rebuildListingItems()
	primary.leaf.byteCount = count
	primary.leaf.listingItemCount = primary.listingItemCount()
	recomputeFrom(primary.leaf.parent)
	return primary, nil
}

// detachLeaf removes leaf from the tree, splicing its sibling into its
// parent's slot and pruning the now-redundant parent.
func (r *MemoryRegion) detachLeaf(leaf *treeNode) {
	parent := leaf.parent
	if parent == nil {
		r.root = nil
		return
	}
	var sibling *treeNode
	if parent.left == leaf {
		sibling = parent.right
	} else {
		sibling = parent.left
	}
	grandparent := parent.parent
	sibling.parent = grandparent
	if grandparent == nil {
		r.root = sibling
	} else if grandparent.left == parent {
		grandparent.left = sibling
	} else {
		grandparent.right = sibling
	}
	recomputeFrom(grandparent)
}

// narrow splits the object at offset back into single-byte Undefined
// objects. The first byte's labels are
// preserved on the new first object; an object already 1 byte wide is a
// no-op returning it unchanged.
func (r *MemoryRegion) narrow(offset int) (*MemoryObject, error) {
	obj, within, err := r.GetObject(offset)
	if err != nil {
		return nil, err
	}
	if within != 0 {
		return nil, fmt.Errorf("db: offset %d is not the start of its object", offset)
	}
	if obj.Size == 1 {
		return obj, nil
	}
	n := obj.Size
	newObjs := make([]*MemoryObject, n)
	for i := 0; i < n; i++ {
		o := &MemoryObject{Type: Undefined, Size: 1, BaseOffset: obj.BaseOffset + i}
		o.rebuildListingItems()
		newObjs[i] = o
	}
	newObjs[0].Labels = obj.Labels
	newObjs[0].rebuildListingItems()

	subtree := buildBalanced(newObjs)
	parent := obj.leaf.parent
	subtree.parent = parent
	if parent == nil {
		r.root = subtree
	} else if parent.left == obj.leaf {
		parent.left = subtree
	} else {
		parent.right = subtree
	}
	for i, o := range newObjs {
		r.objectRefs[obj.BaseOffset+i] = o
	}
	recomputeFrom(parent)
	return newObjs[0], nil
}

// MarkAsUndefined narrows the object starting at offset back to Undefined
// bytes.
func (r *MemoryRegion) MarkAsUndefined(offset int) error {
	obj, err := r.narrow(offset)
	if err != nil {
		return err
	}
	if obj.Type != Undefined {
		obj.Type = Undefined
		obj.OperandExpression = nil
		obj.rebuildListingItems()
	}
	return nil
}

func (r *MemoryRegion) MarkAsBytes(offset, count int) error {
	for i := 0; i < count; i++ {
		if _, err := r.widen(offset+i, 1, Byte, nil); err != nil {
			return err
		}
	}
	return nil
}

// MarkAsWords converts count two-byte strides starting at offset into
// Word objects, one stride at a time.
func (r *MemoryRegion) MarkAsWords(offset, count int) error {
	for i := 0; i < count; i++ {
		if _, err := r.widen(offset+i*2, 2, Word, nil); err != nil {
			return err
		}
	}
	return nil
}

func (r *MemoryRegion) MarkAsCode(offset, size int) (*MemoryObject, error) {
	return r.widen(offset, size, Code, nil)
}

func (r *MemoryRegion) MarkAsString(offset, length int) (*MemoryObject, error) {
	return r.widen(offset, length, String, nil)
}

func (r *MemoryRegion) MarkAsEnum(offset int, enum *Enum) (*MemoryObject, error) {
	return r.widen(offset, enum.SizeBytes, EnumType, func(o *MemoryObject) { o.Enum = enum })
}

// ApplyLabel attaches label to the object at offset, appending it to the
// object's label list and rebuilding listing items/tree item counts so
// the new label row shows up in the listing.
func (r *MemoryRegion) ApplyLabel(offset int, label *Label) error {
	obj, _, err := r.GetObject(offset)
	if err != nil {
		return err
	}
	obj.Labels = append(obj.Labels, label)
	obj.rebuildListingItems()
	obj.leaf.listingItemCount = obj.listingItemCount()
	recomputeFrom(obj.leaf.parent)
	return nil
}

// DeleteLabel removes label from the object at offset, the inverse of
// ApplyLabel. A label not currently attached to that object is a no-op.
func (r *MemoryRegion) DeleteLabel(offset int, label *Label) error {
	obj, _, err := r.GetObject(offset)
	if err != nil {
		return err
	}
	for i, l := range obj.Labels {
		if l == label {
			obj.Labels = append(obj.Labels[:i], obj.Labels[i+1:]...)
			break
		}
	}
	obj.rebuildListingItems()
	obj.leaf.listingItemCount = obj.listingItemCount()
	recomputeFrom(obj.leaf.parent)
	return nil
}

// SetOperandExpression replaces the object at offset's operand expression,
// unlinking the prior expression's reverse references (if any) before
// storing the new one and letting the caller note its references via
// ResolveAll -- the unlink half lives here since it only needs the old
// node; resolving the new one needs a FixupContext only the caller has.
func (r *MemoryRegion) SetOperandExpression(offset int, expr Node, ownerRef ReverseReference) error {
	obj, _, err := r.GetObject(offset)
	if err != nil {
		return err
	}
	if obj.OperandExpression != nil {
		Unlink(obj.OperandExpression, ownerRef)
	}
	obj.OperandExpression = expr
	return nil
}

// RowForOffset returns the absolute listing row of the primary (data) line
// for the object owning offset, walking the tree root-to-leaf in O(log N) by
// byte count rather than scanning every preceding object.
func (r *MemoryRegion) RowForOffset(offset int) (int, error) {
	obj, _, err := r.GetObject(offset)
	if err != nil {
		return 0, err
	}
	node := r.root
	row := 0
	target := obj.BaseOffset
	for !node.isLeaf() {
		if target < node.left.byteCount {
			node = node.left
		} else {
			target -= node.left.byteCount
			row += node.left.listingItemCount
			node = node.right
		}
	}
	return row + obj.primaryRowOffset(), nil
}

// objectForRow finds the object covering the given absolute row and the
// in-object item index at that row.
func (r *MemoryRegion) objectForRow(row int) (*MemoryObject, int, error) {
	if r.root == nil || row < 0 || row >= r.root.listingItemCount {
		return nil, 0, fmt.Errorf("db: row %d out of range", row)
	}
	node := r.root
	for !node.isLeaf() {
		if row < node.left.listingItemCount {
			node = node.left
		} else {
			row -= node.left.listingItemCount
			node = node.right
		}
	}
	return node.object, node.object.itemIndexForRowOffset(row), nil
}

// ListingIterator walks the region's cached listing rows starting at an
// arbitrary row, crossing object boundaries via the tree's in-order
// successor.
type ListingIterator struct {
	region  *MemoryRegion
	obj     *MemoryObject
	itemIdx int
}

func (r *MemoryRegion) Iterate(startRow int) (*ListingIterator, error) {
	obj, itemIdx, err := r.objectForRow(startRow)
	if err != nil {
		return nil, err
	}
	return &ListingIterator{region: r, obj: obj, itemIdx: itemIdx}, nil
}

// Next returns the current (object, item) pair and advances, or ok=false
// once the region's last object is exhausted.
func (it *ListingIterator) Next() (obj *MemoryObject, item ListingItem, ok bool) {
	if it.obj == nil {
		return nil, ListingItem{}, false
	}
	for it.itemIdx < len(it.obj.ListingItems) && it.obj.ListingItems[it.itemIdx].rowCount() == 0 {
		it.itemIdx++
	}
	if it.itemIdx >= len(it.obj.ListingItems) {
		next := successor(it.obj.leaf)
		if next == nil {
			it.obj = nil
			return nil, ListingItem{}, false
		}
		it.obj = next.object
		it.itemIdx = 0
		return it.Next()
	}
	obj = it.obj
	item = it.obj.ListingItems[it.itemIdx]
	it.itemIdx++
	ok = true
	return
}
