package db

// ObjectType tags a MemoryObject's interpretation. String carries its own
// length and Enum its own Enum pointer, so neither needs a separate size
// field.
type ObjectType int

const (
	Undefined ObjectType = iota
	Byte
	Word
	Code
	String
	EnumType
)

func (t ObjectType) String() string {
	switch t {
	case Undefined:
		return "undefined"
	case Byte:
		return "byte"
	case Word:
		return "word"
	case Code:
		return "code"
	case String:
		return "string"
	case EnumType:
		return "enum"
	default:
		return "unknown"
	}
}

// CommentSlot is where, relative to an object's primary listing row, a
// Comment attaches.
type CommentSlot int

const (
	CommentEOL CommentSlot = iota
	CommentPre
	CommentPost
)

// ListingItemKind tags one cached row a MemoryObject contributes to its
// region's listing (labels and comments each get their own row above/below
// the primary data row; rendering the row's text is a GUI concern, so only
// enough is kept here to support row-index accounting).
type ListingItemKind int

const (
	ListingLabel ListingItemKind = iota
	ListingPreComment
	ListingData
	ListingEOLComment // folded onto the data row, contributes no extra row
	ListingPostComment
	ListingBlank
)

type ListingItem struct {
	Kind     ListingItemKind
	LabelIdx int // valid when Kind == ListingLabel: index into MemoryObject.Labels
}

// rowCount is how many physical listing rows this item contributes. EOL
// comments ride along the data row rather than adding one.
func (li ListingItem) rowCount() int {
	if li.Kind == ListingEOLComment {
		return 0
	}
	return 1
}

// MemoryObject is one node of meaning within a MemoryRegion: a run of bytes
// sharing a single type, optional label(s), an optional operand expression,
// and up to three comments (pre/eol/post). Size is implicit from Type for
// Byte/Word, explicit for String, and addressing-mode-derived for Code
// (caller sets it); Undefined objects are always exactly 1 byte.
type MemoryObject struct {
	Type       ObjectType
	Size       int
	BaseOffset int   // region-relative byte offset of this object's first byte
	Enum       *Enum // valid when Type == EnumType

	Labels []*Label

	OperandExpression Node

	PreComment  *Comment
	EOLComment  *Comment
	PostComment *Comment

	BlankLineBefore bool

	ListingItems            []ListingItem
	PrimaryListingItemIndex int

	leaf *treeNode // back-pointer to this object's tree leaf; nil once merged away
}

// rebuildListingItems recomputes ListingItems/PrimaryListingItemIndex
// from the object's current labels/comments; every mutation that touches
// an object runs this before the tree's row counts are resummed.
func (o *MemoryObject) rebuildListingItems() {
	items := make([]ListingItem, 0, 4)
	if o.BlankLineBefore {
		items = append(items, ListingItem{Kind: ListingBlank})
	}
	for i := range o.Labels {
		items = append(items, ListingItem{Kind: ListingLabel, LabelIdx: i})
	}
	if o.PreComment != nil {
		for range o.PreComment.lines {
			items = append(items, ListingItem{Kind: ListingPreComment})
		}
	}
	o.PrimaryListingItemIndex = len(items)
	items = append(items, ListingItem{Kind: ListingData})
	if o.EOLComment != nil {
		items = append(items, ListingItem{Kind: ListingEOLComment})
	}
	if o.PostComment != nil {
		for range o.PostComment.lines {
			items = append(items, ListingItem{Kind: ListingPostComment})
		}
	}
	o.ListingItems = items
}

// listingItemCount is the number of physical rows this object contributes,
// the quantity the tree's interior nodes cache and sum.
func (o *MemoryObject) listingItemCount() int {
	n := 0
	for _, it := range o.ListingItems {
		n += it.rowCount()
	}
	return n
}

// primaryRowOffset converts PrimaryListingItemIndex (an index into
// ListingItems, where zero-row items like ListingEOLComment still occupy a
// slot) into a physical row offset within this object's contribution to the
// region's listing.
func (o *MemoryObject) primaryRowOffset() int {
	rows := 0
	for _, it := range o.ListingItems[:o.PrimaryListingItemIndex] {
		rows += it.rowCount()
	}
	return rows
}

// itemIndexForRowOffset is primaryRowOffset's inverse: given a physical row
// offset within this object, find which ListingItems index it corresponds
// to.
func (o *MemoryObject) itemIndexForRowOffset(rowOffset int) int {
	rows := 0
	for i, it := range o.ListingItems {
		if it.rowCount() == 0 {
			continue
		}
		if rows == rowOffset {
			return i
		}
		rows++
	}
	return len(o.ListingItems)
}
