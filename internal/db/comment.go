package db

import (
	"strconv"
	"strings"

	"nesdis/internal/addr"
	"nesdis/internal/binio"
)

// LineItemKind tags one piece of a parsed comment line: plain text, a
// successfully parsed {expr}, or a parse/fixup error kept inline so
// editing can show exactly where the comment broke.
type LineItemKind int

const (
	LineItemText LineItemKind = iota
	LineItemExpression
	LineItemError
)

// LineItem is one element of a parsed comment line.
type LineItem struct {
	Kind LineItemKind
	Text string // LineItemText: literal text. LineItemError: the message.
	Expr Node   // LineItemExpression: the parsed (and possibly fixed-up) tree.
}

// Comment holds a location-tagged, multi-line piece of user text with
// embedded {expression} references. "{{" escapes a literal "{".
// An unresolved "{" with no matching "}" produces a LineItemError but
// doesn't abort parsing the rest of the line, matching parseLine's recovery
// behavior.
type Comment struct {
	Where   addr.GlobalMemoryLocation
	lines   [][]LineItem
	errored bool
	rawText string // preserved verbatim only when errored, like the original
}

// NewComment parses s (which may span multiple "\n"-separated lines) into a
// Comment located at where. Embedded {expr} spans are parsed with Parse and
// fixed up against symbols immediately (mirroring Comment::GetExpression's
// immediate FIXUP_DEFINES|FIXUP_ENUMS|FIXUP_LABELS|FIXUP_LONG_LABELS call),
// recording the reverse references those resolutions created.
func NewComment(where addr.GlobalMemoryLocation, s string, symbols *SymbolTable) *Comment {
	c := &Comment{Where: where}
	c.Set(s, symbols)
	return c
}

func (c *Comment) Set(s string, symbols *SymbolTable) {
	c.Unlink()
	c.lines = nil
	c.errored = false

	for _, lineText := range strings.Split(s, "\n") {
		c.lines = append(c.lines, c.parseLine(lineText, symbols))
	}
	if c.errored {
		c.rawText = s
	} else {
		c.rawText = ""
	}
}

func (c *Comment) parseLine(s string, symbols *SymbolTable) []LineItem {
	var items []LineItem
	stringStart := 0
	searchStart := 0

	for stringStart < len(s) {
		exprStart := strings.Index(s[searchStart:], "{")
		if exprStart < 0 {
			items = append(items, LineItem{Kind: LineItemText, Text: s[stringStart:]})
			break
		}
		exprStart += searchStart

		if exprStart+1 < len(s) && s[exprStart+1] == '{' {
			searchStart = exprStart + 2
			continue
		}

		exprEnd := -1
		if exprStart+1 < len(s) {
			if idx := strings.Index(s[exprStart+1:], "}"); idx >= 0 {
				exprEnd = exprStart + 1 + idx
			}
		}

		if exprEnd < 0 {
			items = append(items, LineItem{Kind: LineItemText, Text: s[stringStart:exprStart]})
			items = append(items, LineItem{Kind: LineItemError, Text: "missing '}'"})
			c.errored = true
			break
		}

		items = append(items, LineItem{Kind: LineItemText, Text: s[stringStart:exprStart]})

		exprText := s[exprStart+1 : exprEnd]
		node, err := Parse(exprText)
		if err != nil {
			items = append(items, LineItem{Kind: LineItemError, Text: err.Error()})
			c.errored = true
		} else {
			if symbols != nil {
				node = ResolveAll(node, &FixupContext{Symbols: symbols}, c.lineRef(len(c.lines)))
			}
			items = append(items, LineItem{Kind: LineItemExpression, Expr: node})
		}

		stringStart = exprEnd + 1
		searchStart = stringStart
	}

	return items
}

func (c *Comment) lineRef(lineIndex int) ReverseReference {
	return ReverseReference{Kind: RefComment, Where: c.Where, CommentPart: strconv.Itoa(lineIndex)}
}

// Unlink removes every reverse reference this comment's expressions hold,
// required before re-Set-ing or deleting the comment so the reference
// graph stays symmetric.
func (c *Comment) Unlink() {
	for i, line := range c.lines {
		ref := c.lineRef(i)
		for _, item := range line {
			if item.Kind == LineItemExpression && item.Expr != nil {
				Unlink(item.Expr, ref)
			}
		}
	}
}

func (c *Comment) LineCount() int { return len(c.lines) }
func (c *Comment) LineItemCount(i int) int {
	if i < 0 || i >= len(c.lines) {
		return 0
	}
	return len(c.lines[i])
}
func (c *Comment) Line(i int) []LineItem { return c.lines[i] }

// FullText reconstructs the original comment text, substituting each
// expression's printed form back between braces (or returning the preserved
// raw text verbatim if the comment has a parse error anywhere in it).
func (c *Comment) FullText() string {
	if c.errored {
		return c.rawText
	}
	var b strings.Builder
	for i, line := range c.lines {
		for _, item := range line {
			switch item.Kind {
			case LineItemText:
				b.WriteString(item.Text)
			case LineItemExpression:
				b.WriteByte('{')
				b.WriteString(Sprint(item.Expr))
				b.WriteByte('}')
			case LineItemError:
				b.WriteString(item.Text)
			}
		}
		if i != len(c.lines)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// Evaluate evaluates the j'th item of line i if it's an expression,
// returning the hex-formatted value the way FormatLineItem's
// evaluate_expression=true path does.
func (c *Comment) Evaluate(i, j int, ctx *EvalContext) (string, int64, error) {
	item := c.lines[i][j]
	if item.Kind != LineItemExpression {
		return item.Text, 0, nil
	}
	v, err := item.Expr.Evaluate(ctx)
	if err != nil {
		return err.Error(), 0, err
	}
	return "$" + strconv.FormatInt(v, 16), v, nil
}

// Save/Load persist the comment as: location, then a vector of lines, each a
// vector of (tag-byte, payload) line items — 'T' text, 'E' expression node,
// 'R' error text — matching BaseComment::SaveLineItem/LoadLineItem's wire
// tags exactly, since nothing about that shape needs to change for Go.
func (c *Comment) Save(w *binio.Writer) {
	w.WriteVarUint(uint64(c.Where.Address))
	w.WriteBool(c.Where.IsCHR)
	w.WriteVarUint(uint64(c.Where.PRGROMBank))
	w.WriteVarUint(uint64(c.Where.CHRROMBank))
	w.WriteBool(c.errored)
	w.WriteString(c.rawText)
	w.WriteVarUint(uint64(len(c.lines)))
	for _, line := range c.lines {
		w.WriteVarUint(uint64(len(line)))
		for _, item := range line {
			switch item.Kind {
			case LineItemText:
				w.WriteByte('T')
				w.WriteString(item.Text)
			case LineItemExpression:
				w.WriteByte('E')
				SaveNode(w, item.Expr)
			case LineItemError:
				w.WriteByte('R')
				w.WriteString(item.Text)
			}
		}
	}
}

// LoadComment reads a comment back. Its expression items still need
// ResolveAll run against the live symbol table (the caller supplies a fresh
// FixupContext and location-based ReverseReference once the surrounding
// MemoryObject/region load has finished), exactly like every other
// persisted expression in this package.
func LoadComment(r *binio.Reader) *Comment {
	c := &Comment{}
	c.Where.Address = uint16(r.ReadVarUint())
	c.Where.IsCHR = r.ReadBool()
	c.Where.PRGROMBank = uint16(r.ReadVarUint())
	c.Where.CHRROMBank = uint16(r.ReadVarUint())
	c.errored = r.ReadBool()
	c.rawText = r.ReadString()
	lineCount := r.ReadVarUint()
	c.lines = make([][]LineItem, 0, lineCount)
	for i := uint64(0); i < lineCount; i++ {
		itemCount := r.ReadVarUint()
		line := make([]LineItem, 0, itemCount)
		for j := uint64(0); j < itemCount; j++ {
			tag := r.ReadByte()
			switch tag {
			case 'T':
				line = append(line, LineItem{Kind: LineItemText, Text: r.ReadString()})
			case 'E':
				line = append(line, LineItem{Kind: LineItemExpression, Expr: LoadNode(r)})
			case 'R':
				line = append(line, LineItem{Kind: LineItemError, Text: r.ReadString()})
			}
		}
		c.lines = append(c.lines, line)
	}
	return c
}

// ResolveReferences re-fixes-up every expression item against symbols,
// rebinding Deref via ctx and recording reverse references. Call this once
// per loaded comment after the owning region/system has finished loading.
func (c *Comment) ResolveReferences(ctx *FixupContext) {
	for i, line := range c.lines {
		ref := c.lineRef(i)
		for j, item := range line {
			if item.Kind == LineItemExpression && item.Expr != nil {
				c.lines[i][j].Expr = ResolveAll(item.Expr, ctx, ref)
			}
		}
	}
}
