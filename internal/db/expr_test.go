package db

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nesdis/internal/addr"
	"nesdis/internal/binio"
)

func TestParsePrintRoundTrip(t *testing.T) {
	cases := []string{
		"1+2*3",
		"($2000+1),X",
		"(foo),Y",
		"#$10",
		"[1000]",
		"A",
		"1<<4|2",
	}
	for _, s := range cases {
		n, err := Parse(s)
		require.NoError(t, err, s)
		require.NotNil(t, n)
		assert.Equal(t, s, Sprint(n), s)
	}
}

func TestEvaluateArithmetic(t *testing.T) {
	n, err := Parse("1+2*3")
	require.NoError(t, err)
	v, err := n.Evaluate(&EvalContext{})
	require.NoError(t, err)
	assert.EqualValues(t, 7, v)
}

func TestEvaluatePrecedenceAndParens(t *testing.T) {
	n, err := Parse("(1+2)*3")
	require.NoError(t, err)
	v, err := n.Evaluate(&EvalContext{})
	require.NoError(t, err)
	assert.EqualValues(t, 9, v)
}

func TestParseIndexedIndirect(t *testing.T) {
	n, err := Parse("($20,X)")
	require.NoError(t, err)
	parens, ok := n.(*Parens)
	require.True(t, ok)
	_, ok = parens.Inner.(*IndexedX)
	require.True(t, ok)
	assert.Equal(t, "($20,X)", Sprint(n))
}

func TestParseIndirectIndexed(t *testing.T) {
	n, err := Parse("($20),Y")
	require.NoError(t, err)
	iy, ok := n.(*IndexedY)
	require.True(t, ok)
	_, ok = iy.Value.(*Parens)
	require.True(t, ok)
}

func TestFixupResolvesLabel(t *testing.T) {
	symbols := NewSymbolTable()
	where := addr.GlobalMemoryLocation{Address: 0x8000}
	label := &Label{Name: "start", Where: where}
	require.NoError(t, symbols.AddLabel(label))

	n, err := Parse("start+1")
	require.NoError(t, err)
	n = ResolveAll(n, &FixupContext{Symbols: symbols}, ReverseReference{Kind: RefOperand, Where: where})

	bin, ok := n.(*BinaryOp)
	require.True(t, ok)
	ln, ok := bin.Left.(*LabelNode)
	require.True(t, ok)
	assert.Equal(t, where, ln.Where)
	assert.Equal(t, 1, label.ReferenceCount())
}

func TestDereferenceEvaluatesThroughBoundFunc(t *testing.T) {
	n, err := Parse("[$10]")
	require.NoError(t, err)
	deref := n.(*DereferenceOp)
	deref.Deref = func(a int64) (int64, error) { return a * 2, nil }
	v, err := n.Evaluate(&EvalContext{})
	require.NoError(t, err)
	assert.EqualValues(t, 0x20, v)
}

func TestSaveLoadNodeRoundTrip(t *testing.T) {
	n, err := Parse("1+2*(3-4)")
	require.NoError(t, err)

	var buf bytes.Buffer
	w := binio.NewWriter(&buf)
	SaveNode(w, n)
	require.NoError(t, w.Flush())

	r := binio.NewReader(&buf)
	loaded := LoadNode(r)
	require.NoError(t, r.Err())

	v1, err := n.Evaluate(&EvalContext{})
	require.NoError(t, err)
	v2, err := loaded.Evaluate(&EvalContext{})
	require.NoError(t, err)
	assert.Equal(t, v1, v2)
}

func TestDefineCachesValue(t *testing.T) {
	d := &Define{Name: "FOO", Expr: &Constant{Value: 42, Display: "42"}}
	v, err := d.Evaluate()
	require.NoError(t, err)
	assert.EqualValues(t, 42, v)

	d.Expr = &Constant{Value: 99, Display: "99"}
	v, err = d.Evaluate()
	require.NoError(t, err)
	assert.EqualValues(t, 42, v, "cached value should not change until Invalidate")

	d.Invalidate()
	v, err = d.Evaluate()
	require.NoError(t, err)
	assert.EqualValues(t, 99, v)
}

func TestEnumElementResolution(t *testing.T) {
	symbols := NewSymbolTable()
	e := NewEnum("PPUCTRL_BITS", 1)
	el := &EnumElement{Name: "NMI_ENABLE", Expr: &Constant{Value: 0x80, Display: "$80"}}
	e.AddElement(el)
	require.NoError(t, symbols.AddEnum(e))

	expr := &BinaryOp{Op: "::", Left: &Name{Text: "PPUCTRL_BITS"}, Right: &Name{Text: "NMI_ENABLE"}}
	resolved := ResolveAll(expr, &FixupContext{Symbols: symbols}, ReverseReference{Kind: RefOperand})
	node, ok := resolved.(*EnumElementNode)
	require.True(t, ok)
	v, err := node.Evaluate(&EvalContext{})
	require.NoError(t, err)
	assert.EqualValues(t, 0x80, v)
	assert.Equal(t, 1, el.ReferenceCount())
}

func TestCommentParsesEmbeddedExpression(t *testing.T) {
	symbols := NewSymbolTable()
	where := addr.GlobalMemoryLocation{Address: 0x8000}
	label := &Label{Name: "start", Where: where}
	require.NoError(t, symbols.AddLabel(label))

	c := NewComment(addr.GlobalMemoryLocation{Address: 0x9000}, "jumps to {start}", symbols)
	require.Equal(t, 1, c.LineCount())
	require.Equal(t, 2, c.LineItemCount(0))
	assert.Equal(t, LineItemText, c.Line(0)[0].Kind)
	assert.Equal(t, LineItemExpression, c.Line(0)[1].Kind)
}

func TestCommentEscapesDoubleBrace(t *testing.T) {
	// "{{" never starts an expression scan, so the whole line stays one
	// literal text item; "{{" is not collapsed to "{", just skipped past.
	c := NewComment(addr.GlobalMemoryLocation{}, "literal {{brace}}", nil)
	require.Equal(t, 1, c.LineItemCount(0))
	assert.Equal(t, "literal {{brace}}", c.Line(0)[0].Text)
}

func TestCommentMissingCloseBraceIsError(t *testing.T) {
	c := NewComment(addr.GlobalMemoryLocation{}, "broken {oops", nil)
	items := c.Line(0)
	require.Len(t, items, 2)
	assert.Equal(t, LineItemError, items[1].Kind)
}
