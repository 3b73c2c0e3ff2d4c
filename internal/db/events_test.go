package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nesdis/internal/addr"
)

func TestLabelEventsCarryOriginAndNth(t *testing.T) {
	symbols := NewSymbolTable()

	var created []LabelEvent
	var deleted []LabelEvent
	symbols.Events.OnLabelCreated(func(ev LabelEvent) { created = append(created, ev) })
	symbols.Events.OnLabelDeleted(func(ev LabelEvent) { deleted = append(deleted, ev) })

	where := addr.GlobalMemoryLocation{Address: 0x8000}
	user := &Label{Name: "start", Where: where}
	auto := &Label{Name: "L_8000", Where: where}
	require.NoError(t, symbols.AddLabel(user))
	require.NoError(t, symbols.AddLabelWithOrigin(auto, false))

	require.Len(t, created, 2)
	assert.True(t, created[0].UserCreated)
	assert.False(t, created[1].UserCreated)

	symbols.RemoveLabel(auto)
	require.Len(t, deleted, 1)
	assert.Equal(t, "L_8000", deleted[0].Label.Name)
	assert.Equal(t, 1, deleted[0].Nth)
}

func TestEventBusUnsubscribeByToken(t *testing.T) {
	symbols := NewSymbolTable()

	calls := 0
	tok := symbols.Events.OnDefineCreated(func(DefineEvent) { calls++ })

	require.NoError(t, symbols.AddDefine(&Define{Name: "A", Expr: &Constant{Value: 1, Display: "1"}}))
	symbols.Events.Unsubscribe(tok)
	require.NoError(t, symbols.AddDefine(&Define{Name: "B", Expr: &Constant{Value: 2, Display: "2"}}))

	assert.Equal(t, 1, calls)
}

func TestRenameLabelUpdatesByNameIndex(t *testing.T) {
	symbols := NewSymbolTable()
	where := addr.GlobalMemoryLocation{Address: 0xC000}
	l := &Label{Name: "old_name", Where: where}
	require.NoError(t, symbols.AddLabel(l))
	require.NoError(t, symbols.AddLabel(&Label{Name: "taken", Where: where}))

	assert.Error(t, symbols.RenameLabel(l, "taken"))

	require.NoError(t, symbols.RenameLabel(l, "new_name"))
	_, ok := symbols.LabelByName("old_name")
	assert.False(t, ok)
	got, ok := symbols.LabelByName("new_name")
	require.True(t, ok)
	assert.Same(t, l, got)
	// The by-address list still holds the renamed label at its old ordinal.
	assert.Same(t, l, symbols.LabelsAt(where)[0])
}

func TestRemoveDefineRefusedWhileReferenced(t *testing.T) {
	symbols := NewSymbolTable()
	d := &Define{Name: "FOO", Expr: &Constant{Value: 3, Display: "3"}}
	require.NoError(t, symbols.AddDefine(d))

	n, err := Parse("FOO*2")
	require.NoError(t, err)
	ref := ReverseReference{Kind: RefOperand, Where: addr.GlobalMemoryLocation{Address: 0x8000}}
	n = ResolveAll(n, &FixupContext{Symbols: symbols}, ref)

	assert.Error(t, symbols.RemoveDefine("FOO"))

	Unlink(n, ref)
	require.NoError(t, symbols.RemoveDefine("FOO"))
	_, ok := symbols.Define("FOO")
	assert.False(t, ok)
}

func TestEnumElementsByValue(t *testing.T) {
	e := NewEnum("SPRITE_ATTR", 1)
	e.AddElement(&EnumElement{Name: "FLIP_H", Expr: &Constant{Value: 0x40, Display: "$40"}})
	e.AddElement(&EnumElement{Name: "FLIP_V", Expr: &Constant{Value: 0x80, Display: "$80"}})
	e.AddElement(&EnumElement{Name: "MIRROR", Expr: &Constant{Value: 0x40, Display: "$40"}})

	at40 := e.ElementsByValue(0x40)
	require.Len(t, at40, 2)
	assert.Equal(t, "FLIP_H", at40[0].Name)
	assert.Equal(t, "MIRROR", at40[1].Name)
	assert.Empty(t, e.ElementsByValue(0x01))
}

func TestEnumElementValueChangeGuardedByReferences(t *testing.T) {
	symbols := NewSymbolTable()
	e := NewEnum("PPUFLAGS", 1)
	el := &EnumElement{Name: "NMI_ENABLE", Expr: &Constant{Value: 0x80, Display: "$80"}}
	require.NoError(t, symbols.AddEnum(e))
	require.NoError(t, symbols.AddEnumElement(e, el))

	var kinds []EnumEventKind
	symbols.Events.OnEnumChanged(func(ev EnumEvent) { kinds = append(kinds, ev.Kind) })

	ref := ReverseReference{Kind: RefOperand, Where: addr.GlobalMemoryLocation{Address: 0x9000}}
	el.addReverse(ref)

	assert.Error(t, symbols.SetEnumElementExpression(el, &Constant{Value: 0x40, Display: "$40"}))
	assert.Error(t, symbols.RemoveEnumElement(e, "NMI_ENABLE"))
	assert.Error(t, symbols.RemoveEnum("PPUFLAGS"))

	el.removeReverse(ref)
	require.NoError(t, symbols.SetEnumElementExpression(el, &Constant{Value: 0x40, Display: "$40"}))
	v, err := el.Value()
	require.NoError(t, err)
	assert.Equal(t, int64(0x40), v)
	require.Len(t, e.ElementsByValue(0x40), 1)

	require.NoError(t, symbols.RemoveEnumElement(e, "NMI_ENABLE"))
	require.NoError(t, symbols.RemoveEnum("PPUFLAGS"))

	assert.Equal(t, []EnumEventKind{EnumElementChanged, EnumElementDeleted, EnumDeleted}, kinds)
}
