package db

// EventToken identifies one registered handler on an EventBus so its owner
// can de-register it when the owning scope ends (a closed editor panel, a
// finished wizard). Tokens are never reused within a bus's lifetime.
type EventToken int

// LabelEvent is the payload for label_created / label_deleted. UserCreated
// distinguishes a label the user typed from one the disassembler or the
// default-label seeding produced; Nth is the index the label held within
// its address's label list at the moment of deletion (the same ordinal a
// LabelNode selects with).
type LabelEvent struct {
	Label       *Label
	UserCreated bool
	Nth         int
}

// DefineEvent is the payload for define_created.
type DefineEvent struct {
	Define *Define
}

// EnumEventKind selects which of the five enum signals an EnumEvent
// carries. They share one payload type because every subscriber in practice
// wants all five (an enum editor repaints on any of them).
type EnumEventKind int

const (
	EnumCreated EnumEventKind = iota
	EnumDeleted
	EnumElementAdded
	EnumElementChanged
	EnumElementDeleted
)

// EnumEvent is the payload for the enum_* signals. Element is nil for
// EnumCreated/EnumDeleted.
type EnumEvent struct {
	Kind    EnumEventKind
	Enum    *Enum
	Element *EnumElement
}

// EventBus fans SymbolTable mutations out to registered host handlers.
// Handlers run synchronously on the mutating goroutine,
// which under the concurrency model is always the goroutine that owns the
// program database — handlers must not re-enter SymbolTable mutators.
type EventBus struct {
	next          EventToken
	labelCreated  map[EventToken]func(LabelEvent)
	labelDeleted  map[EventToken]func(LabelEvent)
	defineCreated map[EventToken]func(DefineEvent)
	enumChanged   map[EventToken]func(EnumEvent)
}

func NewEventBus() *EventBus {
	return &EventBus{
		labelCreated:  make(map[EventToken]func(LabelEvent)),
		labelDeleted:  make(map[EventToken]func(LabelEvent)),
		defineCreated: make(map[EventToken]func(DefineEvent)),
		enumChanged:   make(map[EventToken]func(EnumEvent)),
	}
}

func (b *EventBus) token() EventToken {
	b.next++
	return b.next
}

func (b *EventBus) OnLabelCreated(f func(LabelEvent)) EventToken {
	tok := b.token()
	b.labelCreated[tok] = f
	return tok
}

func (b *EventBus) OnLabelDeleted(f func(LabelEvent)) EventToken {
	tok := b.token()
	b.labelDeleted[tok] = f
	return tok
}

func (b *EventBus) OnDefineCreated(f func(DefineEvent)) EventToken {
	tok := b.token()
	b.defineCreated[tok] = f
	return tok
}

// OnEnumChanged subscribes to all five enum_* signals; the handler switches
// on EnumEvent.Kind.
func (b *EventBus) OnEnumChanged(f func(EnumEvent)) EventToken {
	tok := b.token()
	b.enumChanged[tok] = f
	return tok
}

// Unsubscribe removes the handler registered under tok, whichever signal it
// was registered for. Unknown tokens are ignored, so tearing a scope down
// twice is harmless.
func (b *EventBus) Unsubscribe(tok EventToken) {
	delete(b.labelCreated, tok)
	delete(b.labelDeleted, tok)
	delete(b.defineCreated, tok)
	delete(b.enumChanged, tok)
}

func (b *EventBus) emitLabelCreated(ev LabelEvent) {
	for _, f := range b.labelCreated {
		f(ev)
	}
}

func (b *EventBus) emitLabelDeleted(ev LabelEvent) {
	for _, f := range b.labelDeleted {
		f(ev)
	}
}

func (b *EventBus) emitDefineCreated(ev DefineEvent) {
	for _, f := range b.defineCreated {
		f(ev)
	}
}

func (b *EventBus) emitEnum(ev EnumEvent) {
	for _, f := range b.enumChanged {
		f(ev)
	}
}
