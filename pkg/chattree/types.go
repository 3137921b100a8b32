package chattree

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// LegacyParentSentinel is the nil UUID older conversations carry instead of a real
// parent reference. It decodes to a legacy (absent) parent.
const LegacyParentSentinel = "00000000-0000-0000-0000-000000000000"

// ParentRef is the tri-state parent reference of a message.
//
// The zero value is a legacy reference: the message carried no parent at all and is
// positioned by sequential inference. Present with an empty ID is an explicit root,
// Present with an ID is an explicit link.
type ParentRef struct {
	ID      string
	Present bool
}

// LegacyParent returns the absent reference used by legacy messages.
func LegacyParent() ParentRef { return ParentRef{} }

// RootParent returns an explicit root reference (JSON null).
func RootParent() ParentRef { return ParentRef{Present: true} }

// Parent returns an explicit reference to the message with the given id.
func Parent(id string) ParentRef { return ParentRef{ID: id, Present: true} }

// IsLegacy reports whether the message must be positioned by inference.
func (p ParentRef) IsLegacy() bool { return !p.Present }

// IsRoot reports whether the reference explicitly marks a root.
func (p ParentRef) IsRoot() bool { return p.Present && p.ID == "" }

// IsZero lets encoding/json omit legacy references with the omitzero option.
func (p ParentRef) IsZero() bool { return !p.Present }

func (p ParentRef) String() string {
	switch {
	case !p.Present:
		return "<legacy>"
	case p.ID == "":
		return "<root>"
	default:
		return p.ID
	}
}

// MarshalJSON writes null for roots and the id otherwise.
func (p ParentRef) MarshalJSON() ([]byte, error) {
	if p.ID == "" {
		return []byte("null"), nil
	}
	return json.Marshal(p.ID)
}

// UnmarshalJSON is only invoked when the key exists, so reaching it always means the
// reference is present unless the payload carries the legacy sentinel.
func (p *ParentRef) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*p = RootParent()
		return nil
	}
	var id string
	if err := json.Unmarshal(data, &id); err != nil {
		return fmt.Errorf("parentMessageId must be a string or null: %w", err)
	}
	if id == LegacyParentSentinel {
		*p = LegacyParent()
		return nil
	}
	*p = Parent(id)
	return nil
}

// Message is a chat message in flat form.
type Message struct {
	ID                 string    `json:"id"`
	Content            string    `json:"content"`
	IsAnswer           bool      `json:"isAnswer"`
	ParentMessageID    ParentRef `json:"parentMessageId,omitzero"`
	IsOpeningStatement bool      `json:"isOpeningStatement,omitempty"`

	// Derived by BuildChatItemTree; values supplied by callers are overwritten.
	SiblingCount int    `json:"siblingCount"`
	SiblingIndex int    `json:"siblingIndex"`
	PrevSibling  string `json:"prevSibling,omitempty"`
	NextSibling  string `json:"nextSibling,omitempty"`
}

// AsMessage returns the flat message. Node inherits it through embedding, so
// tree nodes and flat messages can both be passed to LastAnswer.
func (m Message) AsMessage() Message { return m }

// Node is a message in tree form.
type Node struct {
	Message
	Children []*Node `json:"children"`
}

// Item is anything that can be viewed as a flat message.
type Item interface {
	AsMessage() Message
}

// ForestStats summarises the shape of a forest.
type ForestStats struct {
	Roots    int `json:"roots"`
	Nodes    int `json:"nodes"`
	MaxDepth int `json:"max_depth"`
	// Branches counts nodes with more than one child.
	Branches int `json:"branches"`
}
