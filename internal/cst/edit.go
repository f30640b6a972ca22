package cst

import (
	"fmt"

	"github.com/karupanerura/mq-cst/internal/types"
)

// Edit replaces [StartByte, OldEndByte) of a text with NewEndByte-StartByte
// bytes. Offsets are in the coordinates of the text after every preceding
// edit of the same batch. Text is optional; when set it is the inserted bytes.
type Edit struct {
	StartByte  int
	OldEndByte int
	NewEndByte int
	Text       []byte
}

func (e Edit) Delta() int {
	return e.NewEndByte - e.OldEndByte
}

func (e Edit) String() string {
	return fmt.Sprintf("[%d,%d)->[%d,%d)", e.StartByte, e.OldEndByte, e.StartByte, e.NewEndByte)
}

// ValidateEdits checks that edits apply in order to a text of oldLen bytes
// and leave newLen bytes behind.
func ValidateEdits(oldLen int, edits []Edit, newLen int) error {
	size := oldLen
	for i, e := range edits {
		if e.StartByte < 0 || e.StartByte > e.OldEndByte || e.OldEndByte > size || e.NewEndByte < e.StartByte {
			return &types.Error{
				Tag:   types.EditRangeErrorTag,
				Err:   fmt.Errorf("edit #%d %s is out of range for %d bytes", i, e, size),
				Extra: map[string]any{"index": i, "size": size},
			}
		}
		if e.Text != nil && len(e.Text) != e.NewEndByte-e.StartByte {
			return &types.Error{
				Tag:   types.EditTextErrorTag,
				Err:   fmt.Errorf("edit #%d %s carries %d bytes of text", i, e, len(e.Text)),
				Extra: map[string]any{"index": i},
			}
		}
		size += e.Delta()
	}
	if size != newLen {
		return &types.Error{
			Tag:   types.EditLengthErrorTag,
			Err:   fmt.Errorf("edits produce %d bytes but the new text has %d", size, newLen),
			Extra: map[string]any{"expected": size, "actual": newLen},
		}
	}
	return nil
}

// ApplyEdits produces the text the edits describe. Every edit must carry its
// inserted Text.
func ApplyEdits(text []byte, edits []Edit) ([]byte, error) {
	size := len(text)
	for i, e := range edits {
		if e.Text == nil {
			return nil, &types.Error{
				Tag:   types.EditTextErrorTag,
				Err:   fmt.Errorf("edit #%d %s has no text to insert", i, e),
				Extra: map[string]any{"index": i},
			}
		}
		size += e.Delta()
	}
	if err := ValidateEdits(len(text), edits, size); err != nil {
		return nil, err
	}

	out := text
	for _, e := range edits {
		next := make([]byte, 0, len(out)+e.Delta())
		next = append(next, out[:e.StartByte]...)
		next = append(next, e.Text...)
		next = append(next, out[e.OldEndByte:]...)
		out = next
	}
	return out, nil
}
