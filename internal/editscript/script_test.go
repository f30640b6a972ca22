package editscript_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/karupanerura/mq-cst/internal/cst"
	"github.com/karupanerura/mq-cst/internal/editscript"
	"github.com/karupanerura/mq-cst/internal/parser"
	"github.com/karupanerura/mq-cst/internal/types"
)

func TestParseYAML(t *testing.T) {
	t.Parallel()

	for _, tt := range []struct {
		name        string
		source      string
		expected    editscript.Script
		expectToErr bool
	}{
		{
			name:   "single edits",
			source: "- {start: 8, old_end: 9, text: \"2\"}\n- {start: 0, text: \"# \"}\n",
			expected: editscript.Script{
				{{StartByte: 8, OldEndByte: 9, NewEndByte: 9, Text: []byte("2")}},
				{{StartByte: 0, OldEndByte: 0, NewEndByte: 2, Text: []byte("# ")}},
			},
		},
		{
			name:   "batch",
			source: "- - {start: 0, text: x}\n  - {start: 4, old_end: 6, text: \"\"}\n",
			expected: editscript.Script{
				{
					{StartByte: 0, OldEndByte: 0, NewEndByte: 1, Text: []byte("x")},
					{StartByte: 4, OldEndByte: 6, NewEndByte: 4, Text: []byte{}},
				},
			},
		},
		{
			name:   "explicit new_end",
			source: "- start: 1\n  old_end: 1\n  new_end: 3\n  text: ab\n",
			expected: editscript.Script{
				{{StartByte: 1, OldEndByte: 1, NewEndByte: 3, Text: []byte("ab")}},
			},
		},
		{
			name:     "empty",
			source:   "[]",
			expected: editscript.Script{},
		},
		{
			name:        "not a list",
			source:      "start: 1",
			expectToErr: true,
		},
		{
			name:        "missing start",
			source:      "- {text: x}",
			expectToErr: true,
		},
		{
			name:        "missing text",
			source:      "- {start: 0}",
			expectToErr: true,
		},
		{
			name:        "unknown key",
			source:      "- {start: 0, text: x, end: 3}",
			expectToErr: true,
		},
		{
			name:        "fractional offset",
			source:      "- {start: 1.5, text: x}",
			expectToErr: true,
		},
		{
			name:        "empty batch",
			source:      "- []",
			expectToErr: true,
		},
		{
			name:        "scalar step",
			source:      "- 1",
			expectToErr: true,
		},
		{
			name:        "broken yaml",
			source:      "- {start: ",
			expectToErr: true,
		},
	} {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			script, err := editscript.ParseYAML(strings.NewReader(tt.source))
			if tt.expectToErr {
				if err == nil {
					t.Fatalf("should be error: %v", script)
				}
				if !types.IsTag(err, types.DecodeErrorTag) {
					t.Errorf("should be tagged as %s: %v", types.DecodeErrorTag, err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.expected, script); diff != "" {
				t.Errorf("(-expected, +actual)\n%s", diff)
			}
		})
	}
}

func TestParseJSON(t *testing.T) {
	t.Parallel()

	script, err := editscript.ParseJSON(strings.NewReader(`[{"start": 0, "old_end": 1, "text": "yy"}]`))
	if err != nil {
		t.Fatal(err)
	}
	expected := editscript.Script{{{StartByte: 0, OldEndByte: 1, NewEndByte: 2, Text: []byte("yy")}}}
	if diff := cmp.Diff(expected, script); diff != "" {
		t.Errorf("(-expected, +actual)\n%s", diff)
	}
}

func TestParseJSONNumbers(t *testing.T) {
	t.Parallel()

	for _, tt := range []struct {
		name        string
		source      string
		expected    editscript.Script
		expectToErr bool
	}{
		{
			name:     "integral exponent and fraction",
			source:   `[{"start": 1e0, "old_end": 2.0, "text": "y"}]`,
			expected: editscript.Script{{{StartByte: 1, OldEndByte: 2, NewEndByte: 2, Text: []byte("y")}}},
		},
		{
			name:        "fractional exponent",
			source:      `[{"start": 1.5e0, "text": "y"}]`,
			expectToErr: true,
		},
		{
			name:        "beyond int64",
			source:      `[{"start": 9223372036854775808, "text": "y"}]`,
			expectToErr: true,
		},
	} {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			script, err := editscript.ParseJSON(strings.NewReader(tt.source))
			if tt.expectToErr {
				if !types.IsTag(err, types.DecodeErrorTag) {
					t.Errorf("should be tagged as %s: %v", types.DecodeErrorTag, err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.expected, script); diff != "" {
				t.Errorf("(-expected, +actual)\n%s", diff)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "edits.json")
	if err := os.WriteFile(jsonPath, []byte(`[{"start": 0, "text": "a"}]`), 0o600); err != nil {
		t.Fatal(err)
	}
	yamlPath := filepath.Join(dir, "edits.yaml")
	if err := os.WriteFile(yamlPath, []byte("- {start: 0, text: a}\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	expected := editscript.Script{{{StartByte: 0, OldEndByte: 0, NewEndByte: 1, Text: []byte("a")}}}
	for _, path := range []string{jsonPath, yamlPath} {
		script, err := editscript.Load(path)
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(expected, script); diff != "" {
			t.Errorf("%s (-expected, +actual)\n%s", path, diff)
		}
	}

	if _, err := editscript.Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("should fail for a missing file")
	}
}

func TestReplay(t *testing.T) {
	t.Parallel()

	src := []byte("let a = 1\nlet b = 2\nlet c = 3")
	script, err := editscript.ParseYAML(strings.NewReader(
		"- {start: 18, old_end: 19, text: \"20\"}\n" +
			"- - {start: 0, old_end: 9, text: \"x\"}\n" +
			"  - {start: 12, old_end: 12, text: \" | f()\"}\n",
	))
	if err != nil {
		t.Fatal(err)
	}

	p := parser.New()
	tree, err := script.Replay(p, p.Parse(src))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff("x\nlet b = 20 | f()\nlet c = 3", string(tree.Text())); diff != "" {
		t.Errorf("text (-expected, +actual)\n%s", diff)
	}
	if tree.Revision() != 2 || len(tree.Edits()) != 3 {
		t.Errorf("unexpected history: revision=%d edits=%d", tree.Revision(), len(tree.Edits()))
	}
	if diff := cmp.Diff(p.Parse(tree.Text()).Root().String(), tree.Root().String()); diff != "" {
		t.Errorf("replayed tree differs from a fresh parse (-fresh, +replayed)\n%s", diff)
	}
	if err := cst.Verify(tree); err != nil {
		t.Error(err)
	}
}

func TestReplayRejectsBadEdits(t *testing.T) {
	t.Parallel()

	p := parser.New()
	for _, tt := range []struct {
		name        string
		edit        cst.Edit
		expectedTag types.ErrorTag
	}{
		{
			name:        "out of range",
			edit:        cst.Edit{StartByte: 5, OldEndByte: 50, NewEndByte: 5, Text: []byte{}},
			expectedTag: types.EditRangeErrorTag,
		},
		{
			name:        "without text",
			edit:        cst.Edit{StartByte: 0, OldEndByte: 0, NewEndByte: 1},
			expectedTag: types.EditTextErrorTag,
		},
	} {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := editscript.Script{{tt.edit}}.Replay(p, p.Parse([]byte("let a = 1")))
			if !types.IsTag(err, tt.expectedTag) {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestParseBatchJSON(t *testing.T) {
	t.Parallel()

	for _, tt := range []struct {
		source      string
		expected    []cst.Edit
		expectToErr bool
	}{
		{
			source: `[{"start": 1, "old_end": 2, "new_end": 4}, {"start": 0, "text": "ab"}]`,
			expected: []cst.Edit{
				{StartByte: 1, OldEndByte: 2, NewEndByte: 4},
				{StartByte: 0, OldEndByte: 0, NewEndByte: 2, Text: []byte("ab")},
			},
		},
		{
			source:      `{"start": 1, "text": "a"}`,
			expectToErr: true,
		},
		{
			source:      `[]`,
			expectToErr: true,
		},
		{
			source:      `[{"start": 1}]`,
			expectToErr: true,
		},
		{
			source:      `[{"start": "one", "text": "a"}]`,
			expectToErr: true,
		},
	} {
		tt := tt
		t.Run(tt.source, func(t *testing.T) {
			t.Parallel()

			batch, err := editscript.ParseBatchJSON([]byte(tt.source))
			if tt.expectToErr {
				if !types.IsTag(err, types.DecodeErrorTag) {
					t.Errorf("should be a decode error: %v", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.expected, batch); diff != "" {
				t.Errorf("(-expected, +actual)\n%s", diff)
			}
		})
	}
}
