// Package editscript reads edit sequences from JSON or YAML files and replays
// them against a parsed tree.
//
// A script is a list of steps. A step is either one edit or a list of edits
// that are applied as a single batch:
//
//	- {start: 8, old_end: 9, text: "2"}
//	- - {start: 0, text: "# "}
//	  - {start: 10, old_end: 11, text: ""}
//
// old_end defaults to start and new_end to start plus the length of text.
// Replaying requires text on every edit.
package editscript

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/goccy/go-json"
	"github.com/goccy/go-yaml"
	"github.com/karupanerura/mq-cst/internal/cst"
	"github.com/karupanerura/mq-cst/internal/parser"
	"github.com/karupanerura/mq-cst/internal/types"
	"github.com/mitchellh/mapstructure"
)

// Script is a sequence of edit batches.
type Script [][]cst.Edit

// Load reads a script file. Files ending in .json are read as JSON, anything
// else as YAML.
func Load(path string) (Script, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("os.Open: %w", err)
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".json") {
		return ParseJSON(f)
	}
	return ParseYAML(f)
}

func ParseYAML(r io.Reader) (Script, error) {
	yamlBytes, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("io.ReadAll: %w", err)
	}

	jsonBytes, err := yaml.YAMLToJSON(yamlBytes)
	if err != nil {
		return nil, decodeError(fmt.Errorf("yaml.YAMLToJSON: %w", err))
	}

	return ParseJSON(bytes.NewReader(jsonBytes))
}

func ParseJSON(r io.Reader) (Script, error) {
	decoder := json.NewDecoder(r)
	decoder.UseNumber()

	var raw any
	if err := decoder.Decode(&raw); err != nil {
		return nil, decodeError(fmt.Errorf("json.Decode: %w", err))
	}
	v, err := decodeJSONNumberRecursive(raw)
	if err != nil {
		return nil, decodeError(err)
	}

	steps, ok := v.([]any)
	if !ok {
		return nil, decodeError(fmt.Errorf("a script must be a list of steps, got %T", v))
	}
	script := make(Script, 0, len(steps))
	for i, step := range steps {
		batch, err := compileStep(step)
		if err != nil {
			return nil, decodeError(fmt.Errorf("steps[%d]: %w", i, err))
		}
		script = append(script, batch)
	}
	return script, nil
}

// ParseBatchJSON decodes a JSON list of edits forming one batch. An edit may
// leave out text when new_end is given.
func ParseBatchJSON(b []byte) ([]cst.Edit, error) {
	decoder := json.NewDecoder(bytes.NewReader(b))
	decoder.UseNumber()

	var raw any
	if err := decoder.Decode(&raw); err != nil {
		return nil, decodeError(fmt.Errorf("json.Decode: %w", err))
	}
	v, err := decodeJSONNumberRecursive(raw)
	if err != nil {
		return nil, decodeError(err)
	}
	if _, ok := v.([]any); !ok {
		return nil, decodeError(fmt.Errorf("edits must be a list, got %T", v))
	}

	batch, err := compileStep(v)
	if err != nil {
		return nil, decodeError(err)
	}
	return batch, nil
}

func compileStep(step any) ([]cst.Edit, error) {
	switch v := step.(type) {
	case map[string]any:
		e, err := compileEdit(v)
		if err != nil {
			return nil, err
		}
		return []cst.Edit{e}, nil

	case []any:
		if len(v) == 0 {
			return nil, fmt.Errorf("empty batch")
		}
		batch := make([]cst.Edit, len(v))
		for i, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("[%d]: an edit must be a map, got %T", i, item)
			}
			var err error
			if batch[i], err = compileEdit(m); err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
		}
		return batch, nil

	default:
		return nil, fmt.Errorf("invalid step type %T", step)
	}
}

type editDef struct {
	Start  *int    `mapstructure:"start"`
	OldEnd *int    `mapstructure:"old_end"`
	NewEnd *int    `mapstructure:"new_end"`
	Text   *string `mapstructure:"text"`
}

func compileEdit(m map[string]any) (cst.Edit, error) {
	var def editDef
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:  mapstructure.DecodeHookFuncKind(rejectFractions),
		ErrorUnused: true,
		Result:      &def,
	})
	if err != nil {
		return cst.Edit{}, fmt.Errorf("mapstructure.NewDecoder: %w", err)
	}
	if err := decoder.Decode(m); err != nil {
		return cst.Edit{}, fmt.Errorf("mapstructure.Decode: %w", err)
	}

	if def.Start == nil {
		return cst.Edit{}, fmt.Errorf("start is required")
	}
	if def.Text == nil && def.NewEnd == nil {
		return cst.Edit{}, fmt.Errorf("text or new_end is required")
	}

	e := cst.Edit{
		StartByte:  *def.Start,
		OldEndByte: *def.Start,
	}
	if def.Text != nil {
		e.NewEndByte = *def.Start + len(*def.Text)
		e.Text = append([]byte{}, *def.Text...)
	}
	if def.OldEnd != nil {
		e.OldEndByte = *def.OldEnd
	}
	if def.NewEnd != nil {
		e.NewEndByte = *def.NewEnd
	}
	return e, nil
}

func rejectFractions(from, to reflect.Kind, data any) (any, error) {
	if to != reflect.Int {
		return data, nil
	}
	if from == reflect.Float64 {
		if f := data.(float64); f != math.Trunc(f) {
			return nil, fmt.Errorf("offset %v is not an integer", f)
		}
	}
	return data, nil
}

func decodeError(err error) error {
	return &types.Error{Tag: types.DecodeErrorTag, Err: err}
}

// Apply produces the text the edits describe.
func Apply(text []byte, edits []cst.Edit) ([]byte, error) {
	out, err := cst.ApplyEdits(text, edits)
	if err != nil {
		return nil, fmt.Errorf("cst.ApplyEdits: %w", err)
	}
	return out, nil
}

// Replay applies every batch in order, reparsing after each one, and returns
// the final tree.
func (s Script) Replay(p *parser.Parser, tree *cst.Tree) (*cst.Tree, error) {
	for i, batch := range s {
		text, err := Apply(tree.Text(), batch)
		if err != nil {
			return nil, fmt.Errorf("steps[%d]: %w", i, err)
		}
		if tree, err = p.Reparse(tree, batch, text); err != nil {
			return nil, fmt.Errorf("steps[%d]: p.Reparse: %w", i, err)
		}
	}
	return tree, nil
}
