package cst

// Snapshot is a plain, position-resolved copy of a node and its descendants.
// It is what trees are compared and serialized as.
type Snapshot struct {
	Kind     string     `json:"type"`
	Field    string     `json:"field,omitempty"`
	Named    bool       `json:"named"`
	Start    int        `json:"start_byte"`
	End      int        `json:"end_byte"`
	StartPos Point      `json:"start_point"`
	EndPos   Point      `json:"end_point"`
	Expected string     `json:"expected,omitempty"`
	Text     string     `json:"text,omitempty"`
	Children []Snapshot `json:"children,omitempty"`
}

func Snap(n Node) Snapshot {
	return snap(n, "")
}

func snap(n Node, field string) Snapshot {
	s := Snapshot{
		Kind:     n.Kind(),
		Field:    field,
		Named:    n.IsNamed(),
		Start:    n.StartByte(),
		End:      n.EndByte(),
		StartPos: n.StartPoint(),
		EndPos:   n.EndPoint(),
		Expected: n.Expected(),
	}
	if n.sub.leaf {
		s.Text = n.Text()
	}
	for i := range n.sub.children {
		s.Children = append(s.Children, snap(n.Child(i), n.FieldNameForChild(i)))
	}
	return s
}
