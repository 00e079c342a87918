package model

import (
	"bytes"
	"encoding/json"
	"io"
	"sort"
	"time"
)

// StepType tags the kind of a journey step. Well-known constants are
// provided below, but step types are extensible: the tag only selects how the
// execution runtime interprets Data, so any non-empty value is accepted.
type StepType string

const (
	StepEntrance StepType = "entrance"
	StepAction   StepType = "action"
	StepDelay    StepType = "delay"
	StepGate     StepType = "gate"
	StepExit     StepType = "exit"
)

// String returns the string representation of the step type.
func (t StepType) String() string {
	return string(t)
}

// IsValid reports whether the step type is a non-empty string.
func (t StepType) IsValid() bool {
	return t != ""
}

// Step is a node of a journey graph.
type Step struct {
	ID         int64           `json:"id"`
	JourneyID  int64           `json:"journey_id"`
	ExternalID string          `json:"external_id"`
	Type       StepType        `json:"type"`
	Data       json.RawMessage `json:"data"`
	X          float64         `json:"x"`
	Y          float64         `json:"y"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// StepChild is a directed, payload-bearing edge from StepID to ChildID.
type StepChild struct {
	ID        int64           `json:"id"`
	StepID    int64           `json:"step_id"`
	ChildID   int64           `json:"child_id"`
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// StepMap is the editor-facing snapshot of a journey graph keyed by
// external id. It is used both for the desired graph submitted by a caller
// and for the canonical graph returned after reconciliation.
type StepMap map[string]StepMapEntry

// StepMapEntry describes one node of a StepMap.
type StepMapEntry struct {
	Type     StepType        `json:"type"`
	X        float64         `json:"x"`
	Y        float64         `json:"y"`
	Data     json.RawMessage `json:"data,omitempty"`
	Children []StepMapChild  `json:"children,omitempty"`
}

// StepMapChild references a child node by external id.
type StepMapChild struct {
	ExternalID string          `json:"external_id"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// Keys returns the external ids of m in sorted order.
func (m StepMap) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ToStepMap builds a StepMap from flat step and edge rows. Edges whose
// endpoints are not among steps are dropped. Children are sorted by
// external id.
func ToStepMap(steps []*Step, children []*StepChild) StepMap {
	byID := make(map[int64]*Step, len(steps))
	for _, s := range steps {
		byID[s.ID] = s
	}

	m := make(StepMap, len(steps))
	for _, s := range steps {
		m[s.ExternalID] = StepMapEntry{
			Type: s.Type,
			X:    s.X,
			Y:    s.Y,
			Data: NormalizeData(s.Data),
		}
	}
	for _, c := range children {
		parent, ok := byID[c.StepID]
		if !ok {
			continue
		}
		child, ok := byID[c.ChildID]
		if !ok {
			continue
		}
		e := m[parent.ExternalID]
		e.Children = append(e.Children, StepMapChild{
			ExternalID: child.ExternalID,
			Data:       NormalizeData(c.Data),
		})
		m[parent.ExternalID] = e
	}
	for _, e := range m {
		SortChildren(e.Children)
	}
	return m
}

// SortChildren orders child references by external id, the canonical order
// of a StepMap.
func SortChildren(children []StepMapChild) {
	sort.Slice(children, func(i, j int) bool {
		return children[i].ExternalID < children[j].ExternalID
	})
}

var emptyObject = json.RawMessage(`{}`)

// NormalizeData returns the canonical encoding of an opaque payload: empty
// input becomes {}, objects are re-encoded with sorted keys and no
// insignificant whitespace. Number literals and string contents are kept
// byte for byte. Input that is not a single valid JSON value is returned
// as-is; validation rejects it before it reaches the store.
func NormalizeData(d json.RawMessage) json.RawMessage {
	if len(bytes.TrimSpace(d)) == 0 {
		return emptyObject
	}
	dec := json.NewDecoder(bytes.NewReader(d))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return d
	}
	if _, err := dec.Token(); err != io.EOF {
		return d
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return d
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n"))
}

// DataEqual reports whether two payloads are semantically identical.
func DataEqual(a, b json.RawMessage) bool {
	return bytes.Equal(NormalizeData(a), NormalizeData(b))
}
