package protocol

import "encoding/json"

// Action is an externally submitted intent. Immutable once submitted;
// unknown payload fields are ignored by handlers.
type Action struct {
	Type        string         `json:"type"`
	ActorUnitID string         `json:"actor_unit_id,omitempty"`
	Payload     map[string]any `json:"payload,omitempty"`
}

// ActionDescriptor describes one currently-legal action for a phase,
// exposed to presentation for legal-move UI.
type ActionDescriptor struct {
	Type        string   `json:"type"`
	ActorUnitID string   `json:"actor_unit_id,omitempty"`
	Params      []string `json:"params,omitempty"` // required payload keys
	Reactive    bool     `json:"reactive,omitempty"`
	Description string   `json:"description,omitempty"`
}

// RouteResult is what the router returns for every submitted action.
type RouteResult struct {
	Success bool            `json:"success"`
	Pending bool            `json:"pending"`
	Diffs   json.RawMessage `json:"diffs,omitempty"`
	Error   string          `json:"error,omitempty"`
	Code    string          `json:"code,omitempty"`
}

// Payload helpers. Handlers read required parameters through these so a
// missing or mistyped field consistently fails with MISSING_PARAMETER.

func (a Action) StringParam(key string) (string, error) {
	v, ok := a.Payload[key]
	if !ok {
		return "", MissingParameter(key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", MissingParameter(key)
	}
	return s, nil
}

func (a Action) FloatParam(key string) (float64, error) {
	v, ok := a.Payload[key]
	if !ok {
		return 0, MissingParameter(key)
	}
	switch t := v.(type) {
	case float64:
		return t, nil
	case int:
		return float64(t), nil
	}
	return 0, MissingParameter(key)
}

// IntsParam reads a list of ints (JSON numbers arrive as float64).
// Absent key yields an empty slice, not an error; callers that require
// the list check length themselves.
func (a Action) IntsParam(key string) []int {
	v, ok := a.Payload[key]
	if !ok {
		return nil
	}
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]int, 0, len(raw))
	for _, e := range raw {
		if f, ok := e.(float64); ok {
			out = append(out, int(f))
		}
	}
	return out
}

// StringsParam reads a list of strings; absent key yields nil.
func (a Action) StringsParam(key string) []string {
	v, ok := a.Payload[key]
	if !ok {
		return nil
	}
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, e := range raw {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
