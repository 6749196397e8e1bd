package normalize

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind identifies the canonical type of a normalized cell.
type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindInt
	KindFloat
	KindDate
)

// kindNames are the stable wire names used inside clean documents.
var kindNames = map[Kind]string{
	KindNull:   "null",
	KindString: "string",
	KindInt:    "int",
	KindFloat:  "float",
	KindDate:   "date",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// DateWireFormat is how date values are serialized in clean documents.
const DateWireFormat = "2006-01-02T15:04:05"

// Value is one typed cell of a clean table. Exactly one of the payload
// fields is meaningful, selected by Kind.
type Value struct {
	Kind  Kind
	Str   string
	Int   int64
	Float float64
	Date  time.Time
}

// Null is the marker for an absent or uncoercible cell.
var Null = Value{Kind: KindNull}

func StringValue(s string) Value  { return Value{Kind: KindString, Str: s} }
func IntValue(i int64) Value      { return Value{Kind: KindInt, Int: i} }
func FloatValue(f float64) Value  { return Value{Kind: KindFloat, Float: f} }
func DateValue(t time.Time) Value { return Value{Kind: KindDate, Date: t} }

// IsNull reports whether the cell carries no value.
func (v Value) IsNull() bool { return v.Kind == KindNull }

// Display renders a value for terminal output.
func (v Value) Display() string {
	switch v.Kind {
	case KindNull:
		return ""
	case KindString:
		return v.Str
	case KindInt:
		return fmt.Sprintf("%d", v.Int)
	case KindFloat:
		return fmt.Sprintf("%g", v.Float)
	case KindDate:
		return v.Date.Format(DateWireFormat)
	}
	return ""
}

// wireValue is the JSON shape of a cell inside a clean document.
type wireValue struct {
	T string `json:"t"`
	V any    `json:"v,omitempty"`
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindNull:
		return json.Marshal(wireValue{T: "null"})
	case KindString:
		return json.Marshal(wireValue{T: "string", V: v.Str})
	case KindInt:
		return json.Marshal(wireValue{T: "int", V: v.Int})
	case KindFloat:
		return json.Marshal(wireValue{T: "float", V: v.Float})
	case KindDate:
		return json.Marshal(wireValue{T: "date", V: v.Date.Format(DateWireFormat)})
	}
	return nil, fmt.Errorf("normalize: cannot marshal value of kind %d", v.Kind)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var w struct {
		T string          `json:"t"`
		V json.RawMessage `json:"v"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	switch w.T {
	case "null":
		*v = Null
	case "string":
		var s string
		if err := json.Unmarshal(w.V, &s); err != nil {
			return err
		}
		*v = StringValue(s)
	case "int":
		var i int64
		if err := json.Unmarshal(w.V, &i); err != nil {
			return err
		}
		*v = IntValue(i)
	case "float":
		var f float64
		if err := json.Unmarshal(w.V, &f); err != nil {
			return err
		}
		*v = FloatValue(f)
	case "date":
		var s string
		if err := json.Unmarshal(w.V, &s); err != nil {
			return err
		}
		t, err := time.Parse(DateWireFormat, s)
		if err != nil {
			return fmt.Errorf("normalize: invalid date value %q: %w", s, err)
		}
		*v = DateValue(t)
	default:
		return fmt.Errorf("normalize: unknown value kind %q", w.T)
	}
	return nil
}
