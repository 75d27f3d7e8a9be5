package sdk

import (
	"sort"
	"strconv"
	"strings"

	"github.com/CosmWasm/tinyjson"
	"github.com/CosmWasm/tinyjson/jlexer"
	"github.com/CosmWasm/tinyjson/jwriter"
)

// Event is one committed log entry. Seq and Timestamp are stamped by the host on commit.
type Event struct {
	Seq       uint64            `json:"seq"`
	Timestamp uint64            `json:"ts"`
	Topics    []string          `json:"topics"`
	Data      map[string]string `json:"data"`
}

// Topic returns the first topic, which names the event kind.
func (e Event) Topic() string {
	if len(e.Topics) == 0 {
		return ""
	}
	return e.Topics[0]
}

// String renders the terse pipe line watchers grep for, data keys sorted so output is stable.
// Example payload: "funded|0|donator:hive:bob|amount:300|token:contract:usdc"
func (e Event) String() string {
	var b strings.Builder
	b.WriteString(strings.Join(e.Topics, "|"))
	for _, k := range sortedKeys(e.Data) {
		b.WriteByte('|')
		b.WriteString(k)
		b.WriteByte(':')
		b.WriteString(e.Data[k])
	}
	return b.String()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// EncodeEvent is the storage form of an event.
func EncodeEvent(e Event) ([]byte, error) {
	return tinyjson.Marshal(e)
}

// DecodeEvent reverses EncodeEvent.
func DecodeEvent(data []byte) (Event, error) {
	var e Event
	err := tinyjson.Unmarshal(data, &e)
	return e, err
}

// MarshalJSON supports json.Marshaler interface
func (e Event) MarshalJSON() ([]byte, error) {
	w := jwriter.Writer{}
	e.MarshalTinyJSON(&w)
	return w.Buffer.BuildBytes(), w.Error
}

// MarshalTinyJSON supports tinyjson.Marshaler interface
func (e Event) MarshalTinyJSON(out *jwriter.Writer) {
	out.RawByte('{')
	out.RawString(`"seq":`)
	out.Uint64(e.Seq)
	out.RawString(`,"ts":`)
	out.Uint64(e.Timestamp)
	out.RawString(`,"topics":`)
	out.RawByte('[')
	for i, t := range e.Topics {
		if i > 0 {
			out.RawByte(',')
		}
		out.String(t)
	}
	out.RawByte(']')
	out.RawString(`,"data":`)
	out.RawByte('{')
	for i, k := range sortedKeys(e.Data) {
		if i > 0 {
			out.RawByte(',')
		}
		out.String(k)
		out.RawByte(':')
		out.String(e.Data[k])
	}
	out.RawByte('}')
	out.RawByte('}')
}

// UnmarshalJSON supports json.Unmarshaler interface
func (e *Event) UnmarshalJSON(data []byte) error {
	r := jlexer.Lexer{Data: data}
	e.UnmarshalTinyJSON(&r)
	return r.Error()
}

// UnmarshalTinyJSON supports tinyjson.Unmarshaler interface
func (e *Event) UnmarshalTinyJSON(in *jlexer.Lexer) {
	isTopLevel := in.IsStart()
	if in.IsNull() {
		if isTopLevel {
			in.Consumed()
		}
		in.Skip()
		return
	}
	in.Delim('{')
	for !in.IsDelim('}') {
		key := in.UnsafeString()
		in.WantColon()
		if in.IsNull() {
			in.Skip()
			in.WantComma()
			continue
		}
		switch key {
		case "seq":
			e.Seq = in.Uint64()
		case "ts":
			e.Timestamp = in.Uint64()
		case "topics":
			in.Delim('[')
			e.Topics = e.Topics[:0]
			for !in.IsDelim(']') {
				e.Topics = append(e.Topics, in.String())
				in.WantComma()
			}
			in.Delim(']')
		case "data":
			in.Delim('{')
			e.Data = make(map[string]string)
			for !in.IsDelim('}') {
				k := in.String()
				in.WantColon()
				e.Data[k] = in.String()
				in.WantComma()
			}
			in.Delim('}')
		default:
			in.SkipRecursive()
		}
		in.WantComma()
	}
	in.Delim('}')
	if isTopLevel {
		in.Consumed()
	}
}

// FormatUint is shared by event builders that put ids into topics.
func FormatUint(v uint64) string {
	return strconv.FormatUint(v, 10)
}
