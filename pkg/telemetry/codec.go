package telemetry

import (
	"fmt"

	"github.com/golang/protobuf/proto"
	structpb "github.com/golang/protobuf/ptypes/struct"

	"github.com/robotalks/ccdr.go/pkg/capture"
)

// Frame is a record as published.
type Frame struct {
	Station string
	Chip    string
	// Origin is the tick at which the session was armed.
	Origin uint32
	Record capture.Record
}

func numberValue(v float64) *structpb.Value {
	return &structpb.Value{Kind: &structpb.Value_NumberValue{NumberValue: v}}
}

func stringValue(s string) *structpb.Value {
	return &structpb.Value{Kind: &structpb.Value_StringValue{StringValue: s}}
}

// Encode serializes f as a protobuf Struct.
func (f *Frame) Encode() ([]byte, error) {
	words := make([]*structpb.Value, len(f.Record.Words))
	for i, w := range f.Record.Words {
		words[i] = numberValue(float64(w))
	}
	status := &structpb.Value{Kind: &structpb.Value_NullValue{}}
	if f.Record.HasStatus {
		status = numberValue(float64(f.Record.Status))
	}
	msg := &structpb.Struct{Fields: map[string]*structpb.Value{
		"station":  stringValue(f.Station),
		"chip":     stringValue(f.Chip),
		"origin":   numberValue(float64(f.Origin)),
		"tick":     numberValue(float64(f.Record.Tick)),
		"cause":    numberValue(float64(f.Record.Cause)),
		"status":   status,
		"declared": numberValue(float64(f.Record.DeclaredCount)),
		"words":    {Kind: &structpb.Value_ListValue{ListValue: &structpb.ListValue{Values: words}}},
	}}
	return proto.Marshal(msg)
}

// DecodeFrame parses a packet produced by Encode.
func DecodeFrame(pkt []byte) (*Frame, error) {
	var msg structpb.Struct
	if err := proto.Unmarshal(pkt, &msg); err != nil {
		return nil, err
	}
	fields := msg.GetFields()
	num := func(name string) (float64, error) {
		v, ok := fields[name].GetKind().(*structpb.Value_NumberValue)
		if !ok {
			return 0, fmt.Errorf("field %q is not a number", name)
		}
		return v.NumberValue, nil
	}
	f := &Frame{
		Station: fields["station"].GetStringValue(),
		Chip:    fields["chip"].GetStringValue(),
	}
	var err error
	var v float64
	if v, err = num("origin"); err != nil {
		return nil, err
	}
	f.Origin = uint32(v)
	if v, err = num("tick"); err != nil {
		return nil, err
	}
	f.Record.Tick = uint32(v)
	if v, err = num("cause"); err != nil {
		return nil, err
	}
	f.Record.Cause = capture.Cause(v)
	if v, err = num("declared"); err != nil {
		return nil, err
	}
	f.Record.DeclaredCount = int(v)
	if s, ok := fields["status"].GetKind().(*structpb.Value_NumberValue); ok {
		f.Record.Status, f.Record.HasStatus = byte(s.NumberValue), true
	}
	for _, w := range fields["words"].GetListValue().GetValues() {
		n, ok := w.GetKind().(*structpb.Value_NumberValue)
		if !ok {
			return nil, fmt.Errorf("sample word is not a number")
		}
		f.Record.Words = append(f.Record.Words, uint32(n.NumberValue))
	}
	return f, nil
}
