package wire

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestEncoderDecoder(t *testing.T) {
	e := NewEncoder()
	e.WriteByte(0x42)
	e.WriteBytes([]byte{0x01, 0x02, 0x03})
	e.WriteUvarint(12345)
	e.WriteString("hello world")
	e.WriteLenBytes([]byte{0xDE, 0xAD, 0xBE, 0xEF})
	e.WriteLenBytes(nil)
	e.WriteUint16(0x1234)

	d := NewDecoder(e.Bytes())

	b, err := d.ReadByte()
	if err != nil || b != 0x42 {
		t.Errorf("ReadByte() = %x, %v; want 0x42, nil", b, err)
	}

	raw := make([]byte, 3)
	for i := range raw {
		raw[i], err = d.ReadByte()
		if err != nil {
			t.Fatalf("ReadByte() error = %v", err)
		}
	}
	if !bytes.Equal(raw, []byte{0x01, 0x02, 0x03}) {
		t.Errorf("raw bytes = %v, want [1 2 3]", raw)
	}

	uv, err := d.ReadUvarint()
	if err != nil || uv != 12345 {
		t.Errorf("ReadUvarint() = %d, %v; want 12345, nil", uv, err)
	}

	s, err := d.ReadString()
	if err != nil || s != "hello world" {
		t.Errorf("ReadString() = %q, %v; want \"hello world\", nil", s, err)
	}

	lb, err := d.ReadLenBytes()
	if err != nil || !bytes.Equal(lb, []byte{0xDE, 0xAD, 0xBE, 0xEF}) {
		t.Errorf("ReadLenBytes() = %v, %v; want [DE AD BE EF], nil", lb, err)
	}

	empty, err := d.ReadLenBytes()
	if err != nil || empty != nil {
		t.Errorf("ReadLenBytes() = %v, %v; want nil, nil", empty, err)
	}

	u16, err := d.ReadUint16()
	if err != nil || u16 != 0x1234 {
		t.Errorf("ReadUint16() = %x, %v; want 0x1234, nil", u16, err)
	}

	if !d.EOF() {
		t.Errorf("EOF() = false with %d bytes remaining", d.Remaining())
	}
}

func TestSvarintRoundTrip(t *testing.T) {
	values := []int64{0, 1, -1, 63, -64, 12345, -12345, 1 << 40, -(1 << 40)}

	e := NewEncoder()
	for _, v := range values {
		e.WriteSvarint(v)
	}

	d := NewDecoder(e.Bytes())
	for _, want := range values {
		got, err := d.ReadSvarint()
		if err != nil {
			t.Fatalf("ReadSvarint() error = %v", err)
		}
		if got != want {
			t.Errorf("ReadSvarint() = %d, want %d", got, want)
		}
	}
	if !d.EOF() {
		t.Errorf("EOF() = false with %d bytes remaining", d.Remaining())
	}

	// ZigZag keeps small magnitudes to one byte regardless of sign.
	e.Reset()
	e.WriteSvarint(-1)
	if e.Len() != 1 {
		t.Errorf("WriteSvarint(-1) encoded %d bytes, want 1", e.Len())
	}
}

func TestDecoderLimits(t *testing.T) {
	t.Run("varint_overflow", func(t *testing.T) {
		d := NewDecoder(bytes.Repeat([]byte{0xFF}, 10))
		if _, err := d.ReadUvarint(); !errors.Is(err, ErrVarintOverflow) {
			t.Errorf("ReadUvarint() error = %v, want ErrVarintOverflow", err)
		}
	})

	t.Run("truncated_string", func(t *testing.T) {
		e := NewEncoder()
		e.WriteUvarint(50) // length prefix with no body
		d := NewDecoder(e.Bytes())
		if _, err := d.ReadString(); !errors.Is(err, io.ErrUnexpectedEOF) {
			t.Errorf("ReadString() error = %v, want ErrUnexpectedEOF", err)
		}
	})

	t.Run("batch_count_over_limit", func(t *testing.T) {
		e := NewEncoder()
		e.WriteUvarint(MaxBatchItems + 1)
		d := NewDecoder(e.Bytes())
		if _, err := d.ReadBatchCount(); !errors.Is(err, ErrBatchTooLarge) {
			t.Errorf("ReadBatchCount() error = %v, want ErrBatchTooLarge", err)
		}
	})

	t.Run("batch_count_exceeds_remaining", func(t *testing.T) {
		e := NewEncoder()
		e.WriteUvarint(100) // claims 100 items, zero bytes follow
		d := NewDecoder(e.Bytes())
		if _, err := d.ReadBatchCount(); !errors.Is(err, io.ErrUnexpectedEOF) {
			t.Errorf("ReadBatchCount() error = %v, want ErrUnexpectedEOF", err)
		}
	})
}

func TestHelloRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		hello Hello
	}{
		{name: "with_bundle", hello: Hello{AppID: "shop", Bundle: []byte(`{"c":"root"}`)}},
		{name: "without_bundle", hello: Hello{AppID: "cart"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			payload := EncodeHello(&tc.hello)
			got, err := DecodeHello(payload)
			if err != nil {
				t.Fatalf("DecodeHello() error = %v", err)
			}
			if got.AppID != tc.hello.AppID {
				t.Errorf("AppID = %q, want %q", got.AppID, tc.hello.AppID)
			}
			if !bytes.Equal(got.Bundle, tc.hello.Bundle) {
				t.Errorf("Bundle = %v, want %v", got.Bundle, tc.hello.Bundle)
			}
		})
	}
}

func TestDecodeHelloErrors(t *testing.T) {
	t.Run("missing_app_id", func(t *testing.T) {
		payload := EncodeHello(&Hello{AppID: ""})
		if _, err := DecodeHello(payload); !errors.Is(err, ErrMissingAppID) {
			t.Errorf("DecodeHello() error = %v, want ErrMissingAppID", err)
		}
	})

	t.Run("truncated", func(t *testing.T) {
		payload := EncodeHello(&Hello{AppID: "shop", Bundle: []byte("state")})
		if _, err := DecodeHello(payload[:len(payload)-3]); !errors.Is(err, io.ErrUnexpectedEOF) {
			t.Errorf("DecodeHello() error = %v, want ErrUnexpectedEOF", err)
		}
	})
}

func TestEventsRoundTrip(t *testing.T) {
	events := []Event{
		{Seq: 1, Type: "click", TargetID: "h7", Phase: 1, TS: 1700000000000, Data: []byte(`{"x":10}`)},
		{Seq: 2, Type: "mouseenter", TargetID: "h12", Phase: 0},
		{Seq: 3, Type: "keydown", TargetID: "h7", Phase: 0, TS: 1700000000250, Data: []byte(`{"key":"Enter"}`)},
	}

	payload := EncodeEvents(events)
	got, err := DecodeEvents(payload)
	if err != nil {
		t.Fatalf("DecodeEvents() error = %v", err)
	}
	if len(got) != len(events) {
		t.Fatalf("DecodeEvents() count = %d, want %d", len(got), len(events))
	}
	for i, want := range events {
		if got[i].Seq != want.Seq {
			t.Errorf("event %d Seq = %d, want %d", i, got[i].Seq, want.Seq)
		}
		if got[i].Type != want.Type {
			t.Errorf("event %d Type = %q, want %q", i, got[i].Type, want.Type)
		}
		if got[i].TargetID != want.TargetID {
			t.Errorf("event %d TargetID = %q, want %q", i, got[i].TargetID, want.TargetID)
		}
		if got[i].Phase != want.Phase {
			t.Errorf("event %d Phase = %d, want %d", i, got[i].Phase, want.Phase)
		}
		if got[i].TS != want.TS {
			t.Errorf("event %d TS = %d, want %d", i, got[i].TS, want.TS)
		}
		if !bytes.Equal(got[i].Data, want.Data) {
			t.Errorf("event %d Data = %v, want %v", i, got[i].Data, want.Data)
		}
	}
}

func TestDecodeEventsErrors(t *testing.T) {
	t.Run("empty_batch", func(t *testing.T) {
		got, err := DecodeEvents(EncodeEvents(nil))
		if err != nil {
			t.Fatalf("DecodeEvents() error = %v", err)
		}
		if len(got) != 0 {
			t.Errorf("DecodeEvents() count = %d, want 0", len(got))
		}
	})

	t.Run("truncated", func(t *testing.T) {
		payload := EncodeEvents([]Event{{Seq: 1, Type: "click", TargetID: "h7"}})
		if _, err := DecodeEvents(payload[:len(payload)-2]); !errors.Is(err, io.ErrUnexpectedEOF) {
			t.Errorf("DecodeEvents() error = %v, want ErrUnexpectedEOF", err)
		}
	})

	t.Run("forged_count", func(t *testing.T) {
		e := NewEncoder()
		e.WriteUvarint(MaxBatchItems + 1)
		if _, err := DecodeEvents(e.Bytes()); !errors.Is(err, ErrBatchTooLarge) {
			t.Errorf("DecodeEvents() error = %v, want ErrBatchTooLarge", err)
		}
	})
}

func TestHydratedRoundTrip(t *testing.T) {
	ids := []string{"d1", "d4", "d12"}
	got, err := DecodeHydrated(EncodeHydrated(ids))
	if err != nil {
		t.Fatalf("DecodeHydrated() error = %v", err)
	}
	if len(got) != len(ids) {
		t.Fatalf("DecodeHydrated() count = %d, want %d", len(got), len(ids))
	}
	for i := range ids {
		if got[i] != ids[i] {
			t.Errorf("id %d = %q, want %q", i, got[i], ids[i])
		}
	}
}

func TestErrorRoundTrip(t *testing.T) {
	payload := EncodeError(ErrCodeDispatch, "target h99 not resolved")
	got, err := DecodeError(payload)
	if err != nil {
		t.Fatalf("DecodeError() error = %v", err)
	}
	if got.Code != ErrCodeDispatch {
		t.Errorf("Code = %d, want %d", got.Code, ErrCodeDispatch)
	}
	if got.Message != "target h99 not resolved" {
		t.Errorf("Message = %q, want %q", got.Message, "target h99 not resolved")
	}
}

func TestAckRoundTrip(t *testing.T) {
	for _, seq := range []uint64{0, 1, 300, 1 << 40} {
		got, err := DecodeAck(EncodeAck(seq))
		if err != nil {
			t.Fatalf("DecodeAck(%d) error = %v", seq, err)
		}
		if got != seq {
			t.Errorf("DecodeAck() = %d, want %d", got, seq)
		}
	}
}

func TestControlRoundTrip(t *testing.T) {
	got, err := DecodeControl(EncodeControl(ControlPing))
	if err != nil {
		t.Fatalf("DecodeControl() error = %v", err)
	}
	if got != ControlPing {
		t.Errorf("DecodeControl() = %x, want %x", got, ControlPing)
	}

	if _, err := DecodeControl(nil); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("DecodeControl(nil) error = %v, want ErrUnexpectedEOF", err)
	}
}
