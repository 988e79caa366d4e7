package wire

import "errors"

// Payload errors.
var (
	ErrMissingAppID = errors.New("wire: hello frame missing app id")
)

// Error codes carried by FrameError payloads.
const (
	ErrCodeProtocol uint16 = 1 // malformed frame or payload
	ErrCodeApp      uint16 = 2 // application could not be built or initialized
	ErrCodeDispatch uint16 = 3 // event dispatch failed
	ErrCodeInternal uint16 = 4
)

// Control payload bytes.
const (
	ControlPing byte = 0x01
	ControlPong byte = 0x02
)

// Hello is the first client frame on a connection: which application is
// attaching and, optionally, the serialized replay state captured before
// the socket opened.
type Hello struct {
	AppID string

	// Bundle is an encoded contract bundle (the markup-embedded form).
	// Empty means the page carried no replay state.
	Bundle []byte
}

// EncodeHello serializes a hello payload.
func EncodeHello(h *Hello) []byte {
	e := NewEncoder()
	e.WriteString(h.AppID)
	e.WriteLenBytes(h.Bundle)
	return e.Bytes()
}

// DecodeHello parses a hello payload.
func DecodeHello(payload []byte) (*Hello, error) {
	d := NewDecoder(payload)
	appID, err := d.ReadString()
	if err != nil {
		return nil, err
	}
	if appID == "" {
		return nil, ErrMissingAppID
	}
	bundle, err := d.ReadLenBytes()
	if err != nil {
		return nil, err
	}
	return &Hello{AppID: appID, Bundle: bundle}, nil
}

// Event is one captured event in transport form. Phase is 0 for live
// capture and 1 for replayed-from-markup events, matching the contract
// package's phase values. TS is the client capture time in epoch
// milliseconds, 0 when the client does not track it.
type Event struct {
	Seq      uint64
	Type     string
	TargetID string
	Phase    uint8
	TS       int64
	Data     []byte
}

// EncodeEvents serializes an event batch.
func EncodeEvents(events []Event) []byte {
	e := NewEncoder()
	e.WriteUvarint(uint64(len(events)))
	for i := range events {
		e.WriteUvarint(events[i].Seq)
		e.WriteString(events[i].Type)
		e.WriteString(events[i].TargetID)
		e.WriteByte(events[i].Phase)
		e.WriteSvarint(events[i].TS)
		e.WriteLenBytes(events[i].Data)
	}
	return e.Bytes()
}

// DecodeEvents parses an event batch.
func DecodeEvents(payload []byte) ([]Event, error) {
	d := NewDecoder(payload)
	count, err := d.ReadBatchCount()
	if err != nil {
		return nil, err
	}

	events := make([]Event, 0, count)
	for i := 0; i < count; i++ {
		var ev Event
		if ev.Seq, err = d.ReadUvarint(); err != nil {
			return nil, err
		}
		if ev.Type, err = d.ReadString(); err != nil {
			return nil, err
		}
		if ev.TargetID, err = d.ReadString(); err != nil {
			return nil, err
		}
		if ev.Phase, err = d.ReadByte(); err != nil {
			return nil, err
		}
		if ev.TS, err = d.ReadSvarint(); err != nil {
			return nil, err
		}
		if ev.Data, err = d.ReadLenBytes(); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, nil
}

// EncodeHydrated serializes the drained-fragments notification.
func EncodeHydrated(fragmentIDs []string) []byte {
	e := NewEncoder()
	e.WriteUvarint(uint64(len(fragmentIDs)))
	for _, id := range fragmentIDs {
		e.WriteString(id)
	}
	return e.Bytes()
}

// DecodeHydrated parses a drained-fragments notification.
func DecodeHydrated(payload []byte) ([]string, error) {
	d := NewDecoder(payload)
	count, err := d.ReadBatchCount()
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, count)
	for i := 0; i < count; i++ {
		id, err := d.ReadString()
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ErrorInfo is the error frame payload.
type ErrorInfo struct {
	Code    uint16
	Message string
}

// EncodeError serializes an error payload.
func EncodeError(code uint16, message string) []byte {
	e := NewEncoder()
	e.WriteUint16(code)
	e.WriteString(message)
	return e.Bytes()
}

// DecodeError parses an error payload.
func DecodeError(payload []byte) (*ErrorInfo, error) {
	d := NewDecoder(payload)
	code, err := d.ReadUint16()
	if err != nil {
		return nil, err
	}
	msg, err := d.ReadString()
	if err != nil {
		return nil, err
	}
	return &ErrorInfo{Code: code, Message: msg}, nil
}

// EncodeAck serializes an acknowledgment for the given sequence number.
// Hello acknowledgments use sequence 0.
func EncodeAck(seq uint64) []byte {
	e := NewEncoder()
	e.WriteUvarint(seq)
	return e.Bytes()
}

// DecodeAck parses an acknowledgment payload.
func DecodeAck(payload []byte) (uint64, error) {
	return NewDecoder(payload).ReadUvarint()
}

// EncodeControl serializes a control payload (ping or pong).
func EncodeControl(b byte) []byte {
	return []byte{b}
}

// DecodeControl parses a control payload.
func DecodeControl(payload []byte) (byte, error) {
	return NewDecoder(payload).ReadByte()
}
