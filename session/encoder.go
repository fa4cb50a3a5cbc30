package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

const (
	recordFormatVersionCurrent = 2
	recordFormatVersionV1      = 1
)

// Encode serializes r in the current format version.
func Encode(r *Record) ([]byte, error) {
	if r == nil {
		return nil, errors.New("nil record")
	}
	if r.UserID == "" {
		return nil, errors.New("record has empty userID")
	}

	var buf bytes.Buffer
	buf.Grow(1 + 3 + len(r.UserID) + len(r.Method) + len(r.AttemptID) + 16)

	buf.WriteByte(recordFormatVersionCurrent)

	if err := writeShortString(&buf, r.UserID, "userID"); err != nil {
		return nil, err
	}
	if err := writeShortString(&buf, r.Method, "method"); err != nil {
		return nil, err
	}
	if err := writeShortString(&buf, r.AttemptID, "attemptID"); err != nil {
		return nil, err
	}

	if err := binary.Write(&buf, binary.BigEndian, r.SignedInAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, r.ExpiresAt); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decode parses any supported format version. Version 1 blobs carry no
// attempt id.
func Decode(data []byte) (*Record, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != recordFormatVersionCurrent && version != recordFormatVersionV1 {
		return nil, errors.New("invalid record version")
	}

	r := &Record{}

	if r.UserID, err = readShortString(reader); err != nil {
		return nil, err
	}
	if r.UserID == "" {
		return nil, errors.New("record has empty userID")
	}
	if r.Method, err = readShortString(reader); err != nil {
		return nil, err
	}
	if version == recordFormatVersionCurrent {
		if r.AttemptID, err = readShortString(reader); err != nil {
			return nil, err
		}
	}

	if err := binary.Read(reader, binary.BigEndian, &r.SignedInAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &r.ExpiresAt); err != nil {
		return nil, err
	}
	if reader.Len() != 0 {
		return nil, errors.New("trailing bytes in record")
	}

	return r, nil
}

func writeShortString(buf *bytes.Buffer, s, field string) error {
	if len(s) > 255 {
		return errors.New(field + " too long")
	}
	buf.WriteByte(byte(len(s)))
	buf.WriteString(s)
	return nil
}

func readShortString(reader *bytes.Reader) (string, error) {
	n, err := reader.ReadByte()
	if err != nil {
		return "", err
	}
	out := make([]byte, n)
	if _, err := io.ReadFull(reader, out); err != nil {
		return "", err
	}
	return string(out), nil
}
