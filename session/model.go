package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"time"
)

const recordVersion1 = 1

// Session is one authenticated server-side session. The record is the
// source of truth for token validity; JWTs merely reference it by ID.
type Session struct {
	ID          string
	UserID      string
	DeviceID    string
	IPAddress   string
	UserAgent   string
	TokenFamily string
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

func (s *Session) encode() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(recordVersion1)

	if err := binary.Write(&buf, binary.BigEndian, s.CreatedAt.Unix()); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, s.ExpiresAt.Unix()); err != nil {
		return nil, err
	}

	for _, field := range []string{s.ID, s.UserID, s.DeviceID, s.IPAddress, s.UserAgent, s.TokenFamily} {
		if err := writeString(&buf, field); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func decodeSession(data []byte) (*Session, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != recordVersion1 {
		return nil, errors.New("invalid session record version")
	}

	var createdAt, expiresAt int64
	if err := binary.Read(reader, binary.BigEndian, &createdAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &expiresAt); err != nil {
		return nil, err
	}

	s := &Session{
		CreatedAt: time.Unix(createdAt, 0).UTC(),
		ExpiresAt: time.Unix(expiresAt, 0).UTC(),
	}
	for _, field := range []*string{&s.ID, &s.UserID, &s.DeviceID, &s.IPAddress, &s.UserAgent, &s.TokenFamily} {
		if *field, err = readString(reader); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func writeString(buf *bytes.Buffer, s string) error {
	if len(s) > 65535 {
		return errors.New("session field length exceeded")
	}
	if err := binary.Write(buf, binary.BigEndian, uint16(len(s))); err != nil {
		return err
	}
	buf.WriteString(s)
	return nil
}

func readString(reader *bytes.Reader) (string, error) {
	var length uint16
	if err := binary.Read(reader, binary.BigEndian, &length); err != nil {
		return "", err
	}
	raw := make([]byte, length)
	if _, err := io.ReadFull(reader, raw); err != nil {
		return "", err
	}
	return string(raw), nil
}
