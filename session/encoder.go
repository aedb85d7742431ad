package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"time"
)

const sessionFormatVersionCurrent = 1

const flagRememberMe byte = 1 << 0

var (
	errInvalidVersion = errors.New("invalid session version")
	errFieldTooLong   = errors.New("session field too long")
)

// Encode serializes s without its ID (the ID is the storage key) and without the
// plaintext refresh token.
func Encode(s *Session) ([]byte, error) {
	if s == nil {
		return nil, errors.New("nil session")
	}
	if len(s.UserID) > 255 || len(s.IPAddress) > 255 || len(s.UserAgent) > 65535 {
		return nil, errFieldTooLong
	}

	var buf bytes.Buffer
	buf.Grow(1 + 3 + len(s.UserID) + len(s.IPAddress) + len(s.UserAgent) + 32 + 24 + 1)

	buf.WriteByte(sessionFormatVersionCurrent)

	buf.WriteByte(byte(len(s.UserID)))
	buf.WriteString(s.UserID)

	buf.WriteByte(byte(len(s.IPAddress)))
	buf.WriteString(s.IPAddress)

	var u16 [2]byte
	binary.BigEndian.PutUint16(u16[:], uint16(len(s.UserAgent)))
	buf.Write(u16[:])
	buf.WriteString(s.UserAgent)

	buf.Write(s.RefreshHash[:])

	for _, ts := range []time.Time{s.CreatedAt, s.LastActivityAt, s.ExpiresAt} {
		if err := binary.Write(&buf, binary.BigEndian, ts.UnixNano()); err != nil {
			return nil, err
		}
	}

	var flags byte
	if s.RememberMe {
		flags |= flagRememberMe
	}
	buf.WriteByte(flags)

	return buf.Bytes(), nil
}

// Decode parses a blob produced by Encode. The returned session has an empty ID.
func Decode(data []byte) (*Session, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != sessionFormatVersionCurrent {
		return nil, errInvalidVersion
	}

	s := &Session{}

	if s.UserID, err = readString8(reader); err != nil {
		return nil, err
	}
	if s.IPAddress, err = readString8(reader); err != nil {
		return nil, err
	}

	var uaLen uint16
	if err := binary.Read(reader, binary.BigEndian, &uaLen); err != nil {
		return nil, err
	}
	ua := make([]byte, uaLen)
	if _, err := io.ReadFull(reader, ua); err != nil {
		return nil, err
	}
	s.UserAgent = string(ua)

	if _, err := io.ReadFull(reader, s.RefreshHash[:]); err != nil {
		return nil, err
	}

	var stamps [3]int64
	for i := range stamps {
		if err := binary.Read(reader, binary.BigEndian, &stamps[i]); err != nil {
			return nil, err
		}
	}
	s.CreatedAt = time.Unix(0, stamps[0]).UTC()
	s.LastActivityAt = time.Unix(0, stamps[1]).UTC()
	s.ExpiresAt = time.Unix(0, stamps[2]).UTC()

	flags, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	s.RememberMe = flags&flagRememberMe != 0

	return s, nil
}

func readString8(r *bytes.Reader) (string, error) {
	n, err := r.ReadByte()
	if err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}
