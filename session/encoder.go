package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

// CurrentSchemaVersion is the schema byte written by Encode. Decode
// accepts this and every older version; [Store] rewrites legacy blobs to
// the current version on read.
const CurrentSchemaVersion = sessionFormatVersionCurrent

const (
	sessionFormatVersionCurrent = 2
	sessionFormatVersionV1      = 1
)

// Encode serializes a [Session] into the compact binary blob stored in
// Redis. The session ID is not encoded; the Redis key carries it.
func Encode(s *Session) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(sessionFormatVersionCurrent)

	if len(s.AccountID) > 255 {
		return nil, errors.New("accountID too long")
	}
	buf.WriteByte(byte(len(s.AccountID)))
	buf.WriteString(s.AccountID)

	if len(s.AccountName) > 255 {
		return nil, errors.New("accountName too long")
	}
	buf.WriteByte(byte(len(s.AccountName)))
	buf.WriteString(s.AccountName)

	buf.Write(s.IPHash[:])
	buf.Write(s.UserAgentHash[:])

	if err := binary.Write(&buf, binary.BigEndian, s.CreatedAt); err != nil {
		return nil, err
	}

	if err := binary.Write(&buf, binary.BigEndian, s.ExpiresAt); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decode parses a binary session blob. Version 1 blobs predate the
// client-binding hashes and decode with zero hashes.
func Decode(data []byte) (*Session, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != sessionFormatVersionCurrent && version != sessionFormatVersionV1 {
		return nil, errors.New("unsupported session schema version")
	}

	s := &Session{SchemaVersion: version}

	accountLen, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	accountID := make([]byte, accountLen)
	if _, err := io.ReadFull(reader, accountID); err != nil {
		return nil, err
	}
	s.AccountID = string(accountID)

	nameLen, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	accountName := make([]byte, nameLen)
	if _, err := io.ReadFull(reader, accountName); err != nil {
		return nil, err
	}
	s.AccountName = string(accountName)

	if version == sessionFormatVersionCurrent {
		if _, err := io.ReadFull(reader, s.IPHash[:]); err != nil {
			return nil, err
		}
		if _, err := io.ReadFull(reader, s.UserAgentHash[:]); err != nil {
			return nil, err
		}
	}

	if err := binary.Read(reader, binary.BigEndian, &s.CreatedAt); err != nil {
		return nil, err
	}

	if err := binary.Read(reader, binary.BigEndian, &s.ExpiresAt); err != nil {
		return nil, err
	}

	return s, nil
}
