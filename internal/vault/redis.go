package vault

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const recordVersion1 = 1

// Redis is the shared-store Vault for deployments where the step that
// issues a token and the step that consumes it may run on different
// instances. Records expire server-side via key TTL and carry their own
// expiry as a second line of defense.
type Redis struct {
	redis  redis.UniversalClient
	prefix string
}

func NewRedis(client redis.UniversalClient, prefix string) *Redis {
	if prefix == "" {
		prefix = "afc"
	}
	return &Redis{redis: client, prefix: prefix}
}

func (r *Redis) key(session string) string {
	return r.prefix + ":" + session
}

func (r *Redis) Put(ctx context.Context, session string, rec Record, ttl time.Duration) error {
	encoded, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	if err := r.redis.Set(ctx, r.key(session), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBackend, err)
	}
	return nil
}

func (r *Redis) Get(ctx context.Context, session string) (Record, error) {
	data, err := r.redis.Get(ctx, r.key(session)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Record{}, ErrMiss
		}
		return Record{}, fmt.Errorf("%w: %v", ErrBackend, err)
	}

	rec, err := decodeRecord(data)
	if err != nil {
		return Record{}, err
	}
	if time.Now().Unix() > rec.ExpiresAt {
		_, _ = r.redis.Del(ctx, r.key(session)).Result()
		return Record{}, ErrExpired
	}
	return rec, nil
}

func (r *Redis) Delete(ctx context.Context, session string) error {
	if err := r.redis.Del(ctx, r.key(session)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBackend, err)
	}
	return nil
}

func encodeRecord(rec Record) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(recordVersion1)

	if err := binary.Write(&buf, binary.BigEndian, rec.IssuedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, rec.ExpiresAt); err != nil {
		return nil, err
	}

	for _, field := range []string{rec.Token, rec.AccountID, rec.AccountName} {
		if len(field) > 65535 {
			return nil, errors.New("challenge record field length exceeded")
		}
		if err := binary.Write(&buf, binary.BigEndian, uint16(len(field))); err != nil {
			return nil, err
		}
		buf.WriteString(field)
	}

	return buf.Bytes(), nil
}

func decodeRecord(data []byte) (Record, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return Record{}, err
	}
	if version != recordVersion1 {
		return Record{}, errors.New("invalid challenge record version")
	}

	var rec Record
	if err := binary.Read(reader, binary.BigEndian, &rec.IssuedAt); err != nil {
		return Record{}, err
	}
	if err := binary.Read(reader, binary.BigEndian, &rec.ExpiresAt); err != nil {
		return Record{}, err
	}

	for _, dst := range []*string{&rec.Token, &rec.AccountID, &rec.AccountName} {
		var n uint16
		if err := binary.Read(reader, binary.BigEndian, &n); err != nil {
			return Record{}, err
		}
		raw := make([]byte, n)
		if _, err := io.ReadFull(reader, raw); err != nil {
			return Record{}, err
		}
		*dst = string(raw)
	}

	return rec, nil
}
