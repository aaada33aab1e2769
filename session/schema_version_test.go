package session

import (
	"bytes"
	"context"
	"encoding/binary"
	"strings"
	"testing"
	"time"
)

func TestDecodeRejectsUnsupportedSchemaVersion(t *testing.T) {
	_, err := Decode([]byte{99})
	if err == nil || !strings.Contains(err.Error(), "unsupported session schema version") {
		t.Fatalf("expected unsupported schema version error, got %v", err)
	}
}

func TestGetReadOnlyMigratesLegacySchemaToCurrent(t *testing.T) {
	store, rdb, done := newSessionStoreTest(t)
	defer done()

	now := time.Now()
	legacy := &Session{
		SchemaVersion: 1,
		SessionID:     "sid-legacy",
		AccountID:     "acct-legacy",
		AccountName:   "Legacy User",
		CreatedAt:     now.Unix(),
		ExpiresAt:     now.Add(time.Hour).Unix(),
	}

	key := store.key(legacy.SessionID)
	if err := rdb.Set(context.Background(), key, encodeLegacyV1Session(t, legacy), time.Hour).Err(); err != nil {
		t.Fatalf("seed legacy session failed: %v", err)
	}

	sess, err := store.GetReadOnly(context.Background(), legacy.SessionID)
	if err != nil {
		t.Fatalf("get readonly failed: %v", err)
	}
	if sess.SchemaVersion != CurrentSchemaVersion {
		t.Fatalf("expected migrated schema version %d, got %d", CurrentSchemaVersion, sess.SchemaVersion)
	}
	if sess.AccountID != legacy.AccountID || sess.AccountName != legacy.AccountName {
		t.Fatalf("migration must preserve identity, got %q/%q", sess.AccountID, sess.AccountName)
	}
	if sess.IPHash != [32]byte{} || sess.UserAgentHash != [32]byte{} {
		t.Fatalf("legacy sessions carry no client-binding hashes")
	}

	raw, err := rdb.Get(context.Background(), key).Bytes()
	if err != nil {
		t.Fatalf("read migrated blob failed: %v", err)
	}
	if len(raw) == 0 || raw[0] != CurrentSchemaVersion {
		t.Fatalf("expected stored schema byte %d, got %v", CurrentSchemaVersion, raw)
	}
}

func encodeLegacyV1Session(tb testing.TB, sess *Session) []byte {
	tb.Helper()

	var buf bytes.Buffer
	buf.WriteByte(1)

	buf.WriteByte(byte(len(sess.AccountID)))
	buf.WriteString(sess.AccountID)

	buf.WriteByte(byte(len(sess.AccountName)))
	buf.WriteString(sess.AccountName)

	if err := binary.Write(&buf, binary.BigEndian, sess.CreatedAt); err != nil {
		tb.Fatalf("write createdAt failed: %v", err)
	}
	if err := binary.Write(&buf, binary.BigEndian, sess.ExpiresAt); err != nil {
		tb.Fatalf("write expiresAt failed: %v", err)
	}

	return buf.Bytes()
}
