package ws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fireflower/firemail/internal/config"
	"github.com/fireflower/firemail/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	dir := t.TempDir()
	cfg := &config.Config{
		DBType:        config.BackendSQLite,
		SQLitePath:    filepath.Join(dir, "test.db"),
		BackupDir:     filepath.Join(dir, "backups"),
		WebDAVTimeout: time.Second,
	}

	st, err := store.Open(context.Background(), cfg, discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, st *store.Store, check BatchCheckFunc) (*httptest.Server, *Hub) {
	t.Helper()

	hub := NewHub(discardLogger())
	srv := httptest.NewServer(NewServer(hub, st, check, discardLogger()))
	t.Cleanup(srv.Close)
	return srv, hub
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for hub.Count() < n {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d connections, have %d", n, hub.Count())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readReply(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var reply map[string]any
	require.NoError(t, conn.ReadJSON(&reply))
	return reply
}

func sendJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(v))
}

func seedUser(t *testing.T, st *store.Store) int64 {
	t.Helper()

	ok, _ := st.CreateUser(context.Background(), "alice", "pw", false)
	require.True(t, ok)
	user := st.Authenticate(context.Background(), "alice", "pw")
	require.NotNil(t, user)
	return user.ID
}

func TestAddEmailThenDuplicate(t *testing.T) {
	st := newTestStore(t)
	userID := seedUser(t, st)
	srv, _ := newTestServer(t, st, nil)
	conn := dialWS(t, srv)

	msg := map[string]any{
		"action": "add_email",
		"data": map[string]any{
			"user_id":  userID,
			"email":    "a@b.com",
			"password": "p",
		},
	}

	sendJSON(t, conn, msg)
	reply := readReply(t, conn)
	assert.Equal(t, TypeSuccess, reply["type"])

	// Identical add must fail with a duplication hint
	sendJSON(t, conn, msg)
	reply = readReply(t, conn)
	assert.Equal(t, TypeError, reply["type"])
	assert.Contains(t, reply["message"], "already exist")
}

func TestGetAllEmails(t *testing.T) {
	st := newTestStore(t)
	userID := seedUser(t, st)
	srv, _ := newTestServer(t, st, nil)
	conn := dialWS(t, srv)

	sendJSON(t, conn, map[string]any{"action": "get_all_emails"})
	reply := readReply(t, conn)
	assert.Equal(t, TypeEmailsList, reply["type"])
	assert.Empty(t, reply["data"])

	sendJSON(t, conn, map[string]any{
		"action": "add_email",
		"data":   map[string]any{"user_id": userID, "email": "a@b.com", "password": "p"},
	})
	readReply(t, conn)

	sendJSON(t, conn, map[string]any{"action": "get_all_emails"})
	reply = readReply(t, conn)
	data, ok := reply["data"].([]any)
	require.True(t, ok)
	require.Len(t, data, 1)

	box := data[0].(map[string]any)
	assert.Equal(t, "a@b.com", box["email"])
	// Credentials never leave the server
	assert.NotContains(t, box, "password")
}

func TestDeleteEmailsPartialFailure(t *testing.T) {
	st := newTestStore(t)
	userID := seedUser(t, st)
	srv, _ := newTestServer(t, st, nil)
	conn := dialWS(t, srv)

	sendJSON(t, conn, map[string]any{
		"action": "add_email",
		"data":   map[string]any{"user_id": userID, "email": "a@b.com", "password": "p"},
	})
	readReply(t, conn)

	boxes := st.Mailboxes(context.Background())
	require.Len(t, boxes, 1)

	sendJSON(t, conn, map[string]any{
		"action":    "delete_emails",
		"email_ids": []int64{boxes[0].ID, 424242},
	})
	reply := readReply(t, conn)
	assert.Equal(t, TypeSuccess, reply["type"])
	assert.Contains(t, reply["message"], "deleted 1")
}

func TestGetMailRecordsRequiresID(t *testing.T) {
	st := newTestStore(t)
	srv, _ := newTestServer(t, st, nil)
	conn := dialWS(t, srv)

	sendJSON(t, conn, map[string]any{"action": "get_mail_records"})
	reply := readReply(t, conn)
	assert.Equal(t, TypeError, reply["type"])
	assert.Contains(t, reply["message"], "email_id")
}

func TestImportEmails(t *testing.T) {
	st := newTestStore(t)
	userID := seedUser(t, st)
	srv, _ := newTestServer(t, st, nil)
	conn := dialWS(t, srv)

	payload := "a@b.com----pw1\nbad-line\nc@d.com----pw2"
	sendJSON(t, conn, map[string]any{
		"action": "import_emails",
		"data":   map[string]any{"user_id": userID, "data": payload},
	})

	reply := readReply(t, conn)
	assert.Equal(t, TypeImportResult, reply["type"])
	assert.EqualValues(t, 3, reply["total"])
	assert.EqualValues(t, 2, reply["success"])
	assert.EqualValues(t, 1, reply["failed"])

	details, ok := reply["failed_details"].([]any)
	require.True(t, ok)
	require.Len(t, details, 1)
	failure := details[0].(map[string]any)
	assert.Equal(t, "bad-line", failure["line"])
	assert.Contains(t, failure["reason"], "format")
}

func TestImportEmailsOptionalFields(t *testing.T) {
	st := newTestStore(t)
	userID := seedUser(t, st)
	srv, _ := newTestServer(t, st, nil)
	conn := dialWS(t, srv)

	payload := "a@b.com----pw----client-1----refresh-1"
	sendJSON(t, conn, map[string]any{
		"action": "import_emails",
		"data":   map[string]any{"user_id": userID, "data": payload},
	})
	reply := readReply(t, conn)
	assert.EqualValues(t, 1, reply["success"])

	boxes := st.Mailboxes(context.Background())
	require.Len(t, boxes, 1)
	assert.Equal(t, "client-1", boxes[0].ClientID)
	assert.Equal(t, "refresh-1", boxes[0].RefreshToken)
}

func TestUnknownActionKeepsConnectionOpen(t *testing.T) {
	st := newTestStore(t)
	srv, _ := newTestServer(t, st, nil)
	conn := dialWS(t, srv)

	sendJSON(t, conn, map[string]any{"action": "does_not_exist"})
	reply := readReply(t, conn)
	assert.Equal(t, TypeError, reply["type"])
	assert.Contains(t, reply["message"], "unsupported action")

	// The connection must still be usable
	sendJSON(t, conn, map[string]any{"action": "get_all_emails"})
	reply = readReply(t, conn)
	assert.Equal(t, TypeEmailsList, reply["type"])
}

func TestMalformedJSON(t *testing.T) {
	st := newTestStore(t)
	srv, _ := newTestServer(t, st, nil)
	conn := dialWS(t, srv)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	reply := readReply(t, conn)
	assert.Equal(t, TypeError, reply["type"])
}

func TestSyncActionsWithoutMirror(t *testing.T) {
	st := newTestStore(t)
	srv, _ := newTestServer(t, st, nil)
	conn := dialWS(t, srv)

	for _, action := range []string{"sync_to_webdav", "sync_from_webdav"} {
		sendJSON(t, conn, map[string]any{"action": action})
		reply := readReply(t, conn)
		assert.Equal(t, TypeError, reply["type"], action)
	}
}

func TestCheckEmailsBroadcastsProgress(t *testing.T) {
	st := newTestStore(t)
	srv, hub := newTestServer(t, st, func(ctx context.Context, ids []int64, progress func(int64, int, string)) {
		for _, id := range ids {
			progress(id, 50, "checking")
			progress(id, 100, "done")
		}
	})

	requester := dialWS(t, srv)
	watcher1 := dialWS(t, srv)
	watcher2 := dialWS(t, srv)
	waitForClients(t, hub, 3)

	sendJSON(t, requester, map[string]any{
		"action":    "check_emails",
		"email_ids": []int64{7, 8},
	})

	// The requester is acknowledged before any progress arrives
	ack := readReply(t, requester)
	assert.Equal(t, TypeInfo, ack["type"])

	// Every connection receives progress for both mailboxes
	for _, conn := range []*websocket.Conn{requester, watcher1, watcher2} {
		seen := map[int64]int{}
		for i := 0; i < 4; i++ {
			event := readReply(t, conn)
			require.Equal(t, TypeCheckProgress, event["type"])
			id := int64(event["email_id"].(float64))
			seen[id]++
		}
		assert.Equal(t, 2, seen[7])
		assert.Equal(t, 2, seen[8])
	}
}

func TestImportParsingDirect(t *testing.T) {
	st := newTestStore(t)
	userID := seedUser(t, st)
	hub := NewHub(discardLogger())
	srv := NewServer(hub, st, nil, discardLogger())

	result := srv.importMailboxes(context.Background(), userID, "outlook", "x@y.com----pw\n\nonlyaddress")
	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 1, result.Success)
	assert.Equal(t, 2, result.Failed)
}

func TestEnvelopeDecoding(t *testing.T) {
	raw := []byte(`{"action":"add_email","data":{"user_id":1,"email":"a@b.com","password":"p"}}`)

	var env envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	assert.Equal(t, ActionAddEmail, env.Action)

	var req addEmailRequest
	require.NoError(t, json.Unmarshal(raw, &req))
	assert.Equal(t, int64(1), req.Data.UserID)
	assert.Equal(t, "a@b.com", req.Data.Email)
}
