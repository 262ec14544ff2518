package lark

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkIm "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockMessageCreator struct {
	requests   []*larkIm.CreateMessageReq
	createFunc func(ctx context.Context, req *larkIm.CreateMessageReq) (*larkIm.CreateMessageResp, error)
}

func (m *mockMessageCreator) Create(ctx context.Context, req *larkIm.CreateMessageReq, options ...larkcore.RequestOptionFunc) (*larkIm.CreateMessageResp, error) {
	m.requests = append(m.requests, req)
	if m.createFunc != nil {
		return m.createFunc(ctx, req)
	}
	messageID := "om_test"
	return &larkIm.CreateMessageResp{
		Data: &larkIm.CreateMessageRespData{MessageId: &messageID},
	}, nil
}

// larkServer fakes the tenant token and IM message endpoints of the open platform
type larkServer struct {
	mu       sync.Mutex
	query    url.Values
	auth     string
	messages []map[string]string
}

func (l *larkServer) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/open-apis/auth/v3/tenant_access_token/internal", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_, _ = w.Write([]byte(`{"code":0,"msg":"ok","tenant_access_token":"t-test","expire":7200}`))
	})
	mux.HandleFunc("/open-apis/im/v1/messages", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode message body: %v", err)
		}
		l.mu.Lock()
		l.query = r.URL.Query()
		l.auth = r.Header.Get("Authorization")
		l.messages = append(l.messages, body)
		l.mu.Unlock()

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_, _ = w.Write([]byte(`{"code":0,"msg":"success","data":{"message_id":"om_test"}}`))
	})
	return mux
}

func TestMessenger_SendText(t *testing.T) {
	fake := &larkServer{}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	client := NewSDKClient(Config{
		AppID:     "cli_messenger_test",
		AppSecret: "secret",
		BaseURL:   srv.URL,
		Timeout:   5 * time.Second,
	})
	messenger := NewMessenger(client, "oc_reviewers", zap.NewNop())

	err := messenger.SendText(context.Background(), `Processing Complete: "claim.pdf" analyzed - Status: clean`)
	require.NoError(t, err)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.Len(t, fake.messages, 1)
	assert.Equal(t, "chat_id", fake.query.Get("receive_id_type"))
	assert.Equal(t, "Bearer t-test", fake.auth)

	body := fake.messages[0]
	assert.Equal(t, "oc_reviewers", body["receive_id"])
	assert.Equal(t, "text", body["msg_type"])

	var content map[string]string
	require.NoError(t, json.Unmarshal([]byte(body["content"]), &content))
	assert.Equal(t, `Processing Complete: "claim.pdf" analyzed - Status: clean`, content["text"])
}

func TestMessenger_SendText_Errors(t *testing.T) {
	t.Run("api failure code", func(t *testing.T) {
		creator := &mockMessageCreator{
			createFunc: func(ctx context.Context, req *larkIm.CreateMessageReq) (*larkIm.CreateMessageResp, error) {
				return &larkIm.CreateMessageResp{
					CodeError: larkcore.CodeError{Code: 230002, Msg: "bot not in chat"},
				}, nil
			},
		}
		err := NewMessengerWithCreator(creator, "oc_reviewers", zap.NewNop()).SendText(context.Background(), "hi")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "230002")
	})

	t.Run("transport failure", func(t *testing.T) {
		boom := errors.New("timeout")
		creator := &mockMessageCreator{
			createFunc: func(ctx context.Context, req *larkIm.CreateMessageReq) (*larkIm.CreateMessageResp, error) {
				return nil, boom
			},
		}
		err := NewMessengerWithCreator(creator, "oc_reviewers", zap.NewNop()).SendText(context.Background(), "hi")
		assert.ErrorIs(t, err, boom)
	})

	t.Run("missing chat or content", func(t *testing.T) {
		creator := &mockMessageCreator{}
		assert.Error(t, NewMessengerWithCreator(creator, "", zap.NewNop()).SendText(context.Background(), "hi"))
		assert.Error(t, NewMessengerWithCreator(creator, "oc", zap.NewNop()).SendText(context.Background(), ""))
		assert.Empty(t, creator.requests)
	})
}

func TestNewSDKClient(t *testing.T) {
	client := NewSDKClient(Config{AppID: "cli_test", AppSecret: "secret"})
	require.NotNil(t, client)
	assert.NotNil(t, client.Im)
}
