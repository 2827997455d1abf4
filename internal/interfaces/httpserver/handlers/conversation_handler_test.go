package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "jan-server/services/chat-api/internal/domain/conversation"
	repository "jan-server/services/chat-api/internal/infrastructure/repository/conversation"
	"jan-server/services/chat-api/internal/interfaces/httpserver/handlers"
	"jan-server/services/chat-api/internal/interfaces/httpserver/requests"
	"jan-server/services/chat-api/internal/interfaces/httpserver/responses"
	"jan-server/services/chat-api/internal/utils/platformerrors"
)

// MockGateway is a stand-in inference backend.
type MockGateway struct {
	QueryFunc func(ctx context.Context, req domain.InferenceRequest) (string, error)
}

func (m *MockGateway) Query(ctx context.Context, req domain.InferenceRequest) (string, error) {
	if m.QueryFunc != nil {
		return m.QueryFunc(ctx, req)
	}
	return "", nil
}

// MockService lets tests force service failures.
type MockService struct {
	StartFunc func(ctx context.Context, model domain.ModelName) (*domain.Conversation, error)
	ChatFunc  func(ctx context.Context, input domain.ChatInput) (*domain.Conversation, error)
	GetFunc   func(ctx context.Context, publicID string) (*domain.Conversation, error)
	ListFunc  func(ctx context.Context) ([]*domain.Conversation, error)
}

func (m *MockService) Start(ctx context.Context, model domain.ModelName) (*domain.Conversation, error) {
	if m.StartFunc != nil {
		return m.StartFunc(ctx, model)
	}
	return nil, nil
}

func (m *MockService) Chat(ctx context.Context, input domain.ChatInput) (*domain.Conversation, error) {
	if m.ChatFunc != nil {
		return m.ChatFunc(ctx, input)
	}
	return nil, nil
}

func (m *MockService) Get(ctx context.Context, publicID string) (*domain.Conversation, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, publicID)
	}
	return nil, nil
}

func (m *MockService) List(ctx context.Context) ([]*domain.Conversation, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx)
	}
	return nil, nil
}

type sequenceIDs struct {
	mu  sync.Mutex
	ids []string
}

func (s *sequenceIDs) NewID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.ids[0]
	s.ids = s.ids[1:]
	return id
}

func setupConversationTestRouter(service domain.Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	handler := handlers.NewConversationHandler(service, requests.NewValidator(9), zerolog.Nop())
	r.POST("/start", handler.Start)
	r.POST("/chat", handler.Chat)
	r.GET("/", handler.List)
	r.GET("/:id", handler.Get)
	return r
}

func newRealService(gateway domain.InferenceGateway, ids ...string) domain.Service {
	return domain.NewService(repository.NewInMemoryRepository(), gateway, &sequenceIDs{ids: ids}, zerolog.Nop())
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeConversation(t *testing.T, w *httptest.ResponseRecorder) responses.ConversationResponse {
	t.Helper()
	var envelope responses.ConversationEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return envelope.Conversation
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) responses.ErrorResponse {
	t.Helper()
	var body responses.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestStartThenChat(t *testing.T) {
	var received domain.InferenceRequest
	gateway := &MockGateway{QueryFunc: func(ctx context.Context, req domain.InferenceRequest) (string, error) {
		received = req
		return "hello!", nil
	}}
	router := setupConversationTestRouter(newRealService(gateway, "abc123xyz"))

	w := doJSON(t, router, http.MethodPost, "/start", map[string]string{"model_name": "Llama2"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"conversation":{"conversation_id":"abc123xyz","model_name":"Llama2","messages":[]}}`, w.Body.String())

	w = doJSON(t, router, http.MethodPost, "/chat", map[string]string{
		"model_name":      "Llama2",
		"message":         "hi",
		"conversation_id": "abc123xyz",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.JSONEq(t, `{"conversation":{"conversation_id":"abc123xyz","model_name":"Llama2","messages":[
		{"role":"user","content":"hi"},
		{"role":"ai","content":"hello!"}
	]}}`, w.Body.String())

	assert.Equal(t, domain.InferenceRequest{
		ModelName:      domain.ModelLlama2,
		Message:        "hi",
		ConversationID: "abc123xyz",
	}, received)

	w = doJSON(t, router, http.MethodGet, "/abc123xyz", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeConversation(t, w).Messages, 2)
}

func TestStartThenFetchRoundTrip(t *testing.T) {
	router := setupConversationTestRouter(newRealService(&MockGateway{}, "mistral01"))

	w := doJSON(t, router, http.MethodPost, "/start", map[string]string{"model_name": "Mistral"})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodGet, "/mistral01", nil)
	require.Equal(t, http.StatusOK, w.Code)
	conv := decodeConversation(t, w)
	assert.Equal(t, "mistral01", conv.ConversationID)
	assert.Equal(t, "Mistral", conv.ModelName)
	assert.NotNil(t, conv.Messages)
	assert.Empty(t, conv.Messages)
}

func TestValidationFailures(t *testing.T) {
	router := setupConversationTestRouter(newRealService(&MockGateway{}, "abc123xyz"))

	tests := []struct {
		name    string
		path    string
		body    any
		wantMsg string
	}{
		{"start unknown model", "/start", map[string]string{"model_name": "GPT4"}, `"model_name" must be one of [Llama2, Mistral]`},
		{"start missing model", "/start", map[string]string{}, `"model_name" is required`},
		{"start malformed json", "/start", `{"model_name":`, "request body must be a valid JSON object"},
		{"chat empty message", "/chat", map[string]string{"model_name": "Llama2", "message": "", "conversation_id": "abc123xyz"}, `"message" is required`},
		{"chat wrong id length", "/chat", map[string]string{"model_name": "Llama2", "message": "hi", "conversation_id": "abc"}, `"conversation_id" length must be 9 characters long`},
		{"start unknown key", "/start", map[string]string{"model_name": "Llama2", "system": "be terse"}, `"system" is not allowed`},
		{"chat unknown key", "/chat", map[string]any{"model_name": "Llama2", "message": "hi", "conversation_id": "abc123xyz", "stream": true}, `"stream" is not allowed`},
		{"chat wrong type", "/chat", `{"model_name":"Llama2","message":5,"conversation_id":"abc123xyz"}`, "request body must be a valid JSON object"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, router, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.wantMsg, decodeError(t, w).Error)
		})
	}
}

func TestChatUnknownConversation(t *testing.T) {
	called := false
	gateway := &MockGateway{QueryFunc: func(ctx context.Context, req domain.InferenceRequest) (string, error) {
		called = true
		return "unused", nil
	}}
	router := setupConversationTestRouter(newRealService(gateway))

	w := doJSON(t, router, http.MethodPost, "/chat", map[string]string{
		"model_name":      "Llama2",
		"message":         "hi",
		"conversation_id": "missing00",
	})

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "conversation not found", decodeError(t, w).Error)
	assert.False(t, called)

	w = doJSON(t, router, http.MethodGet, "/", nil)
	assert.JSONEq(t, `{"conversations":[]}`, w.Body.String())
}

func TestChatNonASCIIIdentifierIsNotFound(t *testing.T) {
	router := setupConversationTestRouter(newRealService(&MockGateway{}))

	w := doJSON(t, router, http.MethodPost, "/chat", map[string]string{
		"model_name":      "Llama2",
		"message":         "hi",
		"conversation_id": "ábc123xyz",
	})

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "conversation not found", decodeError(t, w).Error)
}

func TestChatGatewayFailureIsGeneric(t *testing.T) {
	gateway := &MockGateway{QueryFunc: func(ctx context.Context, req domain.InferenceRequest) (string, error) {
		return "", platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeExternal,
			"inference backend returned status 502", errors.New("upstream secret detail"), "inference-status-error")
	}}
	router := setupConversationTestRouter(newRealService(gateway, "abc123xyz"))

	require.Equal(t, http.StatusOK, doJSON(t, router, http.MethodPost, "/start", map[string]string{"model_name": "Llama2"}).Code)

	w := doJSON(t, router, http.MethodPost, "/chat", map[string]string{
		"model_name":      "Llama2",
		"message":         "hi",
		"conversation_id": "abc123xyz",
	})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, "Error processing query", body.Error)
	assert.Equal(t, "inference-status-error", body.Code)
	assert.NotContains(t, w.Body.String(), "secret")

	w = doJSON(t, router, http.MethodGet, "/abc123xyz", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decodeConversation(t, w).Messages)
}

func TestGetUnknownConversation(t *testing.T) {
	router := setupConversationTestRouter(newRealService(&MockGateway{}))

	w := doJSON(t, router, http.MethodGet, "/missing00", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "conversation not found", decodeError(t, w).Error)
}

func TestGetBlankID(t *testing.T) {
	router := setupConversationTestRouter(newRealService(&MockGateway{}))

	w := doJSON(t, router, http.MethodGet, "/%20", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "conversation id is required", decodeError(t, w).Error)
}

func TestStorageFailuresAreGeneric(t *testing.T) {
	storageErr := func(ctx context.Context) error {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
			"failed to list conversations", errors.New("connection refused"), "db-list-error")
	}
	service := &MockService{
		ListFunc: func(ctx context.Context) ([]*domain.Conversation, error) {
			return nil, storageErr(ctx)
		},
		GetFunc: func(ctx context.Context, publicID string) (*domain.Conversation, error) {
			return nil, storageErr(ctx)
		},
	}
	router := setupConversationTestRouter(service)

	w := doJSON(t, router, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Error fetching conversations", decodeError(t, w).Error)

	w = doJSON(t, router, http.MethodGet, "/abc123xyz", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Error fetching conversation", decodeError(t, w).Error)
}

func TestListMostRecentFirst(t *testing.T) {
	gateway := &MockGateway{QueryFunc: func(ctx context.Context, req domain.InferenceRequest) (string, error) {
		return "ok", nil
	}}
	router := setupConversationTestRouter(newRealService(gateway, "first0000", "second000"))

	require.Equal(t, http.StatusOK, doJSON(t, router, http.MethodPost, "/start", map[string]string{"model_name": "Llama2"}).Code)
	time.Sleep(2 * time.Millisecond)
	require.Equal(t, http.StatusOK, doJSON(t, router, http.MethodPost, "/start", map[string]string{"model_name": "Mistral"}).Code)

	w := doJSON(t, router, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list responses.ConversationListEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Conversations, 2)
	assert.Equal(t, "second000", list.Conversations[0].ConversationID)
	assert.Equal(t, "first0000", list.Conversations[1].ConversationID)

	time.Sleep(2 * time.Millisecond)
	require.Equal(t, http.StatusCreated, doJSON(t, router, http.MethodPost, "/chat", map[string]string{
		"model_name": "Llama2", "message": "hi", "conversation_id": "first0000",
	}).Code)

	w = doJSON(t, router, http.MethodGet, "/", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, "first0000", list.Conversations[0].ConversationID)
}
