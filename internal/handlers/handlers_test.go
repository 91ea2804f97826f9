package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insectica-ai/insectica-backend/internal/media"
	"github.com/insectica-ai/insectica-backend/internal/routes"
	"github.com/insectica-ai/insectica-backend/internal/services"
	"github.com/insectica-ai/insectica-backend/internal/storage"
	"github.com/insectica-ai/insectica-backend/internal/upstream"
)

// newTestApp wires the whole route surface against stub upstreams and the
// memory store.
func newTestApp(t *testing.T) (*fiber.App, storage.Store) {
	t.Helper()

	speechServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/audio/transcriptions":
			fmt.Fprint(w, `{"text":"hello"}`)
		case "/chat/completions":
			fmt.Fprint(w, `{"choices":[{"message":{"content":"Hi, how can I help?"}}]}`)
		case "/audio/speech":
			w.Write([]byte("mp3-bytes"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(speechServer.Close)

	vapiServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/assistant":
			fmt.Fprint(w, `{"id":"va_123"}`)
		case "/chat":
			fmt.Fprint(w, `{"output":[{"role":"assistant","content":"Hello there"}]}`)
		case "/chat/stream":
			w.Header().Set("Content-Type", "text/event-stream")
			flusher := w.(http.Flusher)
			for _, line := range []string{`data: {"delta":"Hel"}`, "", `data: {"delta":"lo"}`} {
				fmt.Fprintf(w, "%s\n", line)
				flusher.Flush()
			}
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(vapiServer.Close)

	clientCfg := func(baseURL string) upstream.Config {
		return upstream.Config{
			BaseURL:       baseURL,
			APIKey:        "test-key",
			MaxRetries:    1,
			BackoffFactor: 0.001,
		}
	}

	speech, err := services.NewSpeechService(clientCfg(speechServer.URL))
	require.NoError(t, err)
	vapi, err := services.NewVapiService(clientCfg(vapiServer.URL), "/chat/stream")
	require.NoError(t, err)
	booking, err := services.NewBookingPolicy("America/Toronto", 9, 21)
	require.NoError(t, err)

	blobs, err := media.New(t.TempDir(), "/media")
	require.NoError(t, err)

	store := storage.NewMemoryStore()
	pipeline := services.NewPipelineService(store, speech, blobs, services.InsecticaSystemPrompt)

	app := fiber.New()
	routes.SetupRoutes(app, routes.Deps{
		Store:        store,
		Pipeline:     pipeline,
		Booking:      booking,
		Vapi:         vapi,
		MediaRoot:    blobs.Root(),
		MediaBaseURL: "/media",
	})
	return app, store
}

func jsonRequest(method, target string, payload any) *http.Request {
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestStartConversation(t *testing.T) {
	app, _ := newTestApp(t)

	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/conversations", fiber.Map{"session_label": "kiosk"}))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.EqualValues(t, 1, body["conversation_id"])
}

func TestIngestAudioRequiresAudio(t *testing.T) {
	app, store := newTestApp(t)
	convo, _ := store.CreateConversation("test")

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("duration_ms", "1000"))
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/conversations/%d/ingest_audio", convo.ID), &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestIngestAudioFullTurn(t *testing.T) {
	app, store := newTestApp(t)
	convo, _ := store.CreateConversation("test")

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("audio", "clip.webm")
	require.NoError(t, err)
	_, err = part.Write([]byte("five-second-clip"))
	require.NoError(t, err)
	require.NoError(t, w.WriteField("duration_ms", "5000"))
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/conversations/%d/ingest_audio", convo.ID), &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := app.Test(req, 10000)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "Hi, how can I help?", body["assistant_text"])
	assert.NotEmpty(t, body["assistant_audio_url"])
	assert.NotNil(t, body["utterance"])

	utterances, _ := store.ListUtterances(convo.ID)
	assert.Len(t, utterances, 2)
}

func TestSummaryUnknownConversation(t *testing.T) {
	app, _ := newTestApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/conversations/42/summary", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestUpdateIntentValidatesBookingWindow(t *testing.T) {
	app, store := newTestApp(t)
	convo, _ := store.CreateConversation("test")

	// 03:00 Toronto time is well outside business hours.
	outside := time.Date(2025, 6, 16, 7, 0, 0, 0, time.UTC)
	resp, err := app.Test(jsonRequest(http.MethodPatch, fmt.Sprintf("/api/conversations/%d", convo.ID),
		fiber.Map{"booking_time": outside.Format(time.RFC3339)}))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	// 14:00 UTC is 10:00 in Toronto.
	inside := time.Date(2025, 6, 16, 14, 0, 0, 0, time.UTC)
	resp, err = app.Test(jsonRequest(http.MethodPatch, fmt.Sprintf("/api/conversations/%d", convo.ID),
		fiber.Map{"booking_time": inside.Format(time.RFC3339), "pest_type": "mice"}))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "mice", body["pest_type"])
}

func TestUpdateIntentRejectsBadCustomerType(t *testing.T) {
	app, store := newTestApp(t)
	convo, _ := store.CreateConversation("test")

	resp, err := app.Test(jsonRequest(http.MethodPatch, fmt.Sprintf("/api/conversations/%d", convo.ID),
		fiber.Map{"customer_type": "spaceship"}))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestSlotsEndpoint(t *testing.T) {
	app, store := newTestApp(t)
	convo, _ := store.CreateConversation("test")

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/conversations/%d/slots?count=3", convo.ID), nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	slots := body["slots"].([]any)
	assert.Len(t, slots, 3)
}

func TestSlotsUnknownConversation(t *testing.T) {
	app, _ := newTestApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/conversations/999/slots", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestRegisterAssistant(t *testing.T) {
	app, store := newTestApp(t)

	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/assistants", fiber.Map{
		"name":          "Front Desk",
		"first_message": "Hello!",
		"system_prompt": "be helpful",
	}))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "va_123", body["vapi_assistant_id"])

	mirror, err := store.GetAssistantByVapiID("va_123")
	require.NoError(t, err)
	assert.Equal(t, "anthropic", mirror.ModelProvider, "provider defaulted")

	// Registering the same upstream assistant twice conflicts.
	resp, err = app.Test(jsonRequest(http.MethodPost, "/api/assistants", fiber.Map{
		"name":          "Front Desk",
		"first_message": "Hello!",
		"system_prompt": "be helpful",
	}))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
}

func TestRegisterAssistantValidation(t *testing.T) {
	app, _ := newTestApp(t)

	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/assistants", fiber.Map{"name": "no prompt"}))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestCreateChat(t *testing.T) {
	app, _ := newTestApp(t)

	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/chats", fiber.Map{
		"assistant_id": "va_123",
		"input":        "hi",
	}))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "Hello there", body["answer"])
}

func TestStreamChatPassesLinesThrough(t *testing.T) {
	app, _ := newTestApp(t)

	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/chats/stream", fiber.Map{
		"assistant_id": "va_123",
		"input":        "hi",
	}), 10000)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "data: {\"delta\":\"Hel\"}\ndata: {\"delta\":\"lo\"}\n", string(data))
	assert.False(t, strings.Contains(string(data), "event: error"))
}

func TestUpstreamTimeoutMapsToGatewayTimeout(t *testing.T) {
	// A Vapi upstream that never answers: the proxy should give up at its
	// read timeout and report 504.
	stalled := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the body first: the server only watches for client
		// disconnects (and cancels the context) once the body is consumed.
		io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer stalled.Close()

	vapi, err := services.NewVapiService(upstream.Config{
		BaseURL:       stalled.URL,
		APIKey:        "test-key",
		ReadTimeout:   100 * time.Millisecond,
		MaxRetries:    1,
		BackoffFactor: 0.001,
	}, "/chat/stream")
	require.NoError(t, err)

	booking, err := services.NewBookingPolicy("America/Toronto", 9, 21)
	require.NoError(t, err)

	app := fiber.New()
	routes.SetupRoutes(app, routes.Deps{
		Store:        storage.NewMemoryStore(),
		Booking:      booking,
		Vapi:         vapi,
		MediaRoot:    t.TempDir(),
		MediaBaseURL: "/media",
	})

	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/chats", fiber.Map{
		"assistant_id": "va_123",
		"input":        "hi",
	}), 10000)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusGatewayTimeout, resp.StatusCode)
}

func TestUpstreamFailureMapsToBadGateway(t *testing.T) {
	// A Vapi upstream that always 404s: the proxy should answer 502, not 500.
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer broken.Close()

	vapi, err := services.NewVapiService(upstream.Config{
		BaseURL:       broken.URL,
		APIKey:        "test-key",
		MaxRetries:    1,
		BackoffFactor: 0.001,
	}, "/chat/stream")
	require.NoError(t, err)

	booking, err := services.NewBookingPolicy("America/Toronto", 9, 21)
	require.NoError(t, err)

	app := fiber.New()
	routes.SetupRoutes(app, routes.Deps{
		Store:        storage.NewMemoryStore(),
		Booking:      booking,
		Vapi:         vapi,
		MediaRoot:    t.TempDir(),
		MediaBaseURL: "/media",
	})

	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/chats", fiber.Map{
		"assistant_id": "va_123",
		"input":        "hi",
	}))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadGateway, resp.StatusCode)
}
