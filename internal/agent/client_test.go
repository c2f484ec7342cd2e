package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"medbridge/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Ask(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "my gum bleeds", req.Message)
		assert.Equal(t, 34, req.Age)
		assert.Equal(t, "conv-1", req.ConversationID)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"response":"See a periodontist","speciality":"Periodontics","isFinal":true}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, logger.NewNop())
	reply, err := c.Ask(context.Background(), Request{Message: "my gum bleeds", Age: 34, ConversationID: "conv-1"})
	require.NoError(t, err)
	assert.Equal(t, "See a periodontist", reply.Response)
	assert.Equal(t, "Periodontics", reply.Speciality)
	assert.True(t, reply.IsFinal)
}

func TestClient_AskErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/empty" {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"response":"  "}`))
			return
		}
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second, logger.NewNop()).Ask(context.Background(), Request{Message: "hi"})
	assert.Error(t, err)

	_, err = NewClient(srv.URL+"/empty", time.Second, logger.NewNop()).Ask(context.Background(), Request{Message: "hi"})
	assert.Error(t, err)
}
