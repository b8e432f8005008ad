package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientListEventsPaginates(t *testing.T) {
	pages := map[string]ListResponse{
		"": {
			Items:         []Payload{{ID: "e1"}},
			NextPageToken: "page-2",
		},
		"page-2": {
			Items: []Payload{{ID: "e2"}},
		},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/user-1/events", r.URL.Path)
		assert.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.URL.Query().Get("timeMin"))
		page := pages[r.URL.Query().Get("pageToken")]
		require.NoError(t, json.NewEncoder(w).Encode(page))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "token-1", "user-1")
	got, err := c.ListEvents(context.Background(), time.Now(), time.Now().Add(time.Hour), nil)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "e1", got[0].ID)
	assert.Equal(t, "e2", got[1].ID)
}

func TestClientMapsStatusCodes(t *testing.T) {
	status := http.StatusNotFound
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	defer srv.Close()
	c := NewClient(srv.URL, "", "user-1")

	err := c.DeleteEvent(context.Background(), "e1", "", ScopeSingle)
	assert.True(t, IsNotFound(err))

	status = http.StatusForbidden
	_, err = c.UpdateEvent(context.Background(), "e1", Payload{}, "", false, ScopeSingle)
	assert.True(t, IsPermissionConflict(err))

	status = http.StatusConflict
	err = c.RespondToInvite(context.Background(), "e1", "accepted", "")
	assert.True(t, IsPermissionConflict(err))

	status = http.StatusInternalServerError
	err = c.DeleteEvent(context.Background(), "e1", "", ScopeSingle)
	require.Error(t, err)
	assert.False(t, IsNotFound(err))
	assert.False(t, IsPermissionConflict(err))
}

func TestClientMissingUserStateIsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()
	c := NewClient(srv.URL, "", "user-1")

	state, err := c.FetchUserState(context.Background())
	require.NoError(t, err)
	assert.Empty(t, state.Overrides)

	links, err := c.TodoLinks(context.Background())
	require.NoError(t, err)
	assert.Empty(t, links)
}
