package collect

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yeleman/anam-desktop/internal/config"
	"github.com/yeleman/anam-desktop/internal/domain"
)

const collectJSON = `{
  "status": "success",
  "collect": {
    "id": 12,
    "cercle": "Kati",
    "commune": "Kati",
    "ona_form_id": "kati-2017",
    "started_on": "2017-08-01T10:00:00",
    "nb_submissions": 3,
    "nb_non_indigents": 1,
    "dataset": {
      "targets": [
        {"ident": "R1", "certificat-indigence": true, "enquete/sexe": "masculin", "enquete/annee-naissance": 1960},
        {"ident": "R2", "certificat-indigence": false, "enquete/sexe": "feminin"},
        {"ident": "R3", "certificat-indigence": true, "enquete/sexe": "feminin"}
      ]
    }
  }
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := &config.StoreConfig{
		URL:          srv.URL,
		Token:        "secret",
		Timeout:      5 * time.Second,
		ProbeTimeout: time.Second,
	}
	return NewClient(cfg, zap.NewNop())
}

func TestGet(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/collects/12", r.URL.Path)
		assert.Equal(t, "Token secret", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, collectJSON)
	})

	c, err := client.Get(context.Background(), "12")
	require.NoError(t, err)
	assert.Equal(t, Text("12"), c.ID)
	assert.Equal(t, Text("kati-2017"), c.OnaFormID)
	assert.Equal(t, 3, c.NbSubmissions)
	assert.Equal(t, 1, c.NbNonIndigents)
	assert.Equal(t, "Enquête sociale de Kati, cercle de Kati", c.Name())
	require.Len(t, c.Dataset.Targets, 3)

	eligible := c.Eligible()
	require.Len(t, eligible, 2)
	assert.Equal(t, "R1", eligible[0].Ident())
	assert.Equal(t, "R3", eligible[1].Ident())
	assert.Equal(t, 1, c.NbMale())
	assert.Equal(t, 1, c.NbFemale())
	assert.Equal(t, "1960", eligible[0].Text("enquete/annee-naissance"))
}

func TestList(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/collects", r.URL.Path)
		_, _ = io.WriteString(w, `{"status": "success", "collects": [
			{"id": "1", "cercle": "Kati", "archived": false},
			{"id": 2, "cercle": "Segou", "archived": true}
		]}`)
	})

	collects, err := client.List(context.Background())
	require.NoError(t, err)
	require.Len(t, collects, 2)
	assert.Equal(t, Text("1"), collects[0].ID)
	assert.Equal(t, Text("2"), collects[1].ID)
	assert.True(t, collects[1].Archived)
}

func TestMarkImported_PostsIdentifierMap(t *testing.T) {
	var got map[string]map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/collects/12/mark_imported", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"status": "success"}`)
	})

	ids := domain.IdentifierMap{"R1": {"dossier": "0001-17102026", "indigent": int64(101)}}
	require.NoError(t, client.MarkImported(context.Background(), "12", ids))
	assert.Equal(t, "0001-17102026", got["R1"]["dossier"])
	assert.Equal(t, float64(101), got["R1"]["indigent"])
}

func TestMarkImported_ErrorIsNotificationError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"status": "error", "message": "already imported"}`)
	})

	err := client.MarkImported(context.Background(), "12", nil)
	var notifErr *domain.NotificationError
	require.True(t, errors.As(err, &notifErr))
	assert.Equal(t, "12", notifErr.CollectID)
	assert.Contains(t, err.Error(), "already imported")
}

func TestDo_RejectsUnexpectedStatusCode(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `{"status": "success"}`)
	})

	err := client.Archive(context.Background(), "12")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 403")
}

func TestArchiveAndUnarchive(t *testing.T) {
	var paths []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		paths = append(paths, r.URL.Path)
		_, _ = io.WriteString(w, `{"status": "success"}`)
	})

	require.NoError(t, client.Archive(context.Background(), "7"))
	require.NoError(t, client.Unarchive(context.Background(), "7"))
	assert.Equal(t, []string{"/api/collects/7/archive", "/api/collects/7/unarchive"}, paths)
}

func TestCheck(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/check", r.URL.Path)
		_, _ = io.WriteString(w, `{"status": "success"}`)
	})
	assert.NoError(t, client.Check(context.Background()))
}

func TestProbe_Unreachable(t *testing.T) {
	// grab a free port then release it so nothing listens there
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	client := NewClient(&config.StoreConfig{URL: "http://" + addr, ProbeTimeout: time.Second}, zap.NewNop())
	err = client.Check(context.Background())

	var connErr *domain.ConnectionError
	require.True(t, errors.As(err, &connErr))
	assert.Equal(t, addr, connErr.Target)
}

func TestProbe_InvalidURL(t *testing.T) {
	client := NewClient(&config.StoreConfig{URL: "not a url"}, zap.NewNop())
	var connErr *domain.ConnectionError
	assert.True(t, errors.As(client.Probe(context.Background()), &connErr))
}

func TestText_Unmarshal(t *testing.T) {
	var v struct {
		A Text `json:"a"`
		B Text `json:"b"`
		C Text `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": "x", "b": 42, "c": null}`), &v))
	assert.Equal(t, Text("x"), v.A)
	assert.Equal(t, Text("42"), v.B)
	assert.Equal(t, Text(""), v.C)
}
