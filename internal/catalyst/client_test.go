package catalyst

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewTLSServer(h)
	t.Cleanup(srv.Close)
	c := NewClient(Options{
		BaseURL:   srv.URL,
		Username:  "admin",
		Password:  "pw",
		RateLimit: 1000,
	})
	t.Cleanup(c.Close)
	return c
}

func tokenHandler(t *testing.T, token string, logins *int32) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "admin", user)
		assert.Equal(t, "pw", pass)
		if logins != nil {
			atomic.AddInt32(logins, 1)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"Token": token})
	}
}

func TestClient_ExecGetWithQuery(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/dna/system/api/v1/auth/token", tokenHandler(t, "tok-1", nil))
	mux.HandleFunc("/dna/intent/api/v1/sda/fabricSites", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "tok-1", r.Header.Get("X-Auth-Token"))
		assert.Equal(t, "site-1", r.URL.Query().Get("siteId"))
		_, _ = io.WriteString(w, `{"response":[{"id":"fs-1","siteId":"site-1"}]}`)
	})

	c := newTestClient(t, mux)
	resp, err := c.Exec(context.Background(), "sda", "get_fabric_sites", Params{"siteId": "site-1"})
	require.NoError(t, err)

	items := resp.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "fs-1", items[0].Get("id").String())
}

func TestClient_ExecPayloadAndPathParam(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/dna/system/api/v1/auth/token", tokenHandler(t, "tok", nil))
	mux.HandleFunc("/dna/intent/api/v1/sda/anycastGateways", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body []map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body, 1)
		assert.Equal(t, "VN1", body[0]["virtualNetworkName"])
		_, _ = io.WriteString(w, `{"response":{"taskId":"task-9","url":"/task/task-9"},"version":"1.0"}`)
	})
	mux.HandleFunc("/dna/intent/api/v1/sda/anycastGateways/gw-1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		_, _ = io.WriteString(w, `{"response":{"taskId":"task-10"}}`)
	})

	c := newTestClient(t, mux)
	resp, err := c.Exec(context.Background(), "sda", "add_anycast_gateways", Params{
		PayloadParam: []map[string]any{{"virtualNetworkName": "VN1"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "task-9", resp.TaskID())

	resp, err = c.Exec(context.Background(), "sda", "delete_anycast_gateway_by_id", Params{"id": "gw-1"})
	require.NoError(t, err)
	assert.Equal(t, "task-10", resp.TaskID())
}

func TestClient_ReloginOnUnauthorized(t *testing.T) {
	var logins int32
	var calls int32

	mux := http.NewServeMux()
	mux.HandleFunc("/dna/system/api/v1/auth/token", tokenHandler(t, "fresh", &logins))
	mux.HandleFunc("/dna/intent/api/v1/sites", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, `{"response":[]}`)
	})

	c := newTestClient(t, mux)
	_, err := c.Exec(context.Background(), "sites", "get_sites", Params{"nameHierarchy": "Global/USA"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&logins))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestClient_APIError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/dna/system/api/v1/auth/token", tokenHandler(t, "tok", nil))
	mux.HandleFunc("/dna/intent/api/v1/sda/fabricDevices", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"response":{"errorCode":"BAD","detail":"no such fabric"}}`)
	})

	c := newTestClient(t, mux)
	_, err := c.Exec(context.Background(), "sda", "get_fabric_devices", Params{"fabricId": "f1"})
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Contains(t, err.Error(), "sda.get_fabric_devices(fabricId=f1)")
	assert.Contains(t, err.Error(), "no such fabric")
}

func TestClient_DownloadFilename(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/dna/system/api/v1/auth/token", tokenHandler(t, "tok", nil))
	mux.HandleFunc("/dna/intent/api/v1/file/f-1", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Disposition", `attachment; filename="export.zip"`)
		_, _ = w.Write([]byte("PK\x03\x04"))
	})

	c := newTestClient(t, mux)
	resp, err := c.Exec(context.Background(), "file", "download_a_file_by_fileid", Params{"fileId": "f-1"})
	require.NoError(t, err)
	assert.Equal(t, "export.zip", resp.Filename)
	assert.Equal(t, []byte("PK\x03\x04"), resp.Raw)
}

func TestClient_LoginFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/dna/system/api/v1/auth/token", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	c := newTestClient(t, mux)
	_, err := c.Exec(context.Background(), "sites", "get_sites", nil)
	assert.ErrorContains(t, err, "authentication failed")
}

func TestRouteBuild(t *testing.T) {
	rt, err := lookup("task", "get_task_by_id")
	require.NoError(t, err)

	_, _, _, err = rt.build(Params{})
	assert.ErrorContains(t, err, `missing path parameter "taskId"`)

	path, query, body, err := rt.build(Params{"taskId": "t-1", "extra": []string{"a", "b"}, "skip": nil})
	require.NoError(t, err)
	assert.Equal(t, "/dna/intent/api/v1/task/t-1", path)
	assert.Equal(t, []string{"a", "b"}, query["extra"])
	assert.NotContains(t, query, "skip")
	assert.Nil(t, body)

	_, err = lookup("sda", "no_such_function")
	assert.Error(t, err)
}

func TestResponseItems(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want int
	}{
		{"list", `{"response":[{"a":1},{"a":2}]}`, 2},
		{"object", `{"response":{"a":1}}`, 1},
		{"null", `{"response":null}`, 0},
		{"missing", `{}`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &Response{Raw: []byte(tt.raw)}
			assert.Len(t, r.Items(), tt.want)
		})
	}
}
