package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"localcloud/pkg/config"
	"localcloud/pkg/model"
)

type hit struct {
	method string
	path   string
	body   string
	header http.Header
}

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *[]hit) {
	t.Helper()
	var hits []hit
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		hits = append(hits, hit{method: r.Method, path: r.URL.EscapedPath(), body: string(b), header: r.Header.Clone()})
		h(w, r)
	}))
	t.Cleanup(srv.Close)

	cfg := config.Default()
	cfg.APIURL = srv.URL + "/"
	cfg.APIToken = "tok"
	cfg.APITimeout = 5 * time.Second
	return New(cfg, nil), &hits
}

func TestClient_ListsAndDecodes(t *testing.T) {
	c, hits := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/vpn_node":
			_, _ = w.Write([]byte(`[{"id":1,"name":"web-1","ip":"192.168.202.7","type":"[\"server\"]"}]`))
		case "/service":
			_, _ = w.Write([]byte(`[{"id":"s1","name":"shop","git_url":"git@example.com:shop.git","environments":"[{\"name\":\"main\",\"port\":3000}]"}]`))
		case "/tunnel":
			_, _ = w.Write([]byte(`[{"id":9,"domain":"dev.example.com","port":"8080"}]`))
		case "/deploy/credentials":
			_, _ = w.Write([]byte(`{"ssh_pub_key":"ssh-ed25519 AAAA","webhook_url":"https://hook.example.com/x"}`))
		}
	})
	ctx := context.Background()

	nodes, err := c.Nodes(ctx)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, model.ID("1"), nodes[0].ID)

	services, err := c.Services(ctx)
	require.NoError(t, err)
	require.Len(t, services[0].Environments, 1)
	assert.Equal(t, model.Port("3000"), services[0].Environments[0].Port)

	tunnels, err := c.Tunnels(ctx)
	require.NoError(t, err)
	assert.Equal(t, "dev.example.com -> localhost:8080", tunnels[0].Label())

	creds, err := c.Credentials(ctx)
	require.NoError(t, err)
	assert.Equal(t, "https://hook.example.com/x", creds.WebhookURL)

	for _, h := range *hits {
		assert.Equal(t, "Bearer tok", h.header.Get("Authorization"))
		_, err := uuid.Parse(h.header.Get("X-Request-ID"))
		assert.NoError(t, err)
	}
}

func TestClient_WritesAndPaths(t *testing.T) {
	c, hits := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	ctx := context.Background()

	require.NoError(t, c.CreateTunnel(ctx, model.TunnelRequest{Port: "3000", Domain: "d.example.com", VPNIP: "192.168.202.9"}))
	require.NoError(t, c.DeleteTunnel(ctx, "9"))
	require.NoError(t, c.DeleteService(ctx, "s1"))
	require.NoError(t, c.CreateEnvironment(ctx, "s1", model.EnvironmentRequest{Name: "dev", Branch: "dev", Port: "80", Domain: "dev.example.com"}))
	require.NoError(t, c.DeleteEnvironment(ctx, "s1", "feature/x"))

	got := *hits
	require.Len(t, got, 5)
	assert.Equal(t, "POST", got[0].method)
	assert.JSONEq(t, `{"port":"3000","domain":"d.example.com","vpn_ip":"192.168.202.9"}`, got[0].body)
	assert.Equal(t, "application/json", got[0].header.Get("Content-Type"))
	assert.Equal(t, "DELETE /tunnel/9", got[1].method+" "+got[1].path)
	assert.Equal(t, "DELETE /service/s1", got[2].method+" "+got[2].path)
	assert.Equal(t, "/environment/s1", got[3].path)
	assert.Equal(t, "/environment/s1/feature%2Fx", got[4].path)
}

func TestClient_RemoteErrors(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/service":
			w.WriteHeader(http.StatusConflict)
			_ = json.NewEncoder(w).Encode(map[string]string{"msg": "domain already in use"})
		case "/tunnel":
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte("boom"))
		case "/vpn_node":
			_, _ = w.Write([]byte(`{"msg":"name taken"}`))
		}
	})
	ctx := context.Background()

	err := c.CreateService(ctx, model.ServiceRequest{GitURL: "x"})
	var re *RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, http.StatusConflict, re.Status)
	assert.Equal(t, "domain already in use", Message(err))

	_, err = c.Tunnels(ctx)
	assert.Equal(t, "request failed (HTTP 500)", Message(err))

	_, err = c.CreateNode(ctx, model.NodeRequest{Name: "web-1", Type: model.NodeTypeServer})
	assert.Equal(t, "name taken", Message(err))
}

func TestClient_CreateNode(t *testing.T) {
	c, hits := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"zip_url":"https://example.com/join/web-1.zip"}`))
	})
	inv, err := c.CreateNode(context.Background(), model.NodeRequest{Name: "web-1", Type: model.NodeTypeServer})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/join/web-1.zip", inv.ZipURL)
	assert.JSONEq(t, `{"name":"web-1","type":"server"}`, (*hits)[0].body)
}

func TestMessage_Transport(t *testing.T) {
	cfg := config.Default()
	cfg.APIURL = "http://127.0.0.1:1"
	cfg.APITimeout = time.Second
	_, err := New(cfg, nil).Nodes(context.Background())
	require.Error(t, err)
	assert.Contains(t, Message(err), "could not reach the LocalCloud API: ")

	assert.Equal(t, "plain", Message(errors.New("plain")))
	assert.Empty(t, Message(nil))
}
