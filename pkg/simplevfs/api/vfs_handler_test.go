package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-vfs/pkg/simplevfs"
	"github.com/tendant/simple-vfs/pkg/simplevfs/api"
	flowmemory "github.com/tendant/simple-vfs/pkg/simplevfs/flow/memory"
	"github.com/tendant/simple-vfs/pkg/simplevfs/repo/memory"
	blobmemory "github.com/tendant/simple-vfs/pkg/simplevfs/storage/memory"
)

func setupServer(t *testing.T) (*httptest.Server, simplevfs.Factory) {
	t.Helper()

	factory, err := simplevfs.New(
		simplevfs.WithStore(memory.New()),
		simplevfs.WithBlobStore("memory", blobmemory.New()),
		simplevfs.WithFlowRunner(flowmemory.New()),
	)
	require.NoError(t, err)

	handler := api.NewVFSHandler(factory)
	server := httptest.NewServer(handler.Routes())
	t.Cleanup(server.Close)
	return server, factory
}

func seedClient(t *testing.T, factory simplevfs.Factory) simplevfs.URN {
	t.Helper()
	ctx := context.Background()

	urn, err := simplevfs.ClientURN("C.1234567812345678")
	require.NoError(t, err)

	obj, err := factory.Create(ctx, urn, simplevfs.KindClient, simplevfs.ModeReadWrite)
	require.NoError(t, err)
	require.NoError(t, obj.SetString(simplevfs.AttrHostname, "host1"))
	require.NoError(t, obj.SetString(simplevfs.AttrSystem, "Linux"))
	require.NoError(t, obj.Close(ctx))
	return urn
}

func seedFile(t *testing.T, factory simplevfs.Factory) simplevfs.URN {
	t.Helper()
	ctx := context.Background()

	urn := simplevfs.URN("aff4:/C.1234567812345678/fs/os/etc/passwd")
	file, err := factory.CreateFile(ctx, urn, simplevfs.ModeReadWrite)
	require.NoError(t, err)
	_, err = file.Write([]byte("root:x:0:0::/root:/bin/bash\n"))
	require.NoError(t, err)
	require.NoError(t, file.Close(ctx))
	return urn
}

func TestGetObject(t *testing.T) {
	server, factory := setupServer(t)
	urn := seedClient(t, factory)

	t.Run("snapshot", func(t *testing.T) {
		resp, err := http.Get(server.URL + "/objects?kind=client&urn=" + url.QueryEscape(string(urn)))
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body api.ObjectResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, string(urn), body.URN)

		values := map[string]string{}
		for _, attr := range body.Attributes {
			values[attr.Name] = string(attr.Value)
		}
		assert.Equal(t, `"host1"`, values[simplevfs.AttrHostname])
		assert.Equal(t, `"Linux"`, values[simplevfs.AttrSystem])
	})

	t.Run("unknown object returns 404", func(t *testing.T) {
		resp, err := http.Get(server.URL + "/objects?kind=client&urn=" + url.QueryEscape("aff4:/C.0000000000000000"))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("malformed urn returns 400", func(t *testing.T) {
		resp, err := http.Get(server.URL + "/objects?urn=not-a-urn")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("malformed as_of returns 400", func(t *testing.T) {
		resp, err := http.Get(server.URL + "/objects?kind=client&urn=" + url.QueryEscape(string(urn)) + "&as_of=yesterday")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestGetHistory(t *testing.T) {
	server, factory := setupServer(t)
	urn := seedClient(t, factory)

	ctx := context.Background()
	obj, err := factory.Open(ctx, urn, simplevfs.KindClient, simplevfs.ModeReadWrite)
	require.NoError(t, err)
	require.NoError(t, obj.SetString(simplevfs.AttrHostname, "host1-renamed"))
	require.NoError(t, obj.Close(ctx))

	t.Run("two versions oldest first", func(t *testing.T) {
		resp, err := http.Get(server.URL + "/objects/history?kind=client&urn=" +
			url.QueryEscape(string(urn)) + "&attr=" + url.QueryEscape(simplevfs.AttrHostname))
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body api.HistoryResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		require.Len(t, body.Versions, 2)
		assert.Equal(t, `"host1"`, string(body.Versions[0].Value))
		assert.Equal(t, `"host1-renamed"`, string(body.Versions[1].Value))
	})

	t.Run("missing attr returns 400", func(t *testing.T) {
		resp, err := http.Get(server.URL + "/objects/history?kind=client&urn=" + url.QueryEscape(string(urn)))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("unknown attribute returns 400", func(t *testing.T) {
		resp, err := http.Get(server.URL + "/objects/history?kind=client&urn=" +
			url.QueryEscape(string(urn)) + "&attr=bogus")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestUpdateObject(t *testing.T) {
	server, factory := setupServer(t)
	urn := seedFile(t, factory)

	first := requestUpdate(t, server, urn)
	assert.NotEmpty(t, first.FlowRef)

	t.Run("repeat update returns the running flow", func(t *testing.T) {
		second := requestUpdate(t, server, urn)
		assert.Equal(t, first.FlowRef, second.FlowRef)
	})
}

func requestUpdate(t *testing.T, server *httptest.Server, urn simplevfs.URN) api.UpdateResponse {
	t.Helper()
	resp, err := http.Post(server.URL+"/objects/update?urn="+url.QueryEscape(string(urn)), "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var body api.UpdateResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestGetClientSummary(t *testing.T) {
	server, factory := setupServer(t)
	seedClient(t, factory)

	t.Run("summary", func(t *testing.T) {
		resp, err := http.Get(server.URL + "/clients/C.1234567812345678/summary")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var summary simplevfs.ClientSummary
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&summary))
		assert.Equal(t, "host1", summary.Hostname)
		assert.Equal(t, "Linux", summary.System)
		assert.False(t, summary.Timestamp.IsZero())
	})

	t.Run("unknown client returns 404", func(t *testing.T) {
		resp, err := http.Get(server.URL + "/clients/C.0000000000000000/summary")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestResolvePath(t *testing.T) {
	server, _ := setupServer(t)

	t.Run("nested pathspec", func(t *testing.T) {
		body := `{
			"path": "\\\\.\\Volume{1234}\\",
			"pathtype": "os",
			"mount_point": "/c:/",
			"nested_path": {"path": "/windows", "pathtype": "tsk"}
		}`
		resp, err := http.Post(server.URL+"/clients/C.1234567812345678/vfs-path",
			"application/json", strings.NewReader(body))
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var result api.ResolvePathResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
		assert.Equal(t, `aff4:/C.1234567812345678/fs/tsk/\\.\Volume{1234}\//windows`, result.URN)
	})

	t.Run("invalid body returns 400", func(t *testing.T) {
		resp, err := http.Post(server.URL+"/clients/C.1234567812345678/vfs-path",
			"application/json", strings.NewReader("{"))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}
