package chainabstraction

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"chainhub.backend/internal/domain/entities"
	domainerrors "chainhub.backend/internal/domain/errors"
	"chainhub.backend/internal/domain/providers"
)

func newTestClient(handler http.Handler) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	client := NewClient(Config{
		BaseURL:     srv.URL,
		APIKey:      "test-key",
		CallTimeout: 5 * time.Second,
	})
	return client, srv
}

func TestCreateCluster(t *testing.T) {
	var gotAuth string
	var gotBody map[string]interface{}
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/clusters", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Write([]byte(`{"clusterId":"cluster-1"}`))
	}))
	defer srv.Close()

	clusterID, err := client.CreateCluster(context.Background(), []providers.AccountDescriptor{
		{Address: "0x1111111111111111111111111111111111111111", ChainID: 1},
	})
	require.NoError(t, err)
	require.Equal(t, "cluster-1", clusterID)
	require.Equal(t, "Bearer test-key", gotAuth)
	require.Len(t, gotBody["accounts"], 1)
}

func TestCreateCluster_EmptyClusterID(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, err := client.CreateCluster(context.Background(), nil)
	require.ErrorIs(t, err, domainerrors.ErrProvider)
}

func TestPost_NonSuccessStatus(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := client.GetVirtualSessionEndpoint(context.Background(), "cluster-1", 1, "0xaddr")
	require.ErrorIs(t, err, domainerrors.ErrProvider)

	var appErr *domainerrors.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, http.StatusBadGateway, appErr.Code)
}

func TestPost_MalformedResponse(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{not json`))
	}))
	defer srv.Close()

	_, err := client.GetVirtualSessionEndpoint(context.Background(), "cluster-1", 1, "0xaddr")
	require.Error(t, err)
	require.Contains(t, err.Error(), "malformed")
}

func TestBuildTransferOps_PreservesRawPayload(t *testing.T) {
	payload := `{"status":"success","operationSetId":"set-1","operations":[{"index":0,"chainId":1,"to":"0xdest","data":"0xa9059cbb"}]}`
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/operations/transfer", r.URL.Path)
		w.Write([]byte(payload))
	}))
	defer srv.Close()

	result, err := client.BuildTransferOps(context.Background(), &providers.BuildTransferRequest{
		ClusterID: "cluster-1",
		ChainID:   1,
		Amount:    "100",
	})
	require.NoError(t, err)
	require.Equal(t, "success", result.Status)
	require.Equal(t, "set-1", result.OperationSetID)
	require.Len(t, result.Operations, 1)
	require.JSONEq(t, payload, string(result.Raw))
}

func TestResolveStandardTokenIDs_CountMismatch(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"tokenIds":["std:1:aaa"]}`))
	}))
	defer srv.Close()

	_, err := client.ResolveStandardTokenIDs(context.Background(), []entities.TokenRef{
		{ChainID: 1, Address: "0xaaa"},
		{ChainID: 137, Address: "0xbbb"},
	})
	require.ErrorIs(t, err, domainerrors.ErrProvider)
}

func TestSubmit_RejectionIsSubmissionFailure(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"success":false,"operationSetId":"set-1"}`))
	}))
	defer srv.Close()

	result, err := client.Submit(context.Background(), "cluster-1", "set-1", nil)
	require.ErrorIs(t, err, domainerrors.ErrSubmissionFailed)
	require.NotNil(t, result)
	require.False(t, result.Success)
}

func TestSubmit_Accepted(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "set-1", body["operationSetId"])
		w.Write([]byte(`{"success":true,"operationSetId":"set-1"}`))
	}))
	defer srv.Close()

	result, err := client.Submit(context.Background(), "cluster-1", "set-1", []entities.SignedOperation{
		{OperationSetID: "set-1", SignedPayload: "0xsig"},
	})
	require.NoError(t, err)
	require.True(t, result.Success)
}

func TestSubscriber_DeliversUntilTerminal(t *testing.T) {
	upgrader := websocket.Upgrader{}
	pushes := []providers.StatusUpdate{
		{Status: providers.UpdateStatusPending},
		{Status: providers.UpdateStatusCompleted, Transactions: []providers.TransactionStatus{
			{ChainID: 1, Hash: "0xhash", Status: "confirmed"},
		}},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "set-1", r.URL.Query().Get("operationSetId"))
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		for _, push := range pushes {
			require.NoError(t, conn.WriteJSON(push))
		}
		// Keep the connection open; the client side stops after the terminal push.
		time.Sleep(100 * time.Millisecond)
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	sub := newStatusSubscriber(wsURL, "")
	defer sub.close()

	received := make(chan providers.StatusUpdate, 4)
	err := sub.subscribe(context.Background(), "set-1", func(update providers.StatusUpdate) {
		received <- update
	})
	require.NoError(t, err)

	first := <-received
	require.Equal(t, providers.UpdateStatusPending, first.Status)
	require.Equal(t, "set-1", first.OperationSetID)

	second := <-received
	require.Equal(t, providers.UpdateStatusCompleted, second.Status)
	require.Len(t, second.Transactions, 1)

	// The read loop exits on the terminal status and unregisters itself.
	require.Eventually(t, func() bool {
		sub.mu.Lock()
		defer sub.mu.Unlock()
		return len(sub.conns) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSubscriber_DialFailure(t *testing.T) {
	sub := newStatusSubscriber("ws://127.0.0.1:1/ws", "")
	defer sub.close()

	err := sub.subscribe(context.Background(), "set-1", func(providers.StatusUpdate) {})
	require.Error(t, err)
}
