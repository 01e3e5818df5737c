package mirrornode

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var knownAddress = common.HexToAddress("0x00000000000000000000000000000000000004d2")

func newMirror(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		path := strings.ToLower(r.URL.Path)
		switch {
		case path == "/api/v1/accounts/"+strings.ToLower(knownAddress.Hex()):
			fmt.Fprintf(w, `{"account":"0.0.1234","evm_address":"%s","deleted":false,"balance":{"balance":500,"timestamp":"1.0"}}`, strings.ToLower(knownAddress.Hex()))
		case strings.HasSuffix(path, "0000000000000000000000000000000000000bad"):
			fmt.Fprint(w, `{"account":"not-an-id"}`)
		case strings.HasSuffix(path, "00000000000000000000000000000000000000e5"):
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprint(w, `{"_status":{"messages":[{"message":"maintenance"}]}}`)
		default:
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"_status":{"messages":[{"message":"Not found"}]}}`)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestResolveAccountID_CachesResult(t *testing.T) {
	var hits atomic.Int32
	srv := newMirror(t, &hits)
	c := NewClient(srv.URL+"/", time.Second, time.Minute, zap.NewNop())

	id, err := c.ResolveAccountID(context.Background(), knownAddress)
	require.NoError(t, err)
	assert.Equal(t, "0.0.1234", id)

	id, err = c.ResolveAccountID(context.Background(), knownAddress)
	require.NoError(t, err)
	assert.Equal(t, "0.0.1234", id)
	assert.Equal(t, int32(1), hits.Load())
}

func TestResolveAccountID_Errors(t *testing.T) {
	var hits atomic.Int32
	srv := newMirror(t, &hits)
	c := NewClient(srv.URL, time.Second, time.Minute, zap.NewNop())
	ctx := context.Background()

	_, err := c.ResolveAccountID(ctx, common.HexToAddress("0x0000000000000000000000000000000000000001"))
	assert.ErrorIs(t, err, ErrAccountNotFound)

	_, err = c.ResolveAccountID(ctx, common.HexToAddress("0x0000000000000000000000000000000000000bad"))
	assert.ErrorContains(t, err, "malformed account id")

	_, err = c.ResolveAccountID(ctx, common.HexToAddress("0x00000000000000000000000000000000000000e5"))
	assert.ErrorContains(t, err, "maintenance")
}

func TestGetAccount(t *testing.T) {
	var hits atomic.Int32
	srv := newMirror(t, &hits)
	c := NewClient(srv.URL, time.Second, time.Minute, zap.NewNop())

	info, err := c.GetAccount(context.Background(), knownAddress)
	require.NoError(t, err)
	assert.Equal(t, "0.0.1234", info.Account)
	require.NotNil(t, info.Balance)
	assert.Equal(t, int64(500), info.Balance.Balance)
}
