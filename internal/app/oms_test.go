package app

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"oms_go/internal/event"
	"oms_go/internal/infra"
)

func newSnapshotServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v5/order/realtime":
			fmt.Fprint(w, `{"retCode":0,"retMsg":"OK","result":{"list":[
				{"orderLinkId":"snap-1","orderId":"ex-1","symbol":"BTCUSDT","side":"Buy",
				 "orderType":"Limit","price":"100","qty":"1","orderStatus":"New","updatedTime":"1000"}
			]}}`)
		case "/v5/position/list":
			fmt.Fprint(w, `{"retCode":0,"retMsg":"OK","result":{"list":[
				{"symbol":"BTCUSDT","side":"Sell","size":"0.5"}
			]}}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestOMS(t *testing.T, restURL string) *OMS {
	t.Helper()
	cfg := &infra.Config{}
	b := &cfg.API.Bybit
	b.RestURL = restURL
	b.Symbol = "BTCUSDT"
	b.Category = "linear"
	b.APIRate = 10
	return NewOMS(cfg, nil)
}

func TestOMS_RequestSnapshots(t *testing.T) {
	srv := newSnapshotServer(t)
	o := newTestOMS(t, srv.URL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go o.rec.Run(ctx)

	o.requestSnapshots(ctx)

	deadline := time.After(2 * time.Second)
	for {
		if o.Position().String() == "-0.5" {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("position snapshot not applied, position=%s", o.Position())
		case <-time.After(5 * time.Millisecond):
		}
	}

	if _, ok := o.ActiveOrders()["snap-1"]; !ok {
		t.Error("order snapshot not reconciled into the active set")
	}
}

func TestOMS_RequestSnapshotsHonorsCancel(t *testing.T) {
	srv := newSnapshotServer(t)
	o := newTestOMS(t, srv.URL)

	// Nobody drains the inbox and it is packed full, so the snapshot
	// events cannot be delivered; cancellation must still end the call.
	for i := 0; i < cap(o.rec.Inbox()); i++ {
		o.rec.Inbox() <- &event.PositionUpdateEvent{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		o.requestSnapshots(ctx)
	}()

	time.Sleep(200 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("requestSnapshots still blocked after cancellation")
	}
}
