package handler

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/cinematch/internal/catalog"
	apperrors "github.com/Adithya-Monish-Kumar-K/cinematch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/cinematch/pkg/proto"
	"github.com/Adithya-Monish-Kumar-K/cinematch/pkg/rpc"
)

func dialRPC(t *testing.T, items catalog.Items) *rpc.Client {
	t.Helper()
	s := rpc.NewServer()
	RegisterRPC(s, newRecommender(t, items))
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	go s.Serve(ln)
	t.Cleanup(s.Stop)

	c, err := rpc.Dial(context.Background(), ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestRPCRecommend(t *testing.T) {
	c := dialRPC(t, threeItems())
	var resp proto.RecommendResponse
	err := c.Call(context.Background(), proto.MethodRecommend, &proto.RecommendRequest{Title: "Alpha", K: 2}, &resp)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Match != "Alpha" || len(resp.Items) != 2 || resp.Items[0].Title != "Beta" || resp.Items[0].Rank != 1 {
		t.Errorf("response = %+v", resp)
	}
}

func TestRPCRecommendDefaultK(t *testing.T) {
	c := dialRPC(t, threeItems())
	var resp proto.RecommendResponse
	err := c.Call(context.Background(), proto.MethodRecommend, map[string]string{"title": "Alpha"}, &resp)
	if err != nil {
		t.Fatalf("Call() without k error = %v", err)
	}
	if len(resp.Items) != 2 {
		t.Errorf("items = %d, want 2", len(resp.Items))
	}
}

func TestRPCErrors(t *testing.T) {
	c := dialRPC(t, threeItems())
	tests := []struct {
		name   string
		method string
		params any
		want   error
	}{
		{"no match", proto.MethodRecommend, &proto.RecommendRequest{Title: "zzzzzz", K: 2}, apperrors.ErrNoMatch},
		{"negative k", proto.MethodRecommend, &proto.RecommendRequest{Title: "Alpha", K: -1}, apperrors.ErrInvalidInput},
		{"k over max", proto.MethodRecommend, &proto.RecommendRequest{Title: "Alpha", K: 6}, apperrors.ErrInvalidInput},
		{"missing params", proto.MethodResolve, nil, apperrors.ErrInvalidInput},
		{"resolve no match", proto.MethodResolve, &proto.ResolveRequest{Title: "qqqqqqq"}, apperrors.ErrNoMatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Call(context.Background(), tt.method, tt.params, nil)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestRPCResolveAndInfo(t *testing.T) {
	c := dialRPC(t, threeItems())
	var res proto.ResolveResponse
	if err := c.Call(context.Background(), proto.MethodResolve, &proto.ResolveRequest{Title: "Bet"}, &res); err != nil {
		t.Fatal(err)
	}
	if res.Match != "Beta" || res.Index != 1 {
		t.Errorf("resolve = %+v", res)
	}

	var info proto.ModelInfoResponse
	if err := c.Call(context.Background(), proto.MethodModelInfo, struct{}{}, &info); err != nil {
		t.Fatal(err)
	}
	if info.Items != 3 || info.Fingerprint == "" {
		t.Errorf("info = %+v", info)
	}

	var health proto.HealthCheckResponse
	if err := c.Call(context.Background(), proto.MethodHealth, struct{}{}, &health); err != nil || health.Status != "SERVING" {
		t.Errorf("health = %+v, %v", health, err)
	}
}
