package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Adithya-Monish-Kumar-K/cinematch/internal/recommender"
	apperrors "github.com/Adithya-Monish-Kumar-K/cinematch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/cinematch/pkg/proto"
	"github.com/Adithya-Monish-Kumar-K/cinematch/pkg/rpc"
)

// RegisterRPC exposes rec on s under the Recommender.* methods. A Recommend
// call without k gets rec.DefaultK().
func RegisterRPC(s *rpc.Server, rec *recommender.Recommender) {
	s.Register(proto.MethodRecommend, func(ctx context.Context, raw json.RawMessage) (any, error) {
		var req proto.RecommendRequest
		if err := decodeParams(raw, &req); err != nil {
			return nil, err
		}
		k := int(req.K)
		if k == 0 {
			k = rec.DefaultK()
		}
		start := time.Now()
		res, err := rec.Recommend(req.Title, k)
		if err != nil {
			return nil, err
		}
		resp := &proto.RecommendResponse{
			Query:      res.Query,
			Match:      res.Match,
			MatchIndex: int32(res.MatchIndex),
			MatchScore: res.MatchScore,
			Items:      make([]proto.Recommendation, len(res.Items)),
			LatencyMs:  ms(time.Since(start)),
		}
		for i, it := range res.Items {
			resp.Items[i] = proto.Recommendation{
				Rank:  int32(it.Rank),
				Index: int32(it.Index),
				Title: it.Title,
				Score: it.Score,
			}
		}
		return resp, nil
	})

	s.Register(proto.MethodResolve, func(ctx context.Context, raw json.RawMessage) (any, error) {
		var req proto.ResolveRequest
		if err := decodeParams(raw, &req); err != nil {
			return nil, err
		}
		match, err := rec.Resolve(req.Title)
		if err != nil {
			return nil, err
		}
		return &proto.ResolveResponse{
			Query: req.Title,
			Match: match.Title,
			Index: int32(match.Index),
			Score: match.Score,
		}, nil
	})

	s.Register(proto.MethodModelInfo, func(ctx context.Context, raw json.RawMessage) (any, error) {
		info := rec.Model().Info()
		return &proto.ModelInfoResponse{
			Items:          int32(info.Items),
			VocabularySize: int32(info.VocabularySize),
			Fingerprint:    info.Fingerprint,
			BuiltAt:        info.BuiltAt.Unix(),
			BuildMs:        info.BuildDuration.Milliseconds(),
		}, nil
	})

	s.Register(proto.MethodHealth, func(ctx context.Context, raw json.RawMessage) (any, error) {
		status := "SERVING"
		if rec.Model().Len() == 0 {
			status = "NOT_SERVING"
		}
		return &proto.HealthCheckResponse{Status: status}, nil
	})
}

func decodeParams(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return fmt.Errorf("%w: missing params", apperrors.ErrInvalidInput)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: decoding params: %v", apperrors.ErrInvalidInput, err)
	}
	return nil
}
