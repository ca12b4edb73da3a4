package commands

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/cinematch/internal/recommender"
	"github.com/Adithya-Monish-Kumar-K/cinematch/pkg/proto"
	"github.com/Adithya-Monish-Kumar-K/cinematch/pkg/rpc"
)

// remoteFlags selects a running recommender instead of a local model.
type remoteFlags struct {
	addr    string
	timeout time.Duration
}

func (r *remoteFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&r.addr, "remote", "", "Query a recommender RPC address (host:port) instead of a local model")
	cmd.Flags().DurationVar(&r.timeout, "timeout", 10*time.Second, "Timeout for remote calls")
}

func (r *remoteFlags) call(ctx context.Context, method string, params, result any) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	c, err := rpc.Dial(ctx, r.addr)
	if err != nil {
		return err
	}
	defer c.Close()
	return c.Call(ctx, method, params, result)
}

func newRecommendCmd(g *globals) *cobra.Command {
	var (
		k      int
		remote remoteFlags
	)
	cmd := &cobra.Command{
		Use:   "recommend <title>",
		Short: "List the movies most similar to a title",
		Long: `Resolve a (possibly misspelled) title against the catalog and list the
k most similar other movies, best first.

Examples:
  cinematch recommend "Avatar"
  cinematch recommend -k 5 --output json "the dark knight"
  cinematch recommend --remote localhost:9091 "Avatar"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if k == 0 {
				k = g.cfg.Recommend.DefaultK
			}
			var resp proto.RecommendResponse
			if remote.addr != "" {
				req := &proto.RecommendRequest{Title: args[0], K: int32(k)}
				if err := remote.call(contextOf(cmd), proto.MethodRecommend, req, &resp); err != nil {
					return err
				}
			} else {
				m, err := g.loadModel(contextOf(cmd))
				if err != nil {
					return err
				}
				start := time.Now()
				res, err := recommender.New(m, recommender.OptionsFromConfig(g.cfg)).Recommend(args[0], k)
				if err != nil {
					return err
				}
				resp = toProto(res, time.Since(start))
			}
			if g.output == "json" {
				return writeJSON(cmd.OutOrStdout(), &resp)
			}
			return printRecommendations(cmd.OutOrStdout(), &resp)
		},
	}
	cmd.Flags().IntVarP(&k, "k", "k", 0, "Number of recommendations (default from config)")
	remote.bind(cmd)
	return cmd
}

func toProto(res *recommender.Result, took time.Duration) proto.RecommendResponse {
	resp := proto.RecommendResponse{
		Query:      res.Query,
		Match:      res.Match,
		MatchIndex: int32(res.MatchIndex),
		MatchScore: res.MatchScore,
		Items:      make([]proto.Recommendation, len(res.Items)),
		LatencyMs:  float64(took.Microseconds()) / 1000,
	}
	for i, it := range res.Items {
		resp.Items[i] = proto.Recommendation{
			Rank:  int32(it.Rank),
			Index: int32(it.Index),
			Title: it.Title,
			Score: it.Score,
		}
	}
	return resp
}

func printRecommendations(out io.Writer, resp *proto.RecommendResponse) error {
	fmt.Fprintf(out, "Movies like %q (matched %q, %.2f):\n\n", resp.Query, resp.Match, resp.MatchScore)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "RANK\tSCORE\tTITLE\n")
	for _, it := range resp.Items {
		fmt.Fprintf(w, "%d\t%.4f\t%s\n", it.Rank, it.Score, it.Title)
	}
	return w.Flush()
}
