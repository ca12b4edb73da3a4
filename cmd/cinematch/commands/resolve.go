package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/cinematch/internal/recommender"
	"github.com/Adithya-Monish-Kumar-K/cinematch/pkg/proto"
)

func newResolveCmd(g *globals) *cobra.Command {
	var remote remoteFlags
	cmd := &cobra.Command{
		Use:   "resolve <title>",
		Short: "Show which catalog title a query resolves to",
		Long: `Fuzzy-match a query against the catalog titles and print the closest
title with its similarity ratio. Fails when nothing reaches the configured
resolver threshold.

Examples:
  cinematch resolve "avatr"
  cinematch resolve --output json "the dark knigt"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp proto.ResolveResponse
			if remote.addr != "" {
				if err := remote.call(contextOf(cmd), proto.MethodResolve, &proto.ResolveRequest{Title: args[0]}, &resp); err != nil {
					return err
				}
			} else {
				m, err := g.loadModel(contextOf(cmd))
				if err != nil {
					return err
				}
				match, err := recommender.New(m, recommender.OptionsFromConfig(g.cfg)).Resolve(args[0])
				if err != nil {
					return err
				}
				resp = proto.ResolveResponse{
					Query: args[0],
					Match: match.Title,
					Index: int32(match.Index),
					Score: match.Score,
				}
			}
			if g.output == "json" {
				return writeJSON(cmd.OutOrStdout(), &resp)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t(index %d, ratio %.3f)\n", resp.Match, resp.Index, resp.Score)
			return nil
		},
	}
	remote.bind(cmd)
	return cmd
}
