package main

import (
	"bufio"
	"context"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/scrypster/resolver/internal/engine"
	"github.com/scrypster/resolver/internal/logger"
	"github.com/scrypster/resolver/internal/server"
	"github.com/scrypster/resolver/pkg/types"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			resolver, guarded, closer, err := a.openResolver()
			if err != nil {
				return err
			}
			defer closer.Close()

			log := logger.Named("cli")
			err = server.Run(ctx, a.cfg, resolver, guarded, func(addr string) {
				log.Infow("resolver API ready", "url", "http://"+addr, "engine", a.cfg.Storage.Engine)
			})
			if err != nil {
				return err
			}
			log.Infow("stopped")
			return nil
		},
	}
}

type resolveFlags struct {
	scope     string
	types     []string
	threshold float64
	embedding string
}

func (f *resolveFlags) typeFilter() []types.EntityType {
	if len(f.types) == 0 {
		return nil
	}
	out := make([]types.EntityType, 0, len(f.types))
	for _, t := range f.types {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, types.EntityType(t))
		}
	}
	return out
}

func newResolveCmd(a *app) *cobra.Command {
	f := &resolveFlags{}

	cmd := &cobra.Command{
		Use:   "resolve <mention>",
		Short: "Resolve one mention and print the result as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			embedding, err := parseEmbedding(f.embedding)
			if err != nil {
				return err
			}
			req := types.ResolutionRequest{
				Mention:        args[0],
				Scope:          f.scope,
				TypeFilter:     f.typeFilter(),
				FuzzyThreshold: f.threshold,
				Embedding:      embedding,
			}
			return a.withResolver(cmd.Context(), func(ctx context.Context, r *engine.Resolver) error {
				result, err := r.Resolve(ctx, req)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), result)
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.scope, "scope", "s", "", "Tenant scope for glossary aliases")
	flags.StringSliceVarP(&f.types, "type", "t", nil, "Restrict to entity types (repeatable or comma-separated)")
	flags.Float64Var(&f.threshold, "threshold", 0, "Minimum fuzzy similarity (default 0.3)")
	flags.StringVar(&f.embedding, "embedding", "", "Comma-separated query embedding; enables the semantic tier")
	return cmd
}

func newBatchCmd(a *app) *cobra.Command {
	f := &resolveFlags{}

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Resolve mentions read one per line from stdin",
		Long:  "Resolve mentions read one per line from stdin. Prints a JSON array aligned with the input lines; unresolved lines are null.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var mentions []string
			scanner := bufio.NewScanner(cmd.InOrStdin())
			for scanner.Scan() {
				mentions = append(mentions, scanner.Text())
			}
			if err := scanner.Err(); err != nil {
				return errors.Wrap(err, "read mentions")
			}

			return a.withResolver(cmd.Context(), func(ctx context.Context, r *engine.Resolver) error {
				results, err := r.ResolveBatch(ctx, mentions, f.scope, f.typeFilter())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), results)
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.scope, "scope", "s", "", "Tenant scope for glossary aliases")
	flags.StringSliceVarP(&f.types, "type", "t", nil, "Restrict to entity types (repeatable or comma-separated)")
	return cmd
}

func newSuggestCmd(a *app) *cobra.Command {
	var (
		scope     string
		threshold float64
		topK      int
	)

	cmd := &cobra.Command{
		Use:   "suggest <mention>",
		Short: "List glossary aliases similar to a mention",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withResolver(cmd.Context(), func(ctx context.Context, r *engine.Resolver) error {
				suggestions, err := r.FuzzyGlossarySuggest(ctx, args[0], scope, threshold, topK)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), suggestions)
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&scope, "scope", "s", "", "Tenant scope for glossary aliases")
	flags.Float64Var(&threshold, "threshold", 0, "Minimum similarity (default from config)")
	flags.IntVarP(&topK, "top-k", "k", 0, "Maximum suggestions (default from config)")
	return cmd
}

// parseEmbedding parses "0.1,0.2,0.3". An empty string yields nil.
func parseEmbedding(raw string) ([]float32, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	out := make([]float32, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, errors.Wrapf(err, "embedding component %d", i)
		}
		out[i] = float32(v)
	}
	return out, nil
}
