package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/okian/rapport/internal/adapters/repository"
	"github.com/okian/rapport/internal/domain/model"
)

// DefaultURL is used when neither --url nor RAPPORT_URL is set.
const DefaultURL = "http://localhost:9080"

type rootOptions struct {
	url     string
	timeout time.Duration
	output  string
}

func (o *rootOptions) client() *Client {
	return NewClient(o.url, o.timeout)
}

func (o *rootOptions) renderer(cmd *cobra.Command) (*Renderer, error) {
	return NewRenderer(cmd.OutOrStdout(), o.output)
}

// NewRootCommand builds the rapportctl command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "rapportctl",
		Short:         "Command line client for the rapport engine",
		Long:          "rapportctl submits contribution events, reads reputation and standings, and runs matching and opportunity ranking against a rapport server.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	url := os.Getenv("RAPPORT_URL")
	if url == "" {
		url = DefaultURL
	}
	pf := root.PersistentFlags()
	pf.StringVar(&opts.url, "url", url, "Base URL of the rapport server (env RAPPORT_URL)")
	pf.DurationVar(&opts.timeout, "timeout", 10*time.Second, "Per-request timeout")
	pf.StringVarP(&opts.output, "output", "o", FormatTable, "Output format: table or json")

	root.AddCommand(
		newSeedCommand(opts),
		newEventCommand(opts),
		newReputationCommand(opts),
		newStandingsCommand(opts),
		newMatchCommand(opts),
		newRankCommand(opts),
	)
	return root
}

// Execute runs the command tree with os.Args.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

func newSeedCommand(opts *rootOptions) *cobra.Command {
	var (
		catalog  string
		events   int
		subjects int
		workers  int
		seed     uint64
		maxAge   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Upload a catalog file and a synthetic event load",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := opts.renderer(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			c := opts.client()
			if err := c.Health(ctx); err != nil {
				return fmt.Errorf("server not healthy: %w", err)
			}

			var counts repository.CatalogCounts
			if catalog != "" {
				data, err := repository.LoadCatalogFile(catalog)
				if err != nil {
					return err
				}
				if counts, err = SeedCatalog(ctx, c, data, workers); err != nil {
					return err
				}
			}
			load := GenerateEvents(GeneratorConfig{
				Events:   events,
				Subjects: subjects,
				MaxAge:   maxAge,
				Seed:     seed,
			})
			sub, err := SubmitEvents(ctx, c, load, workers)
			if err != nil {
				return fmt.Errorf("submit events: %w", err)
			}
			return r.Seeded(counts, sub)
		},
	}
	f := cmd.Flags()
	f.StringVar(&catalog, "catalog", "", "YAML catalog file to upload")
	f.IntVar(&events, "events", 1000, "Number of synthetic events")
	f.IntVar(&subjects, "subjects", 50, "Number of distinct subjects")
	f.IntVar(&workers, "workers", 8, "Concurrent requests")
	f.Uint64Var(&seed, "seed", 1, "Generator seed")
	f.DurationVar(&maxAge, "max-age", 180*24*time.Hour, "Spread event times over this window")
	return cmd
}

func newEventCommand(opts *rootOptions) *cobra.Command {
	ev := Event{}
	var meta map[string]string
	cmd := &cobra.Command{
		Use:   "event",
		Short: "Submit one contribution event",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if ev.EventID == "" {
				ev.EventID = uuid.NewString()
			}
			ev.Metadata = meta
			ack, err := opts.client().PostEvent(cmd.Context(), ev)
			if err != nil {
				return err
			}
			status := good.Sprint(ack.Status)
			if ack.Duplicate {
				status = muted.Sprint("duplicate")
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", ev.EventID, status)
			return err
		},
	}
	f := cmd.Flags()
	f.StringVar(&ev.EventID, "id", "", "Event id, generated when empty")
	f.StringVar(&ev.SubjectID, "subject", "", "Subject the event is credited to")
	f.StringVar(&ev.Kind, "kind", string(model.KindCompleteGig), "Event kind")
	f.Int64Var(&ev.Value, "value", 0, "Points, the kind default when zero")
	f.StringVar(&ev.OccurredAt, "at", "", "RFC3339 occurrence time, now when empty")
	f.StringToStringVar(&meta, "meta", nil, "Metadata key=value pairs")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

func newReputationCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reputation SUBJECT...",
		Short: "Show reputation snapshots",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := opts.renderer(cmd)
			if err != nil {
				return err
			}
			c := opts.client()
			if len(args) == 1 {
				snap, err := c.Reputation(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return r.Reputations([]model.ReputationSnapshot{snap})
			}
			snaps, err := c.Reputations(cmd.Context(), args)
			if err != nil {
				return err
			}
			return r.Reputations(snaps)
		},
	}
}

func newStandingsCommand(opts *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "standings [SUBJECT]",
		Short: "Show the leaderboard or one subject's standing",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := opts.renderer(cmd)
			if err != nil {
				return err
			}
			c := opts.client()
			if len(args) == 1 {
				e, err := c.Standing(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return r.Standings([]repository.Entry{e})
			}
			entries, err := c.Standings(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return r.Standings(entries)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "Number of entries")
	return cmd
}

func newMatchCommand(opts *rootOptions) *cobra.Command {
	var (
		p       MatchParams
		weights map[string]string
	)
	cmd := &cobra.Command{
		Use:   "match",
		Short: "Rank candidates for a requester",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := opts.renderer(cmd)
			if err != nil {
				return err
			}
			if p.Weights, err = parseWeights(weights); err != nil {
				return err
			}
			out, err := opts.client().Match(cmd.Context(), p)
			if err != nil {
				return err
			}
			return r.Match(out)
		},
	}
	f := cmd.Flags()
	f.StringVar(&p.RequesterID, "requester", "", "Requester id")
	f.StringVar(&p.Profile, "profile", "", "Scoring profile, the server default when empty")
	f.BoolVar(&p.IncludeAll, "all", false, "Include candidates below the cutoff")
	f.StringToStringVar(&weights, "weight", nil, "Explicit factor=weight pairs")
	f.StringSliceVar(&p.Criteria.Specializations, "specialization", nil, "Keep candidates with one of these specializations")
	f.StringVar(&p.Criteria.Location, "location", "", "Keep candidates in this location")
	f.BoolVar(&p.Criteria.ActiveOnly, "active-only", false, "Drop inactive candidates before scoring")
	f.IntVar(&p.Criteria.Limit, "pool", 0, "Cap the candidate pool")
	_ = cmd.MarkFlagRequired("requester")
	return cmd
}

func newRankCommand(opts *rootOptions) *cobra.Command {
	var p RankParams
	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Rank opportunities for a requester",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := opts.renderer(cmd)
			if err != nil {
				return err
			}
			res, err := opts.client().Rank(cmd.Context(), p)
			if err != nil {
				return err
			}
			return r.Ranked(res)
		},
	}
	f := cmd.Flags()
	f.StringVar(&p.RequesterID, "requester", "", "Requester id")
	f.IntVar(&p.Limit, "limit", 20, "Maximum items")
	f.StringSliceVar(&p.Criteria.Types, "type", nil, "Keep these item types")
	f.StringSliceVar(&p.Criteria.Categories, "category", nil, "Keep these categories")
	f.StringSliceVar(&p.Criteria.Tags, "tag", nil, "Keep items with one of these tags")
	f.BoolVar(&p.Criteria.ActiveOnly, "active-only", false, "Drop inactive items")
	_ = cmd.MarkFlagRequired("requester")
	return cmd
}

func parseWeights(raw map[string]string) (map[model.Factor]float64, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(map[model.Factor]float64, len(raw))
	for k, v := range raw {
		w, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("weight %s: %w", k, err)
		}
		out[model.Factor(strings.ToLower(strings.TrimSpace(k)))] = w
	}
	return out, nil
}
