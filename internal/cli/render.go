package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/okian/rapport/internal/adapters/repository"
	service "github.com/okian/rapport/internal/app"
	"github.com/okian/rapport/internal/domain/model"
)

// Output formats.
const (
	FormatTable = "table"
	FormatJSON  = "json"
)

var (
	heading      = color.New(color.FgCyan, color.Bold)
	good         = color.New(color.FgGreen)
	bad          = color.New(color.FgRed, color.Bold)
	muted        = color.New(color.Faint)
	matchFactors = []model.Factor{
		model.FactorSpecialization,
		model.FactorCommunication,
		model.FactorAvailability,
		model.FactorLocation,
		model.FactorCapacity,
		model.FactorTags,
		model.FactorRecency,
		model.FactorReputation,
	}
)

// Renderer writes command results as tables or JSON.
type Renderer struct {
	w      io.Writer
	format string
}

// NewRenderer returns a renderer for format.
func NewRenderer(w io.Writer, format string) (*Renderer, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	switch format {
	case "", FormatTable:
		format = FormatTable
	case FormatJSON:
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
	return &Renderer{w: w, format: format}, nil
}

func (r *Renderer) json(v any) error {
	enc := json.NewEncoder(r.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (r *Renderer) table(header []string, rows [][]string) error {
	table := tablewriter.NewWriter(r.w)
	table.Header(header)
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignLeft
	})
	if err := table.Bulk(rows); err != nil {
		return fmt.Errorf("fill table: %w", err)
	}
	return table.Render()
}

// Reputations renders snapshots.
func (r *Renderer) Reputations(snaps []model.ReputationSnapshot) error {
	if r.format == FormatJSON {
		return r.json(snaps)
	}
	rows := make([][]string, 0, len(snaps))
	for _, s := range snaps {
		status := good.Sprint("ok")
		if !s.Available {
			status = bad.Sprint("unavailable")
		}
		rows = append(rows, []string{
			s.SubjectID,
			score(s.Score),
			strconv.Itoa(s.Level),
			s.Rank,
			score(s.NextLevelThreshold),
			status,
		})
	}
	return r.table([]string{"Subject", "Score", "Level", "Rank", "Next", "Status"}, rows)
}

// Standings renders leaderboard entries.
func (r *Renderer) Standings(entries []repository.Entry) error {
	if r.format == FormatJSON {
		return r.json(entries)
	}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			strconv.Itoa(e.Rank),
			e.SubjectID,
			score(e.Score),
			strconv.Itoa(e.Level),
			e.Label,
		})
	}
	return r.table([]string{"Rank", "Subject", "Score", "Level", "Label"}, rows)
}

// Match renders a match outcome with one column per scored factor.
func (r *Renderer) Match(out service.MatchOutcome) error {
	if r.format == FormatJSON {
		return r.json(out)
	}
	fmt.Fprintf(r.w, "%s %s (profile %s): %d evaluated, %d shortlisted\n",
		heading.Sprint("Matches for"), out.RequesterID, out.Profile, out.Evaluated, out.Shortlisted)

	var factors []model.Factor
	for _, f := range matchFactors {
		for _, res := range out.Results {
			if _, ok := res.PerFactorScores[f]; ok {
				factors = append(factors, f)
				break
			}
		}
	}
	header := []string{"#", "Candidate", "Score"}
	for _, f := range factors {
		header = append(header, string(f))
	}
	header = append(header, "Notes")

	rows := make([][]string, 0, len(out.Results))
	for i, res := range out.Results {
		row := []string{strconv.Itoa(i + 1), res.CandidateID, score(res.OverallScore)}
		for _, f := range factors {
			row = append(row, score(res.PerFactorScores[f]))
		}
		notes := strings.Join(res.Explanation.Strengths, "; ")
		if res.Disqualified {
			row[2] = bad.Sprint("disqualified")
			notes = strings.Join(res.Explanation.Considerations, "; ")
		}
		row = append(row, notes)
		rows = append(rows, row)
	}
	return r.table(header, rows)
}

// Ranked renders ranked opportunities.
func (r *Renderer) Ranked(res RankResult) error {
	if r.format == FormatJSON {
		return r.json(res)
	}
	rows := make([][]string, 0, len(res.Items))
	for i, it := range res.Items {
		tags := append([]string(nil), it.Item.Tags...)
		sort.Strings(tags)
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			it.Item.ID,
			it.Item.Type,
			it.Item.Category,
			strconv.Itoa(it.Relevance),
			score(it.Item.RequiredReputation),
			strings.Join(tags, ","),
		})
	}
	return r.table([]string{"#", "Item", "Type", "Category", "Relevance", "Required", "Tags"}, rows)
}

// Seeded renders the result of a seed run.
func (r *Renderer) Seeded(counts repository.CatalogCounts, sub Submission) error {
	if r.format == FormatJSON {
		return r.json(struct {
			Catalog repository.CatalogCounts `json:"catalog"`
			Events  Submission               `json:"events"`
		}{counts, sub})
	}
	rows := [][]string{
		{"requesters", strconv.Itoa(counts.Requesters)},
		{"candidates", strconv.Itoa(counts.Candidates)},
		{"opportunities", strconv.Itoa(counts.Opportunities)},
		{"interest sets", strconv.Itoa(counts.Interests)},
		{"events accepted", good.Sprint(sub.Accepted)},
		{"events duplicate", muted.Sprint(sub.Duplicate)},
		{"events failed", failures(sub.Failed)},
	}
	return r.table([]string{"Seeded", "Count"}, rows)
}

func failures(n int64) string {
	if n == 0 {
		return muted.Sprint(n)
	}
	return bad.Sprint(n)
}

func score(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
