package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/angariumd/dsclient/internal/catalog"
	"github.com/angariumd/dsclient/internal/config"
	"github.com/angariumd/dsclient/internal/models"
	"github.com/angariumd/dsclient/internal/resource"
	"github.com/angariumd/dsclient/internal/scheduler"
)

// result is what one policy decided for every job of the snapshot.
type result struct {
	policy    string
	decisions []models.Placement
	queries   int
	err       error
}

func main() {
	var (
		catalogPath string
		algorithms  []string
	)
	rootCmd := &cobra.Command{
		Use:          "dseval <snapshot.yaml>",
		Short:        "Compare scheduling algorithms offline against a recorded server state",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return evaluate(cmd.OutOrStdout(), catalogPath, args[0], algorithms)
		},
	}
	rootCmd.Flags().StringVar(&catalogPath, "catalog", config.DefaultCatalogPath, "System description (.xml or .yaml)")
	rootCmd.Flags().StringSliceVarP(&algorithms, "algorithms", "a", []string{"atl", "ff", "bf", "wf"}, "Algorithms to compare")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func evaluate(out io.Writer, catalogPath, snapshotPath string, algorithms []string) error {
	cat, err := catalog.Load(catalogPath)
	if err != nil {
		return err
	}
	snap, err := resource.LoadSnapshot(snapshotPath)
	if err != nil {
		return err
	}

	policies := make([]scheduler.Policy, 0, len(algorithms))
	for _, name := range algorithms {
		p, err := scheduler.New(name)
		if err != nil {
			return err
		}
		policies = append(policies, p)
	}

	results := run(context.Background(), cat, snap, policies)
	for _, r := range results {
		if r.err != nil {
			return errors.Wrapf(r.err, "algorithm %s", r.policy)
		}
	}
	return report(out, snap.Jobs, results)
}

// run evaluates every policy on its own worker. Each worker gets a private
// copy of the snapshot state.
func run(ctx context.Context, cat *catalog.Catalog, snap *resource.Snapshot, policies []scheduler.Policy) []result {
	results := make([]result, len(policies))
	var wg sync.WaitGroup
	for i, p := range policies {
		wg.Add(1)
		go func(i int, p scheduler.Policy) {
			defer wg.Done()
			results[i] = decideAll(ctx, cat, snap, p)
		}(i, p)
	}
	wg.Wait()
	return results
}

func decideAll(ctx context.Context, cat *catalog.Catalog, snap *resource.Snapshot, p scheduler.Policy) result {
	q := snap.Querier()
	r := result{policy: p.Name()}
	for _, job := range snap.Jobs {
		placement, err := p.Decide(ctx, job, cat, q)
		if err != nil {
			r.err = err
			return r
		}
		r.decisions = append(r.decisions, placement)
	}
	r.queries = len(q.Queries)
	return r
}

func report(out io.Writer, jobs []models.Job, results []result) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	header := []string{"JOB", "CORES", "MEMORY", "DISK"}
	for _, r := range results {
		header = append(header, strings.ToUpper(r.policy))
	}
	fmt.Fprintln(w, strings.Join(header, "\t"))

	for i, j := range jobs {
		row := []string{fmt.Sprint(j.ID), fmt.Sprint(j.Cores), fmt.Sprint(j.Memory), fmt.Sprint(j.Disk)}
		for _, r := range results {
			row = append(row, r.decisions[i].String())
		}
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}

	queries := []string{"QUERIES", "", "", ""}
	for _, r := range results {
		queries = append(queries, fmt.Sprint(r.queries))
	}
	fmt.Fprintln(w, strings.Join(queries, "\t"))
	return w.Flush()
}
