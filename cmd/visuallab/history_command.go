package main

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"visuallab/internal/api"
	"visuallab/internal/journal"
	"visuallab/internal/workflow"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded workflow operations",
		Long: "List recorded workflow operations, newest first.\n\n" +
			"Reads through the daemon when one is running, otherwise opens the journal directly.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := loadHistory(cmd.Context(), ctx, limit)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, resp)
			}
			out := cmd.OutOrStdout()
			fmt.Fprint(out, renderHistory(resp.Operations))
			if line := formatStats(resp.Stats); line != "" {
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", journal.DefaultListLimit, "Maximum entries to show")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output entries as JSON")

	cmd.AddCommand(newHistoryClearCommand(ctx))
	return cmd
}

func newHistoryClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove all recorded operations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			removed, err := clearHistory(cmd.Context(), ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d journal entries\n", removed)
			return nil
		},
	}
}

func loadHistory(runCtx context.Context, ctx *commandContext, limit int) (api.HistoryResponse, error) {
	client, err := ctx.apiClient()
	if err == nil {
		resp, callErr := client.History(runCtx, limit)
		if callErr == nil {
			return resp, nil
		}
		if !api.IsUnavailable(callErr) {
			return api.HistoryResponse{}, callErr
		}
	} else if !api.IsUnavailable(err) {
		return api.HistoryResponse{}, err
	}

	store, err := openJournal(ctx)
	if err != nil {
		return api.HistoryResponse{}, err
	}
	defer store.Close()

	ops, err := store.List(runCtx, limit)
	if err != nil {
		return api.HistoryResponse{}, err
	}
	stats, err := store.Stats(runCtx)
	if err != nil {
		return api.HistoryResponse{}, err
	}
	resp := api.HistoryResponse{Operations: ops, Stats: make(map[string]int, len(stats))}
	if resp.Operations == nil {
		resp.Operations = []workflow.Operation{}
	}
	for outcome, count := range stats {
		resp.Stats[string(outcome)] = count
	}
	return resp, nil
}

func clearHistory(runCtx context.Context, ctx *commandContext) (int64, error) {
	client, err := ctx.apiClient()
	if err == nil {
		resp, callErr := client.ClearHistory(runCtx)
		if callErr == nil {
			return resp.Removed, nil
		}
		if !api.IsUnavailable(callErr) {
			return 0, callErr
		}
	} else if !api.IsUnavailable(err) {
		return 0, err
	}

	store, err := openJournal(ctx)
	if err != nil {
		return 0, err
	}
	defer store.Close()
	return store.Clear(runCtx)
}

func openJournal(ctx *commandContext) (*journal.Store, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	store, err := journal.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	return store, nil
}

func formatStats(stats map[string]int) string {
	if len(stats) == 0 {
		return ""
	}
	keys := make([]string, 0, len(stats))
	for key := range stats {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, key := range keys {
		parts[i] = fmt.Sprintf("%s %d", key, stats[key])
	}
	return "Totals: " + strings.Join(parts, ", ")
}
