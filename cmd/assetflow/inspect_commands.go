package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"assetflow/internal/api"
	"assetflow/internal/config"
	"assetflow/internal/logging"
	"assetflow/internal/services"
	"assetflow/internal/store"
	"assetflow/internal/versions"
)

func newLineageCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "lineage <group-key>",
		Short: "List every version of an asset group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, st *store.Store) error {
				graph := versions.NewGraph(st, logging.NewNop())
				lineage, err := graph.Lineage(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if asJSON {
					resp := api.VersionListResponse{AssetGroupKey: args[0], Versions: api.FromVersions(lineage)}
					if len(lineage) > 0 {
						resp.AssetGroupKey = lineage[0].GroupKey
					}
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				if len(lineage) == 0 {
					fmt.Fprintln(out, "No versions recorded for this group")
					return nil
				}
				rows := make([][]string, 0, len(lineage))
				for _, v := range lineage {
					rows = append(rows, []string{
						strconv.Itoa(v.VersionNumber),
						v.ID,
						string(v.Kind),
						string(v.Status),
						shortParent(v.ParentID),
						v.AssignedTo,
						yesNo(v.IsPublished),
					})
				}
				fmt.Fprintln(out, renderTable(out,
					[]string{"#", "Version", "Kind", "Status", "Parent", "Assignee", "Published"},
					rows,
					[]columnAlignment{alignRight},
				))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <version-id>",
		Short: "Show one version with its allowed actions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, st *store.Store) error {
				version, err := loadVersion(cmd.Context(), st, args[0])
				if err != nil {
					return err
				}
				view := api.FromVersion(version)
				if asJSON {
					return writeJSON(cmd, view)
				}
				rows := [][]string{
					{"Group", view.AssetGroupKey},
					{"Version", strconv.Itoa(view.VersionNumber)},
					{"Kind", view.VersionKind},
					{"Status", view.WorkflowStatus},
					{"Parent", view.ParentVersionID},
					{"File", view.Filename},
					{"Storage key", view.StorageKey},
					{"Assignee", view.AssignedTo},
					{"Approved by", view.ApprovedBy},
					{"Rejection", view.RejectionReason},
					{"Published", yesNo(view.IsPublished)},
					{"Processing requested", view.ProcessingRequestedAt},
					{"Allowed actions", strings.Join(view.AllowedActions, ", ")},
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, renderTable(out, []string{"Field", "Value"}, rows, nil))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "history <version-id>",
		Short: "List notification dispatches for a version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, st *store.Store) error {
				if _, err := loadVersion(cmd.Context(), st, args[0]); err != nil {
					return err
				}
				records, err := st.ListNotifications(cmd.Context(), args[0])
				if err != nil {
					return fmt.Errorf("list notifications: %w", err)
				}
				views := api.FromNotifications(records)
				if asJSON {
					return writeJSON(cmd, api.NotificationListResponse{Notifications: views})
				}
				out := cmd.OutOrStdout()
				if len(views) == 0 {
					fmt.Fprintln(out, "No notifications recorded")
					return nil
				}
				rows := make([][]string, 0, len(views))
				for _, rec := range views {
					rows = append(rows, []string{rec.SentAt, rec.EventType, rec.DeliveryStatus, strings.Join(rec.Recipients, ", "), rec.Error})
				}
				fmt.Fprintln(out, renderTable(out, []string{"Sent", "Event", "Status", "Recipients", "Error"}, rows, nil))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func newAuditCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "audit <version-id>",
		Short: "Show the workflow audit trail of a version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, st *store.Store) error {
				if _, err := loadVersion(cmd.Context(), st, args[0]); err != nil {
					return err
				}
				events, err := st.ListAuditEvents(cmd.Context(), args[0])
				if err != nil {
					return fmt.Errorf("list audit events: %w", err)
				}
				views := api.FromAuditEvents(events)
				if asJSON {
					return writeJSON(cmd, api.AuditListResponse{Events: views})
				}
				rows := make([][]string, 0, len(views))
				for _, ev := range views {
					rows = append(rows, []string{ev.At, ev.Action, ev.FromStatus, ev.ToStatus, ev.Actor, ev.Notes})
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, renderTable(out, []string{"At", "Action", "From", "To", "Actor", "Notes"}, rows, nil))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func loadVersion(ctx context.Context, st *store.Store, id string) (*store.AssetVersion, error) {
	version, err := versions.NewGraph(st, logging.NewNop()).Get(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, services.ErrVersionNotFound) {
			return nil, fmt.Errorf("version %s not found", id)
		}
		return nil, err
	}
	return version, nil
}

func shortParent(id string) string {
	if id == "" {
		return "-"
	}
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
