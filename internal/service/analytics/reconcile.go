package analytics

import (
	"context"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/kapu/channel-ranking-go/internal/domain"
	"github.com/kapu/channel-ranking-go/pkg/errors"
)

type ReconcileIssueKind string

const (
	// IssueMissingSecondary: a primary lists an id that no longer resolves.
	IssueMissingSecondary ReconcileIssueKind = "missing_secondary"
	// IssueDuplicateSecondary: an id appears more than once, lists itself, or is claimed by two primaries.
	IssueDuplicateSecondary ReconcileIssueKind = "duplicate_secondary"
	// IssueNestedSecondary: a listed channel owns secondaries of its own.
	IssueNestedSecondary ReconcileIssueKind = "nested_secondary"
	// IssueMissingParentLink: a listed secondary does not point back at its primary.
	IssueMissingParentLink ReconcileIssueKind = "missing_parent_link"
	// IssueOrphanedSecondary: a channel points at a primary that does not list it.
	IssueOrphanedSecondary ReconcileIssueKind = "orphaned_secondary"
)

type ReconcileIssue struct {
	Kind      ReconcileIssueKind `json:"kind"`
	ChannelID string             `json:"channelId"`
	RelatedID string             `json:"relatedId,omitempty"`
}

type ReconcileReport struct {
	DryRun          bool             `json:"dryRun"`
	ChannelsScanned int              `json:"channelsScanned"`
	Issues          []ReconcileIssue `json:"issues"`
	Patches         int              `json:"patches"`
	Applied         bool             `json:"applied"`
}

// ReconcileGroups repairs one-sided primary/secondary links. The primary's secondary list is
// authoritative: listed channels get their parent set, channels claiming a parent that does
// not list them are detached. All repairs are written in one update unless dryRun is set.
func (g *GroupAggregator) ReconcileGroups(ctx context.Context, dryRun bool) (report *ReconcileReport, err error) {
	started := time.Now()
	defer func() { g.metrics.observe(OperationReconcile, started, err) }()

	channels, err := g.store.ListChannels(ctx)
	if err != nil {
		return nil, errors.NewServiceError("failed to list channels", "store", "list_channels", err)
	}

	byID := make(map[string]*domain.Channel, len(channels))
	for _, ch := range channels {
		byID[ch.ID] = ch
	}

	report = &ReconcileReport{
		DryRun:          dryRun,
		ChannelsScanned: len(channels),
		Issues:          []ReconcileIssue{},
	}

	desiredParent := make(map[string]*domain.Channel)
	var patches []domain.ChannelPatch

	for _, primary := range channels {
		if !primary.IsPrimary() || len(primary.SecondaryChannelIDs) == 0 {
			continue
		}

		kept := make([]string, 0, len(primary.SecondaryChannelIDs))
		for _, id := range primary.SecondaryChannelIDs {
			secondary, ok := byID[id]
			switch {
			case !ok:
				report.Issues = append(report.Issues, ReconcileIssue{Kind: IssueMissingSecondary, ChannelID: primary.ID, RelatedID: id})
				continue
			case id == primary.ID || slices.Contains(kept, id) || desiredParent[id] != nil:
				report.Issues = append(report.Issues, ReconcileIssue{Kind: IssueDuplicateSecondary, ChannelID: primary.ID, RelatedID: id})
				continue
			case len(secondary.SecondaryChannelIDs) > 0:
				report.Issues = append(report.Issues, ReconcileIssue{Kind: IssueNestedSecondary, ChannelID: primary.ID, RelatedID: id})
				continue
			}
			kept = append(kept, id)
			desiredParent[id] = primary
		}

		if !slices.Equal(kept, primary.SecondaryChannelIDs) {
			patches = append(patches, domain.ChannelPatch{
				ChannelID:           primary.ID,
				SecondaryChannelIDs: &kept,
			})
		}
	}

	for _, ch := range channels {
		want := desiredParent[ch.ID]
		switch {
		case want != nil && (ch.ParentChannelID == nil || *ch.ParentChannelID != want.ID):
			report.Issues = append(report.Issues, ReconcileIssue{Kind: IssueMissingParentLink, ChannelID: ch.ID, RelatedID: want.ID})
			patches = append(patches, domain.ChannelPatch{
				ChannelID:       ch.ID,
				ParentChannelID: domain.StringPtr(want.ID),
				GroupName:       domain.StringPtr(want.ResolvedGroupName()),
			})
		case want == nil && ch.ParentChannelID != nil:
			report.Issues = append(report.Issues, ReconcileIssue{Kind: IssueOrphanedSecondary, ChannelID: ch.ID, RelatedID: *ch.ParentChannelID})
			patches = append(patches, domain.ChannelPatch{
				ChannelID:            ch.ID,
				ClearParentChannelID: true,
				ClearGroupName:       true,
			})
		}
	}

	report.Patches = len(patches)

	if len(patches) > 0 && !dryRun {
		if err := g.store.UpdateChannels(ctx, patches...); err != nil {
			return nil, errors.NewServiceError("failed to apply group repairs", "store", "update_channels", err)
		}
		report.Applied = true
	}

	g.logger.Info("Group reconciliation finished",
		zap.Bool("dry_run", dryRun),
		zap.Int("channels", report.ChannelsScanned),
		zap.Int("issues", len(report.Issues)),
		zap.Int("patches", report.Patches),
	)

	return report, nil
}
