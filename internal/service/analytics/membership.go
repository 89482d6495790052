package analytics

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/kapu/channel-ranking-go/internal/domain"
	"github.com/kapu/channel-ranking-go/pkg/errors"
)

// AddSecondaryChannel links secondaryID under primaryID. Calling it again for the same pair
// leaves a single entry. The group name is the explicit argument, else the primary's current
// group name, else the primary's title, and is written to both records. A secondary that
// belonged to another primary is moved and removed from that primary's list in the same update.
func (g *GroupAggregator) AddSecondaryChannel(ctx context.Context, primaryID, secondaryID, groupName string) error {
	if primaryID == secondaryID {
		return errors.NewValidationError("a channel cannot be its own secondary", "secondaryId", secondaryID)
	}

	primary, err := g.getChannel(ctx, primaryID)
	if err != nil {
		return err
	}
	secondary, err := g.getChannel(ctx, secondaryID)
	if err != nil {
		return err
	}

	if primary.IsSecondary() {
		return errors.NewValidationError("primary channel is itself a secondary", "primaryId", primaryID)
	}
	if len(memberIDs(secondary)) > 0 {
		return errors.NewValidationError("channel already has secondaries of its own", "secondaryId", secondaryID)
	}

	name := strings.TrimSpace(groupName)
	if name == "" {
		name = primary.ResolvedGroupName()
	}

	patches := []domain.ChannelPatch{
		{
			ChannelID:      primary.ID,
			AddSecondaryID: domain.StringPtr(secondary.ID),
			GroupName:      domain.StringPtr(name),
		},
		{
			ChannelID:       secondary.ID,
			ParentChannelID: domain.StringPtr(primary.ID),
			GroupName:       domain.StringPtr(name),
		},
	}

	if secondary.IsSecondary() && *secondary.ParentChannelID != primary.ID {
		previous, err := g.store.GetChannel(ctx, *secondary.ParentChannelID)
		if err != nil {
			return errors.NewServiceError("failed to load previous primary", "store", "get_channel", err)
		}
		if previous != nil && previous.HasSecondary(secondary.ID) {
			patches = append(patches, domain.ChannelPatch{
				ChannelID:         previous.ID,
				RemoveSecondaryID: domain.StringPtr(secondary.ID),
			})
		}
	}

	if err := g.store.UpdateChannels(ctx, patches...); err != nil {
		return errors.NewServiceError("failed to link secondary channel", "store", "update_channels", err)
	}

	g.logger.Info("Secondary channel linked",
		zap.String("primary_channel_id", primary.ID),
		zap.String("secondary_channel_id", secondary.ID),
		zap.String("group_name", name),
	)
	return nil
}

// RemoveSecondaryChannel unlinks secondaryID from primaryID and clears the secondary's parent
// and group name. Removing a channel that is not in the group changes nothing.
func (g *GroupAggregator) RemoveSecondaryChannel(ctx context.Context, primaryID, secondaryID string) error {
	primary, err := g.getChannel(ctx, primaryID)
	if err != nil {
		return err
	}
	if secondaryID == "" {
		return errors.NewValidationError("secondary channel id is required", "secondaryId", secondaryID)
	}

	secondary, err := g.store.GetChannel(ctx, secondaryID)
	if err != nil {
		return errors.NewServiceError("failed to load channel", "store", "get_channel", err)
	}

	var patches []domain.ChannelPatch
	if primary.HasSecondary(secondaryID) {
		patches = append(patches, domain.ChannelPatch{
			ChannelID:         primary.ID,
			RemoveSecondaryID: domain.StringPtr(secondaryID),
		})
	}
	if secondary != nil && secondary.IsSecondary() && *secondary.ParentChannelID == primary.ID {
		patches = append(patches, domain.ChannelPatch{
			ChannelID:            secondary.ID,
			ClearParentChannelID: true,
			ClearGroupName:       true,
		})
	}

	if len(patches) == 0 {
		g.logger.Debug("Secondary channel not in group",
			zap.String("primary_channel_id", primary.ID),
			zap.String("secondary_channel_id", secondaryID),
		)
		return nil
	}

	if err := g.store.UpdateChannels(ctx, patches...); err != nil {
		return errors.NewServiceError("failed to unlink secondary channel", "store", "update_channels", err)
	}

	g.logger.Info("Secondary channel unlinked",
		zap.String("primary_channel_id", primary.ID),
		zap.String("secondary_channel_id", secondaryID),
	)
	return nil
}
