package domain

import (
	"slices"
	"time"
)

// UnnamedGroupLabel is shown when a primary channel has neither a group name nor a title.
const UnnamedGroupLabel = "Unnamed group"

// Channel represents a tracked YouTube channel.
//
// A channel without ParentChannelID is a primary; SecondaryChannelIDs on the primary is the
// authoritative membership list of its group. A secondary carries ParentChannelID and never
// owns secondaries of its own.
type Channel struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	ThumbnailURL    string    `json:"thumbnailUrl"`
	CustomURL       *string   `json:"customUrl,omitempty"`
	Category        string    `json:"category"`
	SubscriberCount int64     `json:"subscriberCount"`
	VideoCount      int64     `json:"videoCount"`
	ViewCount       int64     `json:"viewCount"`
	PublishedAt     time.Time `json:"publishedAt"`

	ParentChannelID     *string  `json:"parentChannelId,omitempty"`
	SecondaryChannelIDs []string `json:"secondaryChannelIds,omitempty"`
	GroupName           *string  `json:"groupName,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// IsSecondary reports whether the channel points at a primary.
func (c *Channel) IsSecondary() bool {
	return c != nil && c.ParentChannelID != nil && *c.ParentChannelID != ""
}

// IsPrimary reports whether the channel heads a group (possibly of one).
func (c *Channel) IsPrimary() bool {
	return c != nil && !c.IsSecondary()
}

// HasSecondary checks the authoritative membership list.
func (c *Channel) HasSecondary(channelID string) bool {
	if c == nil {
		return false
	}
	return slices.Contains(c.SecondaryChannelIDs, channelID)
}

// ResolvedGroupName returns the explicit group name, else the title, else a placeholder.
func (c *Channel) ResolvedGroupName() string {
	if c == nil {
		return UnnamedGroupLabel
	}
	if c.GroupName != nil && *c.GroupName != "" {
		return *c.GroupName
	}
	if c.Title != "" {
		return c.Title
	}
	return UnnamedGroupLabel
}

// ChannelPatch is a partial update of one channel record. Nil fields are left untouched;
// the Clear* flags remove a field entirely instead of setting it to an empty value.
//
// RemoveSecondaryID and AddSecondaryID edit the stored secondary list in place instead of
// replacing it. They apply after SecondaryChannelIDs, removal first. Adding an id that is
// already listed changes nothing.
type ChannelPatch struct {
	ChannelID string

	SecondaryChannelIDs *[]string
	RemoveSecondaryID   *string
	AddSecondaryID      *string
	ParentChannelID     *string
	GroupName           *string
	Category            *string

	ClearParentChannelID bool
	ClearGroupName       bool
}

// IsEmpty reports whether applying the patch would change nothing.
func (p ChannelPatch) IsEmpty() bool {
	return p.SecondaryChannelIDs == nil && p.RemoveSecondaryID == nil && p.AddSecondaryID == nil &&
		p.ParentChannelID == nil && p.GroupName == nil && p.Category == nil &&
		!p.ClearParentChannelID && !p.ClearGroupName
}

// Apply mutates a copy of the channel and returns it.
func (p ChannelPatch) Apply(ch Channel) Channel {
	if p.SecondaryChannelIDs != nil {
		ch.SecondaryChannelIDs = slices.Clone(*p.SecondaryChannelIDs)
	}
	if p.RemoveSecondaryID != nil {
		removed := *p.RemoveSecondaryID
		ch.SecondaryChannelIDs = slices.DeleteFunc(slices.Clone(ch.SecondaryChannelIDs), func(id string) bool {
			return id == removed
		})
	}
	if p.AddSecondaryID != nil && !slices.Contains(ch.SecondaryChannelIDs, *p.AddSecondaryID) {
		ch.SecondaryChannelIDs = append(slices.Clone(ch.SecondaryChannelIDs), *p.AddSecondaryID)
	}
	if p.ClearParentChannelID {
		ch.ParentChannelID = nil
	} else if p.ParentChannelID != nil {
		parent := *p.ParentChannelID
		ch.ParentChannelID = &parent
	}
	if p.ClearGroupName {
		ch.GroupName = nil
	} else if p.GroupName != nil {
		name := *p.GroupName
		ch.GroupName = &name
	}
	if p.Category != nil {
		ch.Category = *p.Category
	}
	return ch
}

// StringPtr returns a pointer to a copy of s.
func StringPtr(s string) *string {
	return &s
}
