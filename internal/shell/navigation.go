package shell

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/autobrr/autobrr-sub001/internal/observability"
	"github.com/autobrr/autobrr-sub001/model"
)

// Navigator builds the settings sidebar from a catalog.
type Navigator struct {
	catalog *Catalog
	badges  bool
	timeout time.Duration
	logger  *zap.Logger
}

// NewNavigator creates a Navigator. With badges enabled every entry carries
// the size of its screen's list, read through the screen's List.
func NewNavigator(catalog *Catalog, badges bool, logger *zap.Logger) *Navigator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Navigator{catalog: catalog, badges: badges, timeout: 2 * time.Second, logger: logger}
}

// Tree returns the navigation tree. Child screens are reached from their
// parent and are not listed.
func (n *Navigator) Tree(ctx context.Context) model.NavigationTree {
	var screens []*Screen
	for _, s := range n.catalog.All() {
		if s.Parent == "" {
			screens = append(screens, s)
		}
	}

	children := make([]model.NavigationNode, len(screens))
	for i, s := range screens {
		children[i] = model.NavigationNode{
			ID:       s.ID,
			Label:    s.Label,
			Icon:     s.Icon,
			Route:    "/settings/" + s.ID,
			Children: []model.NavigationNode{},
		}
	}

	if n.badges {
		n.resolveBadges(ctx, screens, children)
	}

	return model.NavigationTree{Items: []model.NavigationNode{{
		ID:       "settings",
		Label:    "Settings",
		Icon:     "settings",
		Route:    "/settings",
		Children: children,
	}}}
}

// resolveBadges counts each screen's items in parallel. Failures only drop
// the badge.
func (n *Navigator) resolveBadges(ctx context.Context, screens []*Screen, nodes []model.NavigationNode) {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	var g errgroup.Group
	for i, s := range screens {
		if s.List == nil {
			continue
		}
		g.Go(func() error {
			items, err := s.List(ctx, "")
			if err != nil {
				observability.RequestLogger(ctx, n.logger).Debug("navigation badge failed",
					zap.String("screen", s.ID),
					zap.Error(err),
				)
				return nil
			}
			if len(items) > 0 {
				nodes[i].Badge = &model.BadgeDescriptor{Count: len(items), Style: "neutral"}
			}
			return nil
		})
	}
	_ = g.Wait()
}
