package versions

import (
	"context"
	"fmt"
	"log/slog"

	"assetflow/internal/logging"
	"assetflow/internal/services"
	"assetflow/internal/store"
)

// Store is the persistence surface used by the graph.
type Store interface {
	GetVersion(ctx context.Context, id string) (*store.AssetVersion, error)
	ListLineage(ctx context.Context, groupKey string) ([]*store.AssetVersion, error)
	LatestVersion(ctx context.Context, groupKey string) (*store.AssetVersion, error)
	NextVersionNumber(ctx context.Context, groupKey string) (int, error)
	FinalizeSession(ctx context.Context, sessionID string, nv store.NewVersion) (*store.AssetVersion, bool, error)
}

// Graph assigns version identity and answers lineage queries.
type Graph struct {
	store  Store
	groups *KeyedLock
	logger *slog.Logger
}

// NewGraph wires a graph over the store.
func NewGraph(st Store, logger *slog.Logger) *Graph {
	return &Graph{
		store:  st,
		groups: NewKeyedLock(),
		logger: logging.NewComponentLogger(logger, "versions"),
	}
}

// Plan is the eager preview returned when an upload is initiated.
type Plan struct {
	GroupKey      string
	Kind          store.Kind
	Parent        *store.AssetVersion
	VersionNumber int
}

// PlanVersion validates lineage for a prospective version and previews the
// number it will receive. The preview may be superseded if a sibling session
// completes first; the number is fixed only at Mint.
func (g *Graph) PlanVersion(ctx context.Context, rawGroupKey, parentID string, declared store.Kind) (*Plan, error) {
	groupKey, err := CanonicalGroupKey(rawGroupKey)
	if err != nil {
		return nil, err
	}
	plan := &Plan{GroupKey: groupKey}

	if parentID == "" {
		if declared != "" && declared != store.KindOriginal {
			return nil, services.Wrap(services.ErrValidation, "versions", "plan",
				fmt.Sprintf("kind %q requires a parent version", declared), nil)
		}
		latest, err := g.store.LatestVersion(ctx, groupKey)
		if err != nil {
			return nil, services.Wrap(services.ErrStorage, "versions", "plan", "read latest version", err)
		}
		if latest != nil {
			return nil, services.Wrap(services.ErrDuplicateOriginal, "versions", "plan",
				fmt.Sprintf("group %q already has an original", groupKey), nil)
		}
		plan.Kind = store.KindOriginal
		plan.VersionNumber = 1
		return plan, nil
	}

	parent, err := g.store.GetVersion(ctx, parentID)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "versions", "plan", "read parent", err)
	}
	if parent == nil {
		return nil, services.Wrap(services.ErrInvalidParent, "versions", "plan",
			fmt.Sprintf("parent %s does not exist", parentID), nil)
	}
	if parent.GroupKey != groupKey {
		return nil, services.Wrap(services.ErrInvalidParent, "versions", "plan",
			fmt.Sprintf("parent %s belongs to group %q", parentID, parent.GroupKey), nil)
	}
	switch declared {
	case "":
		plan.Kind = store.KindEdited
	case store.KindEdited, store.KindFinal:
		plan.Kind = declared
	default:
		return nil, services.Wrap(services.ErrValidation, "versions", "plan",
			fmt.Sprintf("kind %q is not valid for a child version", declared), nil)
	}
	next, err := g.store.NextVersionNumber(ctx, groupKey)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "versions", "plan", "preview version number", err)
	}
	plan.Parent = parent
	plan.VersionNumber = next
	return plan, nil
}

// Mint completes the session and creates its version under the group lock.
// Lineage is checked again under the lock, then assemble runs before the
// version row is written, so a rejected session never produces an object.
// created is false when the session had already been completed.
func (g *Graph) Mint(ctx context.Context, sessionID string, nv store.NewVersion, assemble func(context.Context) error) (*store.AssetVersion, bool, error) {
	unlock := g.groups.Lock(nv.GroupKey)
	defer unlock()

	if err := g.checkLineage(ctx, nv); err != nil {
		return nil, false, err
	}
	if assemble != nil {
		if err := assemble(ctx); err != nil {
			return nil, false, err
		}
	}
	version, created, err := g.store.FinalizeSession(ctx, sessionID, nv)
	if err != nil {
		return nil, false, err
	}
	if created {
		g.logger.Info("version minted",
			logging.String(logging.FieldAssetVersionID, version.ID),
			logging.String(logging.FieldAssetGroup, version.GroupKey),
			logging.Int("version_number", version.VersionNumber),
			logging.String("kind", string(version.Kind)),
		)
	}
	return version, created, nil
}

// checkLineage repeats the PlanVersion rules against the current group state.
func (g *Graph) checkLineage(ctx context.Context, nv store.NewVersion) error {
	if nv.ParentID == "" {
		if nv.Kind != store.KindOriginal {
			return services.Wrap(services.ErrValidation, "versions", "mint",
				fmt.Sprintf("kind %q requires a parent version", nv.Kind), nil)
		}
		latest, err := g.store.LatestVersion(ctx, nv.GroupKey)
		if err != nil {
			return services.Wrap(services.ErrStorage, "versions", "mint", "read latest version", err)
		}
		if latest != nil {
			return services.Wrap(services.ErrDuplicateOriginal, "versions", "mint",
				fmt.Sprintf("group %q already has an original", nv.GroupKey), nil)
		}
		return nil
	}
	parent, err := g.store.GetVersion(ctx, nv.ParentID)
	if err != nil {
		return services.Wrap(services.ErrStorage, "versions", "mint", "read parent", err)
	}
	if parent == nil || parent.GroupKey != nv.GroupKey {
		return services.Wrap(services.ErrInvalidParent, "versions", "mint",
			fmt.Sprintf("parent %s is not a version of group %q", nv.ParentID, nv.GroupKey), nil)
	}
	if nv.Kind != store.KindEdited && nv.Kind != store.KindFinal {
		return services.Wrap(services.ErrValidation, "versions", "mint",
			fmt.Sprintf("kind %q is not valid for a child version", nv.Kind), nil)
	}
	return nil
}

// Get returns one version or ErrVersionNotFound.
func (g *Graph) Get(ctx context.Context, id string) (*store.AssetVersion, error) {
	v, err := g.store.GetVersion(ctx, id)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "versions", "get", id, err)
	}
	if v == nil {
		return nil, services.Wrap(services.ErrVersionNotFound, "versions", "get", id, nil)
	}
	return v, nil
}

// Lineage lists a group's versions ordered by version number ascending.
func (g *Graph) Lineage(ctx context.Context, rawGroupKey string) ([]*store.AssetVersion, error) {
	groupKey, err := CanonicalGroupKey(rawGroupKey)
	if err != nil {
		return nil, err
	}
	versions, err := g.store.ListLineage(ctx, groupKey)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "versions", "lineage", groupKey, err)
	}
	return versions, nil
}

// Latest returns the group's highest-numbered version or ErrVersionNotFound.
func (g *Graph) Latest(ctx context.Context, rawGroupKey string) (*store.AssetVersion, error) {
	groupKey, err := CanonicalGroupKey(rawGroupKey)
	if err != nil {
		return nil, err
	}
	v, err := g.store.LatestVersion(ctx, groupKey)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "versions", "latest", groupKey, err)
	}
	if v == nil {
		return nil, services.Wrap(services.ErrVersionNotFound, "versions", "latest",
			fmt.Sprintf("group %q has no versions", groupKey), nil)
	}
	return v, nil
}
