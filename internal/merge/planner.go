package merge

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/franz/figure-curator/internal/archive"
	"github.com/franz/figure-curator/internal/identity"
	"github.com/franz/figure-curator/internal/report"
	"github.com/franz/figure-curator/internal/store"
	"github.com/franz/figure-curator/internal/util"
)

// Resolution selects how a figure conflict is applied
type Resolution string

const (
	// ResolutionSkip leaves the existing figure untouched
	ResolutionSkip Resolution = "skip"
	// ResolutionUpdate overwrites the existing figure's fields with the
	// source figure's, keeping the existing identifier
	ResolutionUpdate Resolution = "update"
	// ResolutionMergePhotos keeps the existing figure's fields and lets the
	// source figure's photos attach to it during the photo stage
	ResolutionMergePhotos Resolution = "merge-photos"
)

// CollisionAction selects how a photo filename collision is handled
type CollisionAction string

const (
	// CollisionRename copies the incoming file under a probed free name
	CollisionRename CollisionAction = "rename"
	// CollisionSkip drops the incoming file entirely
	CollisionSkip CollisionAction = "skip"
)

// Conflict pairs a source figure with the existing figure sharing its
// identity key
type Conflict struct {
	Source     *store.Figure
	Target     *store.Figure
	Resolution Resolution
}

// PhotoCollision records an incoming photo whose base name is already used
// by an existing photo row
type PhotoCollision struct {
	Filename   string
	SourcePath string
	Resolution CollisionAction
}

// Summary holds the analysis counts shown before execution
type Summary struct {
	SourceFigures int
	NewFigures    int
	Conflicts     int
	SourcePhotos  int
	Collisions    int
}

// Plan is the read-only classification of a merge source. It is built by
// one analysis pass, consumed by one execution, and discarded.
type Plan struct {
	NewFigures      []*store.Figure
	Conflicts       []*Conflict
	PhotoCollisions []*PhotoCollision
	Summary         Summary
}

// SetConflictResolutions applies one resolution to every conflict in the
// plan
func (p *Plan) SetConflictResolutions(r Resolution) {
	for _, c := range p.Conflicts {
		c.Resolution = r
	}
}

// SetCollisionActions applies one action to every photo collision in the
// plan
func (p *Plan) SetCollisionActions(a CollisionAction) {
	for _, col := range p.PhotoCollisions {
		col.Resolution = a
	}
}

// Planner classifies a merge source against the current store
type Planner struct {
	store  *store.Store
	logger *report.EventLogger
}

// PlannerConfig holds planner configuration
type PlannerConfig struct {
	Store  *store.Store
	Logger *report.EventLogger
}

// NewPlanner creates a new Planner
func NewPlanner(cfg *PlannerConfig) *Planner {
	return &Planner{
		store:  cfg.Store,
		logger: cfg.Logger,
	}
}

// Analyze classifies every source figure as new or conflicting and every
// source photo name as free or colliding. It mutates nothing and can be
// re-run against a reloaded source.
//
// Figures match on the normalized (name, series, manufacturer) triple.
// When several existing figures share one key, the oldest wins; see
// identity.NewIndex.
func (p *Planner) Analyze(ctx context.Context, source *archive.Dataset) (*Plan, error) {
	util.InfoLog("Analyzing merge source: %d figures, %d photos",
		len(source.Figures), len(source.Photos))

	existing, err := p.store.GetAllFigures()
	if err != nil {
		return nil, fmt.Errorf("failed to load existing figures: %w", err)
	}
	index := identity.NewIndex(existing)

	plan := &Plan{}
	for _, f := range source.Figures {
		if target := index.Match(f); target != nil {
			plan.Conflicts = append(plan.Conflicts, &Conflict{
				Source:     f,
				Target:     target,
				Resolution: ResolutionSkip,
			})
			p.logger.LogConflict(f.Name, f.Series, target.ID)
		} else {
			plan.NewFigures = append(plan.NewFigures, f)
		}
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	existingPhotos, err := p.store.GetAllPhotos()
	if err != nil {
		return nil, fmt.Errorf("failed to load existing photos: %w", err)
	}
	existingNames := make(map[string]bool, len(existingPhotos))
	for _, photo := range existingPhotos {
		existingNames[filepath.Base(photo.FilePath)] = true
	}

	for _, photo := range source.Photos {
		name := archive.BaseName(photo.FilePath)
		if existingNames[name] {
			plan.PhotoCollisions = append(plan.PhotoCollisions, &PhotoCollision{
				Filename:   name,
				SourcePath: photo.FilePath,
				Resolution: CollisionRename,
			})
			p.logger.LogCollision(name, photo.FilePath, string(CollisionRename))
		}
	}

	plan.Summary = Summary{
		SourceFigures: len(source.Figures),
		NewFigures:    len(plan.NewFigures),
		Conflicts:     len(plan.Conflicts),
		SourcePhotos:  len(source.Photos),
		Collisions:    len(plan.PhotoCollisions),
	}

	util.InfoLog("Analysis: %d new figures, %d conflicts, %d photo collisions",
		plan.Summary.NewFigures, plan.Summary.Conflicts, plan.Summary.Collisions)

	return plan, nil
}
