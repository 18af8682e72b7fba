package recovery

import (
	"context"
	"fmt"
	"io"
	"sort"
)

// Store is the persistence boundary of the engine. Replace* methods
// overwrite a stage's whole output in one batch, so re-running a stage
// over unchanged inputs converges to the same persisted state and a
// failed stage never commits partial results. SaveHashes is incremental:
// hash computation is the one long stage that checkpoints as it goes.
type Store interface {
	Photos(ctx context.Context) ([]*Photo, error)
	Paths(ctx context.Context) ([]PhotoPath, error)

	SaveHashes(ctx context.Context, hashes map[string]HashPair) error

	ReplaceIndividualDecisions(ctx context.Context, decisions []IndividualDecision) error
	IndividualDecisions(ctx context.Context) ([]IndividualDecision, error)

	ReplaceGroups(ctx context.Context, groups []DuplicateGroup) error
	Groups(ctx context.Context) ([]DuplicateGroup, error)

	ReplaceGroupRejections(ctx context.Context, rejections []GroupRejection) error
	GroupRejections(ctx context.Context) ([]GroupRejection, error)

	ReplaceAggregatedPaths(ctx context.Context, paths []AggregatedPath) error

	// RecordStage notes a completed stage run with its output count and
	// free-form notes (active linkage mode, per-rule tallies, ...).
	RecordStage(ctx context.Context, stage string, count int, notes string) error
}

// Stage names recorded in run metadata.
const (
	StageIndividual  = "individual"
	StageHash        = "hash"
	StageGroup       = "group"
	StageGroupReject = "group_reject"
)

// hashBatchSize bounds how much hashing work is lost on interruption.
const hashBatchSize = 500

// Pipeline runs the stages in their fixed order: individual
// classification removes photos from the pool before hashing and
// grouping, clusters are the sole input of the group-rule engine, and
// group rejections feed path aggregation. Stages never interleave
// writes.
type Pipeline struct {
	cfg        *Config
	store      Store
	classifier *Classifier
	grouper    *Grouper
	engine     *Engine
}

func NewPipeline(cfg *Config, store Store) *Pipeline {
	cfg.defaults()
	return &Pipeline{
		cfg:        cfg,
		store:      store,
		classifier: NewClassifier(cfg),
		grouper:    NewGrouper(cfg),
		engine:     NewEngine(cfg),
	}
}

// Run executes all stages in order, stopping at the first failure.
func (pl *Pipeline) Run(ctx context.Context) error {
	if _, err := pl.RunClassify(ctx); err != nil {
		return err
	}
	if _, err := pl.RunHash(ctx); err != nil {
		return err
	}
	if _, err := pl.RunGroup(ctx); err != nil {
		return err
	}
	if _, err := pl.RunGroupReject(ctx); err != nil {
		return err
	}
	return nil
}

// RunClassify applies the individual rules to every photo and persists
// the decisions wholesale. Returns the number of decided photos.
func (pl *Pipeline) RunClassify(ctx context.Context) (int, error) {
	photos, pathsByID, err := pl.load(ctx)
	if err != nil {
		return 0, fmt.Errorf("classify stage: %w", err)
	}

	var decisions []IndividualDecision
	for _, p := range photos {
		if d := pl.classifier.Classify(p, pathsByID[p.ID]); d != nil {
			decisions = append(decisions, *d)
		}
	}

	if err := pl.store.ReplaceIndividualDecisions(ctx, decisions); err != nil {
		return 0, fmt.Errorf("classify stage: %w", err)
	}
	notes := fmt.Sprintf("photos=%d decided=%d", len(photos), len(decisions))
	if err := pl.store.RecordStage(ctx, StageIndividual, len(decisions), notes); err != nil {
		return 0, fmt.Errorf("classify stage: %w", err)
	}
	pl.cfg.Logger.Info("individual classification complete",
		"photos", len(photos), "decided", len(decisions))
	return len(decisions), nil
}

// RunHash computes perceptual hashes for undecided photos that don't
// have them yet. Photos with existing hashes are skipped, so an
// interrupted run resumes where it left off; corrupt or unreadable
// media is logged and skipped, never fatal. Returns the number of
// photos hashed in this invocation.
func (pl *Pipeline) RunHash(ctx context.Context) (int, error) {
	photos, pathsByID, err := pl.load(ctx)
	if err != nil {
		return 0, fmt.Errorf("hash stage: %w", err)
	}
	decided, err := pl.decidedIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("hash stage: %w", err)
	}

	hashed := 0
	batch := make(map[string]HashPair)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := pl.store.SaveHashes(ctx, batch); err != nil {
			return err
		}
		batch = make(map[string]HashPair)
		return nil
	}

	for _, p := range photos {
		if err := ctx.Err(); err != nil {
			return hashed, fmt.Errorf("hash stage: %w", err)
		}
		if p.HasHashes || decided[p.ID] {
			continue
		}
		pair, ok := pl.hashOne(p, pathsByID[p.ID])
		if !ok {
			continue
		}
		batch[p.ID] = pair
		hashed++
		if len(batch) >= hashBatchSize {
			if err := flush(); err != nil {
				return hashed, fmt.Errorf("hash stage: %w", err)
			}
		}
	}
	if err := flush(); err != nil {
		return hashed, fmt.Errorf("hash stage: %w", err)
	}

	if err := pl.store.RecordStage(ctx, StageHash, hashed, ""); err != nil {
		return hashed, fmt.Errorf("hash stage: %w", err)
	}
	pl.cfg.Logger.Info("hashing complete", "hashed", hashed)
	return hashed, nil
}

// hashOne tries each known source path of a photo until one decodes.
func (pl *Pipeline) hashOne(p *Photo, paths []string) (HashPair, bool) {
	for _, path := range paths {
		rc, err := pl.cfg.OpenFile(path)
		if err != nil {
			continue
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			continue
		}
		pair, err := DecodeAndHash(data)
		if err != nil {
			pl.cfg.Logger.Warn("cannot hash source, skipping",
				"photo", p.ID, "path", path, "err", err)
			continue
		}
		return pair, true
	}
	pl.cfg.Logger.Warn("no readable source for photo", "photo", p.ID)
	return HashPair{}, false
}

// ImportHashes bulk-loads previously computed hash values keyed by photo
// id, so a fresh database reuses earlier work instead of re-decoding
// every file. Unknown ids are ignored by the store. Returns the number
// of imported pairs.
func (pl *Pipeline) ImportHashes(ctx context.Context, hashes map[string]HashPair) (int, error) {
	if len(hashes) == 0 {
		return 0, nil
	}
	if err := pl.store.SaveHashes(ctx, hashes); err != nil {
		return 0, fmt.Errorf("import hashes: %w", err)
	}
	return len(hashes), nil
}

// RunGroup clusters the undecided, hashed photos and persists groups of
// two or more. Group ids are pinned to each cluster's smallest photo id,
// so identical inputs produce identical group assignments. Returns the
// number of grouped photos.
func (pl *Pipeline) RunGroup(ctx context.Context) (int, error) {
	photos, _, err := pl.load(ctx)
	if err != nil {
		return 0, fmt.Errorf("group stage: %w", err)
	}
	decided, err := pl.decidedIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("group stage: %w", err)
	}

	var candidates []*Photo
	for _, p := range photos {
		if !decided[p.ID] && p.HasHashes {
			candidates = append(candidates, p)
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].ID < candidates[j].ID })

	clusters, err := pl.grouper.Group(ctx, candidates)
	if err != nil {
		return 0, fmt.Errorf("group stage: %w", err)
	}

	var groups []DuplicateGroup
	groupID := int64(0)
	for _, cluster := range clusters {
		if len(cluster) < 2 {
			continue
		}
		groupID++
		for _, idx := range cluster {
			groups = append(groups, DuplicateGroup{
				PhotoID: candidates[idx].ID,
				GroupID: groupID,
			})
		}
	}

	if err := pl.store.ReplaceGroups(ctx, groups); err != nil {
		return 0, fmt.Errorf("group stage: %w", err)
	}
	notes := fmt.Sprintf("linkage=%s candidates=%d groups=%d", pl.cfg.Linkage, len(candidates), groupID)
	if err := pl.store.RecordStage(ctx, StageGroup, len(groups), notes); err != nil {
		return 0, fmt.Errorf("group stage: %w", err)
	}
	pl.cfg.Logger.Info("grouping complete",
		"linkage", pl.cfg.Linkage, "candidates", len(candidates),
		"groups", groupID, "grouped", len(groups))
	return len(groups), nil
}

// RunGroupReject applies the group rules to every cluster and persists
// rejections and aggregated paths wholesale. Returns the number of
// rejected photos.
func (pl *Pipeline) RunGroupReject(ctx context.Context) (int, error) {
	photos, pathsByID, err := pl.load(ctx)
	if err != nil {
		return 0, fmt.Errorf("group-reject stage: %w", err)
	}
	groups, err := pl.store.Groups(ctx)
	if err != nil {
		return 0, fmt.Errorf("group-reject stage: %w", err)
	}

	photoByID := make(map[string]*Photo, len(photos))
	for _, p := range photos {
		photoByID[p.ID] = p
	}

	membersByGroup := make(map[int64][]Member)
	for _, g := range groups {
		p, ok := photoByID[g.PhotoID]
		if !ok {
			return 0, fmt.Errorf("group-reject stage: group %d references unknown photo %s", g.GroupID, g.PhotoID)
		}
		membersByGroup[g.GroupID] = append(membersByGroup[g.GroupID], Member{
			Photo: p,
			Paths: pathsByID[p.ID],
		})
	}

	groupIDs := make([]int64, 0, len(membersByGroup))
	for id := range membersByGroup {
		groupIDs = append(groupIDs, id)
	}
	sort.Slice(groupIDs, func(i, j int) bool { return groupIDs[i] < groupIDs[j] })

	var rejections []GroupRejection
	var aggregated []AggregatedPath
	for _, id := range groupIDs {
		members := membersByGroup[id]
		sort.Slice(members, func(i, j int) bool { return members[i].Photo.ID < members[j].Photo.ID })

		rej, err := pl.engine.Evaluate(id, members)
		if err != nil {
			return 0, fmt.Errorf("group-reject stage: %w", err)
		}
		agg, err := AggregatePaths(members, rej)
		if err != nil {
			return 0, fmt.Errorf("group-reject stage: %w", err)
		}
		rejections = append(rejections, rej...)
		aggregated = append(aggregated, agg...)
	}

	if err := pl.store.ReplaceGroupRejections(ctx, rejections); err != nil {
		return 0, fmt.Errorf("group-reject stage: %w", err)
	}
	if err := pl.store.ReplaceAggregatedPaths(ctx, aggregated); err != nil {
		return 0, fmt.Errorf("group-reject stage: %w", err)
	}
	notes := fmt.Sprintf("groups=%d rejected=%d", len(groupIDs), len(rejections))
	if err := pl.store.RecordStage(ctx, StageGroupReject, len(rejections), notes); err != nil {
		return 0, fmt.Errorf("group-reject stage: %w", err)
	}
	pl.cfg.Logger.Info("group rejection complete",
		"groups", len(groupIDs), "rejected", len(rejections), "paths_aggregated", len(aggregated))
	return len(rejections), nil
}

// load fetches photos (sorted by id for deterministic iteration) and
// their source paths.
func (pl *Pipeline) load(ctx context.Context) ([]*Photo, map[string][]string, error) {
	photos, err := pl.store.Photos(ctx)
	if err != nil {
		return nil, nil, err
	}
	sort.Slice(photos, func(i, j int) bool { return photos[i].ID < photos[j].ID })

	paths, err := pl.store.Paths(ctx)
	if err != nil {
		return nil, nil, err
	}
	pathsByID := make(map[string][]string)
	for _, p := range paths {
		pathsByID[p.PhotoID] = append(pathsByID[p.PhotoID], p.SourcePath)
	}
	for _, list := range pathsByID {
		sort.Strings(list)
	}
	return photos, pathsByID, nil
}

// decidedIDs returns the set of photos carrying an individual decision.
func (pl *Pipeline) decidedIDs(ctx context.Context) (map[string]bool, error) {
	decisions, err := pl.store.IndividualDecisions(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(decisions))
	for _, d := range decisions {
		out[d.PhotoID] = true
	}
	return out, nil
}
