package recovery

import "fmt"

// AggregatePaths copies each rejected member's source paths onto a
// surviving member of the same cluster, so no filesystem provenance is
// lost when a duplicate is discarded. The survivor is the member the
// rule kept the photo in favor of when that member itself survived, and
// otherwise any current survivor — attaching to one survivor is enough
// for later date inference.
func AggregatePaths(members []Member, rejections []GroupRejection) ([]AggregatedPath, error) {
	if len(rejections) == 0 {
		return nil, nil
	}

	rejected := make(map[string]bool, len(rejections))
	for _, r := range rejections {
		rejected[r.PhotoID] = true
	}

	var fallback string
	surviving := make(map[string]bool)
	for _, m := range members {
		if rejected[m.Photo.ID] {
			continue
		}
		surviving[m.Photo.ID] = true
		if fallback == "" {
			fallback = m.Photo.ID
		}
	}
	if fallback == "" {
		return nil, fmt.Errorf("aggregate: group %d has no surviving member", rejections[0].GroupID)
	}

	pathsByID := make(map[string][]string, len(members))
	for _, m := range members {
		pathsByID[m.Photo.ID] = m.Paths
	}

	var out []AggregatedPath
	for _, r := range rejections {
		target := r.KeptPhotoID
		if !surviving[target] {
			target = fallback
		}
		for _, path := range pathsByID[r.PhotoID] {
			out = append(out, AggregatedPath{
				KeptPhotoID: target,
				SourcePath:  path,
				FromPhotoID: r.PhotoID,
			})
		}
	}
	return out, nil
}
