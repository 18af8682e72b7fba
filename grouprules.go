package recovery

import (
	"sort"
	"strings"
)

// Member is one photo inside a similarity cluster, with its known source
// paths in deterministic order.
type Member struct {
	Photo *Photo
	Paths []string
}

// Rejection is one group-rule verdict: reject one member in favor of a
// specific other member. The engine attaches the rule name.
type Rejection struct {
	RejectedID string
	KeptID     string
}

// GroupRule rejects cluster members using relational evidence: hamming
// distance to a specific other member, resolution, file size, or
// path markers. Apply only ever sees members not yet rejected by an
// earlier rule in the current pass.
type GroupRule struct {
	Name  string
	Apply func(members []Member) []Rejection
}

// Evidence thresholds for the group rules. These are pairwise-evidence
// bounds, distinct from the grouper's same-scene thresholds: a rule only
// rejects when two specific members are this close.
const (
	thumbnailMaxDistance  = 4 // reject a thumbnail only when near-identical to its master
	derivativeMaxDistance = 2 // a resize must be this close to the original
	derivativeAreaRatio   = 0.9
)

func isThumbnailPath(path string) bool {
	lower := strings.ToLower(path)
	return strings.Contains(lower, "/thumbnails/") || strings.HasPrefix(lower, "thumb_")
}

func isThumbnailFilename(path string) bool {
	return strings.HasPrefix(strings.ToLower(baseOf(path)), "thumb_")
}

func isThumbnail(m Member) bool {
	for _, p := range m.Paths {
		if isThumbnailPath(p) || isThumbnailFilename(p) {
			return true
		}
	}
	return false
}

func isPreviewsPath(path string) bool {
	return strings.Contains(strings.ToLower(path), "/previews/")
}

// isLegacyLibrary reports an iPhoto-era library container.
func isLegacyLibrary(path string) bool {
	return strings.Contains(strings.ToLower(path), ".photolibrary/")
}

// isCurrentLibrary reports a modern Photos library container.
func isCurrentLibrary(path string) bool {
	return strings.Contains(strings.ToLower(path), ".photoslibrary/")
}

func isPhotoBoothFiltered(path string) bool {
	return strings.Contains(strings.ToLower(path), "photo booth library/pictures/")
}

func isPhotoBoothOriginal(path string) bool {
	return strings.Contains(strings.ToLower(path), "photo booth library/originals/")
}

func anyPath(m Member, pred func(string) bool) bool {
	for _, p := range m.Paths {
		if pred(p) {
			return true
		}
	}
	return false
}

func firstPath(m Member) string {
	if len(m.Paths) == 0 {
		return ""
	}
	return m.Paths[0]
}

func baseOf(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[i+1:]
	}
	return path
}

// qualityHint ranks a member for display and tie-breaks:
// resolution > file size > EXIF presence > path quality. It is a hint
// only — it must never be the sole recorded justification for a
// rejection, which always names concrete pairwise evidence.
type qualityHint struct {
	area        int
	fileSize    int64
	hasEXIF     int
	pathQuality int
}

func (q qualityHint) better(o qualityHint) bool {
	if q.area != o.area {
		return q.area > o.area
	}
	if q.fileSize != o.fileSize {
		return q.fileSize > o.fileSize
	}
	if q.hasEXIF != o.hasEXIF {
		return q.hasEXIF > o.hasEXIF
	}
	return q.pathQuality > o.pathQuality
}

func hintFor(m Member) qualityHint {
	h := qualityHint{
		area:     m.Photo.Area(),
		fileSize: m.Photo.FileSize,
	}
	if m.Photo.HasEXIF {
		h.hasEXIF = 1
	}
	for _, p := range m.Paths {
		if isThumbnailPath(p) || isPreviewsPath(p) {
			continue
		}
		switch {
		case isCurrentLibrary(p):
			h.pathQuality = 3
		case isLegacyLibrary(p):
			h.pathQuality = max(h.pathQuality, 2)
		default:
			h.pathQuality = max(h.pathQuality, 1)
		}
	}
	return h
}

// sortByHint orders members best-first, with photo ID as the final
// tie-break so the order is deterministic.
func sortByHint(members []Member) []Member {
	sorted := make([]Member, len(members))
	copy(sorted, members)
	sort.Slice(sorted, func(i, j int) bool {
		hi, hj := hintFor(sorted[i]), hintFor(sorted[j])
		if hi != hj {
			return hi.better(hj)
		}
		return sorted[i].Photo.ID < sorted[j].Photo.ID
	})
	return sorted
}

// groupRules builds the ordered rule list for the group-rule engine.
// Order is priority: earlier rules eliminate members before later rules
// ever see them.
func groupRules() []GroupRule {
	return []GroupRule{
		{Name: "THUMBNAIL", Apply: ruleThumbnail},
		{Name: "PREVIEW", Apply: rulePreview},
		{Name: "LIBRARY_COPY", Apply: ruleLibraryCopy},
		{Name: "PHOTO_BOOTH_FILTERED", Apply: rulePhotoBoothFiltered},
		{Name: "DERIVATIVE", Apply: ruleDerivative},
		{Name: "GENERIC_NAME", Apply: ruleGenericName},
		{Name: "SAME_RESOLUTION", Apply: ruleSameResolution},
	}
}

// ruleThumbnail rejects a thumbnail-path member when a strictly larger
// non-thumbnail master exists and the two are near-identical
// (distance <= thumbnailMaxDistance).
func ruleThumbnail(members []Member) []Rejection {
	var thumbs, masters []Member
	for _, m := range members {
		if isThumbnail(m) {
			thumbs = append(thumbs, m)
		} else {
			masters = append(masters, m)
		}
	}
	if len(thumbs) == 0 || len(masters) == 0 {
		return nil
	}

	best := sortByHint(masters)[0]

	var out []Rejection
	for _, thumb := range thumbs {
		if best.Photo.Area() <= thumb.Photo.Area() {
			continue
		}
		if !thumb.Photo.HasHashes || !best.Photo.HasHashes {
			continue // absent evidence: the rule simply does not match
		}
		if Distance(thumb.Photo.PrimaryHash, best.Photo.PrimaryHash) <= thumbnailMaxDistance {
			out = append(out, Rejection{RejectedID: thumb.Photo.ID, KeptID: best.Photo.ID})
		}
	}
	return out
}

// rulePreview rejects a /Previews/ copy when a same-named, larger
// original exists outside the previews folder.
func rulePreview(members []Member) []Rejection {
	var previews, originals []Member
	for _, m := range members {
		if anyPath(m, isPreviewsPath) {
			previews = append(previews, m)
		} else {
			originals = append(originals, m)
		}
	}
	if len(previews) == 0 || len(originals) == 0 {
		return nil
	}

	best := sortByHint(originals)[0]
	bestName := strings.ToLower(baseOf(firstPath(best)))

	var out []Rejection
	for _, preview := range previews {
		if strings.ToLower(baseOf(firstPath(preview))) != bestName {
			continue
		}
		if best.Photo.FileSize > preview.Photo.FileSize {
			out = append(out, Rejection{RejectedID: preview.Photo.ID, KeptID: best.Photo.ID})
		}
	}
	return out
}

// ruleLibraryCopy rejects a legacy-library copy when the same resolution
// exists in the current library container.
func ruleLibraryCopy(members []Member) []Rejection {
	var legacy, current []Member
	for _, m := range members {
		if anyPath(m, isLegacyLibrary) {
			legacy = append(legacy, m)
		}
		if anyPath(m, isCurrentLibrary) {
			current = append(current, m)
		}
	}
	if len(legacy) == 0 || len(current) == 0 {
		return nil
	}

	var out []Rejection
	for _, old := range legacy {
		if anyPath(old, isCurrentLibrary) {
			continue // same photo observed in both containers
		}
		for _, cur := range current {
			if old.Photo.Area() == cur.Photo.Area() {
				out = append(out, Rejection{RejectedID: old.Photo.ID, KeptID: cur.Photo.ID})
				break
			}
		}
	}
	return out
}

// rulePhotoBoothFiltered rejects filtered Photo Booth copies when an
// original exists.
func rulePhotoBoothFiltered(members []Member) []Rejection {
	var filtered, originals []Member
	for _, m := range members {
		if anyPath(m, isPhotoBoothFiltered) {
			filtered = append(filtered, m)
		}
		if anyPath(m, isPhotoBoothOriginal) {
			originals = append(originals, m)
		}
	}
	if len(filtered) == 0 || len(originals) == 0 {
		return nil
	}

	best := sortByHint(originals)[0]

	var out []Rejection
	for _, m := range filtered {
		if m.Photo.ID == best.Photo.ID {
			continue
		}
		out = append(out, Rejection{RejectedID: m.Photo.ID, KeptID: best.Photo.ID})
	}
	return out
}

// ruleDerivative rejects a clearly smaller resize of near-identical
// content (distance <= derivativeMaxDistance to the largest member and
// under derivativeAreaRatio of its area).
func ruleDerivative(members []Member) []Rejection {
	if len(members) < 2 {
		return nil
	}
	sorted := sortByHint(members)
	best := sorted[0]
	bestArea := best.Photo.Area()

	var out []Rejection
	for _, m := range sorted[1:] {
		area := m.Photo.Area()
		if area == bestArea {
			continue // same resolution: could be different shots of one scene
		}
		if !m.Photo.HasHashes || !best.Photo.HasHashes {
			continue
		}
		dist := Distance(m.Photo.PrimaryHash, best.Photo.PrimaryHash)
		if dist <= derivativeMaxDistance && float64(area) < float64(bestArea)*derivativeAreaRatio {
			out = append(out, Rejection{RejectedID: m.Photo.ID, KeptID: best.Photo.ID})
		}
	}
	return out
}

// ruleGenericName rejects a camera-named copy that is pixel-identical
// (same byte size, distance 0) to a human-named sibling.
func ruleGenericName(members []Member) []Rejection {
	bySize := make(map[int64][]Member)
	for _, m := range members {
		bySize[m.Photo.FileSize] = append(bySize[m.Photo.FileSize], m)
	}

	var out []Rejection
	for _, same := range bySize {
		if len(same) < 2 {
			continue
		}
		var cameraNamed, humanNamed []Member
		for _, m := range same {
			if isCameraName(baseOf(firstPath(m))) {
				cameraNamed = append(cameraNamed, m)
			} else {
				humanNamed = append(humanNamed, m)
			}
		}
		if len(cameraNamed) == 0 || len(humanNamed) == 0 {
			continue
		}
		best := sortByHint(humanNamed)[0]
		for _, m := range cameraNamed {
			if !m.Photo.HasHashes || !best.Photo.HasHashes {
				continue
			}
			if Distance(m.Photo.PrimaryHash, best.Photo.PrimaryHash) == 0 {
				out = append(out, Rejection{RejectedID: m.Photo.ID, KeptID: best.Photo.ID})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RejectedID < out[j].RejectedID })
	return out
}

// ruleSameResolution is the final tie-break: when two remaining members
// have equal resolution and bit-identical primary hashes, keep the
// better-ranked copy and reject the other. The recorded evidence is the
// distance-zero pair; the hint only picks which of the two survives.
func ruleSameResolution(members []Member) []Rejection {
	sorted := sortByHint(members)

	var out []Rejection
	rejected := make(map[string]bool)
	for i, keep := range sorted {
		if rejected[keep.Photo.ID] {
			continue
		}
		for _, other := range sorted[i+1:] {
			if rejected[other.Photo.ID] {
				continue
			}
			if other.Photo.Area() != keep.Photo.Area() {
				continue
			}
			if !keep.Photo.HasHashes || !other.Photo.HasHashes {
				continue
			}
			if Distance(keep.Photo.PrimaryHash, other.Photo.PrimaryHash) == 0 {
				out = append(out, Rejection{RejectedID: other.Photo.ID, KeptID: keep.Photo.ID})
				rejected[other.Photo.ID] = true
			}
		}
	}
	return out
}
