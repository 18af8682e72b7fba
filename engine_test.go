package recovery

import (
	"reflect"
	"sort"
	"testing"
)

func TestEvaluateThumbnailAndTieBreak(t *testing.T) {
	t.Parallel()

	// Cluster of three: X is the master, Y a near-identical thumbnail,
	// Z a bit-identical copy of X at the same resolution.
	x := &Photo{ID: "x", Width: 3000, Height: 3000, FileSize: 5_000_000, HasEXIF: true,
		PrimaryHash: 0, SecondaryHash: 0, HasHashes: true}
	y := &Photo{ID: "y", Width: 300, Height: 300, FileSize: 40_000,
		PrimaryHash: hashWithBits(2), SecondaryHash: 0, HasHashes: true}
	z := &Photo{ID: "z", Width: 3000, Height: 3000, FileSize: 4_900_000,
		PrimaryHash: 0, SecondaryHash: 0, HasHashes: true}

	members := []Member{
		{Photo: x, Paths: []string{"/Pictures/holiday/best.jpg"}},
		{Photo: y, Paths: []string{"/Library/Thumbnails/best.jpg"}},
		{Photo: z, Paths: []string{"/backup/holiday/best.jpg"}},
	}

	e := NewEngine(&Config{})
	rejections, err := e.Evaluate(1, members)
	if err != nil {
		t.Fatal(err)
	}

	byID := make(map[string]GroupRejection)
	for _, r := range rejections {
		byID[r.PhotoID] = r
	}

	if len(rejections) != 2 {
		t.Fatalf("rejections = %+v, want exactly 2 (one survivor)", rejections)
	}
	if r, ok := byID["y"]; !ok || r.RuleName != "THUMBNAIL" {
		t.Errorf("thumbnail rejection = %+v, want y by THUMBNAIL", r)
	}
	if r, ok := byID["z"]; !ok || r.RuleName != "SAME_RESOLUTION" || r.KeptPhotoID != "x" {
		t.Errorf("tie-break rejection = %+v, want z by SAME_RESOLUTION in favor of x", r)
	}

	// All rejected members' paths land on the survivor.
	agg, err := AggregatePaths(members, rejections)
	if err != nil {
		t.Fatal(err)
	}
	var gotPaths []string
	for _, a := range agg {
		if a.KeptPhotoID != "x" {
			t.Errorf("aggregated path attached to %s, want survivor x", a.KeptPhotoID)
		}
		gotPaths = append(gotPaths, a.SourcePath)
	}
	sort.Strings(gotPaths)
	want := []string{"/Library/Thumbnails/best.jpg", "/backup/holiday/best.jpg"}
	if !reflect.DeepEqual(gotPaths, want) {
		t.Errorf("aggregated paths = %v, want %v", gotPaths, want)
	}
}

func TestEvaluateDerivative(t *testing.T) {
	t.Parallel()

	big := &Photo{ID: "big", Width: 4000, Height: 3000, FileSize: 6_000_000,
		PrimaryHash: 0, SecondaryHash: 0, HasHashes: true}
	small := &Photo{ID: "small", Width: 1024, Height: 768, FileSize: 300_000,
		PrimaryHash: hashWithBits(2), SecondaryHash: 0, HasHashes: true}

	members := []Member{
		{Photo: big, Paths: []string{"/Pictures/IMG_0042.jpg"}},
		{Photo: small, Paths: []string{"/exports/IMG_0042_1024.jpg"}},
	}

	e := NewEngine(&Config{})
	rejections, err := e.Evaluate(7, members)
	if err != nil {
		t.Fatal(err)
	}
	if len(rejections) != 1 || rejections[0].PhotoID != "small" || rejections[0].RuleName != "DERIVATIVE" {
		t.Fatalf("rejections = %+v, want small by DERIVATIVE", rejections)
	}
	if rejections[0].GroupID != 7 {
		t.Errorf("group id = %d, want 7", rejections[0].GroupID)
	}
}

func TestEvaluatePreview(t *testing.T) {
	t.Parallel()

	original := &Photo{ID: "orig", Width: 3000, Height: 2000, FileSize: 4_000_000,
		PrimaryHash: 0, SecondaryHash: 0, HasHashes: true}
	preview := &Photo{ID: "prev", Width: 3000, Height: 2000, FileSize: 900_000,
		PrimaryHash: 0, SecondaryHash: 0, HasHashes: true}

	members := []Member{
		{Photo: original, Paths: []string{"/Photos Library.photoslibrary/Masters/IMG_7.jpg"}},
		{Photo: preview, Paths: []string{"/Photos Library.photoslibrary/resources/Previews/IMG_7.jpg"}},
	}

	e := NewEngine(&Config{})
	rejections, err := e.Evaluate(2, members)
	if err != nil {
		t.Fatal(err)
	}
	if len(rejections) != 1 || rejections[0].PhotoID != "prev" || rejections[0].RuleName != "PREVIEW" {
		t.Fatalf("rejections = %+v, want prev by PREVIEW", rejections)
	}
}

func TestEvaluateLibraryCopy(t *testing.T) {
	t.Parallel()

	legacy := &Photo{ID: "old", Width: 2000, Height: 1500, FileSize: 2_000_000,
		PrimaryHash: 0, SecondaryHash: 0, HasHashes: true}
	current := &Photo{ID: "new", Width: 2000, Height: 1500, FileSize: 2_000_000,
		PrimaryHash: 0, SecondaryHash: 0, HasHashes: true}

	members := []Member{
		{Photo: legacy, Paths: []string{"/Pictures/iPhoto Library.photolibrary/Masters/a.jpg"}},
		{Photo: current, Paths: []string{"/Pictures/Photos Library.photoslibrary/Masters/a.jpg"}},
	}

	e := NewEngine(&Config{})
	rejections, err := e.Evaluate(3, members)
	if err != nil {
		t.Fatal(err)
	}
	if len(rejections) != 1 || rejections[0].PhotoID != "old" || rejections[0].RuleName != "LIBRARY_COPY" {
		t.Fatalf("rejections = %+v, want old by LIBRARY_COPY", rejections)
	}
}

func TestEvaluateGenericName(t *testing.T) {
	t.Parallel()

	camera := &Photo{ID: "cam", Width: 2000, Height: 1500, FileSize: 1_500_000,
		PrimaryHash: 0, SecondaryHash: 0, HasHashes: true}
	human := &Photo{ID: "hum", Width: 2000, Height: 1500, FileSize: 1_500_000,
		PrimaryHash: 0, SecondaryHash: 0, HasHashes: true}

	members := []Member{
		{Photo: camera, Paths: []string{"/camera/IMG_5512.jpg"}},
		{Photo: human, Paths: []string{"/albums/wedding toast.jpg"}},
	}

	e := NewEngine(&Config{})
	rejections, err := e.Evaluate(4, members)
	if err != nil {
		t.Fatal(err)
	}
	if len(rejections) != 1 {
		t.Fatalf("rejections = %+v, want exactly one", rejections)
	}
	got := rejections[0]
	if got.PhotoID != "cam" || got.KeptPhotoID != "hum" {
		t.Errorf("rejection = %+v, want cam rejected in favor of hum", got)
	}
}

// The engine must halt before a cluster loses its final member, even
// when a rule tries to reject everyone.
func TestEvaluateNeverEmptiesGroup(t *testing.T) {
	t.Parallel()

	cfg := &Config{}
	cfg.defaults()
	rejectAll := GroupRule{
		Name: "REJECT_EVERYTHING",
		Apply: func(members []Member) []Rejection {
			var out []Rejection
			for i, m := range members {
				keeper := members[(i+1)%len(members)]
				out = append(out, Rejection{RejectedID: m.Photo.ID, KeptID: keeper.Photo.ID})
			}
			return out
		},
	}
	e := &Engine{cfg: cfg, rules: []GroupRule{rejectAll}}

	members := []Member{
		{Photo: &Photo{ID: "a", Width: 100, Height: 100}},
		{Photo: &Photo{ID: "b", Width: 100, Height: 100}},
		{Photo: &Photo{ID: "c", Width: 100, Height: 100}},
	}

	rejections, err := e.Evaluate(9, members)
	if err != nil {
		t.Fatal(err)
	}
	if len(rejections) != len(members)-1 {
		t.Fatalf("rejections = %d, want %d (exactly one survivor)", len(rejections), len(members)-1)
	}
}

// Non-emptiness across the real rule set: rejections are always
// strictly fewer than the cluster size.
func TestEvaluateNonEmptiness(t *testing.T) {
	t.Parallel()

	e := NewEngine(&Config{})

	clusters := [][]Member{
		{
			{Photo: &Photo{ID: "a", Width: 3000, Height: 3000, FileSize: 100, PrimaryHash: 0, SecondaryHash: 0, HasHashes: true}, Paths: []string{"/x/a.jpg"}},
			{Photo: &Photo{ID: "b", Width: 3000, Height: 3000, FileSize: 100, PrimaryHash: 0, SecondaryHash: 0, HasHashes: true}, Paths: []string{"/x/b.jpg"}},
		},
		{
			{Photo: &Photo{ID: "c", Width: 3000, Height: 3000, FileSize: 100, PrimaryHash: 0, SecondaryHash: 0, HasHashes: true}, Paths: []string{"/x/c.jpg"}},
			{Photo: &Photo{ID: "d", Width: 3000, Height: 3000, FileSize: 100, PrimaryHash: 0, SecondaryHash: 0, HasHashes: true}, Paths: []string{"/x/d.jpg"}},
			{Photo: &Photo{ID: "e", Width: 3000, Height: 3000, FileSize: 100, PrimaryHash: 0, SecondaryHash: 0, HasHashes: true}, Paths: []string{"/x/e.jpg"}},
		},
	}

	for gi, members := range clusters {
		rejections, err := e.Evaluate(int64(gi), members)
		if err != nil {
			t.Fatal(err)
		}
		if len(rejections) >= len(members) {
			t.Errorf("cluster %d: %d rejections for %d members", gi, len(rejections), len(members))
		}
	}
}

// A photo already rejected by an earlier rule must be invisible to
// later rules; the first rule's name is the one recorded.
func TestEvaluateFirstRuleWins(t *testing.T) {
	t.Parallel()

	// The thumbnail is also a strict derivative of the master; only
	// THUMBNAIL (higher priority) may be recorded.
	master := &Photo{ID: "m", Width: 3000, Height: 3000, FileSize: 5_000_000,
		PrimaryHash: 0, SecondaryHash: 0, HasHashes: true}
	thumb := &Photo{ID: "t", Width: 200, Height: 200, FileSize: 10_000,
		PrimaryHash: hashWithBits(1), SecondaryHash: 0, HasHashes: true}

	members := []Member{
		{Photo: master, Paths: []string{"/Pictures/m.jpg"}},
		{Photo: thumb, Paths: []string{"/cache/Thumbnails/m.jpg"}},
	}

	e := NewEngine(&Config{})
	rejections, err := e.Evaluate(5, members)
	if err != nil {
		t.Fatal(err)
	}
	if len(rejections) != 1 || rejections[0].RuleName != "THUMBNAIL" {
		t.Fatalf("rejections = %+v, want a single THUMBNAIL record", rejections)
	}
}

func TestEvaluateIdempotent(t *testing.T) {
	t.Parallel()

	members := []Member{
		{Photo: &Photo{ID: "x", Width: 3000, Height: 3000, FileSize: 10, PrimaryHash: 0, SecondaryHash: 0, HasHashes: true}, Paths: []string{"/a/x.jpg"}},
		{Photo: &Photo{ID: "y", Width: 3000, Height: 3000, FileSize: 10, PrimaryHash: 0, SecondaryHash: 0, HasHashes: true}, Paths: []string{"/a/y.jpg"}},
	}

	e := NewEngine(&Config{})
	first, err := e.Evaluate(1, members)
	if err != nil {
		t.Fatal(err)
	}
	second, err := e.Evaluate(1, members)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("repeated evaluation differs: %+v vs %+v", first, second)
	}
}

func TestEvaluateRejectsUnknownMember(t *testing.T) {
	t.Parallel()

	cfg := &Config{}
	cfg.defaults()
	bad := GroupRule{
		Name: "BAD",
		Apply: func([]Member) []Rejection {
			return []Rejection{{RejectedID: "ghost", KeptID: "a"}}
		},
	}
	e := &Engine{cfg: cfg, rules: []GroupRule{bad}}

	members := []Member{
		{Photo: &Photo{ID: "a"}},
		{Photo: &Photo{ID: "b"}},
	}
	if _, err := e.Evaluate(1, members); err == nil {
		t.Fatal("Evaluate() accepted a rejection for a non-member, want error")
	}
}

func TestEvaluateSkipsSmallGroups(t *testing.T) {
	t.Parallel()

	e := NewEngine(&Config{})
	rejections, err := e.Evaluate(1, []Member{{Photo: &Photo{ID: "only"}}})
	if err != nil {
		t.Fatal(err)
	}
	if rejections != nil {
		t.Errorf("rejections = %+v, want none for a singleton", rejections)
	}
}

func TestAggregatePathsFallbackSurvivor(t *testing.T) {
	t.Parallel()

	// The member a rejection was kept in favor of got rejected later in
	// the pass; the paths must still land on a real survivor.
	members := []Member{
		{Photo: &Photo{ID: "a"}, Paths: []string{"/1/a.jpg"}},
		{Photo: &Photo{ID: "b"}, Paths: []string{"/1/b.jpg"}},
		{Photo: &Photo{ID: "c"}, Paths: []string{"/1/c.jpg", "/2/c.jpg"}},
	}
	rejections := []GroupRejection{
		{PhotoID: "c", GroupID: 1, RuleName: "DERIVATIVE", KeptPhotoID: "b"},
		{PhotoID: "b", GroupID: 1, RuleName: "SAME_RESOLUTION", KeptPhotoID: "a"},
	}

	agg, err := AggregatePaths(members, rejections)
	if err != nil {
		t.Fatal(err)
	}
	if len(agg) != 3 {
		t.Fatalf("aggregated = %+v, want 3 rows", agg)
	}
	for _, a := range agg {
		if a.KeptPhotoID != "a" {
			t.Errorf("path %s attached to %s, want sole survivor a", a.SourcePath, a.KeptPhotoID)
		}
	}
}

func TestAggregatePathsNoSurvivorFails(t *testing.T) {
	t.Parallel()

	members := []Member{
		{Photo: &Photo{ID: "a"}, Paths: []string{"/1/a.jpg"}},
	}
	rejections := []GroupRejection{
		{PhotoID: "a", GroupID: 1, RuleName: "BROKEN"},
	}
	if _, err := AggregatePaths(members, rejections); err == nil {
		t.Fatal("AggregatePaths() accepted a fully rejected group, want error")
	}
}
