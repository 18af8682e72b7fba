package recovery

import "testing"

func testClassifier(t *testing.T) *Classifier {
	t.Helper()
	return NewClassifier(&Config{
		SiblingExists:       func(string) bool { return false },
		SeparateCollections: []string{"/scans/2013-album/"},
	})
}

func TestClassifyScenarios(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		photo    Photo
		paths    []string
		want     Decision // "" = no decision
		wantRule string
	}{
		{
			name:     "tiny area rejected",
			photo:    Photo{ID: "a", Width: 50, Height: 80},
			paths:    []string{"/pics/a.jpg"},
			want:     DecisionReject,
			wantRule: "TINY_AREA",
		},
		{
			name:  "large enough photo accepted",
			photo: Photo{ID: "b", Width: 100, Height: 100},
			paths: []string{"/pics/b.jpg"},
			want:  "",
		},
		{
			name:     "game texture",
			photo:    Photo{ID: "c", Width: 512, Height: 512},
			paths:    []string{"/home/kid/.minecraft/textures/dirt.png"},
			want:     DecisionReject,
			wantRule: "GAME_TEXTURE",
		},
		{
			name:     "chat icon small",
			photo:    Photo{ID: "d", Width: 120, Height: 120},
			paths:    []string{"/Library/iChat Icons/smiley.png"},
			want:     DecisionReject,
			wantRule: "CHAT_ICON",
		},
		{
			name:  "chat dir but large photo",
			photo: Photo{ID: "e", Width: 1200, Height: 900},
			paths: []string{"/Library/Messages/attachment.jpg"},
			want:  "",
		},
		{
			name:     "face crop square small",
			photo:    Photo{ID: "f", Width: 300, Height: 310},
			paths:    []string{"/Photos Library/modelresources/face1.jpg"},
			want:     DecisionReject,
			wantRule: "FACE_CROP",
		},
		{
			name:  "modelresources but not square",
			photo: Photo{ID: "g", Width: 400, Height: 200},
			paths: []string{"/Photos Library/modelresources/wide.jpg"},
			want:  "",
		},
		{
			name:     "stock greeting template",
			photo:    Photo{ID: "h", Width: 800, Height: 600},
			paths:    []string{"/Cards/Thumbnails/042_1024.jpg"},
			want:     DecisionReject,
			wantRule: "STOCK_GREETING",
		},
		{
			name:     "system cache",
			photo:    Photo{ID: "i", Width: 2000, Height: 1500},
			paths:    []string{"/home/ben/.cache/chromium/img.jpg"},
			want:     DecisionReject,
			wantRule: "SYSTEM_CACHE",
		},
		{
			name:     "flip video preview",
			photo:    Photo{ID: "j", Width: 640, Height: 480},
			paths:    []string{"/FlipShare Data/Previews/clip1.jpg"},
			want:     DecisionReject,
			wantRule: "VIDEO_THUMB",
		},
		{
			name:     "photo booth separated",
			photo:    Photo{ID: "k", Width: 640, Height: 480},
			paths:    []string{"/Users/ben/Pictures/Photo Booth Library/Originals/Photo 7.jpg"},
			want:     DecisionSeparate,
			wantRule: "PHOTO_BOOTH",
		},
		{
			name:     "scanned collection separated",
			photo:    Photo{ID: "l", Width: 3000, Height: 2000},
			paths:    []string{"/scans/2013-album/page4.jpg"},
			want:     DecisionSeparate,
			wantRule: "SCANNED_COLLECTION",
		},
		{
			name:  "no rule matches",
			photo: Photo{ID: "m", Width: 4000, Height: 3000},
			paths: []string{"/Users/ben/Pictures/holiday/IMG_1234.jpg"},
			want:  "",
		},
	}

	c := testClassifier(t)
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := c.Classify(&tc.photo, tc.paths)
			if tc.want == "" {
				if got != nil {
					t.Fatalf("Classify() = %+v, want no decision", got)
				}
				return
			}
			if got == nil {
				t.Fatalf("Classify() = nil, want %s/%s", tc.want, tc.wantRule)
			}
			if got.Decision != tc.want || got.RuleName != tc.wantRule {
				t.Errorf("Classify() = %s/%s, want %s/%s", got.Decision, got.RuleName, tc.want, tc.wantRule)
			}
			if got.PhotoID != tc.photo.ID {
				t.Errorf("decision photo id = %s, want %s", got.PhotoID, tc.photo.ID)
			}
		})
	}
}

// Two rejection rules match here (tiny area and game texture); only the
// first in priority order may be recorded.
func TestClassifyShortCircuit(t *testing.T) {
	t.Parallel()

	c := testClassifier(t)
	photo := Photo{ID: "x", Width: 16, Height: 16}
	paths := []string{"/game/minecraft/textures/tiny.png"}

	got := c.Classify(&photo, paths)
	if got == nil {
		t.Fatal("Classify() = nil, want rejection")
	}
	if got.RuleName != "TINY_AREA" {
		t.Errorf("rule = %s, want TINY_AREA (first matching rejection rule)", got.RuleName)
	}
}

// A photo matching both a rejection and a separation rule must be
// rejected: rejection rules run first and the outcomes are mutually
// exclusive.
func TestClassifyRejectionBeforeSeparation(t *testing.T) {
	t.Parallel()

	c := testClassifier(t)
	photo := Photo{ID: "x", Width: 16, Height: 16}
	paths := []string{"/Users/ben/Pictures/Photo Booth Library/Originals/tiny.jpg"}

	got := c.Classify(&photo, paths)
	if got == nil || got.Decision != DecisionReject {
		t.Fatalf("Classify() = %+v, want rejection", got)
	}
}

func TestClassifyWebAssetSiblingHook(t *testing.T) {
	t.Parallel()

	photo := Photo{ID: "w", Width: 900, Height: 700}
	paths := []string{"/saved/trip report_files/photo.jpg"}

	withSibling := NewClassifier(&Config{
		SiblingExists: func(path string) bool { return path == "/saved/trip report.htm" },
	})
	got := withSibling.Classify(&photo, paths)
	if got == nil || got.RuleName != "WEB_ASSET" {
		t.Fatalf("with sibling: Classify() = %+v, want WEB_ASSET rejection", got)
	}

	withoutSibling := NewClassifier(&Config{
		SiblingExists: func(string) bool { return false },
	})
	if got := withoutSibling.Classify(&photo, paths); got != nil {
		t.Fatalf("without sibling: Classify() = %+v, want no decision", got)
	}
}

// Classification must depend only on the photo's own data: repeated
// calls in any order yield the same decision and never mutate input.
func TestClassifyDeterministic(t *testing.T) {
	t.Parallel()

	c := testClassifier(t)
	photo := Photo{ID: "p", Width: 60, Height: 60}
	paths := []string{"/pics/p.jpg"}
	orig := photo

	var first *IndividualDecision
	for i := 0; i < 5; i++ {
		got := c.Classify(&photo, paths)
		if i == 0 {
			first = got
			continue
		}
		if (got == nil) != (first == nil) || (got != nil && *got != *first) {
			t.Fatalf("call %d: Classify() = %+v, want %+v", i, got, first)
		}
	}
	if photo != orig {
		t.Errorf("Classify mutated the photo: %+v", photo)
	}
}
