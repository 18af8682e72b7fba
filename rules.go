package recovery

import (
	"path/filepath"
	"regexp"
	"strings"
)

// IndividualRule judges one photo on its own properties. Match must be a
// pure predicate over the photo and its paths: no mutation, no global
// state, so the decision is independent of call order.
type IndividualRule struct {
	Name  string
	Match func(p *Photo, paths []string) bool
}

// chatIconDirs are directories holding chat-app emoticons and icons.
var chatIconDirs = []string{
	"/iChat Icons/", "/Messages/", "/Skype/",
}

// systemCachePatterns mark transient files that were never real photos.
var systemCachePatterns = []string{
	"/.cache/",
	"/cache/",
	"/.thumbnails/",
	"/temp/",
	"/.Trash/",
	"/Trash/",
	"/My Flip Video Prefs/",
}

var (
	webAssetDirRe     = regexp.MustCompile(`(?i)(.+)_files/`)
	greetingStemRe    = regexp.MustCompile(`^\d{3}$`)
	greetingSuffixRe  = regexp.MustCompile(`_1024$`)
	cameraNameRes     []*regexp.Regexp
	cameraNamePattern = []string{
		`^IMG_\d+$`,
		`^DSC_?\d+$`,
		`^DSCN?\d+$`,
		`^P\d{7}$`,
		`^\d{8}_\d+$`, // YYYYMMDD_XXXX
	}
)

func init() {
	for _, p := range cameraNamePattern {
		cameraNameRes = append(cameraNameRes, regexp.MustCompile(p))
	}
}

// anyPathContains reports whether any path contains the substring,
// case-insensitive.
func anyPathContains(paths []string, sub string) bool {
	sub = strings.ToLower(sub)
	for _, p := range paths {
		if strings.Contains(strings.ToLower(p), sub) {
			return true
		}
	}
	return false
}

// isCameraName reports whether a filename looks camera-generated
// (IMG_1234, DSC0042, P1020042, 20130203_0042 ...).
func isCameraName(filename string) bool {
	stem := strings.ToUpper(stemOf(filename))
	for _, re := range cameraNameRes {
		if re.MatchString(stem) {
			return true
		}
	}
	return false
}

// stemOf returns the filename without directory or extension.
func stemOf(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// rejectionRules builds the ordered rejection list. First match wins and
// short-circuits; the order is significant and fixed at startup.
func rejectionRules(cfg *Config) []IndividualRule {
	return []IndividualRule{
		{
			// Too few pixels to be a real photo: icons, emoji, UI bits.
			Name: "TINY_AREA",
			Match: func(p *Photo, _ []string) bool {
				return p.Width*p.Height < cfg.MinPhotoArea
			},
		},
		{
			// Game textures recovered alongside the photo collection.
			Name: "GAME_TEXTURE",
			Match: func(_ *Photo, paths []string) bool {
				return anyPathContains(paths, "minecraft")
			},
		},
		{
			// Stop-motion animation software frames.
			Name: "ANIMATION_FRAME",
			Match: func(_ *Photo, paths []string) bool {
				return anyPathContains(paths, "HUE Animation")
			},
		},
		{
			// Chat-app emoticons; only when small enough to be an icon.
			Name: "CHAT_ICON",
			Match: func(p *Photo, paths []string) bool {
				for _, dir := range chatIconDirs {
					if anyPathContains(paths, dir) {
						return max(p.Width, p.Height) < 200
					}
				}
				return false
			},
		},
		{
			// Browser-saved web page assets: a *_files/ directory with a
			// companion .htm/.html next to it.
			Name: "WEB_ASSET",
			Match: func(_ *Photo, paths []string) bool {
				for _, path := range paths {
					m := webAssetDirRe.FindStringSubmatch(path)
					if m == nil {
						continue
					}
					for _, ext := range []string{".htm", ".html"} {
						if cfg.SiblingExists(m[1] + ext) {
							return true
						}
					}
				}
				return false
			},
		},
		{
			// Photos.app face-detection crops: /modelresources/, small,
			// roughly square.
			Name: "FACE_CROP",
			Match: func(p *Photo, paths []string) bool {
				if !anyPathContains(paths, "/modelresources/") {
					return false
				}
				if max(p.Width, p.Height) > 500 {
					return false
				}
				if p.Width == 0 || p.Height == 0 {
					return false
				}
				aspect := float64(p.Width) / float64(p.Height)
				return aspect >= 0.9 && aspect <= 1.1
			},
		},
		{
			// Built-in greeting card templates: 3-digit filenames under
			// a /Thumbnails/ path.
			Name: "STOCK_GREETING",
			Match: func(_ *Photo, paths []string) bool {
				for _, path := range paths {
					if !strings.Contains(strings.ToLower(path), "/thumbnails/") {
						continue
					}
					stem := greetingSuffixRe.ReplaceAllString(stemOf(path), "")
					if greetingStemRe.MatchString(stem) {
						return true
					}
				}
				return false
			},
		},
		{
			// Transient files in cache/temp/trash directories.
			Name: "SYSTEM_CACHE",
			Match: func(_ *Photo, paths []string) bool {
				for _, pat := range systemCachePatterns {
					if anyPathContains(paths, pat) {
						return true
					}
				}
				return false
			},
		},
		{
			// FlipShare auto-generated video preview frames.
			Name: "VIDEO_THUMB",
			Match: func(_ *Photo, paths []string) bool {
				return anyPathContains(paths, "/FlipShare Data/Previews/")
			},
		},
	}
}

// separationRules builds the ordered separation list: photos kept but
// routed outside the main duplicate-resolution flow.
func separationRules(cfg *Config) []IndividualRule {
	rules := []IndividualRule{}

	if len(cfg.SeparateCollections) > 0 {
		collections := cfg.SeparateCollections
		rules = append(rules, IndividualRule{
			// Digitized collections (scanned albums etc.) that need
			// manual handling; separating them also keeps them out of
			// similarity groups with the main collection.
			Name: "SCANNED_COLLECTION",
			Match: func(_ *Photo, paths []string) bool {
				for _, c := range collections {
					if anyPathContains(paths, c) {
						return true
					}
				}
				return false
			},
		})
	}

	rules = append(rules, IndividualRule{
		// Photo Booth shots need manual curation of the best takes.
		Name: "PHOTO_BOOTH",
		Match: func(_ *Photo, paths []string) bool {
			return anyPathContains(paths, "Photo Booth Library/Originals/") ||
				anyPathContains(paths, "Photo Booth Library/Pictures/")
		},
	})

	return rules
}
