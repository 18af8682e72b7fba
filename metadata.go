package recovery

import (
	"bytes"
	"regexp"
	"strconv"
	"time"

	"github.com/bep/imagemeta"
)

// exifDateTags are the EXIF fields that can carry a capture timestamp,
// in preference order.
var exifDateTags = []string{"DateTimeOriginal", "DateTimeDigitized", "DateTime"}

// filenameDateRes recognize timestamps embedded in recovered filenames:
// 20130203_144501, 2013-02-03, IMG_20130203_144501 and the like.
var filenameDateRes = []*regexp.Regexp{
	regexp.MustCompile(`(\d{4})(\d{2})(\d{2})[_-](\d{2})(\d{2})(\d{2})`),
	regexp.MustCompile(`(\d{4})-(\d{2})-(\d{2})`),
	regexp.MustCompile(`(\d{4})(\d{2})(\d{2})`),
}

// EstimateDate produces a capture-date estimate for a photo with a
// provenance tag, trying EXIF first, then the filename, then the file
// mtime. The returned hasEXIF flag reports whether any EXIF data was
// present at all, independent of whether it carried a usable date.
func EstimateDate(data []byte, filename string, mtime time.Time) (time.Time, DateSource, bool) {
	taken, found, hasEXIF := exifDate(data)
	if found {
		return taken, DateFromEXIF, hasEXIF
	}
	if taken, ok := dateFromFilename(filename); ok {
		return taken, DateFromFilename, hasEXIF
	}
	return mtime, DateFromMtime, hasEXIF
}

// exifDate pulls a capture timestamp out of EXIF data. Graceful
// degradation: unparseable metadata means no date, never an error.
func exifDate(data []byte) (taken time.Time, found, hasEXIF bool) {
	if len(data) == 0 {
		return time.Time{}, false, false
	}

	wanted := make(map[string]bool, len(exifDateTags))
	for _, tag := range exifDateTags {
		wanted[tag] = true
	}

	values := make(map[string]time.Time)

	err := imagemeta.Decode(imagemeta.Options{
		R:       bytes.NewReader(data),
		Sources: imagemeta.EXIF,
		ShouldHandleTag: func(ti imagemeta.TagInfo) bool {
			hasEXIF = true
			return wanted[ti.Tag]
		},
		HandleTag: func(ti imagemeta.TagInfo) error {
			if t, ok := tagValueTime(ti.Value); ok {
				values[ti.Tag] = t
			}
			return nil
		},
	})
	if err != nil {
		return time.Time{}, false, hasEXIF
	}

	for _, tag := range exifDateTags {
		if t, ok := values[tag]; ok {
			return t, true, hasEXIF
		}
	}
	return time.Time{}, false, hasEXIF
}

// tagValueTime converts an EXIF tag value to a time. EXIF timestamps
// arrive either pre-parsed or as "2006:01:02 15:04:05" strings.
func tagValueTime(v any) (time.Time, bool) {
	switch val := v.(type) {
	case time.Time:
		if val.IsZero() {
			return time.Time{}, false
		}
		return val, true
	case string:
		t, err := time.Parse("2006:01:02 15:04:05", val)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	default:
		return time.Time{}, false
	}
}

// dateFromFilename recognizes a timestamp embedded in the filename.
// Implausible dates (before 1980 or in the future) are ignored — camera
// serial numbers often look like dates.
func dateFromFilename(filename string) (time.Time, bool) {
	for _, re := range filenameDateRes {
		m := re.FindStringSubmatch(filename)
		if m == nil {
			continue
		}
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		hour, minute, sec := 0, 0, 0
		if len(m) == 7 {
			hour, _ = strconv.Atoi(m[4])
			minute, _ = strconv.Atoi(m[5])
			sec, _ = strconv.Atoi(m[6])
		}
		if month < 1 || month > 12 || day < 1 || day > 31 || hour > 23 || minute > 59 || sec > 59 {
			continue
		}
		t := time.Date(year, time.Month(month), day, hour, minute, sec, 0, time.UTC)
		if t.Year() < 1980 || t.After(time.Now()) {
			continue
		}
		return t, true
	}
	return time.Time{}, false
}
