package recovery

import "time"

// Hash64 is a fixed-width perceptual fingerprint of an image's visual
// content, compared by Hamming distance.
type Hash64 uint64

// DateSource tags where a photo's capture-date estimate came from.
type DateSource string

const (
	DateFromEXIF     DateSource = "exif"
	DateFromFilename DateSource = "filename"
	DateFromMtime    DateSource = "mtime"
)

// Photo is one unique image, identified by its content checksum. Created
// once per checksum at ingestion; the hash fields are the only fields
// filled in after creation (exactly once, by the hashing stage).
type Photo struct {
	ID         string // sha256 of content, hex
	MIME       string
	FileSize   int64
	Width      int
	Height     int
	DateTaken  time.Time
	DateSource DateSource
	HasEXIF    bool

	PrimaryHash   Hash64 // pHash-style
	SecondaryHash Hash64 // dHash-style
	HasHashes     bool   // both hashes computed
}

// Area returns the pixel area; zero when dimensions are unknown.
func (p *Photo) Area() int {
	return p.Width * p.Height
}

// PhotoPath is one observed source location of a photo. Append-only:
// paths survive even when their photo is rejected.
type PhotoPath struct {
	PhotoID    string
	SourcePath string
	Filename   string
}

// Decision is the outcome of an individual rule.
type Decision string

const (
	// DecisionReject discards the photo as non-valuable.
	DecisionReject Decision = "reject"

	// DecisionSeparate keeps the photo but routes it outside the main
	// duplicate-resolution flow.
	DecisionSeparate Decision = "separate"
)

// IndividualDecision records the first individual rule that matched a
// photo. At most one per photo; permanent within a pipeline run.
type IndividualDecision struct {
	PhotoID  string
	Decision Decision
	RuleName string
}

// DuplicateGroup assigns a photo to a similarity cluster. A photo belongs
// to at most one group per clustering pass.
type DuplicateGroup struct {
	PhotoID string
	GroupID int64
}

// GroupRejection records a photo eliminated by a group rule, with the
// member it was rejected in favor of. A group of N members produces at
// most N-1 rejections.
type GroupRejection struct {
	PhotoID     string
	GroupID     int64
	RuleName    string
	KeptPhotoID string
}

// AggregatedPath re-attaches a rejected photo's source path to a
// surviving member of its group, preserving provenance.
type AggregatedPath struct {
	KeptPhotoID string
	SourcePath  string
	FromPhotoID string
}
