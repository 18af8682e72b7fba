package recovery

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/corona10/goimagehash"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// HashPair is the result of hashing one photo: the primary hash drives
// grouping, the secondary disambiguates borderline primary distances.
type HashPair struct {
	Primary   Hash64
	Secondary Hash64
}

// ComputeHashes produces both perceptual fingerprints of a decoded
// image: a pHash as the primary signal and a dHash as the secondary.
func ComputeHashes(img image.Image) (HashPair, error) {
	p, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return HashPair{}, fmt.Errorf("perception hash: %w", err)
	}
	s, err := goimagehash.DifferenceHash(img)
	if err != nil {
		return HashPair{}, fmt.Errorf("difference hash: %w", err)
	}
	return HashPair{
		Primary:   Hash64(p.GetHash()),
		Secondary: Hash64(s.GetHash()),
	}, nil
}

// DecodeAndHash decodes raw image bytes (jpeg/png/gif/webp/bmp/tiff) and
// hashes the result. Corrupt or unreadable media returns an error for
// the caller to log and skip — it must never crash a stage.
func DecodeAndHash(data []byte) (HashPair, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return HashPair{}, fmt.Errorf("decode image: %w", err)
	}
	return ComputeHashes(img)
}
