package main

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/benbc/recovery"
)

// excludeFilenames are filesystem litter, never photos.
var excludeFilenames = map[string]bool{
	".DS_Store":   true,
	"Thumbs.db":   true,
	"desktop.ini": true,
	".picasa.ini": true,
}

var scanCmd = &cobra.Command{
	Use:   "scan <source-dir>",
	Short: "Ingest recovered files into the database",
	Long: `Walk a directory of recovered files and record every unique image:
content checksum, dimensions, MIME type, and a capture-date estimate
(EXIF, then filename, then mtime). Re-scanning is idempotent — photos
are keyed by checksum and paths are append-only.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := cmd.Context()
		root := args[0]
		var photos, paths, skipped int

		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || excludeFilenames[d.Name()] {
				return nil
			}

			data, err := os.ReadFile(path)
			if err != nil {
				fmt.Fprintf(os.Stderr, "skipping unreadable %s: %v\n", path, err)
				skipped++
				return nil
			}

			mime := http.DetectContentType(data)
			if !strings.HasPrefix(mime, "image/") {
				return nil
			}

			info, err := d.Info()
			if err != nil {
				return err
			}

			photo := &recovery.Photo{
				ID:       fmt.Sprintf("%x", sha256.Sum256(data)),
				MIME:     mime,
				FileSize: info.Size(),
			}
			if imgCfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
				photo.Width = imgCfg.Width
				photo.Height = imgCfg.Height
			}
			photo.DateTaken, photo.DateSource, photo.HasEXIF =
				recovery.EstimateDate(data, d.Name(), info.ModTime())

			inserted, err := db.InsertPhoto(ctx, photo)
			if err != nil {
				return err
			}
			if inserted {
				photos++
			}
			if err := db.InsertPath(ctx, recovery.PhotoPath{
				PhotoID:    photo.ID,
				SourcePath: path,
				Filename:   d.Name(),
			}); err != nil {
				return err
			}
			paths++
			return nil
		})
		if err != nil {
			return err
		}

		fmt.Printf("scanned %s: %d new photos, %d paths, %d unreadable\n", root, photos, paths, skipped)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)
}
