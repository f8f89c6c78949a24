package upload

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/KarpelesLab/pjson"
	"github.com/gabriel-vasile/mimetype"
	"gopkg.in/yaml.v3"
)

// LoadManifest reads a list of files from a JSON or YAML document (picked
// from the extension). Entries without a content type or length are
// completed from the local file, see Describe.
//
// A manifest looks like:
//
//	[{"path": "dist/index.html", "url": "https://bucket.example/...&X-Amz-Signature=..."}]
func LoadManifest(path string) ([]File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var files []File
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &files)
	default:
		err = pjson.Unmarshal(data, &files)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}

	base := filepath.Dir(path)
	for i, f := range files {
		if f.Path == "" || f.URL == "" {
			return nil, fmt.Errorf("manifest %s: entry %d requires path and url", path, i)
		}
		if !filepath.IsAbs(f.Path) {
			// relative to the manifest
			f.Path = filepath.Join(base, f.Path)
		}
		if f.ContentType == "" || f.ContentLength == 0 {
			d, err := Describe(f.Path, f.URL)
			if err != nil {
				return nil, err
			}
			if f.ContentType == "" {
				f.ContentType = d.ContentType
			}
			if f.ContentLength == 0 {
				f.ContentLength = d.ContentLength
			}
		}
		files[i] = f
	}
	return files, nil
}

// Describe builds a File for a local path, using its size and sniffed content type.
func Describe(path, url string) (File, error) {
	st, err := os.Stat(path)
	if err != nil {
		return File{}, err
	}
	if st.IsDir() {
		return File{}, fmt.Errorf("%s is a directory", path)
	}

	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return File{}, err
	}

	return File{
		Path:          path,
		URL:           url,
		ContentType:   mt.String(),
		ContentLength: st.Size(),
	}, nil
}
