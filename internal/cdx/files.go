package cdx

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// Files lists the saved result pages below root, i.e. every *.json file
// whose parent directory is named "data". The most recently modified pages
// come first; pages with equal times are ordered by name.
func Files(root string) ([]string, error) {
	type page struct {
		path    string
		modTime time.Time
	}
	var pages []page

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".json" || filepath.Base(filepath.Dir(path)) != "data" {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		pages = append(pages, page{path: path, modTime: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list result pages: %w", err)
	}

	slices.SortStableFunc(pages, func(a, b page) int {
		if c := b.modTime.Compare(a.modTime); c != 0 {
			return c
		}
		return strings.Compare(filepath.Base(a.path), filepath.Base(b.path))
	})
	paths := make([]string, len(pages))
	for i, p := range pages {
		paths[i] = p.path
	}
	return paths, nil
}

// ReadFile decodes one saved result page.
func ReadFile(path string) (List, error) {
	f, err := os.Open(path)
	if err != nil {
		return List{}, err
	}
	defer f.Close()

	list, err := DecodeJSON(f)
	if err != nil {
		return List{}, fmt.Errorf("%s: %w", path, err)
	}
	return list, nil
}
