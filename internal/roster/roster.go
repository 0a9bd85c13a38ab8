// Package roster loads the fleet of sites to audit from a directory of CSV
// files, one file per theme. The file basename (without extension) is the
// theme name; a site listed in several files belongs to several themes.
package roster

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Site describes one entry of the audit fleet.
type Site struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Slug    string   `json:"slug"`
	Brand   string   `json:"brand"`
	Domain  string   `json:"domain"`
	Account string   `json:"account"`
	Themes  []string `json:"themes"`
}

var columns = []string{"id", "name", "slug", "brand", "domain", "account"}

// LoadDir reads every *.csv file under dir and returns the deduplicated site
// list. Rows without a domain are skipped. When the same domain appears in
// more than one theme file, the first record wins and the themes are merged.
// Sites keep first-seen order; themes on a site are sorted.
func LoadDir(dir string, logger *zap.Logger) ([]Site, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read roster dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	if len(names) == 0 {
		return nil, fmt.Errorf("no roster files in %s", dir)
	}

	byDomain := make(map[string]*Site)
	var order []string

	for _, name := range names {
		theme := strings.TrimSuffix(name, filepath.Ext(name))
		rows, err := readFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("roster file %s: %w", name, err)
		}

		for _, row := range rows {
			domain := strings.TrimSpace(row["domain"])
			if domain == "" {
				continue
			}
			if existing, ok := byDomain[domain]; ok {
				existing.Themes = appendTheme(existing.Themes, theme)
				continue
			}
			byDomain[domain] = &Site{
				ID:      row["id"],
				Name:    row["name"],
				Slug:    row["slug"],
				Brand:   row["brand"],
				Domain:  domain,
				Account: row["account"],
				Themes:  []string{theme},
			}
			order = append(order, domain)
		}
		logger.Debug("roster theme loaded", zap.String("theme", theme), zap.Int("rows", len(rows)))
	}

	sites := make([]Site, 0, len(order))
	for _, domain := range order {
		s := byDomain[domain]
		sort.Strings(s.Themes)
		sites = append(sites, *s)
	}

	logger.Info("roster loaded",
		zap.Int("sites", len(sites)),
		zap.Int("themes", len(names)))
	return sites, nil
}

func appendTheme(themes []string, theme string) []string {
	for _, t := range themes {
		if t == theme {
			return themes
		}
	}
	return append(themes, theme)
}

func readFile(path string) ([]map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, c := range []string{"domain", "name"} {
		if _, ok := index[c]; !ok {
			return nil, fmt.Errorf("missing column %q", c)
		}
	}

	var rows []map[string]string
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		row := make(map[string]string, len(columns))
		for _, c := range columns {
			if i, ok := index[c]; ok && i < len(record) {
				row[c] = strings.TrimSpace(record[i])
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}
