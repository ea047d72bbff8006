package source

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

var (
	ErrNoSourceFile    = errors.New("source: no file for fragment")
	ErrAmbiguousSource = errors.New("source: more than one file for fragment")
	ErrNoRelease       = errors.New("source: no dm+d release found")
	ErrNoMapping       = errors.New("source: no BNF/SNOMED mapping found")
	ErrBadRelease      = errors.New("source: malformed release directory name")
)

const releasePrefix = "nhsbsa_dmd_"

// Fragments lists the release files in load order.
var Fragments = []string{"lookup", "ingredient", "vtm", "vmp", "vmpp", "amp", "ampp", "gtin"}

// Release identifies one unzipped dm+d release.
type Release struct {
	Dir string
	// ID is the directory name without its prefix, e.g. 7.4.0_20190729000001.
	ID   string
	Date time.Time
}

// ParseRelease derives the release id and date from a directory named
// nhsbsa_dmd_<version>_<YYYYMMDD...>.
func ParseRelease(dir string) (Release, error) {
	base := filepath.Base(filepath.Clean(dir))
	if !strings.HasPrefix(base, releasePrefix) {
		return Release{}, fmt.Errorf("%w: %s", ErrBadRelease, base)
	}
	id := strings.TrimPrefix(base, releasePrefix)

	parts := strings.Split(id, "_")
	if len(parts) < 2 || len(parts[1]) < 8 {
		return Release{}, fmt.Errorf("%w: %s", ErrBadRelease, base)
	}
	date, err := time.Parse("20060102", parts[1][:8])
	if err != nil {
		return Release{}, fmt.Errorf("%w: %s: %v", ErrBadRelease, base, err)
	}
	return Release{Dir: dir, ID: id, Date: date}, nil
}

// FindRelease returns the latest release under dataDir/dmd/<stamp>/.
// Zip files sharing the prefix are ignored.
func FindRelease(dataDir string) (Release, error) {
	matches, err := filepath.Glob(filepath.Join(dataDir, "dmd", "*", releasePrefix+"*"))
	if err != nil {
		return Release{}, err
	}
	var dirs []string
	for _, m := range matches {
		if fi, err := os.Stat(m); err == nil && fi.IsDir() {
			dirs = append(dirs, m)
		}
	}
	if len(dirs) == 0 {
		return Release{}, fmt.Errorf("%w under %s", ErrNoRelease, dataDir)
	}
	sort.Strings(dirs)
	return ParseRelease(dirs[len(dirs)-1])
}

// FindMapping returns the latest mapping spreadsheet under
// dataDir/bnf_snomed_mapping/<stamp>/. Both .xlsx and .csv are accepted.
func FindMapping(dataDir string) (string, error) {
	var paths []string
	for _, ext := range []string{"*.xlsx", "*.csv"} {
		m, err := filepath.Glob(filepath.Join(dataDir, "bnf_snomed_mapping", "*", ext))
		if err != nil {
			return "", err
		}
		paths = append(paths, m...)
	}
	if len(paths) == 0 {
		return "", fmt.Errorf("%w under %s", ErrNoMapping, dataDir)
	}
	sort.Strings(paths)
	return paths[len(paths)-1], nil
}

// Locate finds the single file f_<fragment>2_*.xml in dir.
func Locate(dir, fragment string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "f_"+fragment+"2_*.xml"))
	if err != nil {
		return "", err
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w %q in %s", ErrNoSourceFile, fragment, dir)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("%w %q: %s", ErrAmbiguousSource, fragment, strings.Join(matches, ", "))
	}
}

// LocateAll resolves every fragment, failing on the first missing or
// ambiguous one.
func LocateAll(dir string) (map[string]string, error) {
	out := make(map[string]string, len(Fragments))
	for _, frag := range Fragments {
		p, err := Locate(dir, frag)
		if err != nil {
			return nil, err
		}
		out[frag] = p
	}
	return out, nil
}
