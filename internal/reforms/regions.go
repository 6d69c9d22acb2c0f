package reforms

import (
	_ "embed"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/goccy/go-yaml"
)

//go:embed regions.yaml
var defaultRegionsYAML []byte

type regionConfig struct {
	Regions map[string][]string `yaml:"regions"`
}

var (
	regionOnce sync.Once
	regionMap  map[string][]string // region name (lowercase) -> division codes
)

// loadRegions parses the region table once. REGIONS_FILE overrides the
// embedded default; a broken override falls back rather than failing boot.
func loadRegions() {
	regionOnce.Do(func() {
		data := defaultRegionsYAML
		if path := os.Getenv("REGIONS_FILE"); path != "" {
			if b, err := os.ReadFile(path); err == nil {
				data = b
			} else {
				log.Printf("[Regions] override %s unreadable, using embedded table: %v", path, err)
			}
		}

		var cfg regionConfig
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			log.Printf("[Regions] parse error, using embedded table: %v", err)
			cfg = regionConfig{}
			_ = yaml.Unmarshal(defaultRegionsYAML, &cfg)
		}

		regionMap = make(map[string][]string, len(cfg.Regions))
		for name, codes := range cfg.Regions {
			normalized := make([]string, 0, len(codes))
			for _, c := range codes {
				normalized = append(normalized, strings.ToUpper(c))
			}
			regionMap[strings.ToLower(name)] = normalized
		}
	})
}

// RegionCodes returns the division codes for a region name.
func RegionCodes(name string) ([]string, bool) {
	loadRegions()
	codes, ok := regionMap[strings.ToLower(strings.TrimSpace(name))]
	return codes, ok
}

func regionForDivision(code string) (string, bool) {
	loadRegions()
	for region, codes := range regionMap {
		for _, c := range codes {
			if c == code {
				return region, true
			}
		}
	}
	return "", false
}
