package arcade

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalogYAML []byte

type GameInfo struct {
	Key               string `yaml:"key" json:"key"`
	Enabled           bool   `yaml:"enabled" json:"enabled"`
	DailyMaxPlayCount int    `yaml:"daily_max_play_count" json:"daily_max_play_count"`
}

type GradeUpRule struct {
	Next       string `yaml:"next" json:"next"`
	Percentage int    `yaml:"percentage" json:"percentage"`
}

type CabinetGrade struct {
	SubCategory string      `yaml:"sub_category" json:"sub_category"`
	GradeUp     GradeUpRule `yaml:"grade_up" json:"grade_up"`
}

type catalogFile struct {
	Games           []GameInfo             `yaml:"games"`
	CabinetGrades   []CabinetGrade         `yaml:"cabinet_grades"`
	GameCenterSizes map[GameCenterSize]int `yaml:"game_center_sizes"`
}

// Catalog is the static lookup table for games, cabinet grades and game
// center capacities. It is read-only after construction.
type Catalog struct {
	games      map[string]GameInfo
	grades     map[string]CabinetGrade
	gradeOrder []string
	capacities map[GameCenterSize]int
}

// DefaultCatalog returns the catalog compiled into the binary.
func DefaultCatalog() *Catalog {
	c, err := ParseCatalog(defaultCatalogYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded catalog: %v", err))
	}
	return c
}

// LoadCatalog reads a YAML catalog from path.
func LoadCatalog(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return ParseCatalog(raw)
}

func ParseCatalog(raw []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	c := &Catalog{
		games:      make(map[string]GameInfo, len(f.Games)),
		grades:     make(map[string]CabinetGrade, len(f.CabinetGrades)),
		capacities: make(map[GameCenterSize]int, len(f.GameCenterSizes)),
	}
	for _, g := range f.Games {
		key := strings.TrimSpace(g.Key)
		if key == "" {
			return nil, fmt.Errorf("catalog game with empty key")
		}
		if g.DailyMaxPlayCount < 0 {
			return nil, fmt.Errorf("game %s: daily_max_play_count must be >= 0", key)
		}
		g.Key = key
		c.games[key] = g
	}
	for _, g := range f.CabinetGrades {
		if _, dup := c.grades[g.SubCategory]; dup {
			return nil, fmt.Errorf("duplicate cabinet grade %s", g.SubCategory)
		}
		c.grades[g.SubCategory] = g
		c.gradeOrder = append(c.gradeOrder, g.SubCategory)
	}
	for _, g := range c.grades {
		if g.GradeUp.Percentage < 0 || g.GradeUp.Percentage > 100 {
			return nil, fmt.Errorf("cabinet grade %s: percentage must be within [0,100]", g.SubCategory)
		}
		if g.GradeUp.Percentage > 0 {
			if _, ok := c.grades[g.GradeUp.Next]; !ok {
				return nil, fmt.Errorf("cabinet grade %s: unknown next grade %q", g.SubCategory, g.GradeUp.Next)
			}
		}
	}
	for size, capacity := range f.GameCenterSizes {
		if capacity <= 0 {
			return nil, fmt.Errorf("game center size %s: capacity must be > 0", size)
		}
		c.capacities[size] = capacity
	}
	return c, nil
}

func (c *Catalog) Game(key string) (GameInfo, bool) {
	g, ok := c.games[key]
	return g, ok
}

// GameEnabled is false for unknown games.
func (c *Catalog) GameEnabled(key string) bool {
	g, ok := c.games[key]
	return ok && g.Enabled
}

func (c *Catalog) CabinetGrade(subCategory string) (CabinetGrade, bool) {
	g, ok := c.grades[subCategory]
	return g, ok
}

// CabinetGrades lists grades lowest first.
func (c *Catalog) CabinetGrades() []CabinetGrade {
	out := make([]CabinetGrade, 0, len(c.gradeOrder))
	for _, key := range c.gradeOrder {
		out = append(out, c.grades[key])
	}
	return out
}

func (c *Catalog) Capacity(size GameCenterSize) (int, bool) {
	n, ok := c.capacities[size]
	return n, ok
}
