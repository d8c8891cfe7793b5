// Package catalog holds the static, read-only question catalog.
//
// The catalog is loaded once at startup from JSON (the embedded default or a
// file given on the command line) and never mutated afterwards. Lookups return
// an ok flag instead of an error so callers can fall back to default copy.
package catalog

import (
	"bytes"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/pavelanni/alicorn/internal/model"
)

// DefaultKey in a text or guidance object applies to every stakeholder without
// an explicit entry.
const DefaultKey = "*"

// ErrInvalidCatalog wraps every validation failure.
var ErrInvalidCatalog = errors.New("invalid catalog")

//go:embed data/catalog.json
var defaultCatalog []byte

type questionRef struct {
	level int
	index int
}

// Catalog is an immutable, ordered table of levels.
type Catalog struct {
	levels  []model.Level
	byID    map[string]int
	byCode  map[string]questionRef
	version string
}

type fileQuestion struct {
	Category  model.Category               `json:"category"`
	Dimension string                       `json:"dimension"`
	Code      string                       `json:"code"`
	Gleams    float64                      `json:"gleams"`
	Alicorns  float64                      `json:"alicorns"`
	Text      map[string]string            `json:"text"`
	Guidance  map[string]map[string]string `json:"guidance"`
}

type fileLevel struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Focus     string         `json:"focus"`
	Questions []fileQuestion `json:"questions"`
}

type fileCatalog struct {
	Levels []fileLevel `json:"levels"`
}

// Default returns the catalog embedded in the binary.
func Default() (*Catalog, error) {
	return Load(bytes.NewReader(defaultCatalog))
}

// LoadFile reads a catalog from a JSON file.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load parses and validates a JSON catalog.
func Load(r io.Reader) (*Catalog, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var fc fileCatalog
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	levels := make([]model.Level, 0, len(fc.Levels))
	for _, fl := range fc.Levels {
		lvl := model.Level{ID: fl.ID, Name: fl.Name, Focus: fl.Focus}
		for _, fq := range fl.Questions {
			q, err := fq.expand()
			if err != nil {
				return nil, fmt.Errorf("%w: level %s: %v", ErrInvalidCatalog, fl.ID, err)
			}
			lvl.Questions = append(lvl.Questions, q)
		}
		levels = append(levels, lvl)
	}

	c, err := New(levels)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(data)
	c.version = hex.EncodeToString(sum[:])
	return c, nil
}

// expand resolves DefaultKey entries into one entry per stakeholder.
func (fq fileQuestion) expand() (model.Question, error) {
	q := model.Question{
		Category:          fq.Category,
		Dimension:         fq.Dimension,
		Code:              fq.Code,
		Gleams:            fq.Gleams,
		Alicorns:          fq.Alicorns,
		TextByStakeholder: make(map[model.Stakeholder]string, len(model.Stakeholders)),
	}

	for k := range fq.Text {
		if k != DefaultKey && !model.Stakeholder(k).Valid() {
			return q, fmt.Errorf("question %s: unknown stakeholder %q in text", fq.Code, k)
		}
	}
	for _, s := range model.Stakeholders {
		if text, ok := fq.Text[string(s)]; ok {
			q.TextByStakeholder[s] = text
		} else if text, ok := fq.Text[DefaultKey]; ok {
			q.TextByStakeholder[s] = text
		}
	}

	if len(fq.Guidance) == 0 {
		return q, nil
	}
	parsed := make(map[string]map[int]string, len(fq.Guidance))
	for k, hints := range fq.Guidance {
		if k != DefaultKey && !model.Stakeholder(k).Valid() {
			return q, fmt.Errorf("question %s: unknown stakeholder %q in guidance", fq.Code, k)
		}
		m := make(map[int]string, len(hints))
		for lvl, hint := range hints {
			n, err := strconv.Atoi(lvl)
			if err != nil {
				return q, fmt.Errorf("question %s: confidence key %q: %w", fq.Code, lvl, err)
			}
			m[n] = hint
		}
		parsed[k] = m
	}
	q.GuidanceByStakeholder = make(map[model.Stakeholder]map[int]string, len(model.Stakeholders))
	for _, s := range model.Stakeholders {
		if m, ok := parsed[string(s)]; ok {
			q.GuidanceByStakeholder[s] = m
		} else if m, ok := parsed[DefaultKey]; ok {
			q.GuidanceByStakeholder[s] = m
		}
	}
	return q, nil
}

// New builds a catalog from already expanded levels, in order.
func New(levels []model.Level) (*Catalog, error) {
	c := &Catalog{
		levels: levels,
		byID:   make(map[string]int, len(levels)),
		byCode: make(map[string]questionRef),
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Catalog) validate() error {
	if len(c.levels) == 0 {
		return fmt.Errorf("%w: no levels", ErrInvalidCatalog)
	}
	for li, lvl := range c.levels {
		if lvl.ID == "" {
			return fmt.Errorf("%w: level %d has no id", ErrInvalidCatalog, li)
		}
		if _, dup := c.byID[lvl.ID]; dup {
			return fmt.Errorf("%w: duplicate level id %s", ErrInvalidCatalog, lvl.ID)
		}
		c.byID[lvl.ID] = li

		for qi, q := range lvl.Questions {
			if q.Code == "" {
				return fmt.Errorf("%w: level %s question %d has no code", ErrInvalidCatalog, lvl.ID, qi)
			}
			if prev, dup := c.byCode[q.Code]; dup {
				return fmt.Errorf("%w: question code %s used in %s and %s",
					ErrInvalidCatalog, q.Code, c.levels[prev.level].ID, lvl.ID)
			}
			c.byCode[q.Code] = questionRef{level: li, index: qi}

			if !q.Category.Valid() {
				return fmt.Errorf("%w: question %s has unknown category %q", ErrInvalidCatalog, q.Code, q.Category)
			}
			if q.Gleams < 0 || q.Alicorns < 0 {
				return fmt.Errorf("%w: question %s has negative weights", ErrInvalidCatalog, q.Code)
			}
			for _, s := range model.Stakeholders {
				if q.TextByStakeholder[s] == "" {
					return fmt.Errorf("%w: question %s has no text for %s", ErrInvalidCatalog, q.Code, s)
				}
			}
			for s, hints := range q.GuidanceByStakeholder {
				for n := range hints {
					if n < model.MinConfidence || n > model.MaxConfidence {
						return fmt.Errorf("%w: question %s guidance for %s has confidence %d",
							ErrInvalidCatalog, q.Code, s, n)
					}
				}
			}
		}
	}
	return nil
}

// Version identifies the catalog source. It is empty for catalogs built with New.
func (c *Catalog) Version() string {
	return c.version
}

// Levels returns the levels in journey order. Callers must not modify them.
func (c *Catalog) Levels() []model.Level {
	return c.levels
}

// Len returns the number of levels.
func (c *Catalog) Len() int {
	return len(c.levels)
}

// Level returns the level with the given id.
func (c *Catalog) Level(id string) (model.Level, bool) {
	i, ok := c.byID[id]
	if !ok {
		return model.Level{}, false
	}
	return c.levels[i], true
}

// LevelAt returns the level at position i in journey order.
func (c *Catalog) LevelAt(i int) (model.Level, bool) {
	if i < 0 || i >= len(c.levels) {
		return model.Level{}, false
	}
	return c.levels[i], true
}

// LevelIndex returns the journey position of a level id.
func (c *Catalog) LevelIndex(id string) (int, bool) {
	i, ok := c.byID[id]
	return i, ok
}

// Question finds a question by its code and returns the id of its level.
func (c *Catalog) Question(code string) (model.Question, string, bool) {
	ref, ok := c.byCode[code]
	if !ok {
		return model.Question{}, "", false
	}
	lvl := c.levels[ref.level]
	return lvl.Questions[ref.index], lvl.ID, true
}

// QuestionText returns the stakeholder's variant of a question's text.
func (c *Catalog) QuestionText(levelID string, questionIndex int, s model.Stakeholder) (string, bool) {
	lvl, ok := c.Level(levelID)
	if !ok || questionIndex < 0 || questionIndex >= len(lvl.Questions) {
		return "", false
	}
	text, ok := lvl.Questions[questionIndex].TextByStakeholder[s]
	return text, ok && text != ""
}

// ConfidenceGuidance returns the hint shown next to a confidence level.
func ConfidenceGuidance(q model.Question, s model.Stakeholder, confidence int) (string, bool) {
	hints, ok := q.GuidanceByStakeholder[s]
	if !ok {
		return "", false
	}
	text, ok := hints[confidence]
	return text, ok && text != ""
}
