package parser

import (
	"bytes"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/starford/sowilo/internal/models"
)

var (
	ErrNoFrontmatter      = errors.New("parser: no frontmatter")
	ErrInvalidFrontmatter = errors.New("parser: invalid frontmatter")
)

// knownKeys are the frontmatter keys owned by LearnNode. Everything else is
// carried in Document.Extra and written back untouched.
var knownKeys = map[string]struct{}{
	"id": {}, "title": {}, "summary": {}, "path": {}, "type": {}, "status": {},
	"tags": {}, "prerequisites": {}, "unlocks": {}, "familiarity": {}, "srs_stage": {},
	"last_reviewed": {}, "next_review": {}, "created": {}, "updated": {},
}

type frontmatter struct {
	ID            string     `yaml:"id"`
	Title         string     `yaml:"title"`
	Summary       string     `yaml:"summary,omitempty"`
	Path          string     `yaml:"path"`
	Type          string     `yaml:"type,omitempty"`
	Status        string     `yaml:"status"`
	Tags          []string   `yaml:"tags,flow"`
	Prerequisites []string   `yaml:"prerequisites,flow"`
	Unlocks       []string   `yaml:"unlocks,flow"`
	Familiarity   int        `yaml:"familiarity"`
	SRSStage      int        `yaml:"srs_stage"`
	LastReviewed  *time.Time `yaml:"last_reviewed,omitempty"`
	NextReview    *time.Time `yaml:"next_review,omitempty"`
	Created       *time.Time `yaml:"created,omitempty"`
	Updated       *time.Time `yaml:"updated,omitempty"`
}

// Document is a decoded node file.
type Document struct {
	Node  *models.LearnNode
	Extra map[string]interface{}
}

// DecodeNode decodes a node file stored at file (vault-relative). Missing id
// and path are derived from the file location; a missing status follows the
// creation lifecycle (locked iff the node has prerequisites).
func DecodeNode(file string, data []byte) (*Document, error) {
	block, body, ok := split(data)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoFrontmatter, file)
	}

	var fm frontmatter
	if err := yaml.Unmarshal(block, &fm); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidFrontmatter, file, err)
	}
	var raw map[string]interface{}
	if err := yaml.Unmarshal(block, &raw); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidFrontmatter, file, err)
	}

	n := &models.LearnNode{
		ID:            fm.ID,
		Title:         fm.Title,
		Summary:       fm.Summary,
		Path:          fm.Path,
		Type:          fm.Type,
		Tags:          nonNil(fm.Tags),
		Prerequisites: nonNil(fm.Prerequisites),
		Unlocks:       nonNil(fm.Unlocks),
		Familiarity:   fm.Familiarity,
		SRSStage:      fm.SRSStage,
		LastReviewed:  utc(fm.LastReviewed),
		NextReview:    utc(fm.NextReview),
		Created:       utc(fm.Created),
		Updated:       utc(fm.Updated),
		Body:          body,
	}

	if n.ID == "" {
		n.ID = strings.TrimSuffix(path.Clean(strings.ReplaceAll(file, "\\", "/")), ".md")
	}
	if n.Path == "" {
		if i := strings.Index(n.ID, "/"); i > 0 {
			n.Path = n.ID[:i]
		}
	}
	if n.Title == "" {
		n.Title = deriveTitle(nil, body)
	}
	switch fm.Status {
	case "":
		n.Status = models.StatusAvailable
		if len(n.Prerequisites) > 0 {
			n.Status = models.StatusLocked
		}
	default:
		st, err := models.ParseStatus(fm.Status)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidFrontmatter, file, err)
		}
		n.Status = st
	}

	extra := make(map[string]interface{})
	for k, v := range raw {
		if _, known := knownKeys[k]; !known {
			extra[k] = v
		}
	}
	return &Document{Node: n, Extra: extra}, nil
}

// EncodeNode renders n as a node file. Known fields come first in a fixed
// order, followed by extra keys sorted by name.
func EncodeNode(n *models.LearnNode, extra map[string]interface{}) ([]byte, error) {
	fm := frontmatter{
		ID:            n.ID,
		Title:         n.Title,
		Summary:       n.Summary,
		Path:          n.Path,
		Type:          n.Type,
		Status:        n.Status.String(),
		Tags:          nonNil(n.Tags),
		Prerequisites: nonNil(n.Prerequisites),
		Unlocks:       nonNil(n.Unlocks),
		Familiarity:   n.Familiarity,
		SRSStage:      n.SRSStage,
		LastReviewed:  utc(n.LastReviewed),
		NextReview:    utc(n.NextReview),
		Created:       utc(n.Created),
		Updated:       utc(n.Updated),
	}

	var doc yaml.Node
	if err := doc.Encode(fm); err != nil {
		return nil, fmt.Errorf("parser: encode frontmatter: %w", err)
	}

	keys := make([]string, 0, len(extra))
	for k := range extra {
		if _, known := knownKeys[k]; !known {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		var key, val yaml.Node
		key.SetString(k)
		if err := val.Encode(extra[k]); err != nil {
			return nil, fmt.Errorf("parser: encode %q: %w", k, err)
		}
		doc.Content = append(doc.Content, &key, &val)
	}

	block, err := yaml.Marshal(&doc)
	if err != nil {
		return nil, fmt.Errorf("parser: marshal frontmatter: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(delim + "\n")
	buf.Write(block)
	buf.WriteString(delim + "\n")
	if n.Body != "" {
		buf.WriteString("\n")
		buf.WriteString(n.Body)
		if !strings.HasSuffix(n.Body, "\n") {
			buf.WriteString("\n")
		}
	}
	return buf.Bytes(), nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
