package datastore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"gopkg.in/yaml.v3"
)

const (
	defaultAccessFileName = ".nimsaccess"
	defaultRuleCacheSize  = 1024

	// RequireValidUser marks a subtree as requiring an authenticated user
	RequireValidUser = "valid-user"
)

// Rule is the contents of a per-directory access override file. Unset fields
// inherit from the enclosing directory.
type Rule struct {
	Require string `yaml:"require"` // "" (inherit) or "valid-user"
	Indexes *bool  `yaml:"indexes"` // nil inherits
	Deny    bool   `yaml:"deny"`
}

// Policy is the effective access decision for a directory after overlaying
// every override file from the root down.
type Policy struct {
	RequireUser bool
	Indexes     bool
	Deny        bool
}

// DefaultPolicy mirrors the farm's base posture: open access with directory
// indexes enabled.
func DefaultPolicy() Policy {
	return Policy{Indexes: true}
}

type cachedRule struct {
	mtime int64
	size  int64
	rule  *Rule // nil means the file does not exist
}

// RuleSet loads and caches per-directory override files. Cache entries are
// keyed by file path and invalidated on mtime/size change, so edits to an
// override file take effect on the next request.
type RuleSet struct {
	root     string
	fileName string
	cache    *lru.Cache[string, cachedRule]
}

func NewRuleSet(root, fileName string, cacheSize int) (*RuleSet, error) {
	if fileName == "" {
		fileName = defaultAccessFileName
	}
	if cacheSize <= 0 {
		cacheSize = defaultRuleCacheSize
	}
	cache, err := lru.New[string, cachedRule](cacheSize)
	if err != nil {
		return nil, err
	}
	return &RuleSet{root: root, fileName: fileName, cache: cache}, nil
}

// FileName returns the override file name, so listings can hide it.
func (rs *RuleSet) FileName() string {
	return rs.fileName
}

// PolicyFor computes the effective policy for a directory given as a path
// relative to the farm root ("" or "." for the root itself).
func (rs *RuleSet) PolicyFor(relDir string) (Policy, error) {
	policy := DefaultPolicy()

	dirs := []string{rs.root}
	relDir = filepath.Clean("/" + relDir)
	if relDir != "/" {
		current := rs.root
		for _, seg := range strings.Split(strings.Trim(relDir, "/"), "/") {
			current = filepath.Join(current, seg)
			dirs = append(dirs, current)
		}
	}

	for _, dir := range dirs {
		rule, err := rs.load(filepath.Join(dir, rs.fileName))
		if err != nil {
			return Policy{}, err
		}
		if rule == nil {
			continue
		}
		if rule.Require == RequireValidUser {
			policy.RequireUser = true
		}
		if rule.Indexes != nil {
			policy.Indexes = *rule.Indexes
		}
		if rule.Deny {
			policy.Deny = true
		}
	}

	return policy, nil
}

func (rs *RuleSet) load(path string) (*Rule, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	if cached, ok := rs.cache.Get(path); ok &&
		cached.mtime == info.ModTime().UnixNano() && cached.size == info.Size() {
		return cached.rule, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var rule Rule
	if err := yaml.Unmarshal(data, &rule); err != nil {
		return nil, fmt.Errorf("malformed access file %s: %w", path, err)
	}

	rs.cache.Add(path, cachedRule{
		mtime: info.ModTime().UnixNano(),
		size:  info.Size(),
		rule:  &rule,
	})
	return &rule, nil
}
