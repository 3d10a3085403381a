// Package access holds the persisted privilege policy: named groups of
// role IDs consulted by callers before privileged operations.
package access

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/mortemhouse/mortem/internal/storage/snapshot"
)

// Privilege group names.
const (
	GroupAdmin     = "admin"
	GroupHealer    = "healer"
	GroupModerator = "moderator"
)

// ValidGroup reports whether group is a recognised privilege group.
func ValidGroup(group string) bool {
	switch group {
	case GroupAdmin, GroupHealer, GroupModerator:
		return true
	}
	return false
}

// ErrInvalidGroup is returned when an unrecognised group name is
// supplied.
var ErrInvalidGroup = errors.New("invalid group")

// schemaVersion is the newest policy file layout this build reads.
const schemaVersion = 1

// policyFile is the on-disk shape: one sorted role list per group.
type policyFile struct {
	Version int                 `yaml:"version"`
	Groups  map[string][]string `yaml:"groups"`
}

// Store is the persisted policy: one role-ID set per privilege group,
// guarded by its own mutex and rewritten atomically on every change.
type Store struct {
	path   string
	logger *zap.Logger

	mu     sync.Mutex
	groups map[string]map[string]struct{}
}

// Open loads the policy at path, or starts empty when the file is
// missing, unreadable, or carries a newer schema version. Every path
// persists immediately so the file exists afterward; the unreadable
// case is logged at error level and overwritten.
func Open(path string, logger *zap.Logger) (*Store, error) {
	s := &Store{
		path:   path,
		logger: logger,
		groups: make(map[string]map[string]struct{}),
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logger.Info("policy file missing, starting empty", zap.String("path", path))
	case err != nil:
		logger.Error("policy file unreadable, starting empty",
			zap.String("path", path),
			zap.Error(err),
		)
	default:
		if loadErr := s.restore(data); loadErr != nil {
			logger.Error("policy file unreadable, starting empty",
				zap.String("path", path),
				zap.Error(loadErr),
			)
			s.groups = make(map[string]map[string]struct{})
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.persistLocked(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) restore(data []byte) error {
	var pf policyFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return fmt.Errorf("parsing policy file: %w", err)
	}
	if pf.Version > schemaVersion {
		return fmt.Errorf("policy schema version %d is newer than supported %d", pf.Version, schemaVersion)
	}
	for group, roles := range pf.Groups {
		if !ValidGroup(group) {
			s.logger.Warn("unknown policy group ignored", zap.String("group", group))
			continue
		}
		set := make(map[string]struct{}, len(roles))
		for _, role := range roles {
			if role == "" {
				continue
			}
			set[role] = struct{}{}
		}
		s.groups[group] = set
	}
	return nil
}

// Grant adds role to group. Granting an already-present role changes
// nothing and does not rewrite the file. A failed write keeps the
// in-memory grant and surfaces the error.
func (s *Store) Grant(group, role string) error {
	if !ValidGroup(group) {
		return fmt.Errorf("%w: %q", ErrInvalidGroup, group)
	}
	if role == "" {
		return errors.New("role must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.groups[group]
	if !ok {
		set = make(map[string]struct{})
		s.groups[group] = set
	}
	if _, exists := set[role]; exists {
		return nil
	}
	set[role] = struct{}{}
	if err := s.persistLocked(); err != nil {
		return err
	}
	s.logger.Info("role granted", zap.String("group", group), zap.String("role", role))
	return nil
}

// Revoke removes role from group, reporting whether it was present.
func (s *Store) Revoke(group, role string) (bool, error) {
	if !ValidGroup(group) {
		return false, fmt.Errorf("%w: %q", ErrInvalidGroup, group)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.groups[group]
	if !ok {
		return false, nil
	}
	if _, exists := set[role]; !exists {
		return false, nil
	}
	delete(set, role)
	if err := s.persistLocked(); err != nil {
		return true, err
	}
	s.logger.Info("role revoked", zap.String("group", group), zap.String("role", role))
	return true, nil
}

// Allowed reports whether any of roleIDs is a member of group. Unknown
// groups allow nobody.
func (s *Store) Allowed(group string, roleIDs ...string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := s.groups[group]
	for _, id := range roleIDs {
		if _, ok := set[id]; ok {
			return true
		}
	}
	return false
}

// Members returns the sorted role IDs of group.
func (s *Store) Members(group string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := s.groups[group]
	out := make([]string, 0, len(set))
	for role := range set {
		out = append(out, role)
	}
	sort.Strings(out)
	return out
}

// persistLocked rewrites the whole policy file atomically.
//
// Precondition: s.mu held.
func (s *Store) persistLocked() error {
	pf := policyFile{
		Version: schemaVersion,
		Groups:  make(map[string][]string, len(s.groups)),
	}
	for group, set := range s.groups {
		roles := make([]string, 0, len(set))
		for role := range set {
			roles = append(roles, role)
		}
		sort.Strings(roles)
		pf.Groups[group] = roles
	}

	data, err := yaml.Marshal(&pf)
	if err != nil {
		return fmt.Errorf("encoding policy file: %w", err)
	}
	if err := snapshot.WriteAtomic(s.path, data); err != nil {
		s.logger.Error("policy write failed", zap.String("path", s.path), zap.Error(err))
		return fmt.Errorf("writing policy file: %w", err)
	}
	return nil
}
