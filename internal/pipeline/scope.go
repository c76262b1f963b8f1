package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sourceplane/khiopsctl/internal/fsys"
	"github.com/sourceplane/khiopsctl/internal/logger"
)

// CleanupPolicy decides when a scope removes its temporaries.
type CleanupPolicy string

const (
	// KeepOnFailure removes temporaries after a success and keeps them after a
	// failure for diagnosis.
	KeepOnFailure CleanupPolicy = "keep-on-failure"
	Always        CleanupPolicy = "always"
	Never         CleanupPolicy = "never"
)

// ParseCleanupPolicy validates a policy name. Empty means KeepOnFailure.
func ParseCleanupPolicy(s string) (CleanupPolicy, error) {
	switch p := CleanupPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return KeepOnFailure, nil
	case KeepOnFailure, Always, Never:
		return p, nil
	}
	return "", fmt.Errorf("unknown cleanup policy %q (want keep-on-failure, always or never)", s)
}

// ArtifactScope tracks the temporary files of one composite operation. Every
// scope carries its own token so concurrent operations never share a path.
type ArtifactScope struct {
	fs     *fsys.FileSystem
	policy CleanupPolicy
	token  string

	mu     sync.Mutex
	temps  []string
	failed bool
	closed bool
}

// NewScope creates a scope allocating temporaries on fs.
func NewScope(fs *fsys.FileSystem, policy CleanupPolicy) *ArtifactScope {
	if policy == "" {
		policy = KeepOnFailure
	}
	return &ArtifactScope{fs: fs, policy: policy, token: fsys.NewToken()}
}

// Token returns the unique token of the scope.
func (s *ArtifactScope) Token() string { return s.token }

// Policy returns the cleanup policy of the scope.
func (s *ArtifactScope) Policy() CleanupPolicy { return s.policy }

// Temp returns a new temporary path, tracked for cleanup.
func (s *ArtifactScope) Temp(prefix, suffix string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	name := fmt.Sprintf("%s%s_%d%s", prefix, s.token, len(s.temps), suffix)
	path := s.fs.ChildPath(s.fs.TempDir(), name)
	s.temps = append(s.temps, path)
	return path
}

// Temporaries returns the tracked paths in allocation order.
func (s *ArtifactScope) Temporaries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.temps...)
}

// MarkFailed records that the operation failed.
func (s *ArtifactScope) MarkFailed() {
	s.mu.Lock()
	s.failed = true
	s.mu.Unlock()
}

// Failed reports whether MarkFailed was called.
func (s *ArtifactScope) Failed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failed
}

// Close removes the temporaries as the policy dictates. Removal is best effort:
// every path is attempted and the failures are joined. Closing twice is a no-op.
func (s *ArtifactScope) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	temps := append([]string(nil), s.temps...)
	remove := s.policy == Always || (s.policy == KeepOnFailure && !s.failed)
	s.mu.Unlock()

	log := logger.FromContext(ctx)
	if !remove {
		if len(temps) > 0 {
			log.Info("keeping temporary files", "policy", string(s.policy), "count", len(temps), "dir", s.fs.TempDir())
		}
		return nil
	}

	var errs []error
	for _, path := range temps {
		if err := s.fs.Remove(path); err != nil {
			log.Warn("failed to remove temporary file", "path", path, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
