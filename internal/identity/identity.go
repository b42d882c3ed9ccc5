// Package identity resolves a stable, persistent machine identifier.
// It prefers OS-level identity files, falls back to a locally persisted
// UUID, and never fails — in the worst case it returns a volatile
// identifier that changes between process starts.
package identity

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// defaultCandidates are OS identity files checked in order before any
// local persistence is consulted. systemd-machine-id exists on most distros.
var defaultCandidates = []string{
	"/etc/machine-id",
	"/var/lib/dbus/machine-id",
}

// defaultPersistPath is where a generated identifier is stored so it
// survives restarts and reboots.
const defaultPersistPath = "/var/lib/sylon/id"

// Resolver determines the machine identifier. The result is cached in
// memory after the first call, so repeated calls within one process
// always return the same value.
type Resolver struct {
	candidates  []string
	persistPath string
	logger      *zap.Logger

	once   sync.Once
	cached string
}

// NewResolver creates a Resolver using the standard system paths.
func NewResolver(logger *zap.Logger) *Resolver {
	return &Resolver{
		candidates:  defaultCandidates,
		persistPath: defaultPersistPath,
		logger:      logger,
	}
}

// Resolve returns the machine identifier. It never fails; every I/O error
// causes fallthrough to the next source.
func (r *Resolver) Resolve() string {
	r.once.Do(func() {
		r.cached = r.resolve()
	})
	return r.cached
}

func (r *Resolver) resolve() string {
	// 1. OS identity files
	for _, path := range r.candidates {
		if id, ok := readTrimmed(path); ok {
			r.logger.Debug("Machine identity from OS file", zap.String("path", path))
			return id
		}
	}

	// 2. Previously persisted identifier
	if id, ok := readTrimmed(r.persistPath); ok {
		r.logger.Debug("Machine identity from persistence file",
			zap.String("path", r.persistPath))
		return id
	}

	// 3. Generate and persist a new one. The identifier is returned even
	// when the write fails; it just won't survive a restart.
	id := r.generate()
	if err := os.MkdirAll(filepath.Dir(r.persistPath), 0755); err != nil {
		r.logger.Warn("Failed to create identity directory, identity will be volatile",
			zap.String("path", r.persistPath),
			zap.Error(err))
		return id
	}
	if err := os.WriteFile(r.persistPath, []byte(id), 0640); err != nil {
		r.logger.Warn("Failed to persist machine identity, identity will be volatile",
			zap.String("path", r.persistPath),
			zap.Error(err))
		return id
	}

	r.logger.Info("Generated new machine identity", zap.String("path", r.persistPath))
	return id
}

// generate returns a new random identifier in canonical UUID form.
func (r *Resolver) generate() string {
	id, err := uuid.NewRandom()
	if err != nil {
		// crypto/rand unavailable — degrade to a per-process identifier
		return fmt.Sprintf("%x", time.Now().UnixNano())
	}
	return id.String()
}

// readTrimmed reads a file and returns its trimmed contents.
// Returns ok=false if the file is unreadable or empty.
func readTrimmed(path string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	id := strings.TrimSpace(string(data))
	if id == "" {
		return "", false
	}
	return id, true
}
