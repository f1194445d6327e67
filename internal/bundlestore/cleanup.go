package bundlestore

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
)

// ErrConfirmationRequired is returned when a cleanup would remove bundles but
// neither Force nor an approving Confirm callback was supplied. Safe by
// default.
var ErrConfirmationRequired = errors.New("cleanup requires confirmation (pass force)")

// CleanupPolicy selects which bundles to remove. Exactly one of OlderThan,
// KeepLatest or All must be set.
type CleanupPolicy struct {
	// OlderThan removes bundles whose encoded timestamp is strictly older
	// than now minus the duration.
	OlderThan time.Duration

	// KeepLatest retains the N most recently timestamped bundles and
	// removes the rest. Zero means unset; use All to remove everything.
	KeepLatest int

	// All removes every bundle.
	All bool

	// Force bypasses confirmation.
	Force bool

	// Confirm, when set and Force is not, is asked once with a summary of
	// what would be removed.
	Confirm func(prompt string) bool
}

// CleanupResult reports exactly which bundles were removed and the space
// freed. Failed removals are listed separately and never abort the rest.
type CleanupResult struct {
	RemovedCount    int      `json:"removed_count"`
	Removed         []string `json:"removed,omitempty"`
	Failed          []string `json:"failed,omitempty"`
	SpaceFreedBytes int64    `json:"space_freed_bytes"`
	SpaceFreed      string   `json:"space_freed"`
}

// Cleanup applies the policy to the store.
func (s *Store) Cleanup(policy CleanupPolicy) (CleanupResult, error) {
	if err := policy.validate(); err != nil {
		return CleanupResult{}, err
	}

	bundles, err := s.List()
	if err != nil {
		return CleanupResult{}, err
	}

	targets := policy.selectTargets(bundles, time.Now())
	result := CleanupResult{SpaceFreed: humanize.Bytes(0)}
	if len(targets) == 0 {
		return result, nil
	}

	if !policy.Force {
		prompt := fmt.Sprintf("remove %d bundle(s) freeing %s?", len(targets), humanize.Bytes(uint64(totalSize(targets))))
		if policy.Confirm == nil || !policy.Confirm(prompt) {
			return CleanupResult{}, ErrConfirmationRequired
		}
	}

	for _, b := range targets {
		if err := os.RemoveAll(b.Path); err != nil {
			// Permission trouble or already gone: log and keep going.
			s.logger.WithError(err).WithField("bundle", b.Name).Warn("Failed to remove bundle")
			result.Failed = append(result.Failed, b.Name)
			continue
		}
		result.Removed = append(result.Removed, b.Name)
		result.RemovedCount++
		result.SpaceFreedBytes += b.SizeBytes
		s.logger.WithFields(logrus.Fields{
			"bundle": b.Name,
			"size":   b.SizeBytes,
		}).Info("Removed bundle")
	}
	result.SpaceFreed = humanize.Bytes(uint64(result.SpaceFreedBytes))
	return result, nil
}

func (p CleanupPolicy) validate() error {
	set := 0
	if p.OlderThan > 0 {
		set++
	}
	if p.KeepLatest > 0 {
		set++
	}
	if p.All {
		set++
	}
	if set != 1 {
		return errors.New("cleanup policy requires exactly one of older-than, keep-latest, or all")
	}
	return nil
}

// selectTargets picks the bundles the policy removes. List returns bundles
// newest-first, undated last; age policies only ever select dated bundles.
func (p CleanupPolicy) selectTargets(bundles []BundleInfo, now time.Time) []BundleInfo {
	switch {
	case p.All:
		return bundles
	case p.OlderThan > 0:
		cutoff := now.Add(-p.OlderThan)
		var out []BundleInfo
		for _, b := range bundles {
			if b.HasCreated && b.CreatedAt.Before(cutoff) {
				out = append(out, b)
			}
		}
		return out
	default: // KeepLatest
		var dated []BundleInfo
		for _, b := range bundles {
			if b.HasCreated {
				dated = append(dated, b)
			}
		}
		if len(dated) <= p.KeepLatest {
			return nil
		}
		return dated[p.KeepLatest:]
	}
}

func totalSize(bundles []BundleInfo) int64 {
	var total int64
	for _, b := range bundles {
		total += b.SizeBytes
	}
	return total
}
