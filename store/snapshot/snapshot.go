/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package snapshot writes a JSON copy of each reflected entry and its
// feedback outside the database, keyed by entry ID.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"cloud.google.com/go/storage"

	"chainguard.dev/reflecteval/store"
)

// Snapshot is the document written for one entry.
type Snapshot struct {
	SavedAt  time.Time         `json:"savedAt"`
	Entry    *store.Entry      `json:"entry"`
	Feedback []*store.Feedback `json:"feedback"`
}

// Writer persists snapshots.
type Writer interface {
	Write(ctx context.Context, s *Snapshot) error
}

// Name returns the object or file name for an entry's snapshot.
func Name(entryID string) string {
	return entryID + ".json"
}

func encode(s *Snapshot) ([]byte, error) {
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return b, nil
}

// Dir writes snapshots as files in a local directory.
type Dir struct {
	path string
}

var _ Writer = (*Dir)(nil)

// NewDir returns a Writer rooted at path. The directory is created on first
// write.
func NewDir(path string) *Dir {
	return &Dir{path: path}
}

func (d *Dir) Write(_ context.Context, s *Snapshot) error {
	b, err := encode(s)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(d.path, 0o750); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	// Write to a temporary file first so readers never see a partial snapshot.
	final := filepath.Join(d.path, Name(s.Entry.ID))
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// GCS writes snapshots as objects in a Cloud Storage bucket.
type GCS struct {
	client *storage.Client
	bucket string
	prefix string
}

var _ Writer = (*GCS)(nil)

// NewGCS returns a Writer that stores snapshots under prefix in bucket.
func NewGCS(client *storage.Client, bucket, prefix string) *GCS {
	return &GCS{client: client, bucket: bucket, prefix: prefix}
}

func (g *GCS) Write(ctx context.Context, s *Snapshot) error {
	b, err := encode(s)
	if err != nil {
		return err
	}
	name := g.prefix + Name(s.Entry.ID)
	w := g.client.Bucket(g.bucket).Object(name).NewWriter(ctx)
	w.ContentType = "application/json"
	if _, err := w.Write(b); err != nil {
		_ = w.Close()
		return fmt.Errorf("gcs write %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("gcs close %s: %w", name, err)
	}
	return nil
}

// Discard drops every snapshot.
type Discard struct{}

func (Discard) Write(context.Context, *Snapshot) error { return nil }
