// Copyright 2024 The llar Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package vcs fetches upstream recipe checkouts from git remotes.
package vcs

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/goplus/cppkg/pkgs/version"
)

// VCS defines the version control operations used to fetch sources.
type VCS interface {
	// Sync makes dir a shallow checkout of ref from remote. ref can be a
	// branch, tag, or commit hash. dir is created when missing.
	Sync(ctx context.Context, remote, ref, dir string) error

	// Tags returns all tags of remote.
	Tags(ctx context.Context, remote string) ([]string, error)

	// Latest returns the commit hash of remote's HEAD.
	Latest(ctx context.Context, remote string) (string, error)
}

type gitVCS struct {
	git string
}

// GitOption configures the git VCS.
type GitOption func(*gitVCS)

// WithGitPath sets a custom git executable path.
func WithGitPath(path string) GitOption {
	return func(g *gitVCS) {
		g.git = path
	}
}

// NewGitVCS returns a VCS backed by the git command.
func NewGitVCS(opts ...GitOption) VCS {
	g := &gitVCS{git: "git"}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *gitVCS) Sync(ctx context.Context, remote, ref, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if _, err := os.Stat(filepath.Join(dir, ".git")); os.IsNotExist(err) {
		if err := g.run(ctx, dir, "init", "--quiet"); err != nil {
			return fmt.Errorf("init %s: %w", dir, err)
		}
	}
	if err := g.run(ctx, dir, "fetch", "--depth", "1", remote, ref); err != nil {
		return fmt.Errorf("fetch %s %s: %w", remote, ref, err)
	}
	if err := g.run(ctx, dir, "checkout", "--quiet", "--force", "FETCH_HEAD"); err != nil {
		return fmt.Errorf("checkout %s: %w", ref, err)
	}
	return nil
}

func (g *gitVCS) Tags(ctx context.Context, remote string) ([]string, error) {
	out, err := g.output(ctx, "", "ls-remote", "--tags", "--refs", remote)
	if err != nil {
		return nil, fmt.Errorf("list remote tags: %w", err)
	}
	var tags []string
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		// <hash>\trefs/tags/<tag>
		if _, ref, ok := strings.Cut(line, "\t"); ok {
			tags = append(tags, strings.TrimPrefix(ref, "refs/tags/"))
		}
	}
	return tags, nil
}

func (g *gitVCS) Latest(ctx context.Context, remote string) (string, error) {
	out, err := g.output(ctx, "", "ls-remote", remote, "HEAD")
	if err != nil {
		return "", fmt.Errorf("get remote HEAD: %w", err)
	}
	hash, _, _ := strings.Cut(strings.TrimSpace(out), "\t")
	if hash == "" {
		return "", fmt.Errorf("no HEAD found in remote %s", remote)
	}
	return hash, nil
}

func (g *gitVCS) run(ctx context.Context, dir string, args ...string) error {
	_, err := g.output(ctx, dir, args...)
	return err
}

func (g *gitVCS) output(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, g.git, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("%s", msg)
		}
		return "", err
	}
	return stdout.String(), nil
}

// ResolveRef picks the ref to fetch for ver: an explicit ref wins, then a
// tag naming ver (e.g. "1.0.0" or "v1.0.0"), then remote HEAD.
func ResolveRef(ctx context.Context, v VCS, remote, ref, ver string) (string, error) {
	if ref != "" {
		return ref, nil
	}
	tags, err := v.Tags(ctx, remote)
	if err != nil {
		return "", err
	}
	if tag, ok := matchTag(tags, ver); ok {
		return tag, nil
	}
	return v.Latest(ctx, remote)
}

// matchTag returns the tag naming ver. When several do, the one ordered
// last by version wins.
func matchTag(tags []string, ver string) (string, bool) {
	if ver == "" {
		return "", false
	}
	var found []string
	for _, tag := range tags {
		base := tag[strings.LastIndex(tag, "/")+1:]
		if base == ver || strings.TrimPrefix(base, "v") == ver {
			found = append(found, tag)
		}
	}
	if len(found) == 0 {
		return "", false
	}
	return version.Latest(found), true
}
