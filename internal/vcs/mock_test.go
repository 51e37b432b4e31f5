// Copyright 2024 The llar Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vcs

import "context"

// mockVCS implements VCS for unit testing.
type mockVCS struct {
	tags   []string
	latest string
	err    error
}

func (m *mockVCS) Sync(ctx context.Context, remote, ref, dir string) error { return m.err }

func (m *mockVCS) Tags(ctx context.Context, remote string) ([]string, error) {
	return m.tags, m.err
}

func (m *mockVCS) Latest(ctx context.Context, remote string) (string, error) {
	return m.latest, m.err
}
