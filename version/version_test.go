package version

import (
	"runtime/debug"
	"testing"
)

func stubBuildInfo(t *testing.T, bi *debug.BuildInfo) {
	t.Helper()
	orig, origVersion, origCommit, origTime := readBuildInfo, Version, GitCommit, BuildTime
	t.Cleanup(func() {
		readBuildInfo, Version, GitCommit, BuildTime = orig, origVersion, origCommit, origTime
	})
	readBuildInfo = func() (*debug.BuildInfo, bool) { return bi, bi != nil }
}

func TestGet_FromVCSStamp(t *testing.T) {
	stubBuildInfo(t, &debug.BuildInfo{
		GoVersion: "go1.26.0",
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "0123456789abcdef"},
			{Key: "vcs.time", Value: "2026-01-15T10:30:00Z"},
			{Key: "vcs.modified", Value: "true"},
		},
	})
	Version, GitCommit, BuildTime = "1.2.0", "", ""

	info := Get()
	if info.GitCommit != "0123456" {
		t.Errorf("expected abbreviated commit, got %q", info.GitCommit)
	}
	if info.BuildTime != "2026-01-15T10:30:00Z" || !info.Dirty {
		t.Errorf("unexpected info: %+v", info)
	}
	if info.IsRelease() {
		t.Error("dirty build must not be a release")
	}
	if got := info.Short(); got != "1.2.0-0123456-dirty" {
		t.Errorf("unexpected short version %q", got)
	}
	if got := info.String(); got != "1.2.0-0123456-dirty (built 2026-01-15T10:30:00Z) go1.26.0" {
		t.Errorf("unexpected full version %q", got)
	}
}

func TestGet_LinkerValuesWin(t *testing.T) {
	stubBuildInfo(t, &debug.BuildInfo{Settings: []debug.BuildSetting{{Key: "vcs.revision", Value: "ffffffffff"}}})
	Version, GitCommit, BuildTime = "1.0.0", "abc1234", "2026-02-01T00:00:00Z"

	info := Get()
	if info.GitCommit != "abc1234" || info.BuildTime != "2026-02-01T00:00:00Z" {
		t.Errorf("linker values overwritten: %+v", info)
	}
	if !info.IsRelease() {
		t.Error("expected a release build")
	}
}

func TestGet_NoBuildInfo(t *testing.T) {
	stubBuildInfo(t, nil)
	Version, GitCommit, BuildTime = "dev", "", ""

	info := Get()
	if info.Short() != "dev" || info.IsRelease() {
		t.Errorf("unexpected info: %+v", info)
	}
	if got := UserAgent(); got != "omopetl/dev" {
		t.Errorf("unexpected user agent %q", got)
	}
}
