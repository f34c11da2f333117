package version

import (
	"runtime/debug"
	"testing"
)

func saveAndRestore() func() {
	v, c, b := Version, GitCommit, BuildTime
	return func() { Version, GitCommit, BuildTime = v, c, b }
}

func TestFromBuildInfo_LinkerValuesWin(t *testing.T) {
	defer saveAndRestore()()
	Version, GitCommit, BuildTime = "1.2.0", "abc1234", "2026-01-15T10:30:00Z"

	info := fromBuildInfo(&debug.BuildInfo{
		GoVersion: "go1.26.0",
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "ffffffffffffffff"},
			{Key: "vcs.time", Value: "2020-01-01T00:00:00Z"},
		},
	}, true)

	if info.GitCommit != "abc1234" {
		t.Errorf("expected abc1234, got %q", info.GitCommit)
	}
	if info.BuildTime != "2026-01-15T10:30:00Z" {
		t.Errorf("expected linker build time, got %q", info.BuildTime)
	}
	if info.GoVersion != "go1.26.0" {
		t.Errorf("expected go1.26.0, got %q", info.GoVersion)
	}
	if !info.Release() || info.String() != "1.2.0-abc1234" {
		t.Errorf("expected release 1.2.0-abc1234, got %q", info.String())
	}
}

func TestFromBuildInfo_VCSFallback(t *testing.T) {
	defer saveAndRestore()()
	Version, GitCommit, BuildTime = "dev", "", ""

	info := fromBuildInfo(&debug.BuildInfo{
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "0123456789abcdef"},
			{Key: "vcs.modified", Value: "true"},
			{Key: "vcs.time", Value: "2026-03-01T00:00:00Z"},
		},
	}, true)

	if info.GitCommit != "0123456" {
		t.Errorf("expected shortened commit, got %q", info.GitCommit)
	}
	if !info.Dirty || info.Release() {
		t.Error("expected dirty dev build")
	}
	if info.String() != "dev-0123456-dirty" {
		t.Errorf("expected dev-0123456-dirty, got %q", info.String())
	}
	if info.BuildTime != "2026-03-01T00:00:00Z" {
		t.Errorf("expected vcs time, got %q", info.BuildTime)
	}
}

func TestFromBuildInfo_Missing(t *testing.T) {
	defer saveAndRestore()()
	Version = "dev"

	info := fromBuildInfo(nil, false)
	if info.Version != "dev" || info.Release() {
		t.Errorf("expected plain dev info, got %+v", info)
	}
}

func TestGet(t *testing.T) {
	if Get().Version == "" {
		t.Error("expected a version")
	}
}
