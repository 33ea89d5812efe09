package extract

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wrappe/wrappe/container"
)

func TestBuildArgs_JoinsSuffixAndExtra(t *testing.T) {
	args := buildArgs("--flag value", []string{"--extra"})
	require.Equal(t, []string{"--flag", "value", "--extra"}, args)
}

func TestBuildArgs_EmptySuffix(t *testing.T) {
	args := buildArgs("", []string{"a", "b"})
	require.Equal(t, []string{"a", "b"}, args)
}

func TestWorkingDir_Policies(t *testing.T) {
	opts := SpawnOptions{
		UnpackDir:   "/unpack",
		RunnerPath:  "/bin/runner-stub",
		CommandPath: "/unpack/bin/app",
	}

	opts.Info.CurrentDir = container.CurrentDirUnpack
	dir, err := workingDir(opts)
	require.NoError(t, err)
	require.Equal(t, "/unpack", dir)

	opts.Info.CurrentDir = container.CurrentDirRunner
	dir, err = workingDir(opts)
	require.NoError(t, err)
	require.Equal(t, "/bin", dir)

	opts.Info.CurrentDir = container.CurrentDirCommand
	dir, err = workingDir(opts)
	require.NoError(t, err)
	require.Equal(t, "/unpack/bin", dir)

	opts.Info.CurrentDir = container.CurrentDirInherit
	dir, err = workingDir(opts)
	require.NoError(t, err)
	require.Equal(t, "", dir)
}

func TestAlreadyRunning_SkipsCheckWhenOnceDisabled(t *testing.T) {
	opts := SpawnOptions{Info: container.StartInfo{Once: false}, CommandPath: "/does/not/exist"}
	running, err := AlreadyRunning(opts)
	require.NoError(t, err)
	require.False(t, running)
}
