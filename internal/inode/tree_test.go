package inode

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	vferrors "github.com/auriora/vfsoverlay/internal/errors"
	"github.com/auriora/vfsoverlay/internal/ids"
	"github.com/auriora/vfsoverlay/internal/overlay"
)

func TestUT_IN_20_TreeInode_Create_MaterializesParent(t *testing.T) {
	deps, _ := newTestDeps()
	root := newTestRoot(deps)

	fi, err := root.Create(context.Background(), "file.txt", overlay.ModeRegular)
	require.NoError(t, err)
	assert.True(t, fi.IsMaterialized())
	assert.True(t, root.IsMaterialized())
}

func TestUT_IN_21_TreeInode_Mkdir_CreatesEmptyMaterializedChild(t *testing.T) {
	deps, _ := newTestDeps()
	root := newTestRoot(deps)

	child, err := root.Mkdir(context.Background(), "sub", overlay.ModeDirectory)
	require.NoError(t, err)
	assert.True(t, child.IsMaterialized())

	children, err := child.GetChildren(context.Background())
	require.NoError(t, err)
	assert.Empty(t, children)
}

func TestUT_IN_22_TreeInode_Create_DuplicateNameFails(t *testing.T) {
	deps, _ := newTestDeps()
	root := newTestRoot(deps)
	_, err := root.Create(context.Background(), "dup.txt", overlay.ModeRegular)
	require.NoError(t, err)

	_, err = root.Create(context.Background(), "dup.txt", overlay.ModeRegular)
	assert.True(t, vferrors.IsAlreadyExists(err))
}

func TestUT_IN_23_TreeInode_Unlink_RemovesEntry(t *testing.T) {
	deps, _ := newTestDeps()
	root := newTestRoot(deps)
	_, err := root.Create(context.Background(), "gone.txt", overlay.ModeRegular)
	require.NoError(t, err)

	require.NoError(t, root.Unlink(context.Background(), "gone.txt"))

	_, _, err = root.GetOrFindChild(context.Background(), "gone.txt", false)
	assert.True(t, vferrors.IsNotFound(err))
}

func TestUT_IN_24_TreeInode_Rmdir_FailsWhenNotEmpty(t *testing.T) {
	deps, _ := newTestDeps()
	root := newTestRoot(deps)
	sub, err := root.Mkdir(context.Background(), "sub", overlay.ModeDirectory)
	require.NoError(t, err)
	_, err = sub.Create(context.Background(), "f", overlay.ModeRegular)
	require.NoError(t, err)

	err = root.Rmdir(context.Background(), "sub")
	assert.True(t, vferrors.IsDirectoryNotEmpty(err))
}

func TestUT_IN_25_TreeInode_Rmdir_SucceedsWhenEmpty(t *testing.T) {
	deps, _ := newTestDeps()
	root := newTestRoot(deps)
	_, err := root.Mkdir(context.Background(), "empty", overlay.ModeDirectory)
	require.NoError(t, err)

	require.NoError(t, root.Rmdir(context.Background(), "empty"))
}

func TestUT_IN_26_TreeInode_RemoveRecursively_DeletesSubtree(t *testing.T) {
	deps, _ := newTestDeps()
	root := newTestRoot(deps)
	sub, err := root.Mkdir(context.Background(), "sub", overlay.ModeDirectory)
	require.NoError(t, err)
	_, err = sub.Create(context.Background(), "f1", overlay.ModeRegular)
	require.NoError(t, err)
	_, err = sub.Mkdir(context.Background(), "nested", overlay.ModeDirectory)
	require.NoError(t, err)

	require.NoError(t, root.RemoveRecursively(context.Background(), "sub"))

	_, _, err = root.GetOrFindChild(context.Background(), "sub", false)
	assert.True(t, vferrors.IsNotFound(err))
}

func TestUT_IN_27_TreeInode_Symlink_StoresTargetAsContent(t *testing.T) {
	deps, _ := newTestDeps()
	root := newTestRoot(deps)
	link, err := root.Symlink(context.Background(), "link", "/some/target")
	require.NoError(t, err)

	target, err := link.Readlink()
	require.NoError(t, err)
	assert.Equal(t, "/some/target", target)
}

func TestUT_IN_28_TreeInode_GetChildRecursive_WalksPath(t *testing.T) {
	deps, _ := newTestDeps()
	root := newTestRoot(deps)
	sub, err := root.Mkdir(context.Background(), "a", overlay.ModeDirectory)
	require.NoError(t, err)
	_, err = sub.Create(context.Background(), "b.txt", overlay.ModeRegular)
	require.NoError(t, err)

	n, err := root.GetChildRecursive(context.Background(), []string{"a", "b.txt"})
	require.NoError(t, err)
	fi, ok := n.(*FileInode)
	require.True(t, ok)
	assert.Equal(t, "b.txt", fi.name)
}

func TestUT_IN_29_TreeInode_ReservedDotEden_RejectsMutation(t *testing.T) {
	deps, _ := newTestDeps()
	root := newTestRoot(deps)
	eden := newChildTreeInode(ids.ReservedDotEdenInodeId, root, ".eden", overlay.ModeDirectory, nil, deps)
	eden.contents = overlay.NewDirContents(true)

	_, err := eden.Create(context.Background(), "x", overlay.ModeRegular)
	assert.True(t, vferrors.IsPermissionDenied(err))
}
