package workflow_test

import (
	"testing"

	"github.com/dukex/certflow/pkg/models"
	"github.com/dukex/certflow/pkg/testutil"
	"github.com/dukex/certflow/pkg/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWalk_Order(t *testing.T) {
	t.Parallel()

	root := testutil.CreateBranchingPipeline()

	var (
		visited []string
		paths   []workflow.Path
	)

	err := workflow.Walk(root, func(node *models.Node, path workflow.Path) error {
		visited = append(visited, node.ID)
		paths = append(paths, path)

		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		testutil.StartNodeID,
		testutil.ApplyNodeID,
		testutil.BranchNodeID,
		testutil.DeployANodeID,
		testutil.DeployBNodeID,
	}, visited)
	assert.Equal(t, workflow.Path{workflow.NextSlot, workflow.NextSlot, 1}, paths[4])
}

func TestWalk_SkipAll(t *testing.T) {
	t.Parallel()

	calls := 0

	err := workflow.Walk(testutil.CreateCertificatePipeline(), func(_ *models.Node, _ workflow.Path) error {
		calls++
		if calls == 2 {
			return workflow.SkipAll
		}

		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestWalk_Malformed(t *testing.T) {
	t.Parallel()

	t.Run("cycle", func(t *testing.T) {
		t.Parallel()

		root := testutil.CreateCertificatePipeline()
		root.Next.Next.Next = root

		err := workflow.Walk(root, func(*models.Node, workflow.Path) error { return nil })
		assert.ErrorIs(t, err, workflow.ErrMalformedTree)
	})

	t.Run("duplicate id", func(t *testing.T) {
		t.Parallel()

		root := testutil.CreateCertificatePipeline()
		root.Next.Next.ID = testutil.ApplyNodeID

		err := workflow.Walk(root, func(*models.Node, workflow.Path) error { return nil })
		assert.ErrorIs(t, err, workflow.ErrMalformedTree)
	})

	t.Run("shared node across branches", func(t *testing.T) {
		t.Parallel()

		shared := testutil.CreateTestNode(testutil.WithID("shared"))
		root := models.NewStartNode("start", "Start")
		root.Next = models.NewBranchNode("fork", "Fork", shared, shared)

		err := workflow.Walk(root, func(*models.Node, workflow.Path) error { return nil })
		assert.ErrorIs(t, err, workflow.ErrMalformedTree)
	})

	t.Run("nil branch", func(t *testing.T) {
		t.Parallel()

		root := models.NewStartNode("start", "Start")
		root.Next = models.NewBranchNode("fork", "Fork", testutil.CreateTestNode(), nil)

		err := workflow.Walk(root, func(*models.Node, workflow.Path) error { return nil })
		assert.ErrorIs(t, err, workflow.ErrMalformedTree)
	})
}

func TestFindNode(t *testing.T) {
	t.Parallel()

	root := testutil.CreateBranchingPipeline()

	node, err := workflow.FindNode(root, testutil.DeployBNodeID)
	require.NoError(t, err)
	assert.Equal(t, models.ActionTypeDeploy, node.ActionType())

	_, err = workflow.FindNode(root, "missing")
	assert.ErrorIs(t, err, workflow.ErrNodeNotFound)
}

func TestFindParent(t *testing.T) {
	t.Parallel()

	root := testutil.CreateBranchingPipeline()

	position, err := workflow.FindParent(root, testutil.StartNodeID)
	require.NoError(t, err)
	assert.True(t, position.IsRoot())

	position, err = workflow.FindParent(root, testutil.ApplyNodeID)
	require.NoError(t, err)
	assert.Equal(t, testutil.StartNodeID, position.Parent.ID)
	assert.Equal(t, workflow.NextSlot, position.Slot)

	position, err = workflow.FindParent(root, testutil.DeployBNodeID)
	require.NoError(t, err)
	assert.Equal(t, testutil.BranchNodeID, position.Parent.ID)
	assert.Equal(t, 1, position.Slot)

	_, err = workflow.FindParent(root, "missing")
	assert.ErrorIs(t, err, workflow.ErrNodeNotFound)
}

func TestIDsAndCount(t *testing.T) {
	t.Parallel()

	root := testutil.CreateBranchingPipeline()

	ids, err := workflow.IDs(root)
	require.NoError(t, err)
	assert.Contains(t, ids, testutil.DeployANodeID)
	assert.Len(t, ids, 5)

	count, err := workflow.Count(nil)
	require.NoError(t, err)
	assert.Zero(t, count)
}
