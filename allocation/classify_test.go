package allocation_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/librecode/producao/allocation"
	"github.com/librecode/producao/generic"
)

func TestParseCustomerReference(t *testing.T) {
	tests := []struct {
		ref    string
		client generic.ClientID
		tag    string
		ok     bool
	}{
		{"42", "42", "", true},
		{"42|project-x", "42", "project-x", true},
		{" 42 ", "42", "", true},
		{"abc", "", "", false},
		{"42|", "", "", false},
		{"42|a b", "", "", false},
		{"", "", "", false},
		{"4a", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			client, tag, ok := allocation.ParseCustomerReference(tt.ref)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.client, client)
			assert.Equal(t, tt.tag, tag)
		})
	}
}

func TestCategoryTree_Subtree(t *testing.T) {
	tree := allocation.NewCategoryTree(categories())

	assert.Equal(t, []generic.CategoryID{"2", "20", "21", "22", "23", "24", "29"}, tree.SubtreeIDs("2"))
	assert.Equal(t, []generic.CategoryID{"21", "22"}, tree.SubtreeIDs("21"))
	assert.Empty(t, tree.SubtreeIDs("missing"))

	assert.True(t, tree.Subtree("1")["101"])
	assert.False(t, tree.Subtree("10")["2"])
	assert.Len(t, tree.Children("2"), 5)
}

func TestCategoryTree_CycleDoesNotLoop(t *testing.T) {
	tree := allocation.NewCategoryTree([]allocation.CategoryNode{
		{ID: "a", ParentID: "b"},
		{ID: "b", ParentID: "a"},
	})

	_, found := tree.NearestAncestor("a", func(generic.CategoryID) bool { return false })
	assert.False(t, found)
	assert.Equal(t, []generic.CategoryID{"a", "b"}, tree.SubtreeIDs("a"))
}

func TestClassifier_NearestRootWins(t *testing.T) {
	c := allocation.NewClassifier(allocation.NewCategoryTree(categories()), roots())

	tests := map[generic.CategoryID]allocation.Bucket{
		"10":  allocation.BucketClientRevenue,
		"101": allocation.BucketClientRevenue,
		"20":  allocation.BucketClientCost,
		"21":  allocation.BucketInternalOverhead,
		"22":  allocation.BucketAdvance,
		"23":  allocation.BucketHealthInsurance,
		"24":  allocation.BucketTax,
		"29":  allocation.BucketIgnored,
	}
	for id, want := range tests {
		got, ok := c.BucketOf(id)
		require.True(t, ok, "category %s", id)
		assert.Equal(t, want, got, "category %s", id)
	}

	_, ok := c.BucketOf("3")
	assert.False(t, ok)
	_, ok = c.BucketOf("1")
	assert.False(t, ok, "a parent of a root is not inside it")
}

func TestClassifier_PartitionsFacts(t *testing.T) {
	c := allocation.NewClassifier(allocation.NewCategoryTree(categories()), roots())
	issues := &generic.DataQualityError{}

	out := c.Classify([]allocation.RevenueFact{
		income("r1", "7", "101", "10"),
		expense("c1", "7|hosting", "20", "1"),
		expense("o1", "", "21", "2"),
		{ID: "a1", Amount: d("3"), CategoryID: "22", WorkerID: "A"},
		{ID: "h1", Amount: d("4"), CategoryID: "23", WorkerID: "A"},
		expense("t1", "", "24", "5"),
		expense("x1", "", "29", "6"),
		expense("bad", "nope", "20", "7"),
	}, issues)

	assert.Len(t, out.ClientRevenue, 1)
	assert.Len(t, out.ClientCost, 1)
	assert.Len(t, out.InternalOverhead, 1)
	assert.Len(t, out.Advances, 1)
	assert.Len(t, out.HealthInsurance, 1)
	assert.Len(t, out.Taxes, 1)
	assert.Len(t, out.Ignored, 1)

	require.Len(t, issues.Issues, 1)
	assert.Equal(t, generic.IssueInvalidCustomerReference, issues.Issues[0].Code)
}
