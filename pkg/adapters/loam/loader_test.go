package loam_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/lendflow/internal/testutils"
	adapter "github.com/aretw0/lendflow/pkg/adapters/loam"
	"github.com/aretw0/lendflow/pkg/knowledge"
	"github.com/aretw0/loam"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLoader(t *testing.T, files map[string]string) *adapter.Loader {
	t.Helper()
	tmpDir, repo := testutils.SetupTestRepo(t)
	testutils.WriteFiles(t, tmpDir, files)
	return adapter.New(loam.NewTypedRepository[adapter.DocumentMetadata](repo))
}

func TestLoader_Documents(t *testing.T) {
	loader := newLoader(t, map[string]string{
		"prepayment.md": `---
id: prepayment_1
category: prepayment
type: policy
---
Prepayment allowed after 6 months.`,
		"gold.json": `{
  "id": "gold.json",
  "category": "product_info",
  "content": "Gold loans are secured by jewellery.",
  "metadata": {"audience": {"segment": "rural"}}
}`,
		"implicit.md": `---
category: faq
---
ID is implied from filename`,
		"empty.md": `---
id: empty
---
`,
	})

	docs, err := loader.Documents(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 3, "documents without content are skipped")

	assert.Equal(t, "gold", docs[0].ID)
	assert.Equal(t, "Gold loans are secured by jewellery.", docs[0].Content)
	assert.Equal(t, "rural", docs[0].Metadata["audience-segment"])

	assert.Equal(t, "implicit", docs[1].ID)
	assert.Equal(t, "faq", docs[1].Metadata[knowledge.MetaCategory])

	assert.Equal(t, "prepayment_1", docs[2].ID)
	assert.Equal(t, "Prepayment allowed after 6 months.", docs[2].Content)
	assert.Equal(t, "policy", docs[2].Metadata[knowledge.MetaType])
}

func TestLoader_DetectsCollisions(t *testing.T) {
	loader := newLoader(t, map[string]string{
		"foo.md": `---
id: foo
---
Explicit ID`,
		"foo.json": `{"id": "foo", "content": "Same ID"}`,
	})

	_, err := loader.Documents(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "collision detected")
	assert.Contains(t, err.Error(), "foo")
}

func TestLoader_Get(t *testing.T) {
	loader := newLoader(t, map[string]string{
		"emi.md": `---
category: emi_calculation
---
EMI = P x R x (1+R)^N / ((1+R)^N - 1)`,
	})

	doc, err := loader.Get(context.Background(), "emi")
	require.NoError(t, err)
	assert.Equal(t, "emi", doc.ID)
	assert.Contains(t, doc.Content, "EMI =")
}

func TestLoader_FeedsIndex(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "car.md"), []byte("---\ncategory: product_info\n---\nCar loans up to 7 years."), 0o644))

	loader, err := adapter.Open(dir)
	require.NoError(t, err)

	idx := knowledge.NewIndex()
	require.NoError(t, idx.Load(context.Background(), loader))
	hits, err := idx.Search(context.Background(), "car loan tenure", 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "car", hits[0].ID)
}

func TestLoader_ReadsMarkdownBody(t *testing.T) {
	loader := newLoader(t, map[string]string{
		"a.md": "---\nid: a\n---\nhello body",
	})

	docs, err := loader.Documents(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "a", docs[0].ID)
	assert.Equal(t, "hello body", docs[0].Content)
}
