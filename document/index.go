package document

import (
	"context"
	"fmt"
	"strings"

	chromem "github.com/philippgille/chromem-go"

	"github.com/google/uuid"
)

// TopK is the number of chunks retrieved per query.
const TopK = 3

// Index is an ephemeral vector index over one document's chunks. It is built
// fresh for each invocation and discarded afterwards.
type Index struct {
	coll *chromem.Collection
	n    int
}

// BuildIndex embeds the chunks into an in-memory chromem collection.
func BuildIndex(ctx context.Context, chunks []string, embed chromem.EmbeddingFunc) (*Index, error) {
	if len(chunks) == 0 {
		return nil, fmt.Errorf("document: no chunks to index")
	}

	db := chromem.NewDB()
	coll, err := db.CreateCollection("chunks-"+uuid.NewString(), nil, embed)
	if err != nil {
		return nil, fmt.Errorf("document: create collection: %w", err)
	}

	docs := make([]chromem.Document, 0, len(chunks))
	for i, c := range chunks {
		docs = append(docs, chromem.Document{
			ID:      fmt.Sprintf("chunk-%d", i),
			Content: c,
		})
	}
	if err := coll.AddDocuments(ctx, docs, 4); err != nil {
		return nil, fmt.Errorf("document: add documents: %w", err)
	}
	return &Index{coll: coll, n: len(chunks)}, nil
}

// Query returns the k most similar chunks to the query text, clamped to the
// number of indexed chunks.
func (ix *Index) Query(ctx context.Context, query string, k int) ([]string, error) {
	if k <= 0 {
		k = TopK
	}
	if k > ix.n {
		k = ix.n
	}
	results, err := ix.coll.Query(ctx, query, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("document: query: %w", err)
	}
	out := make([]string, 0, len(results))
	for _, r := range results {
		out = append(out, r.Content)
	}
	return out, nil
}

// JoinContext concatenates retrieved chunks into a single context block.
func JoinContext(chunks []string) string {
	return strings.Join(chunks, "\n\n")
}
