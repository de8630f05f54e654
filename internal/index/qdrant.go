package index

import (
	"context"
	"fmt"

	"github.com/dgallion1/budgetqa/internal/document"
	"github.com/qdrant/go-client/qdrant"
)

// Qdrant keeps chunks in one qdrant collection over gRPC.
type Qdrant struct {
	client     *qdrant.Client
	collection string
	vectorSize uint64
}

type QdrantConfig struct {
	Host       string
	Port       int
	APIKey     string
	Collection string
	VectorSize int
}

func NewQdrant(cfg QdrantConfig) (*Qdrant, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port, // gRPC port
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("connect qdrant: %w", err)
	}
	return &Qdrant{client: client, collection: cfg.Collection, vectorSize: uint64(cfg.VectorSize)}, nil
}

// Ensure creates the collection if it does not exist.
func (q *Qdrant) Ensure(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("check collection: %w", err)
	}
	if exists {
		return nil
	}
	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     q.vectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("create collection %s: %w", q.collection, err)
	}

	_, err = q.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: q.collection,
		FieldName:      "start_page",
		FieldType:      qdrant.FieldType_FieldTypeInteger.Enum(),
	})
	if err != nil {
		return fmt.Errorf("create start_page index: %w", err)
	}
	return nil
}

func (q *Qdrant) Reset(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("check collection: %w", err)
	}
	if exists {
		if err := q.client.DeleteCollection(ctx, q.collection); err != nil {
			return fmt.Errorf("delete collection %s: %w", q.collection, err)
		}
	}
	return q.Ensure(ctx)
}

func (q *Qdrant) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	points := make([]*qdrant.PointStruct, 0, len(records))
	for _, r := range records {
		payload, err := qdrant.TryValueMap(chunkPayload(r.Chunk))
		if err != nil {
			return fmt.Errorf("payload for %s: %w", r.ID, err)
		}
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewID(r.ID),
			Vectors: qdrant.NewVectorsDense(r.Vector),
			Payload: payload,
		})
	}
	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("upsert %d points: %w", len(points), err)
	}
	return nil
}

func (q *Qdrant) Search(ctx context.Context, vector []float32, k int) ([]Hit, error) {
	if k <= 0 {
		return nil, nil
	}
	points, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.collection, err)
	}
	hits := make([]Hit, 0, len(points))
	for _, p := range points {
		hits = append(hits, newHit(chunkFromPayload(p.GetPayload()), p.GetScore()))
	}
	return hits, nil
}

func (q *Qdrant) Count(ctx context.Context) (int, error) {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return 0, fmt.Errorf("check collection: %w", err)
	}
	if !exists {
		return 0, nil
	}
	n, err := q.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: q.collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", q.collection, err)
	}
	return int(n), nil
}

func (q *Qdrant) Close() error {
	return q.client.Close()
}

// chunkPayload flattens a chunk. A missing table header is stored as "".
func chunkPayload(c document.Chunk) map[string]any {
	return map[string]any{
		"text":         c.Text,
		"start_page":   c.StartPage,
		"end_page":     c.EndPage,
		"section":      c.Section,
		"table_header": c.Header(),
	}
}

func chunkFromPayload(p map[string]*qdrant.Value) document.Chunk {
	c := document.Chunk{
		Text:      p["text"].GetStringValue(),
		Section:   p["section"].GetStringValue(),
		StartPage: int(p["start_page"].GetIntegerValue()),
		EndPage:   int(p["end_page"].GetIntegerValue()),
	}
	if h := p["table_header"].GetStringValue(); h != "" {
		c.TableHeader = &h
	}
	return c
}
