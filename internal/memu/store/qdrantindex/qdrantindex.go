// Package qdrantindex adapts the teacher's Qdrant vector store into an
// implementation of store.VectorIndex: a pluggable ANN backend for item
// embeddings, selected by the vector_backend config key (SPEC_FULL.md
// §6.4) as an alternative to store/memstore's in-process search or
// store/pgstore's native pgvector columns.
package qdrantindex

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"memu/internal/memu/vectorindex"
)

// payloadIDField stores a memory item's real UUID when it had to be
// remapped to a deterministic name-based UUID for Qdrant's point-id
// restriction (Qdrant only accepts UUIDs or unsigned integers as ids).
const payloadIDField = "_memu_item_id"

// Index is a Qdrant-backed store.VectorIndex over a single collection.
type Index struct {
	client     *qdrant.Client
	collection string
	dimension  int
}

// New connects to the Qdrant instance named by dsn and ensures collection
// exists with the given embedding dimensionality, cosine distance.
//
// dsn is a URL such as "http://localhost:6334?api_key=...": Qdrant's Go
// client speaks gRPC, which defaults to port 6334.
func New(ctx context.Context, dsn, collection string, dimension int) (*Index, error) {
	if collection == "" {
		return nil, fmt.Errorf("qdrantindex: collection name is required")
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("qdrantindex: dimension must be positive")
	}
	parsed, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("qdrantindex: parse dsn: %w", err)
	}
	host := parsed.Hostname()
	if host == "" {
		host = "localhost"
	}
	port := parsed.Port()
	if port == "" {
		port = "6334"
	}
	portNum, err := strconv.Atoi(port)
	if err != nil {
		return nil, fmt.Errorf("qdrantindex: invalid port in dsn: %w", err)
	}

	config := &qdrant.Config{Host: host, Port: portNum}
	if parsed.Scheme == "https" {
		config.UseTLS = true
	}
	if apiKey := parsed.Query().Get("api_key"); apiKey != "" {
		config.APIKey = apiKey
	}

	client, err := qdrant.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("qdrantindex: create client: %w", err)
	}
	idx := &Index{client: client, collection: collection, dimension: dimension}
	if err := idx.ensureCollection(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("qdrantindex: ensure collection: %w", err)
	}
	return idx, nil
}

func (idx *Index) ensureCollection(ctx context.Context) error {
	exists, err := idx.client.CollectionExists(ctx, idx.collection)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return idx.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: idx.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(idx.dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
}

// pointID maps a memory item id to a Qdrant point id, which must be a UUID
// or an unsigned integer. Memory item ids are already UUIDs (uuid.NewString),
// but the name-based fallback keeps this adapter usable for any id scheme.
func pointID(id string) (pointUUID string, remapped bool) {
	if _, err := uuid.Parse(id); err == nil {
		return id, false
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String(), true
}

func (idx *Index) Upsert(ctx context.Context, id string, vector []float32) error {
	uuidStr, remapped := pointID(id)
	var payload map[string]*qdrant.Value
	if remapped {
		payload = qdrant.NewValueMap(map[string]any{payloadIDField: id})
	}
	vec := make([]float32, len(vector))
	copy(vec, vector)

	_, err := idx.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: idx.collection,
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewIDUUID(uuidStr),
			Vectors: qdrant.NewVectorsDense(vec),
			Payload: payload,
		}},
	})
	return err
}

func (idx *Index) Delete(ctx context.Context, id string) error {
	uuidStr, _ := pointID(id)
	_, err := idx.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: idx.collection,
		Points:         qdrant.NewPointsSelector(qdrant.NewIDUUID(uuidStr)),
	})
	return err
}

func (idx *Index) TopK(ctx context.Context, query []float32, k int) ([]vectorindex.Candidate, error) {
	if k <= 0 {
		k = 10
	}
	vec := make([]float32, len(query))
	copy(vec, query)
	limit := uint64(k)

	hits, err := idx.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: idx.collection,
		Query:          qdrant.NewQueryDense(vec),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, err
	}

	out := make([]vectorindex.Candidate, 0, len(hits))
	for _, hit := range hits {
		id := hit.Id.GetUuid()
		if id == "" {
			id = hit.Id.String()
		}
		if hit.Payload != nil {
			if original, ok := hit.Payload[payloadIDField]; ok {
				id = original.GetStringValue()
			}
		}
		out = append(out, vectorindex.Candidate{ID: id, Score: float64(hit.Score)})
	}
	return out, nil
}

func (idx *Index) Close() error {
	return idx.client.Close()
}
