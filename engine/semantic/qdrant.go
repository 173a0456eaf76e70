package semantic

import (
	"context"
	"fmt"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// QdrantStore is the service-mode Store backed by Qdrant over gRPC. It is
// the sole owner of all Qdrant operations.
type QdrantStore struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	collection  string
}

var _ Store = (*QdrantStore)(nil)

// NewQdrant creates a QdrantStore connected at the given gRPC address.
func NewQdrant(addr, collection string) (*QdrantStore, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, unavailable(fmt.Sprintf("dial qdrant %s", addr), err)
	}
	return &QdrantStore{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
	}, nil
}

// Close closes the underlying gRPC connection.
func (q *QdrantStore) Close() error { return q.conn.Close() }

// EnsureReady creates the collection with cosine distance if absent.
func (q *QdrantStore) EnsureReady(ctx context.Context, dims int) error {
	list, err := q.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return unavailable("list collections", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == q.collection {
			return nil
		}
	}

	_, err = q.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(dims),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return unavailable(fmt.Sprintf("create collection %s", q.collection), err)
	}
	return nil
}

// Upsert stores records. Point IDs are deterministic per chunk identity,
// so Qdrant's own upsert semantics give idempotent re-ingestion.
func (q *QdrantStore) Upsert(ctx context.Context, records []VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	points := make([]*pb.PointStruct, len(records))
	for i, r := range records {
		payload := make(map[string]*pb.Value, len(r.Payload))
		for k, val := range r.Payload {
			payload[k] = toValue(val)
		}
		points[i] = &pb.PointStruct{
			Id:      &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: r.ID}},
			Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: r.Embedding}}},
			Payload: payload,
		}
	}

	wait := true
	_, err := q.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: q.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return unavailable(fmt.Sprintf("upsert %d points", len(records)), err)
	}
	return nil
}

// DeleteBySource removes all points of one source document.
func (q *QdrantStore) DeleteBySource(ctx context.Context, docID string) error {
	wait := true
	_, err := q.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: q.collection,
		Wait:           &wait,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Filter{
				Filter: &pb.Filter{Must: []*pb.Condition{fieldMatch(KeyDocID, docID)}},
			},
		},
	})
	if err != nil {
		return unavailable(fmt.Sprintf("delete by doc_id %s", docID), err)
	}
	return nil
}

// Search performs filtered k-NN similarity search.
func (q *QdrantStore) Search(ctx context.Context, embedding []float32, topK int, filter Filter) ([]SearchResult, error) {
	req := &pb.SearchPoints{
		CollectionName: q.collection,
		Vector:         embedding,
		Limit:          uint64(topK),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	}

	if !filter.Empty() {
		must := make([]*pb.Condition, 0, len(filter.Match)+len(filter.Range))
		for k, v := range filter.Match {
			must = append(must, fieldMatch(k, v))
		}
		for k, r := range filter.Range {
			must = append(must, fieldRange(k, r))
		}
		req.Filter = &pb.Filter{Must: must}
	}

	resp, err := q.points.Search(ctx, req)
	if err != nil {
		return nil, unavailable("search", err)
	}

	results := make([]SearchResult, len(resp.GetResult()))
	for i, r := range resp.GetResult() {
		sr := SearchResult{
			ID:    r.GetId().GetUuid(),
			Score: r.GetScore(),
			Meta:  make(map[string]string),
		}
		for k, val := range r.GetPayload() {
			switch k {
			case KeyContent:
				sr.Content = val.GetStringValue()
			case KeyDocID:
				sr.DocID = val.GetStringValue()
			case KeySection:
				sr.Section = val.GetStringValue()
			case KeySeq:
				sr.Seq = int(val.GetIntegerValue())
			case KeyStart:
				sr.Start = int(val.GetIntegerValue())
			case KeyEnd:
				sr.End = int(val.GetIntegerValue())
			default:
				sr.Meta[k] = val.GetStringValue()
			}
		}
		results[i] = sr
	}
	return results, nil
}

// Count returns the exact number of stored points.
func (q *QdrantStore) Count(ctx context.Context) (uint64, error) {
	exact := true
	resp, err := q.points.Count(ctx, &pb.CountPoints{
		CollectionName: q.collection,
		Exact:          &exact,
	})
	if err != nil {
		return 0, unavailable("count", err)
	}
	return resp.GetResult().GetCount(), nil
}

func toValue(val any) *pb.Value {
	switch tv := val.(type) {
	case string:
		return &pb.Value{Kind: &pb.Value_StringValue{StringValue: tv}}
	case int:
		return &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: int64(tv)}}
	case int64:
		return &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: tv}}
	case float64:
		return &pb.Value{Kind: &pb.Value_DoubleValue{DoubleValue: tv}}
	case bool:
		return &pb.Value{Kind: &pb.Value_BoolValue{BoolValue: tv}}
	default:
		return &pb.Value{Kind: &pb.Value_StringValue{StringValue: fmt.Sprint(tv)}}
	}
}

func fieldMatch(key, value string) *pb.Condition {
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{
				Key:   key,
				Match: &pb.Match{MatchValue: &pb.Match_Keyword{Keyword: value}},
			},
		},
	}
}

func fieldRange(key string, r Range) *pb.Condition {
	pr := &pb.Range{}
	if r.GTE != nil {
		pr.Gte = r.GTE
	}
	if r.LTE != nil {
		pr.Lte = r.LTE
	}
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{Key: key, Range: pr},
		},
	}
}
