// Package dynamodb stores canvas snapshots in a DynamoDB table.
package dynamodb

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"canvas-backend/application/ports"
	"canvas-backend/domain/core/aggregates"
	"canvas-backend/domain/core/entities"
	"canvas-backend/domain/core/valueobjects"
	pkgerrors "canvas-backend/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

const (
	snapshotSK = "SNAPSHOT"
	// ClientIndex is the GSI listing a client's canvases by update time
	ClientIndex = "ClientIndex"
)

// API is the subset of the DynamoDB client the repository uses
type API interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// canvasItem is the stored layout. Nodes and edges are kept as JSON
// documents because node payloads differ per kind.
type canvasItem struct {
	PK        string `dynamodbav:"PK"`
	SK        string `dynamodbav:"SK"`
	GSI1PK    string `dynamodbav:"GSI1PK,omitempty"`
	GSI1SK    string `dynamodbav:"GSI1SK,omitempty"`
	ID        string `dynamodbav:"id"`
	ClientID  string `dynamodbav:"client_id,omitempty"`
	Name      string `dynamodbav:"name"`
	Nodes     string `dynamodbav:"nodes"`
	Edges     string `dynamodbav:"edges"`
	UpdatedAt string `dynamodbav:"updated_at"`
}

// CanvasRepository implements ports.CanvasRepository on DynamoDB
type CanvasRepository struct {
	client    API
	tableName string
	now       func() time.Time
	logger    *zap.Logger
}

var _ ports.CanvasRepository = (*CanvasRepository)(nil)

// NewCanvasRepository creates a repository over the given table
func NewCanvasRepository(client API, tableName string, logger *zap.Logger) *CanvasRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CanvasRepository{client: client, tableName: tableName, now: time.Now, logger: logger}
}

func canvasKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: "CANVAS#" + id},
		"SK": &types.AttributeValueMemberS{Value: snapshotSK},
	}
}

func clientPK(clientID string) string {
	return "CLIENT#" + clientID
}

// Save writes the whole snapshot. A new canvas must not overwrite an
// existing item.
func (r *CanvasRepository) Save(ctx context.Context, snapshot aggregates.Snapshot) (string, error) {
	id := snapshot.ID
	created := id == ""
	if created {
		id = valueobjects.NewID()
	}

	nodes, err := json.Marshal(nonNil(snapshot.Nodes))
	if err != nil {
		return "", pkgerrors.NewInternalError("encode nodes").WithCause(err)
	}
	edges, err := json.Marshal(nonNilEdges(snapshot.Edges))
	if err != nil {
		return "", pkgerrors.NewInternalError("encode edges").WithCause(err)
	}

	updatedAt := r.now().UTC().Format(time.RFC3339Nano)
	item := canvasItem{
		PK:        "CANVAS#" + id,
		SK:        snapshotSK,
		ID:        id,
		ClientID:  snapshot.ClientID,
		Name:      snapshot.Name,
		Nodes:     string(nodes),
		Edges:     string(edges),
		UpdatedAt: updatedAt,
	}
	if snapshot.ClientID != "" {
		item.GSI1PK = clientPK(snapshot.ClientID)
		item.GSI1SK = updatedAt
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return "", pkgerrors.NewInternalError("marshal canvas item").WithCause(err)
	}

	input := &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      av,
	}
	if created {
		expr, err := expression.NewBuilder().
			WithCondition(expression.Name("PK").AttributeNotExists()).
			Build()
		if err != nil {
			return "", pkgerrors.Wrap(err, "failed to build expression")
		}
		input.ConditionExpression = expr.Condition()
		input.ExpressionAttributeNames = expr.Names()
	}

	if _, err := r.client.PutItem(ctx, input); err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return "", pkgerrors.NewConflictError("canvas id already exists")
		}
		return "", pkgerrors.NewDatabaseError("save canvas", err)
	}

	r.logger.Debug("Canvas saved",
		zap.String("canvas_id", id),
		zap.Bool("created", created),
		zap.Int("nodes", len(snapshot.Nodes)),
	)
	return id, nil
}

// Load retrieves a snapshot by ID
func (r *CanvasRepository) Load(ctx context.Context, id string) (aggregates.Snapshot, error) {
	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       canvasKey(id),
	})
	if err != nil {
		return aggregates.Snapshot{}, pkgerrors.NewDatabaseError("load canvas", err)
	}
	if result.Item == nil {
		return aggregates.Snapshot{}, pkgerrors.NewNotFoundError("canvas")
	}

	var item canvasItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return aggregates.Snapshot{}, pkgerrors.NewDatabaseError("decode canvas", err)
	}

	snap := aggregates.Snapshot{
		ID:        item.ID,
		ClientID:  item.ClientID,
		Name:      item.Name,
		UpdatedAt: parseTime(item.UpdatedAt),
	}
	if item.Nodes != "" {
		if err := json.Unmarshal([]byte(item.Nodes), &snap.Nodes); err != nil {
			return aggregates.Snapshot{}, pkgerrors.NewDatabaseError("decode nodes", err)
		}
	}
	if item.Edges != "" {
		if err := json.Unmarshal([]byte(item.Edges), &snap.Edges); err != nil {
			return aggregates.Snapshot{}, pkgerrors.NewDatabaseError("decode edges", err)
		}
	}
	return snap, nil
}

// List returns a client's canvases, most recently updated first
func (r *CanvasRepository) List(ctx context.Context, clientID string) ([]ports.CanvasSummary, error) {
	keyCond := expression.Key("GSI1PK").Equal(expression.Value(clientPK(clientID)))
	expr, err := expression.NewBuilder().
		WithKeyCondition(keyCond).
		WithProjection(expression.NamesList(expression.Name("id"), expression.Name("name"), expression.Name("updated_at"))).
		Build()
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to build query for client %s", clientID)
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(ClientIndex),
		KeyConditionExpression:    expr.KeyCondition(),
		ProjectionExpression:      expr.Projection(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(false),
	}

	var out []ports.CanvasSummary
	for {
		result, err := r.client.Query(ctx, input)
		if err != nil {
			return nil, pkgerrors.NewDatabaseError("list canvases", err)
		}
		var items []canvasItem
		if err := attributevalue.UnmarshalListOfMaps(result.Items, &items); err != nil {
			return nil, pkgerrors.NewDatabaseError("decode canvases", err)
		}
		for _, item := range items {
			out = append(out, ports.CanvasSummary{
				ID:        item.ID,
				Name:      item.Name,
				UpdatedAt: parseTime(item.UpdatedAt),
			})
		}
		if len(result.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}
	return out, nil
}

// Delete removes a canvas
func (r *CanvasRepository) Delete(ctx context.Context, id string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       canvasKey(id),
	})
	if err != nil {
		return pkgerrors.NewDatabaseError("delete canvas", err)
	}
	return nil
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nonNil(nodes []entities.Node) []entities.Node {
	if nodes == nil {
		return []entities.Node{}
	}
	return nodes
}

func nonNilEdges(edges []entities.Edge) []entities.Edge {
	if edges == nil {
		return []entities.Edge{}
	}
	return edges
}
