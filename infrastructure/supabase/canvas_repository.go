package supabase

import (
	"context"
	"encoding/json"
	"time"

	"canvas-backend/application/ports"
	"canvas-backend/domain/core/aggregates"
	"canvas-backend/domain/core/entities"
	"canvas-backend/domain/core/valueobjects"
	pkgerrors "canvas-backend/pkg/errors"
	"canvas-backend/pkg/utils"

	postgrest "github.com/supabase-community/postgrest-go"
	"go.uber.org/zap"
)

// Table is the query surface of a PostgREST client
type Table interface {
	From(table string) *postgrest.QueryBuilder
}

// canvasRow is one saved canvas: {id, client_id, name, nodes, edges, updated_at}
type canvasRow struct {
	ID        string          `json:"id"`
	ClientID  string          `json:"client_id,omitempty"`
	Name      string          `json:"name"`
	Nodes     []entities.Node `json:"nodes"`
	Edges     []entities.Edge `json:"edges"`
	UpdatedAt string          `json:"updated_at,omitempty"`
}

type summaryRow struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	UpdatedAt string `json:"updated_at"`
}

// CanvasRepository stores whole canvas snapshots in a table
type CanvasRepository struct {
	db     Table
	table  string
	logger *zap.Logger
}

var _ ports.CanvasRepository = (*CanvasRepository)(nil)

// NewCanvasRepository creates a repository over the given table
func NewCanvasRepository(db Table, table string, logger *zap.Logger) *CanvasRepository {
	if table == "" {
		table = "canvases"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CanvasRepository{db: db, table: table, logger: logger}
}

// Save upserts the snapshot. An empty ID allocates a new canvas.
func (r *CanvasRepository) Save(ctx context.Context, snapshot aggregates.Snapshot) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id := snapshot.ID
	if id == "" {
		id = valueobjects.NewID()
	}
	row := canvasRow{
		ID:        id,
		ClientID:  snapshot.ClientID,
		Name:      snapshot.Name,
		Nodes:     nonNilNodes(snapshot.Nodes),
		Edges:     nonNilEdges(snapshot.Edges),
		UpdatedAt: utils.NowRFC3339(),
	}
	if _, _, err := r.db.From(r.table).Upsert(row, "id", "minimal", "").Execute(); err != nil {
		return "", pkgerrors.NewDatabaseError("save canvas", err)
	}
	r.logger.Debug("Saved canvas",
		zap.String("canvas_id", id),
		zap.Int("nodes", len(row.Nodes)),
		zap.Int("edges", len(row.Edges)),
	)
	return id, nil
}

// Load retrieves a snapshot by ID
func (r *CanvasRepository) Load(ctx context.Context, id string) (aggregates.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return aggregates.Snapshot{}, err
	}
	var rows []canvasRow
	if _, err := r.db.From(r.table).Select("*", "", false).Eq("id", id).Limit(1, "").ExecuteTo(&rows); err != nil {
		return aggregates.Snapshot{}, pkgerrors.NewDatabaseError("load canvas", err)
	}
	if len(rows) == 0 {
		return aggregates.Snapshot{}, pkgerrors.NewNotFoundError("canvas")
	}
	row := rows[0]
	return aggregates.Snapshot{
		ID:        row.ID,
		ClientID:  row.ClientID,
		Name:      row.Name,
		Nodes:     row.Nodes,
		Edges:     row.Edges,
		UpdatedAt: parseTime(row.UpdatedAt),
	}, nil
}

// List returns the canvases of a client, most recently updated first
func (r *CanvasRepository) List(ctx context.Context, clientID string) ([]ports.CanvasSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	query := r.db.From(r.table).Select("id,name,updated_at", "", false)
	if clientID != "" {
		query = query.Eq("client_id", clientID)
	}
	var rows []summaryRow
	if _, err := query.Order("updated_at", &postgrest.OrderOpts{Ascending: false}).ExecuteTo(&rows); err != nil {
		return nil, pkgerrors.NewDatabaseError("list canvases", err)
	}
	out := make([]ports.CanvasSummary, 0, len(rows))
	for _, row := range rows {
		out = append(out, ports.CanvasSummary{ID: row.ID, Name: row.Name, UpdatedAt: parseTime(row.UpdatedAt)})
	}
	return out, nil
}

// Delete removes a canvas
func (r *CanvasRepository) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, _, err := r.db.From(r.table).Delete("minimal", "").Eq("id", id).Execute(); err != nil {
		return pkgerrors.NewDatabaseError("delete canvas", err)
	}
	return nil
}

// LibraryRepository reads library items from a table
type LibraryRepository struct {
	db    Table
	table string
}

var _ ports.LibraryRepository = (*LibraryRepository)(nil)

// NewLibraryRepository creates a library reader
func NewLibraryRepository(db Table, table string) *LibraryRepository {
	if table == "" {
		table = "content_library"
	}
	return &LibraryRepository{db: db, table: table}
}

type libraryRow struct {
	ID       string          `json:"id"`
	ClientID string          `json:"client_id"`
	Title    string          `json:"title"`
	Content  json.RawMessage `json:"content"`
	Type     string          `json:"type"`
}

// Get returns one item of a client's library
func (r *LibraryRepository) Get(ctx context.Context, clientID, itemID string) (ports.LibraryItem, error) {
	if err := ctx.Err(); err != nil {
		return ports.LibraryItem{}, err
	}
	query := r.db.From(r.table).Select("id,client_id,title,content,type", "", false).Eq("id", itemID)
	if clientID != "" {
		query = query.Eq("client_id", clientID)
	}
	var rows []libraryRow
	if _, err := query.Limit(1, "").ExecuteTo(&rows); err != nil {
		return ports.LibraryItem{}, pkgerrors.NewDatabaseError("load library item", err)
	}
	if len(rows) == 0 {
		return ports.LibraryItem{}, pkgerrors.NewNotFoundError("library item")
	}
	row := rows[0]
	return ports.LibraryItem{
		ID:       row.ID,
		ClientID: row.ClientID,
		Title:    row.Title,
		Content:  contentText(row.Content),
		ItemType: row.Type,
	}, nil
}

// contentText accepts content stored either as a string or as JSON
func contentText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := utils.ParseRFC3339(s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	return time.Time{}
}

func nonNilNodes(nodes []entities.Node) []entities.Node {
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
