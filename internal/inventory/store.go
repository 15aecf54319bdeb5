// Package inventory implements the parts inventory that PartsBin exists to
// track. Saving an existing part number accumulates quantity instead of
// duplicating rows.
package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jheath/partsbin/internal/store"
	"github.com/jheath/partsbin/pkg/models"
)

// ErrNotFound is returned when no item matches the query.
var ErrNotFound = errors.New("inventory item not found")

// Migrations for the inventory component.
var Migrations = []store.Migration{
	{
		Version:     1,
		Description: "create inventory table",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
				CREATE TABLE inventory (
					id              INTEGER PRIMARY KEY AUTOINCREMENT,
					part_number     TEXT NOT NULL UNIQUE,
					quantity        INTEGER NOT NULL DEFAULT 0,
					description     TEXT NOT NULL DEFAULT '',
					category        TEXT NOT NULL DEFAULT '',
					location        TEXT NOT NULL DEFAULT '',
					subteam         TEXT NOT NULL DEFAULT '',
					cost            REAL NOT NULL DEFAULT 0,
					vendor          TEXT NOT NULL DEFAULT '',
					item_type       TEXT NOT NULL DEFAULT '',
					systems         TEXT NOT NULL DEFAULT '',
					case_code       TEXT NOT NULL DEFAULT '',
					size            TEXT NOT NULL DEFAULT '',
					link            TEXT NOT NULL DEFAULT '',
					company         TEXT NOT NULL DEFAULT '',
					notes           TEXT NOT NULL DEFAULT '',
					created_by      TEXT NOT NULL DEFAULT '',
					last_updated_by TEXT NOT NULL DEFAULT '',
					created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
					updated_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
				);
				CREATE INDEX idx_inventory_category ON inventory(category);
				CREATE INDEX idx_inventory_subteam ON inventory(subteam);
			`)
			return err
		},
	},
}

// Store persists inventory items in SQLite.
type Store struct {
	db *store.Store
}

// NewStore creates an inventory store and runs its migrations.
func NewStore(ctx context.Context, db *store.Store) (*Store, error) {
	if err := db.Migrate(ctx, "inventory", Migrations); err != nil {
		return nil, fmt.Errorf("migrate inventory: %w", err)
	}
	return &Store{db: db}, nil
}

const itemColumns = `id, part_number, quantity, description, category, location, subteam,
	cost, vendor, item_type, systems, case_code, size, link, company, notes,
	created_by, last_updated_by, created_at, updated_at`

// Save inserts a new item or accumulates into the existing row for the same
// part number: quantities add, and differing text fields merge as
// comma-separated unions so no hand-entered detail is silently lost.
func (s *Store) Save(ctx context.Context, item models.InventoryItem) (*models.InventoryItem, error) {
	var saved models.InventoryItem

	err := s.db.Tx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx,
			"SELECT "+itemColumns+" FROM inventory WHERE part_number = ?", item.PartNumber)

		existing, scanErr := scanItem(row)
		if errors.Is(scanErr, ErrNotFound) {
			res, execErr := tx.ExecContext(ctx, `
				INSERT INTO inventory (part_number, quantity, description, category, location, subteam,
					cost, vendor, item_type, systems, case_code, size, link, company, notes,
					created_by, last_updated_by)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				item.PartNumber, item.Quantity, item.Description, item.Category, item.Location,
				item.Subteam, item.Cost, item.Vendor, item.ItemType, item.Systems, item.CaseCode,
				item.Size, item.Link, item.Company, item.Notes, item.CreatedBy, item.CreatedBy,
			)
			if execErr != nil {
				return fmt.Errorf("insert item: %w", execErr)
			}
			id, _ := res.LastInsertId()
			saved = item
			saved.ItemID = id
			saved.LastUpdatedBy = item.CreatedBy
			return nil
		}
		if scanErr != nil {
			return scanErr
		}

		merged := accumulate(*existing, item)
		_, execErr := tx.ExecContext(ctx, `
			UPDATE inventory SET quantity = ?, description = ?, category = ?, location = ?,
				subteam = ?, cost = ?, vendor = ?, item_type = ?, systems = ?, case_code = ?,
				size = ?, link = ?, company = ?, notes = ?, last_updated_by = ?,
				updated_at = CURRENT_TIMESTAMP
			WHERE id = ?`,
			merged.Quantity, merged.Description, merged.Category, merged.Location,
			merged.Subteam, merged.Cost, merged.Vendor, merged.ItemType, merged.Systems,
			merged.CaseCode, merged.Size, merged.Link, merged.Company, merged.Notes,
			merged.LastUpdatedBy, merged.ItemID,
		)
		if execErr != nil {
			return fmt.Errorf("accumulate item: %w", execErr)
		}
		saved = merged
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

// accumulate folds an incoming save into an existing row.
func accumulate(existing, incoming models.InventoryItem) models.InventoryItem {
	existing.Quantity += incoming.Quantity
	existing.Description = mergeField(existing.Description, incoming.Description)
	existing.Category = mergeField(existing.Category, incoming.Category)
	existing.Location = mergeField(existing.Location, incoming.Location)
	existing.Subteam = mergeField(existing.Subteam, incoming.Subteam)
	existing.Vendor = mergeField(existing.Vendor, incoming.Vendor)
	existing.ItemType = mergeField(existing.ItemType, incoming.ItemType)
	existing.Systems = mergeField(existing.Systems, incoming.Systems)
	existing.CaseCode = mergeField(existing.CaseCode, incoming.CaseCode)
	existing.Size = mergeField(existing.Size, incoming.Size)
	existing.Link = mergeField(existing.Link, incoming.Link)
	existing.Company = mergeField(existing.Company, incoming.Company)
	existing.Notes = mergeField(existing.Notes, incoming.Notes)
	if incoming.Cost > 0 {
		existing.Cost = incoming.Cost
	}
	if incoming.CreatedBy != "" {
		existing.LastUpdatedBy = incoming.CreatedBy
	}
	return existing
}

// mergeField unions two comma-separated value lists, preserving order of
// first appearance.
func mergeField(a, b string) string {
	if b == "" {
		return a
	}
	if a == "" {
		return b
	}
	seen := make(map[string]bool)
	var parts []string
	for _, chunk := range append(strings.Split(a, ","), strings.Split(b, ",")...) {
		v := strings.TrimSpace(chunk)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		parts = append(parts, v)
	}
	return strings.Join(parts, ", ")
}

// Get returns one item by ID.
func (s *Store) Get(ctx context.Context, id int64) (*models.InventoryItem, error) {
	row := s.db.DB().QueryRowContext(ctx,
		"SELECT "+itemColumns+" FROM inventory WHERE id = ?", id)
	return scanItem(row)
}

// List returns items, optionally filtered by category and subteam.
func (s *Store) List(ctx context.Context, category, subteam string) ([]models.InventoryItem, error) {
	query := "SELECT " + itemColumns + " FROM inventory WHERE 1=1"
	var args []any
	if category != "" {
		query += " AND category = ?"
		args = append(args, category)
	}
	if subteam != "" {
		query += " AND subteam = ?"
		args = append(args, subteam)
	}
	query += " ORDER BY part_number"

	rows, err := s.db.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list inventory: %w", err)
	}
	defer rows.Close()
	return collectItems(rows)
}

// Search returns items whose part number, description, or notes match the
// query substring (case-insensitive).
func (s *Store) Search(ctx context.Context, q string) ([]models.InventoryItem, error) {
	like := "%" + strings.ToLower(q) + "%"
	rows, err := s.db.DB().QueryContext(ctx, `
		SELECT `+itemColumns+` FROM inventory
		WHERE LOWER(part_number) LIKE ? OR LOWER(description) LIKE ? OR LOWER(notes) LIKE ?
		ORDER BY part_number`, like, like, like)
	if err != nil {
		return nil, fmt.Errorf("search inventory: %w", err)
	}
	defer rows.Close()
	return collectItems(rows)
}

// Update replaces an item's mutable fields outright (no accumulation).
func (s *Store) Update(ctx context.Context, item models.InventoryItem) error {
	res, err := s.db.DB().ExecContext(ctx, `
		UPDATE inventory SET quantity = ?, description = ?, category = ?, location = ?,
			subteam = ?, cost = ?, vendor = ?, item_type = ?, systems = ?, case_code = ?,
			size = ?, link = ?, company = ?, notes = ?, last_updated_by = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		item.Quantity, item.Description, item.Category, item.Location, item.Subteam,
		item.Cost, item.Vendor, item.ItemType, item.Systems, item.CaseCode, item.Size,
		item.Link, item.Company, item.Notes, item.LastUpdatedBy, item.ItemID,
	)
	if err != nil {
		return fmt.Errorf("update item %d: %w", item.ItemID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes an item.
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.DB().ExecContext(ctx, "DELETE FROM inventory WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete item %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Stats computes inventory-wide aggregates for the dashboard view.
func (s *Store) Stats(ctx context.Context) (*models.InventoryStats, error) {
	st := models.InventoryStats{
		Categories: make(map[string]int),
		Subteams:   make(map[string]int),
	}

	err := s.db.DB().QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(quantity), 0),
		       COUNT(DISTINCT part_number)
		FROM inventory`,
	).Scan(&st.TotalItems, &st.TotalQuantity, &st.UniquePartNumbers)
	if err != nil {
		return nil, fmt.Errorf("inventory stats: %w", err)
	}

	if err := s.countGroup(ctx, "category", st.Categories); err != nil {
		return nil, err
	}
	if err := s.countGroup(ctx, "subteam", st.Subteams); err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *Store) countGroup(ctx context.Context, column string, into map[string]int) error {
	rows, err := s.db.DB().QueryContext(ctx,
		"SELECT "+column+", COUNT(*) FROM inventory WHERE "+column+" != '' GROUP BY "+column)
	if err != nil {
		return fmt.Errorf("group by %s: %w", column, err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return fmt.Errorf("scan %s group: %w", column, err)
		}
		into[key] = count
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*models.InventoryItem, error) {
	var it models.InventoryItem
	err := row.Scan(&it.ItemID, &it.PartNumber, &it.Quantity, &it.Description, &it.Category,
		&it.Location, &it.Subteam, &it.Cost, &it.Vendor, &it.ItemType, &it.Systems,
		&it.CaseCode, &it.Size, &it.Link, &it.Company, &it.Notes, &it.CreatedBy,
		&it.LastUpdatedBy, &it.CreatedAt, &it.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan item: %w", err)
	}
	return &it, nil
}

func collectItems(rows *sql.Rows) ([]models.InventoryItem, error) {
	var out []models.InventoryItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *it)
	}
	return out, rows.Err()
}
