package models

import "time"

// InventoryItem is a tracked stock line, keyed by part number for
// accumulation on repeated intake.
type InventoryItem struct {
	ItemID        int64     `json:"item_id"`
	PartNumber    string    `json:"part_number"`
	Quantity      int       `json:"quantity"`
	Description   string    `json:"description,omitempty"`
	Category      string    `json:"category,omitempty"`
	Location      string    `json:"location,omitempty"`
	Subteam       string    `json:"subteam,omitempty"`
	Cost          float64   `json:"cost"`
	Vendor        string    `json:"vendor,omitempty"`
	ItemType      string    `json:"item_type,omitempty"`
	Systems       string    `json:"systems,omitempty"`
	CaseCode      string    `json:"case_code,omitempty"`
	Size          string    `json:"size,omitempty"`
	Link          string    `json:"link,omitempty"`
	Company       string    `json:"company,omitempty"`
	Notes         string    `json:"notes,omitempty"`
	CreatedBy     string    `json:"created_by,omitempty"`
	LastUpdatedBy string    `json:"last_updated_by,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// InventoryStats summarizes the inventory for the dashboard view.
type InventoryStats struct {
	TotalItems        int            `json:"total_items"`
	TotalQuantity     int            `json:"total_quantity"`
	UniquePartNumbers int            `json:"unique_part_numbers"`
	Categories        map[string]int `json:"categories"`
	Subteams          map[string]int `json:"subteams"`
}
