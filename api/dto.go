/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

DECIMALS:
  Quantities and prices travel as JSON strings to keep decimal precision
  across clients. Parsing happens in handlers.

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/warp/stock-engine/inventory"
)

// =============================================================================
// MATERIALS
// =============================================================================

// MaterialDTO represents a material in API responses.
type MaterialDTO struct {
	ID               string `json:"id"`
	SKU              string `json:"sku"`
	Description      string `json:"description"`
	Category         string `json:"category"`
	Unit             string `json:"unit"`
	UnitCost         string `json:"unit_cost"`
	UnitPrice        string `json:"unit_price"`
	OnHand           string `json:"on_hand"`
	Reserved         string `json:"reserved"`
	Available        string `json:"available"`
	ReorderThreshold string `json:"reorder_threshold"`
	Discontinued     bool   `json:"discontinued"`
	UpdatedAt        string `json:"updated_at"`
}

func toMaterialDTO(m inventory.MaterialRecord) MaterialDTO {
	return MaterialDTO{
		ID:               string(m.ID),
		SKU:              m.SKU,
		Description:      m.Description,
		Category:         m.Category,
		Unit:             string(m.Unit),
		UnitCost:         m.UnitCost.String(),
		UnitPrice:        m.UnitPrice.String(),
		OnHand:           m.OnHand.String(),
		Reserved:         m.Reserved.String(),
		Available:        m.Available().String(),
		ReorderThreshold: m.ReorderThreshold.String(),
		Discontinued:     m.Discontinued,
		UpdatedAt:        m.UpdatedAt.Format(time.RFC3339),
	}
}

// UpsertMaterialRequest creates or updates a catalog record.
// unit_price may be omitted; it then defaults to unit_cost * 1.30.
type UpsertMaterialRequest struct {
	ID               string `json:"id"`
	SKU              string `json:"sku"`
	Description      string `json:"description"`
	Category         string `json:"category"`
	Unit             string `json:"unit"`
	UnitCost         string `json:"unit_cost"`
	UnitPrice        string `json:"unit_price,omitempty"`
	OnHand           string `json:"on_hand,omitempty"`
	ReorderThreshold string `json:"reorder_threshold,omitempty"`
}

// ReceiveRequest books a goods receipt.
type ReceiveRequest struct {
	Quantity string `json:"quantity"`
	Note     string `json:"note,omitempty"`
}

// AdjustRequest applies a manual on-hand correction.
type AdjustRequest struct {
	Delta  string `json:"delta"`
	Reason string `json:"reason"`
}

// =============================================================================
// AVAILABILITY AND RESERVATIONS
// =============================================================================

// DemandDTO is one (material, quantity) line of a material plan.
type DemandDTO struct {
	MaterialID string `json:"material_id"`
	Quantity   string `json:"quantity"`
}

// CheckAvailabilityRequest carries the batch to check or reserve.
type CheckAvailabilityRequest struct {
	Items []DemandDTO `json:"items"`
}

// AvailabilityItemDTO is the per-material availability detail.
type AvailabilityItemDTO struct {
	MaterialID  string `json:"material_id"`
	Description string `json:"description"`
	Requested   string `json:"requested"`
	Available   string `json:"available"`
	Shortage    string `json:"shortage"`
}

func toAvailabilityItemDTO(i inventory.AvailabilityItem) AvailabilityItemDTO {
	return AvailabilityItemDTO{
		MaterialID:  string(i.MaterialID),
		Description: i.Description,
		Requested:   i.Requested.String(),
		Available:   i.Available.String(),
		Shortage:    i.Shortage.String(),
	}
}

// AvailabilityReportDTO is the CheckAvailability response.
type AvailabilityReportDTO struct {
	Items        []AvailabilityItemDTO `json:"items"`
	AllAvailable bool                  `json:"all_available"`
}

// ReservationDTO is one active reservation record.
type ReservationDTO struct {
	ID          string `json:"id"`
	WorkOrderID string `json:"work_order_id"`
	MaterialID  string `json:"material_id"`
	Quantity    string `json:"quantity"`
	CreatedAt   string `json:"created_at"`
}

func toReservationDTO(r inventory.ReservationRecord) ReservationDTO {
	return ReservationDTO{
		ID:          r.ID,
		WorkOrderID: string(r.WorkOrderID),
		MaterialID:  string(r.MaterialID),
		Quantity:    r.Quantity.String(),
		CreatedAt:   r.CreatedAt.Format(time.RFC3339),
	}
}

// ReserveResponseDTO is the tagged outcome of a reserve call. On shortage
// the same shape comes back with success=false and the full shortage list.
type ReserveResponseDTO struct {
	Success   bool                  `json:"success"`
	Reserved  []ReservationDTO      `json:"reserved,omitempty"`
	Shortages []AvailabilityItemDTO `json:"shortages,omitempty"`
}

// ConsumedItemDTO reports one consumed material.
type ConsumedItemDTO struct {
	MaterialID   string `json:"material_id"`
	Quantity     string `json:"quantity"`
	OnHandBefore string `json:"on_hand_before"`
	OnHandAfter  string `json:"on_hand_after"`
}

// ReleasedItemDTO reports one released reservation.
type ReleasedItemDTO struct {
	MaterialID string `json:"material_id"`
	Quantity   string `json:"quantity"`
}

// =============================================================================
// MOVEMENTS AND ANALYTICS
// =============================================================================

// MovementDTO is one ledger entry in API responses.
type MovementDTO struct {
	ID             string  `json:"id"`
	MaterialID     string  `json:"material_id"`
	WorkOrderID    *string `json:"work_order_id,omitempty"`
	Type           string  `json:"type"`
	QuantitySigned string  `json:"quantity_signed"`
	OnHandBefore   string  `json:"on_hand_before"`
	OnHandAfter    string  `json:"on_hand_after"`
	Note           string  `json:"note,omitempty"`
	Timestamp      string  `json:"timestamp"`
}

func toMovementDTO(e inventory.MovementEntry) MovementDTO {
	dto := MovementDTO{
		ID:             string(e.ID),
		MaterialID:     string(e.MaterialID),
		Type:           string(e.Type),
		QuantitySigned: e.QuantitySigned.String(),
		OnHandBefore:   e.OnHandBefore.String(),
		OnHandAfter:    e.OnHandAfter.String(),
		Note:           e.Note,
		Timestamp:      e.Timestamp.Format(time.RFC3339Nano),
	}
	if e.WorkOrderID != nil {
		wo := string(*e.WorkOrderID)
		dto.WorkOrderID = &wo
	}
	return dto
}

// LowStockItemDTO pairs a material with its availability.
type LowStockItemDTO struct {
	Material  MaterialDTO `json:"material"`
	Available string      `json:"available"`
}

// MovementSummaryDTO aggregates a material's movement history.
type MovementSummaryDTO struct {
	MaterialID    string         `json:"material_id"`
	TotalIncoming string         `json:"total_incoming"`
	TotalOutgoing string         `json:"total_outgoing"`
	NetChange     string         `json:"net_change"`
	CountsByType  map[string]int `json:"counts_by_type"`
}

// TrendBucketDTO is one day of movement activity.
type TrendBucketDTO struct {
	Day      string `json:"day"`
	Incoming string `json:"incoming"`
	Outgoing string `json:"outgoing"`
	Net      string `json:"net"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
