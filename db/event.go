// Package db - persistence layer
package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alwitt/keyvault/models"
	"github.com/oklog/ulid/v2"
	"gorm.io/datatypes"
)

/*
RecordLedgerEvent record an emitted event

	@param ctx context.Context - execution context
	@param event NewLedgerEvent - the event
	@returns the event entry
*/
func (d *databaseImpl) RecordLedgerEvent(
	_ context.Context, event NewLedgerEvent,
) (models.LedgerEvent, error) {
	newEntry := LedgerEventDBEntry{
		LedgerEvent: models.LedgerEvent{
			ID:        ulid.Make().String(),
			TxID:      event.TxID,
			Emitter:   event.Emitter,
			EventType: event.EventType,
		},
	}

	if event.Metadata != nil {
		if err := d.validator.Struct(event.Metadata); err != nil {
			return models.LedgerEvent{}, fmt.Errorf(
				"new ledger event '%s' metadata entry is not valid [%w]", event.EventType, err,
			)
		}

		metadataStr, err := json.Marshal(event.Metadata)
		if err != nil {
			return models.LedgerEvent{}, fmt.Errorf(
				"new ledger event '%s' metadata serialization failed [%w]", event.EventType, err,
			)
		}
		newEntry.Metadata = datatypes.JSON(metadataStr)
	}

	if err := d.validator.Struct(&newEntry); err != nil {
		return models.LedgerEvent{}, fmt.Errorf(
			"new ledger event '%s' entry is not valid [%w]", event.EventType, err,
		)
	}

	if tmp := d.db.Create(&newEntry); tmp.Error != nil {
		return models.LedgerEvent{}, fmt.Errorf(
			"new ledger event '%s' insert failed [%w]", event.EventType, tmp.Error,
		)
	}

	return newEntry.LedgerEvent, nil
}

/*
ListLedgerEvents list emitted events

	@param ctx context.Context - execution context
	@param filters LedgerEventQueryFilter - entry listing filter
	@return list of events
*/
func (d *databaseImpl) ListLedgerEvents(
	_ context.Context, filters LedgerEventQueryFilter,
) ([]models.LedgerEvent, error) {
	query := d.db.Model(&LedgerEventDBEntry{})

	if len(filters.EventTypes) > 0 {
		query = query.Where("type in ?", filters.EventTypes)
	}
	if filters.Emitter != nil {
		query = query.Where("emitter = ?", *filters.Emitter)
	}
	if filters.TxID != nil {
		query = query.Where("tx_id = ?", *filters.TxID)
	}

	query = applyListFilter(query, filters.CommonListEntryQueryFilter)

	// ULIDs are monotonic within the process, so ID order is emission order
	query = query.Order("id")

	var entries []LedgerEventDBEntry
	if tmp := query.Find(&entries); tmp.Error != nil {
		return nil, fmt.Errorf("failed to list ledger events [%w]", tmp.Error)
	}

	result := []models.LedgerEvent{}
	for _, entry := range entries {
		result = append(result, entry.LedgerEvent)
	}

	return result, nil
}
