package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"waterops-backend/internal/model"
	"waterops-backend/internal/syncdata"
)

const (
	errStationAccess = "Station not found or access denied"
	errReadingAccess = "Reading not found or access denied"
	errFaultAccess   = "Fault not found or access denied"
	errDuplicateDate = "A reading already exists for this station and date"
)

// Store defines the database operations behind the sync endpoint.
type Store interface {
	ApplyReadings(ctx context.Context, operatorID string, readings []syncdata.ReadingPayload) syncdata.KindResult
	ApplyFaults(ctx context.Context, operatorID string, faults []syncdata.FaultPayload) syncdata.KindResult
	PendingReadings(ctx context.Context, operatorID string) ([]syncdata.ReadingPayload, error)
	PendingFaults(ctx context.Context, operatorID string) ([]syncdata.FaultPayload, error)
	MarkSynced(ctx context.Context, operatorID, kind string, ids []string) (int64, error)
	DB() *gorm.DB
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// stationAccessible reports whether the station exists and is assigned to
// the operator. Ownership is enforced at the query level; there is no
// application-level locking between concurrent sync runs.
func (s *gormStore) stationAccessible(ctx context.Context, stationID, operatorID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&model.Station{}).
		Where("id = ? AND operator_id = ?", stationID, operatorID).
		Count(&count).Error
	return count > 0, err
}

// ApplyReadings applies each reading in submission order. A rejected record
// never aborts its siblings: every failure is recorded per item and
// processing continues.
func (s *gormStore) ApplyReadings(ctx context.Context, operatorID string, readings []syncdata.ReadingPayload) syncdata.KindResult {
	result := syncdata.KindResult{Errors: []syncdata.RecordError{}}

	for _, r := range readings {
		ok, err := s.stationAccessible(ctx, r.StationID, operatorID)
		if err != nil {
			result.Errors = append(result.Errors, recordError(r.ID, r.ClientRef, err.Error()))
			continue
		}
		if !ok {
			result.Errors = append(result.Errors, recordError(r.ID, r.ClientRef, errStationAccess))
			continue
		}

		if r.ID != "" {
			if err := s.updateReading(ctx, operatorID, r); err != nil {
				result.Errors = append(result.Errors, recordError(r.ID, r.ClientRef, err.Error()))
				continue
			}
			result.Updated++
		} else {
			id, err := s.createReading(ctx, operatorID, r)
			if err != nil {
				result.Errors = append(result.Errors, recordError(r.ID, r.ClientRef, err.Error()))
				continue
			}
			result.Created++
			result.CreatedRecords = append(result.CreatedRecords, syncdata.CreatedRecord{ClientRef: r.ClientRef, ID: id})
		}
	}
	return result
}

// updateReading applies an update scoped to rows owned by the operator.
// Re-applying an identical update is a confirmation, not an error: the row
// still matches, rows-affected is non-zero, and the record counts as updated.
func (s *gormStore) updateReading(ctx context.Context, operatorID string, r syncdata.ReadingPayload) error {
	updates := map[string]any{
		"is_synced":  true,
		"updated_at": time.Now().UTC(),
	}
	if r.PHLevel != nil {
		updates["ph_level"] = *r.PHLevel
	}
	if r.TDSLevel != nil {
		updates["tds_level"] = *r.TDSLevel
	}
	if r.Temperature != nil {
		updates["temperature"] = *r.Temperature
	}
	if r.Pressure != nil {
		updates["pressure"] = *r.Pressure
	}
	if r.TankLevelPercentage != nil {
		updates["tank_level_percentage"] = *r.TankLevelPercentage
	}
	if r.Notes != nil {
		updates["notes"] = *r.Notes
	}
	if r.NotesAr != nil {
		updates["notes_ar"] = *r.NotesAr
	}

	res := s.db.WithContext(ctx).
		Model(&model.Reading{}).
		Where("id = ? AND operator_id = ?", r.ID, operatorID).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errors.New(errReadingAccess)
	}
	return nil
}

// createReading inserts a new reading stamped with the caller's ownership.
// The (station, reading_date) uniqueness is pre-checked so a duplicate in
// the same batch surfaces as a deterministic per-record error; the unique
// index remains the backstop against concurrent writers.
func (s *gormStore) createReading(ctx context.Context, operatorID string, r syncdata.ReadingPayload) (string, error) {
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&model.Reading{}).
		Where("station_id = ? AND reading_date = ?", r.StationID, r.ReadingDate).
		Count(&count).Error; err != nil {
		return "", err
	}
	if count > 0 {
		return "", errors.New(errDuplicateDate)
	}

	reading := model.Reading{
		StationID:           r.StationID,
		OperatorID:          operatorID,
		ReadingDate:         r.ReadingDate,
		PHLevel:             r.PHLevel,
		TDSLevel:            r.TDSLevel,
		Temperature:         r.Temperature,
		Pressure:            r.Pressure,
		TankLevelPercentage: r.TankLevelPercentage,
		Notes:               r.Notes,
		NotesAr:             r.NotesAr,
		IsSynced:            true,
	}
	if err := s.db.WithContext(ctx).Create(&reading).Error; err != nil {
		return "", err
	}
	return reading.ID, nil
}

// ApplyFaults applies each fault in submission order with the same
// per-record error semantics as ApplyReadings.
func (s *gormStore) ApplyFaults(ctx context.Context, operatorID string, faults []syncdata.FaultPayload) syncdata.KindResult {
	result := syncdata.KindResult{Errors: []syncdata.RecordError{}}

	for _, f := range faults {
		ok, err := s.stationAccessible(ctx, f.StationID, operatorID)
		if err != nil {
			result.Errors = append(result.Errors, recordError(f.ID, f.ClientRef, err.Error()))
			continue
		}
		if !ok {
			result.Errors = append(result.Errors, recordError(f.ID, f.ClientRef, errStationAccess))
			continue
		}

		if f.ID != "" {
			if err := s.updateFault(ctx, operatorID, f); err != nil {
				result.Errors = append(result.Errors, recordError(f.ID, f.ClientRef, err.Error()))
				continue
			}
			result.Updated++
		} else {
			id, err := s.createFault(ctx, operatorID, f)
			if err != nil {
				result.Errors = append(result.Errors, recordError(f.ID, f.ClientRef, err.Error()))
				continue
			}
			result.Created++
			result.CreatedRecords = append(result.CreatedRecords, syncdata.CreatedRecord{ClientRef: f.ClientRef, ID: id})
		}
	}
	return result
}

func (s *gormStore) updateFault(ctx context.Context, operatorID string, f syncdata.FaultPayload) error {
	updates := map[string]any{
		"title":          f.Title,
		"title_ar":       f.TitleAr,
		"description":    f.Description,
		"description_ar": f.DescriptionAr,
		"is_synced":      true,
		"updated_at":     time.Now().UTC(),
	}
	if f.Priority != "" {
		updates["priority"] = f.Priority
	}
	if f.Latitude != nil {
		updates["latitude"] = *f.Latitude
	}
	if f.Longitude != nil {
		updates["longitude"] = *f.Longitude
	}
	if f.PhotoURL != nil {
		updates["photo_url"] = *f.PhotoURL
	}

	res := s.db.WithContext(ctx).
		Model(&model.Fault{}).
		Where("id = ? AND reported_by = ?", f.ID, operatorID).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errors.New(errFaultAccess)
	}
	return nil
}

func (s *gormStore) createFault(ctx context.Context, operatorID string, f syncdata.FaultPayload) (string, error) {
	priority := model.FaultPriority(f.Priority)
	if priority == "" {
		priority = model.PriorityMedium
	}

	fault := model.Fault{
		StationID:     f.StationID,
		ReportedBy:    operatorID,
		Title:         f.Title,
		TitleAr:       f.TitleAr,
		Description:   f.Description,
		DescriptionAr: f.DescriptionAr,
		Status:        model.FaultOpen,
		Priority:      priority,
		Latitude:      f.Latitude,
		Longitude:     f.Longitude,
		PhotoURL:      f.PhotoURL,
		IsSynced:      true,
	}
	if err := s.db.WithContext(ctx).Create(&fault).Error; err != nil {
		return "", err
	}
	return fault.ID, nil
}

// PendingReadings returns the caller's readings their device does not hold
// yet, oldest first so the client applies them in creation order.
func (s *gormStore) PendingReadings(ctx context.Context, operatorID string) ([]syncdata.ReadingPayload, error) {
	var readings []model.Reading
	err := s.db.WithContext(ctx).
		Where("operator_id = ? AND is_synced = ?", operatorID, false).
		Order("created_at ASC").
		Find(&readings).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pending readings: %w", err)
	}

	payloads := make([]syncdata.ReadingPayload, 0, len(readings))
	for _, r := range readings {
		payloads = append(payloads, syncdata.ReadingPayload{
			ID:                  r.ID,
			StationID:           r.StationID,
			ReadingDate:         r.ReadingDate,
			PHLevel:             r.PHLevel,
			TDSLevel:            r.TDSLevel,
			Temperature:         r.Temperature,
			Pressure:            r.Pressure,
			TankLevelPercentage: r.TankLevelPercentage,
			Notes:               r.Notes,
			NotesAr:             r.NotesAr,
		})
	}
	return payloads, nil
}

// PendingFaults returns the caller's reported faults that are both unsynced
// and still in an unresolved workflow state. Resolved or closed faults stop
// flowing to devices regardless of their sync flag.
func (s *gormStore) PendingFaults(ctx context.Context, operatorID string) ([]syncdata.FaultPayload, error) {
	var faults []model.Fault
	err := s.db.WithContext(ctx).
		Where("reported_by = ? AND is_synced = ? AND status NOT IN ?",
			operatorID, false, []model.FaultStatus{model.FaultResolved, model.FaultClosed}).
		Order("created_at ASC").
		Find(&faults).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pending faults: %w", err)
	}

	payloads := make([]syncdata.FaultPayload, 0, len(faults))
	for _, f := range faults {
		payloads = append(payloads, syncdata.FaultPayload{
			ID:            f.ID,
			StationID:     f.StationID,
			Title:         f.Title,
			TitleAr:       f.TitleAr,
			Description:   f.Description,
			DescriptionAr: f.DescriptionAr,
			Priority:      string(f.Priority),
			Latitude:      f.Latitude,
			Longitude:     f.Longitude,
			PhotoURL:      f.PhotoURL,
		})
	}
	return payloads, nil
}

// MarkSynced flags the given rows as held by the caller's device, scoped to
// caller ownership. It returns the number of rows actually flagged.
func (s *gormStore) MarkSynced(ctx context.Context, operatorID, kind string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	var res *gorm.DB
	switch kind {
	case "readings":
		res = s.db.WithContext(ctx).
			Model(&model.Reading{}).
			Where("id IN ? AND operator_id = ?", ids, operatorID).
			Updates(map[string]any{"is_synced": true})
	case "faults":
		res = s.db.WithContext(ctx).
			Model(&model.Fault{}).
			Where("id IN ? AND reported_by = ?", ids, operatorID).
			Updates(map[string]any{"is_synced": true, "updated_at": time.Now().UTC()})
	default:
		return 0, fmt.Errorf("unknown sync kind %q", kind)
	}
	if res.Error != nil {
		return 0, res.Error
	}

	log.Printf("Marked %d %s as synced for operator %s", res.RowsAffected, kind, operatorID)
	return res.RowsAffected, nil
}

func recordError(id, clientRef, msg string) syncdata.RecordError {
	return syncdata.RecordError{ID: id, ClientRef: clientRef, Error: msg}
}
