// Package syncdata defines the wire types of the offline synchronization
// protocol. Both the server endpoint and the field client speak these shapes.
package syncdata

// ReadingPayload is one reading inside a sync batch or a pending-pull
// response. An empty ID means "create"; a non-empty ID means
// "update-or-confirm" against a server-assigned identifier. ClientRef is a
// client-generated correlation id echoed back for id-less creates so the
// device can adopt the server identifier afterwards.
type ReadingPayload struct {
	ID                  string   `json:"id,omitempty"`
	ClientRef           string   `json:"clientRef,omitempty"`
	StationID           string   `json:"stationId" binding:"required,uuid"`
	ReadingDate         string   `json:"readingDate" binding:"required,datetime=2006-01-02"`
	PHLevel             *float64 `json:"phLevel,omitempty" binding:"omitempty,gte=0,lte=14"`
	TDSLevel            *int     `json:"tdsLevel,omitempty" binding:"omitempty,gte=0"`
	Temperature         *float64 `json:"temperature,omitempty"`
	Pressure            *float64 `json:"pressure,omitempty" binding:"omitempty,gte=0"`
	TankLevelPercentage *int     `json:"tankLevelPercentage,omitempty" binding:"omitempty,gte=0,lte=100"`
	Notes               *string  `json:"notes,omitempty"`
	NotesAr             *string  `json:"notesAr,omitempty"`
}

// FaultPayload is one fault report inside a sync batch or a pending-pull
// response. The workflow status is intentionally absent: status transitions
// go through the fault workflow endpoint, not the sync channel.
type FaultPayload struct {
	ID            string   `json:"id,omitempty"`
	ClientRef     string   `json:"clientRef,omitempty"`
	StationID     string   `json:"stationId" binding:"required,uuid"`
	Title         string   `json:"title" binding:"required,min=5,max=255"`
	TitleAr       string   `json:"titleAr" binding:"required,min=5,max=255"`
	Description   string   `json:"description" binding:"required,min=10"`
	DescriptionAr string   `json:"descriptionAr" binding:"required,min=10"`
	Priority      string   `json:"priority,omitempty" binding:"omitempty,oneof=low medium high critical"`
	Latitude      *float64 `json:"latitude,omitempty" binding:"omitempty,gte=-90,lte=90"`
	Longitude     *float64 `json:"longitude,omitempty" binding:"omitempty,gte=-180,lte=180"`
	PhotoURL      *string  `json:"photoUrl,omitempty" binding:"omitempty,uri"`
}

// UploadRequest is the batch a device submits in one upload call.
type UploadRequest struct {
	Readings []ReadingPayload `json:"readings,omitempty" binding:"omitempty,dive"`
	Faults   []FaultPayload   `json:"faults,omitempty" binding:"omitempty,dive"`
}

// RecordError reports a single rejected record. ID carries the
// client-supplied identifier, ClientRef the correlation id, so the device
// can match the failure to its local row.
type RecordError struct {
	ID        string `json:"id,omitempty"`
	ClientRef string `json:"clientRef,omitempty"`
	Error     string `json:"error"`
}

// CreatedRecord maps a client correlation id to the server-assigned
// identifier of a newly created row.
type CreatedRecord struct {
	ClientRef string `json:"clientRef,omitempty"`
	ID        string `json:"id"`
}

// KindResult aggregates the outcome for one record kind in a batch.
type KindResult struct {
	Created        int             `json:"created"`
	Updated        int             `json:"updated"`
	Errors         []RecordError   `json:"errors"`
	CreatedRecords []CreatedRecord `json:"createdRecords,omitempty"`
}

// UploadResult is the per-kind outcome of a whole upload call.
type UploadResult struct {
	Readings KindResult `json:"readings"`
	Faults   KindResult `json:"faults"`
}

// PendingData is the download half of synchronization: records the caller
// owns that their device does not have yet, oldest first.
type PendingData struct {
	Readings []ReadingPayload `json:"readings"`
	Faults   []FaultPayload   `json:"faults"`
}

// MarkSyncedRequest acknowledges that the device now holds the given rows.
type MarkSyncedRequest struct {
	IDs  []string `json:"ids" binding:"required"`
	Type string   `json:"type" binding:"required,oneof=readings faults"`
}
