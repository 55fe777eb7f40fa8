package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"waterops-backend/internal/syncdata"
)

// Sync failure conditions surfaced to callers.
var (
	ErrSyncInProgress = errors.New("sync already in progress")
	ErrNoConnectivity = errors.New("no internet connection")
)

// SyncState is the sync client's run state.
type SyncState int

const (
	StateIdle SyncState = iota
	StateUploading
	StateDownloading
)

// KindOutcome aggregates per-kind counts of one sync run.
type KindOutcome struct {
	Created int
	Updated int
	Errored int
}

// SyncResult is the aggregate outcome of one SyncAll run. Partial success
// is a first-class outcome: individual record failures are listed in Errors
// while the rest of the batch proceeds.
type SyncResult struct {
	Readings KindOutcome
	Faults   KindOutcome
	Errors   []syncdata.RecordError
}

// TokenFunc supplies the bearer token for server calls.
type TokenFunc func(ctx context.Context) (string, error)

// SyncClient owns the upload/download sequence and is the single authority
// on whether a sync is currently running. There is one sync client per
// device, so an in-memory state flag suffices; a second invocation while
// one is in flight fails fast rather than queueing.
type SyncClient struct {
	store   *LocalStore
	monitor Monitor
	baseURL string
	token   TokenFunc
	http    *http.Client

	mu       sync.Mutex
	state    SyncState
	lastSync time.Time
}

// NewSyncClient creates a sync client against the given server.
func NewSyncClient(store *LocalStore, monitor Monitor, baseURL string, token TokenFunc) *SyncClient {
	return &SyncClient{
		store:   store,
		monitor: monitor,
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// State returns the current run state.
func (sc *SyncClient) State() SyncState {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.state
}

func (sc *SyncClient) begin() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.state != StateIdle {
		return ErrSyncInProgress
	}
	sc.state = StateUploading
	return nil
}

func (sc *SyncClient) setState(s SyncState) {
	sc.mu.Lock()
	sc.state = s
	sc.mu.Unlock()
}

// SyncAll uploads locally pending records, then pulls server-side records
// the device does not have. Uploads strictly precede downloads so the
// device's own writes are durable before it reads a merged view. Re-running
// after a clean pass is a no-op: nothing is left unsynced and nothing is
// re-uploaded.
func (sc *SyncClient) SyncAll(ctx context.Context) (*SyncResult, error) {
	if err := sc.begin(); err != nil {
		return nil, err
	}
	defer sc.setState(StateIdle)

	if !sc.monitor.Online() {
		return nil, ErrNoConnectivity
	}

	result := &SyncResult{Errors: []syncdata.RecordError{}}

	readings, err := sc.store.UnsyncedReadings(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to collect unsynced readings: %w", err)
	}
	faults, err := sc.store.UnsyncedFaults(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to collect unsynced faults: %w", err)
	}

	if len(readings) > 0 || len(faults) > 0 {
		if err := sc.upload(ctx, readings, faults, result); err != nil {
			// Transport failure: nothing is marked synced on the
			// strength of the HTTP exchange alone.
			return result, err
		}
	}

	sc.setState(StateDownloading)
	if err := sc.download(ctx, result); err != nil {
		return result, err
	}

	sc.mu.Lock()
	sc.lastSync = time.Now()
	sc.mu.Unlock()
	return result, nil
}

// upload submits both kinds in a single batch call and reconciles the local
// rows against the server's per-record results. Only records the server
// explicitly acknowledged flip to synced; errored records stay pending and
// are retried on the next run.
func (sc *SyncClient) upload(ctx context.Context, readings []LocalReading, faults []LocalFault, result *SyncResult) error {
	req := syncdata.UploadRequest{}
	for _, lr := range readings {
		p := syncdata.ReadingPayload{
			StationID:           lr.StationID,
			ReadingDate:         lr.ReadingDate,
			PHLevel:             lr.PHLevel,
			TDSLevel:            lr.TDSLevel,
			Temperature:         lr.Temperature,
			Pressure:            lr.Pressure,
			TankLevelPercentage: lr.TankLevelPercentage,
			Notes:               lr.Notes,
			NotesAr:             lr.NotesAr,
		}
		if lr.IsRemote {
			p.ID = lr.ID
		} else {
			p.ClientRef = lr.ID
		}
		req.Readings = append(req.Readings, p)
	}
	for _, lf := range faults {
		p := syncdata.FaultPayload{
			StationID:     lf.StationID,
			Title:         lf.Title,
			TitleAr:       lf.TitleAr,
			Description:   lf.Description,
			DescriptionAr: lf.DescriptionAr,
			Priority:      lf.Priority,
			Latitude:      lf.Latitude,
			Longitude:     lf.Longitude,
			PhotoURL:      lf.PhotoURL,
		}
		if lf.IsRemote {
			p.ID = lf.ID
		} else {
			p.ClientRef = lf.ID
		}
		req.Faults = append(req.Faults, p)
	}

	var envelope struct {
		Success bool                  `json:"success"`
		Data    syncdata.UploadResult `json:"data"`
	}
	if err := sc.doJSON(ctx, http.MethodPost, "/api/sync/upload", req, &envelope); err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}

	sc.applyReadingResults(ctx, readings, envelope.Data.Readings, result)
	sc.applyFaultResults(ctx, faults, envelope.Data.Faults, result)
	return nil
}

func (sc *SyncClient) applyReadingResults(ctx context.Context, uploaded []LocalReading, kr syncdata.KindResult, result *SyncResult) {
	result.Readings.Created += kr.Created
	result.Readings.Updated += kr.Updated
	result.Readings.Errored += len(kr.Errors)
	result.Errors = append(result.Errors, kr.Errors...)

	failed := failedIDs(kr.Errors)
	for _, cr := range kr.CreatedRecords {
		if cr.ClientRef == "" {
			continue
		}
		if err := sc.store.AdoptReading(ctx, cr.ClientRef, cr.ID); err != nil {
			result.Errors = append(result.Errors, syncdata.RecordError{ClientRef: cr.ClientRef, Error: err.Error()})
		}
	}
	for _, lr := range uploaded {
		if !lr.IsRemote || failed[lr.ID] {
			continue
		}
		if err := sc.store.ConfirmReading(ctx, lr.ID); err != nil {
			result.Errors = append(result.Errors, syncdata.RecordError{ID: lr.ID, Error: err.Error()})
		}
	}
}

func (sc *SyncClient) applyFaultResults(ctx context.Context, uploaded []LocalFault, kr syncdata.KindResult, result *SyncResult) {
	result.Faults.Created += kr.Created
	result.Faults.Updated += kr.Updated
	result.Faults.Errored += len(kr.Errors)
	result.Errors = append(result.Errors, kr.Errors...)

	failed := failedIDs(kr.Errors)
	for _, cr := range kr.CreatedRecords {
		if cr.ClientRef == "" {
			continue
		}
		if err := sc.store.AdoptFault(ctx, cr.ClientRef, cr.ID); err != nil {
			result.Errors = append(result.Errors, syncdata.RecordError{ClientRef: cr.ClientRef, Error: err.Error()})
		}
	}
	for _, lf := range uploaded {
		if !lf.IsRemote || failed[lf.ID] {
			continue
		}
		if err := sc.store.ConfirmFault(ctx, lf.ID); err != nil {
			result.Errors = append(result.Errors, syncdata.RecordError{ID: lf.ID, Error: err.Error()})
		}
	}
}

// failedIDs indexes per-record errors by both the server id and the client
// correlation reference.
func failedIDs(errs []syncdata.RecordError) map[string]bool {
	failed := make(map[string]bool, len(errs))
	for _, e := range errs {
		if e.ID != "" {
			failed[e.ID] = true
		}
		if e.ClientRef != "" {
			failed[e.ClientRef] = true
		}
	}
	return failed
}

// download pulls pending data, mirrors it locally, and acknowledges receipt
// so the rows stop appearing in subsequent pulls.
func (sc *SyncClient) download(ctx context.Context, result *SyncResult) error {
	var envelope struct {
		Success bool                 `json:"success"`
		Data    syncdata.PendingData `json:"data"`
	}
	if err := sc.doJSON(ctx, http.MethodGet, "/api/sync/pending", nil, &envelope); err != nil {
		return fmt.Errorf("pending pull failed: %w", err)
	}

	var readingIDs []string
	for _, p := range envelope.Data.Readings {
		if err := sc.store.UpsertReading(ctx, p); err != nil {
			result.Errors = append(result.Errors, syncdata.RecordError{ID: p.ID, Error: err.Error()})
			continue
		}
		readingIDs = append(readingIDs, p.ID)
	}

	var faultIDs []string
	for _, p := range envelope.Data.Faults {
		if err := sc.store.UpsertFault(ctx, p); err != nil {
			result.Errors = append(result.Errors, syncdata.RecordError{ID: p.ID, Error: err.Error()})
			continue
		}
		faultIDs = append(faultIDs, p.ID)
	}

	if err := sc.acknowledge(ctx, "readings", readingIDs); err != nil {
		return err
	}
	return sc.acknowledge(ctx, "faults", faultIDs)
}

func (sc *SyncClient) acknowledge(ctx context.Context, kind string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	req := syncdata.MarkSyncedRequest{IDs: ids, Type: kind}
	var envelope struct {
		Success bool `json:"success"`
	}
	if err := sc.doJSON(ctx, http.MethodPost, "/api/sync/mark-synced", req, &envelope); err != nil {
		return fmt.Errorf("mark-synced failed for %s: %w", kind, err)
	}
	return nil
}

// stationPayload matches the station JSON served by the stations endpoint.
type stationPayload struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	NameAr         string  `json:"nameAr"`
	LocationName   string  `json:"locationName"`
	LocationNameAr string  `json:"locationNameAr"`
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	Status         string  `json:"status"`
}

// RefreshStations replaces the mirrored station list with the caller's
// current assignment from the server.
func (sc *SyncClient) RefreshStations(ctx context.Context) error {
	var envelope struct {
		Success bool             `json:"success"`
		Data    []stationPayload `json:"data"`
	}
	if err := sc.doJSON(ctx, http.MethodGet, "/api/stations", nil, &envelope); err != nil {
		return fmt.Errorf("station refresh failed: %w", err)
	}

	for _, s := range envelope.Data {
		station := LocalStation{
			ID:             s.ID,
			Name:           s.Name,
			NameAr:         s.NameAr,
			LocationName:   s.LocationName,
			LocationNameAr: s.LocationNameAr,
			Latitude:       s.Latitude,
			Longitude:      s.Longitude,
			Status:         s.Status,
		}
		if err := sc.store.UpsertStation(ctx, station); err != nil {
			return err
		}
	}
	return nil
}

// SyncStatus is a snapshot of the device's sync backlog.
type SyncStatus struct {
	Online           bool
	UnsyncedReadings int64
	UnsyncedFaults   int64
	LastSync         time.Time
}

// Status reports connectivity and how much local data awaits upload.
func (sc *SyncClient) Status(ctx context.Context) (*SyncStatus, error) {
	readings, faults, err := sc.store.CountUnsynced(ctx)
	if err != nil {
		return nil, err
	}

	sc.mu.Lock()
	last := sc.lastSync
	sc.mu.Unlock()

	return &SyncStatus{
		Online:           sc.monitor.Online(),
		UnsyncedReadings: readings,
		UnsyncedFaults:   faults,
		LastSync:         last,
	}, nil
}

// doJSON issues an authenticated JSON request and decodes the response.
func (sc *SyncClient) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, sc.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	token, err := sc.token(ctx)
	if err != nil {
		return fmt.Errorf("failed to obtain token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := sc.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, msg)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
