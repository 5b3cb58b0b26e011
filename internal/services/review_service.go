package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"station-review/internal/client"
	"station-review/internal/models"
	"station-review/internal/reconcile"
	"station-review/internal/repository"
	"station-review/pkg/logging"
	"station-review/pkg/metrics"
)

// SnapshotSource reads station RINEX records and station info pages.
// Implemented by client.MetadataClient and repository.MetadataRepository.
type SnapshotSource interface {
	FetchStationRinex(ctx context.Context, station models.StationID, params models.FilterParams) ([]models.RinexObservation, error)
	FetchStationInfo(ctx context.Context, station models.StationID, page models.PageParams) (*models.IntervalPage, error)
}

// PointInTimeSource is a SnapshotSource that reads a station's RINEX records
// and every interval as of one instant. Implemented by
// repository.MetadataRepository.
type PointInTimeSource interface {
	SnapshotSource
	ReadSnapshot(ctx context.Context, station models.StationID, params models.FilterParams) ([]models.RinexObservation, []models.StationInfoInterval, error)
}

// RepairClient submits repair actions to the metadata service
type RepairClient interface {
	SubmitIntervalExtension(ctx context.Context, intervalID int64, boundary models.Boundary, ts time.Time) error
	CreateInterval(ctx context.Context, station models.StationID, draft models.StationInfoInterval) (*models.StationInfoInterval, error)
	SubmitIntervalFromFile(ctx context.Context, station models.StationID, filename string, content []byte, keys []models.RecordKey) (*models.ImportResult, error)
	FetchCompletionPlot(ctx context.Context, station models.StationID) (*client.CompletionPlot, error)
}

// ErrSnapshotChanged is returned when an action names a subgroup of a
// snapshot that has since been replaced
var ErrSnapshotChanged = errors.New("snapshot changed since the view was loaded")

// ReviewOptions configures review sessions
type ReviewOptions struct {
	PageSize         int
	Policy           reconcile.UngovernedPolicy
	IntervalPageSize int
	// SourceName labels snapshot metrics, e.g. "http" or "postgres"
	SourceName string
	// MaxConcurrentPages bounds parallel station info page requests
	MaxConcurrentPages int
}

// session is the review state of one station
type session struct {
	station models.StationID
	params  models.FilterParams
	filter  reconcile.Filter
	pager   *reconcile.Pager

	snapshot *reconcile.Snapshot
	derived  reconcile.Derived
	lastErr  error

	// issued is the sequence of the latest fetch started for the station
	issued uint64
}

// ReviewService keeps one review session per station
type ReviewService struct {
	source  SnapshotSource
	repair  RepairClient
	stats   *StatisticsService
	opts    ReviewOptions
	logger  *logging.StructuredLogger
	metrics *metrics.Collector

	mu       sync.Mutex
	sessions map[models.StationID]*session
	now      func() time.Time
}

// NewReviewService creates a review service
func NewReviewService(source SnapshotSource, repair RepairClient, stats *StatisticsService, opts ReviewOptions, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *ReviewService {
	if opts.IntervalPageSize <= 0 {
		opts.IntervalPageSize = 100
	}
	if opts.MaxConcurrentPages <= 0 {
		opts.MaxConcurrentPages = 4
	}
	if opts.SourceName == "" {
		opts.SourceName = "http"
	}
	if opts.Policy == "" {
		opts.Policy = reconcile.MergeUngoverned
	}

	return &ReviewService{
		source:   source,
		repair:   repair,
		stats:    stats,
		opts:     opts,
		logger:   logger,
		metrics:  metricsCollector,
		sessions: make(map[models.StationID]*session),
		now:      time.Now,
	}
}

// SubgroupView describes one subgroup shown on a page
type SubgroupView struct {
	ID                  string                   `json:"id"`
	GroupID             int                      `json:"group_id"`
	Key                 reconcile.GroupKey       `json:"key"`
	GapType             models.GapType           `json:"gap_type"`
	Size                int                      `json:"size"`
	GoverningIntervalID *int64                   `json:"governing_interval_id,omitempty"`
	PrecedingIntervalID *int64                   `json:"preceding_interval_id,omitempty"`
	FollowingIntervalID *int64                   `json:"following_interval_id,omitempty"`
	Start               time.Time                `json:"start"`
	End                 time.Time                `json:"end"`
	Actions             []reconcile.RepairAction `json:"actions"`
}

// ReviewView is the rendered state of a station review
type ReviewView struct {
	Station       string                   `json:"station"`
	Sequence      uint64                   `json:"sequence"`
	FetchedAt     time.Time                `json:"fetched_at"`
	Filter        models.FilterParams      `json:"filter"`
	Page          reconcile.Page           `json:"page"`
	Subgroups     []SubgroupView           `json:"subgroups"`
	Summary       ReviewSummary            `json:"summary"`
	Disagreements []reconcile.Disagreement `json:"disagreements"`

	// Error is the last fetch failure; the view still shows the previous
	// snapshot
	Error string `json:"error,omitempty"`
}

// HasSnapshot reports whether any snapshot has been loaded
func (v *ReviewView) HasSnapshot() bool {
	return v.Sequence > 0
}

func (s *ReviewService) sessionLocked(station models.StationID) *session {
	sess, ok := s.sessions[station]
	if !ok {
		sess = &session{
			station: station,
			pager:   reconcile.NewPager(s.opts.PageSize),
		}
		s.sessions[station] = sess
		s.metrics.ActiveSessions.Set(float64(len(s.sessions)))
	}
	return sess
}

// View returns the current view, fetching a snapshot on first activation
func (s *ReviewService) View(ctx context.Context, station models.StationID) (*ReviewView, error) {
	s.mu.Lock()
	sess := s.sessionLocked(station)
	loaded := sess.snapshot != nil
	var view *ReviewView
	if loaded {
		view = s.viewLocked(sess)
	}
	s.mu.Unlock()

	if loaded {
		return view, nil
	}
	return s.Refresh(ctx, station)
}

// Refresh fetches a new snapshot. The result is committed only if no newer
// fetch was started for the station meanwhile; a failed fetch keeps the
// previous snapshot and is returned as *models.FetchError together with the
// view.
func (s *ReviewService) Refresh(ctx context.Context, station models.StationID) (*ReviewView, error) {
	ctx = logging.WithStation(ctx, station.String())

	s.mu.Lock()
	sess := s.sessionLocked(station)
	sess.issued++
	seq := sess.issued
	params := sess.params
	s.mu.Unlock()

	timer := s.metrics.NewTimer(s.metrics.SnapshotFetchDuration.WithLabelValues(s.opts.SourceName))
	snap, err := s.fetchSnapshot(ctx, station, params, seq)
	elapsed := timer.ObserveDuration()

	s.mu.Lock()
	defer s.mu.Unlock()

	if seq != sess.issued {
		s.metrics.StaleResponsesTotal.Inc()
		s.logger.Info(ctx, "[REVIEW_STALE] Discarded superseded snapshot", logging.Fields{
			"sequence": seq,
			"latest":   sess.issued,
		})
		return s.viewLocked(sess), nil
	}

	if err != nil {
		s.metrics.RecordFetchError(s.opts.SourceName)
		sess.lastErr = err
		s.logger.Error(ctx, "[REVIEW_FETCH_ERROR] Snapshot fetch failed, keeping last snapshot", logging.Fields{
			"sequence":     seq,
			"has_snapshot": sess.snapshot != nil,
		}, err)
		return s.viewLocked(sess), err
	}

	sess.snapshot = snap
	sess.lastErr = nil
	s.deriveLocked(ctx, sess)

	s.logger.Info(ctx, "[REVIEW_REFRESH] Snapshot committed", logging.Fields{
		"sequence":    seq,
		"rinex":       len(snap.Rinex),
		"intervals":   len(snap.Intervals),
		"groups":      len(sess.derived.Groups),
		"duration_ms": elapsed.Milliseconds(),
	})

	return s.viewLocked(sess), nil
}

// fetchSnapshot reads RINEX and every station info page concurrently, or in
// one read when the source supports it
func (s *ReviewService) fetchSnapshot(ctx context.Context, station models.StationID, params models.FilterParams, seq uint64) (*reconcile.Snapshot, error) {
	var (
		rinex     []models.RinexObservation
		intervals []models.StationInfoInterval
	)

	if pit, ok := s.source.(PointInTimeSource); ok {
		var err error
		rinex, intervals, err = pit.ReadSnapshot(ctx, station, params)
		if err != nil {
			return nil, wrapFetch(station, "snapshot", err)
		}
		return &reconcile.Snapshot{
			Station:   station,
			Sequence:  seq,
			FetchedAt: s.now().UTC(),
			Intervals: intervals,
			Rinex:     rinex,
		}, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := s.source.FetchStationRinex(gctx, station, params)
		if err != nil {
			return wrapFetch(station, "rinex", err)
		}
		rinex = rows
		return nil
	})
	g.Go(func() error {
		all, err := s.fetchAllIntervals(gctx, station)
		if err != nil {
			return wrapFetch(station, "station info", err)
		}
		intervals = all
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &reconcile.Snapshot{
		Station:   station,
		Sequence:  seq,
		FetchedAt: s.now().UTC(),
		Intervals: intervals,
		Rinex:     rinex,
	}, nil
}

// fetchAllIntervals reads the first page for the total count, then the rest
// in parallel, and concatenates them in page order. The stride is the number
// of rows the first page actually returned, so a server that caps the page
// size is still read in full.
func (s *ReviewService) fetchAllIntervals(ctx context.Context, station models.StationID) ([]models.StationInfoInterval, error) {
	first, err := s.source.FetchStationInfo(ctx, station, models.PageParams{Limit: s.opts.IntervalPageSize, Offset: 0})
	if err != nil {
		return nil, err
	}
	if len(first.Data) >= first.TotalCount {
		return first.Data, nil
	}
	stride := len(first.Data)
	if stride == 0 {
		return nil, fmt.Errorf("station info page at offset 0 is empty, %d intervals expected", first.TotalCount)
	}

	pages := (first.TotalCount + stride - 1) / stride
	results := make([][]models.StationInfoInterval, pages)
	results[0] = first.Data

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.MaxConcurrentPages)
	for i := 1; i < pages; i++ {
		g.Go(func() error {
			page, err := s.source.FetchStationInfo(gctx, station, models.PageParams{Limit: stride, Offset: i * stride})
			if err != nil {
				return err
			}
			results[i] = page.Data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	all := make([]models.StationInfoInterval, 0, first.TotalCount)
	for _, data := range results {
		all = append(all, data...)
	}
	if len(all) != first.TotalCount {
		return nil, fmt.Errorf("station info changed while paging: read %d of %d intervals", len(all), first.TotalCount)
	}
	return all, nil
}

func wrapFetch(station models.StationID, op string, err error) error {
	var fe *models.FetchError
	if errors.As(err, &fe) {
		return err
	}
	var ve *models.ValidationError
	if errors.As(err, &ve) {
		return err
	}
	return &models.FetchError{Station: station.String(), Op: op, Err: err}
}

func (s *ReviewService) deriveLocked(ctx context.Context, sess *session) {
	timer := s.metrics.NewTimer(s.metrics.DeriveDuration)
	sess.derived = reconcile.Derive(sess.snapshot, &sess.filter, s.opts.Policy)
	timer.ObserveDuration()

	s.metrics.RecordSnapshot(len(sess.snapshot.Rinex), len(sess.snapshot.Intervals))
	s.stats.Record(ctx, sess.derived)

	for _, d := range sess.derived.Disagreements {
		s.metrics.RecordDisagreement(d.Field)
		s.logger.Warn(ctx, "[REVIEW_CROSSCHECK] Local classification differs from server", logging.Fields{
			"rinex_id": d.RinexID,
			"filename": d.Filename,
			"field":    d.Field,
			"local":    d.Local,
			"reported": d.Reported,
		})
	}
}

func (s *ReviewService) viewLocked(sess *session) *ReviewView {
	view := &ReviewView{
		Station:       sess.station.String(),
		Filter:        sess.params,
		Subgroups:     []SubgroupView{},
		Disagreements: []reconcile.Disagreement{},
	}
	if sess.lastErr != nil {
		view.Error = sess.lastErr.Error()
	}
	if sess.snapshot == nil {
		view.Page = reconcile.Page{Number: 1, Size: sess.pager.PageSize, Rows: []reconcile.PageRow{}}
		return view
	}

	view.Sequence = sess.snapshot.Sequence
	view.FetchedAt = sess.snapshot.FetchedAt
	view.Page = sess.pager.Page(sess.derived.Groups)
	view.Summary = s.stats.Summarize(sess.derived)
	if sess.derived.Disagreements != nil {
		view.Disagreements = sess.derived.Disagreements
	}

	seen := make(map[string]bool)
	for _, row := range view.Page.Rows {
		if seen[row.SubgroupID] {
			continue
		}
		seen[row.SubgroupID] = true
		if sub, ok := reconcile.FindSubgroup(sess.derived.Groups, row.SubgroupID); ok {
			view.Subgroups = append(view.Subgroups, subgroupView(sess.derived.Groups, sub))
		}
	}
	return view
}

func subgroupView(groups []reconcile.Group, sub *reconcile.Subgroup) SubgroupView {
	start, end := sub.Span()
	v := SubgroupView{
		ID:                  sub.ID,
		GroupID:             sub.GroupID,
		GapType:             sub.GapType,
		Size:                len(sub.Rows),
		GoverningIntervalID: sub.GoverningIntervalID,
		PrecedingIntervalID: sub.PrecedingIntervalID,
		FollowingIntervalID: sub.FollowingIntervalID,
		Start:               start,
		End:                 end,
		Actions:             reconcile.ActionsFor(sub.GapType),
	}
	for i := range groups {
		if groups[i].ID == sub.GroupID {
			v.Key = groups[i].Key
			break
		}
	}
	return v
}

// ApplyFilter validates params and, when they are valid, resets the session
// to page 1 and refetches. Invalid params change nothing and fetch nothing.
func (s *ReviewService) ApplyFilter(ctx context.Context, station models.StationID, params models.FilterParams) (*ReviewView, error) {
	f, err := reconcile.ParseFilter(params)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	sess := s.sessionLocked(station)
	sess.params = params
	sess.filter = f
	sess.pager.Reset()
	if sess.snapshot != nil {
		// regroup the retained snapshot so the view matches the filter even
		// if the refetch below fails
		s.deriveLocked(logging.WithStation(ctx, station.String()), sess)
	}
	s.mu.Unlock()

	s.logger.Debug(ctx, "[REVIEW_FILTER] Filter applied", logging.Fields{
		"station": station.String(),
		"filter":  params.Values().Encode(),
	})

	return s.Refresh(ctx, station)
}

// GotoPage moves the session to page. A page outside the current result is
// ignored and ok is false.
func (s *ReviewService) GotoPage(ctx context.Context, station models.StationID, page int) (view *ReviewView, ok bool, err error) {
	s.mu.Lock()
	sess := s.sessionLocked(station)
	loaded := sess.snapshot != nil
	s.mu.Unlock()

	if !loaded {
		if _, err := s.Refresh(ctx, station); err != nil {
			return nil, false, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ok = sess.pager.Goto(sess.derived.Groups, page)
	return s.viewLocked(sess), ok, nil
}

// ActionResult is the outcome of a repair action
type ActionResult struct {
	Action    reconcile.RepairAction      `json:"action"`
	Subgroup  string                      `json:"subgroup"`
	Extension *reconcile.Extension        `json:"extension,omitempty"`
	Created   *models.StationInfoInterval `json:"created,omitempty"`
	View      *ReviewView                 `json:"view"`
}

// ExecuteAction submits a repair action for a subgroup of the current
// snapshot and refetches on success. A rejected action leaves the snapshot
// untouched. A non-zero sequence must match the current snapshot.
func (s *ReviewService) ExecuteAction(ctx context.Context, station models.StationID, subgroupID string, action reconcile.RepairAction, sequence uint64) (*ActionResult, error) {
	ctx = logging.WithStation(ctx, station.String())

	s.mu.Lock()
	sess, ok := s.sessions[station]
	if !ok || sess.snapshot == nil {
		s.mu.Unlock()
		return nil, &repository.NotFoundError{Resource: "review session", ID: station.String()}
	}
	if sequence != 0 && sequence != sess.snapshot.Sequence {
		s.mu.Unlock()
		return nil, ErrSnapshotChanged
	}
	found, ok := reconcile.FindSubgroup(sess.derived.Groups, subgroupID)
	if !ok {
		s.mu.Unlock()
		return nil, &repository.NotFoundError{Resource: "subgroup", ID: subgroupID}
	}
	sub := *found
	index := sess.derived.Index
	s.mu.Unlock()

	if !reconcile.Allows(sub.GapType, action) {
		return nil, &models.ValidationError{
			Field:   "action",
			Value:   string(action),
			Message: fmt.Sprintf("%s is not available for %s subgroups", action, sub.GapType),
		}
	}

	log := s.logger.WithFields(logging.Fields{
		"action":   string(action),
		"subgroup": subgroupID,
	})
	applied := logging.Fields{}

	result := &ActionResult{Action: action, Subgroup: subgroupID}
	var err error

	switch action {
	case reconcile.ExtendUp, reconcile.ExtendDown:
		var ext reconcile.Extension
		ext, err = sub.Extension(action)
		if err == nil {
			result.Extension = &ext
			applied["interval_id"] = ext.IntervalID
			applied["boundary"] = string(ext.Boundary)
			applied["timestamp"] = ext.Timestamp
			if iv, ok := index.Get(ext.IntervalID); ok {
				applied["previous"] = boundaryValue(iv, ext.Boundary)
			}
			err = s.repair.SubmitIntervalExtension(ctx, ext.IntervalID, ext.Boundary, ext.Timestamp)
		}
	case reconcile.CreateFromRinex:
		var draft models.StationInfoInterval
		draft, err = sub.DraftInterval()
		if err == nil {
			result.Created, err = s.repair.CreateInterval(ctx, station, draft)
		}
		if result.Created != nil {
			applied["interval_id"] = result.Created.ID
		}
	default:
		return nil, &models.ValidationError{
			Field:   "action",
			Value:   string(action),
			Message: "upload the station.info file to the import endpoint",
		}
	}

	if err != nil {
		outcome := "failed"
		var rae *models.RepairActionError
		if errors.As(err, &rae) {
			outcome = "rejected"
		}
		s.metrics.RecordRepairAction(string(action), outcome)
		log.Warn(ctx, "[REVIEW_ACTION_REJECTED] Repair action not applied", logging.Fields{
			"outcome": outcome,
		}, err)
		return nil, err
	}

	s.metrics.RecordRepairAction(string(action), "applied")
	log.Info(ctx, "[REVIEW_ACTION] Repair action applied", applied)

	view, err := s.Refresh(ctx, station)
	result.View = view
	return result, err
}

func boundaryValue(iv *models.StationInfoInterval, b models.Boundary) string {
	if b == models.BoundaryStart {
		return iv.DateStart.UTC().Format(time.RFC3339)
	}
	if iv.DateEnd == nil {
		return "open"
	}
	return iv.DateEnd.UTC().Format(time.RFC3339)
}

// StationInfo returns the intervals of the current snapshot sorted by start,
// fetching a snapshot on first activation
func (s *ReviewService) StationInfo(ctx context.Context, station models.StationID) ([]models.StationInfoInterval, error) {
	if _, err := s.View(ctx, station); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.sessions[station]
	if sess == nil || sess.snapshot == nil {
		return nil, &repository.NotFoundError{Resource: "review session", ID: station.String()}
	}
	return slices.Clone(sess.derived.Index.Intervals()), nil
}

// AfterImport refetches a station once intervals were created from a file.
// Stations without a session are left alone.
func (s *ReviewService) AfterImport(ctx context.Context, station models.StationID) (*ReviewView, error) {
	s.mu.Lock()
	_, ok := s.sessions[station]
	s.mu.Unlock()
	if !ok {
		return nil, nil
	}
	return s.Refresh(ctx, station)
}

// CompletionPlot returns the station's completion plot image unchanged
func (s *ReviewService) CompletionPlot(ctx context.Context, station models.StationID) (*client.CompletionPlot, error) {
	return s.repair.FetchCompletionPlot(ctx, station)
}
