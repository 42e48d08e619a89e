package extractor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"guild-contributions/internal/types"
	"guild-contributions/utils"
)

// Extractor runs the contributions scrape over every member of the guild page
type Extractor struct {
	surface  Surface
	protocol *Protocol
	pacer    *utils.Pacer
	config   *types.Config
	logger   types.Logger

	table  *Table
	runLog *RunLog
}

// Option customizes an Extractor
type Option func(*Extractor)

// WithProgress delivers every run log entry to fn as it is recorded
func WithProgress(fn func(types.LogEntry)) Option {
	return func(e *Extractor) {
		e.runLog = NewRunLog(fn)
	}
}

// NewExtractor creates an extractor driving surface
func NewExtractor(surface Surface, config *types.Config, logger types.Logger, opts ...Option) *Extractor {
	e := &Extractor{
		surface:  surface,
		protocol: NewProtocol(surface, config, logger),
		pacer:    utils.NewPacer(config, logger),
		config:   config,
		logger:   logger,
		table:    NewTable(),
		runLog:   NewRunLog(nil),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run starts a fresh run: it clears previous results, discovers the members
// and walks each one through the protocol in page order, pausing between
// members. A member that fails is logged and skipped. Cancelling ctx stops
// the run between members; records gathered so far are kept and the summary
// is marked aborted. Only a failure to discover members is returned as an error.
func (e *Extractor) Run(ctx context.Context) (*types.RunSummary, error) {
	summary := &types.RunSummary{
		RunID:   uuid.NewString(),
		Started: time.Now(),
	}
	e.table.Clear()
	e.runLog.Reset()

	e.logger.Infof("Starting %s contributions run %s", e.config.Domain, summary.RunID)

	e.logger.Info("Step 1: Discovering members...")
	entities, err := e.surface.DiscoverEntities(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to discover members: %w", err)
	}
	if e.config.Limit > 0 && len(entities) > e.config.Limit {
		entities = entities[:e.config.Limit]
	}
	summary.Discovered = len(entities)
	e.logger.Infof("Found %d members", len(entities))

	e.logger.Info("Step 2: Collecting contributions...")
	// a member's interaction always runs to completion once started
	protocolCtx := context.WithoutCancel(ctx)

	for i, entity := range entities {
		if i > 0 {
			if err := e.pacer.Wait(ctx); err != nil {
				summary.Aborted = true
				break
			}
		}
		if ctx.Err() != nil {
			summary.Aborted = true
			break
		}

		entityStart := time.Now()
		e.logger.Debugf("Processing member %d/%d: %s", i+1, len(entities), entity.Name)

		record, err := e.protocol.Run(protocolCtx, entity)
		if err != nil {
			e.recordFailure(entity, err)
			continue
		}

		e.table.Append(record)
		e.runLog.Success(entity.Name)
		e.logger.Infof("%s: %d contributions", entity.Name, len(record.Fields))
		e.logger.Debugf("%s contributions:\n%s", entity.Name, describe(record, e.config.Fields))
		e.logger.Debugf("Member %s processed in %v", entity.Name, time.Since(entityStart))
	}

	summary.Succeeded, summary.Failed = e.runLog.Counts()
	summary.Finished = time.Now()

	if summary.Aborted {
		e.logger.Warnf("Run %s aborted after %d/%d members", summary.RunID, summary.Succeeded+summary.Failed, summary.Discovered)
	}
	e.logger.Infof("Run completed in %v", summary.Finished.Sub(summary.Started))
	e.logger.Infof("Successfully processed %d/%d members (%d failed)", summary.Succeeded, summary.Discovered, summary.Failed)
	return summary, nil
}

func (e *Extractor) recordFailure(entity types.EntityRef, err error) {
	reason := err.Error()
	var failure *Failure
	if errors.As(err, &failure) {
		reason = failure.Reason
	}
	e.runLog.Failure(entity.Name, reason)
	e.logger.Warnf("Failed to collect contributions for %s: %v", entity.Name, err)
}

// Records returns the records gathered by the current run
func (e *Extractor) Records() []types.Record {
	return e.table.All()
}

// Log returns the progress entries of the current run
func (e *Extractor) Log() []types.LogEntry {
	return e.runLog.Entries()
}

// ExportCSV writes the current records as CSV
func (e *Extractor) ExportCSV(w io.Writer) error {
	return ExportCSV(w, e.table.All(), e.config.Fields)
}

// ExportJSON writes the current records as JSON
func (e *Extractor) ExportJSON(w io.Writer) error {
	return ExportJSON(w, e.table.All())
}

// RenderTable prints the current records as a table
func (e *Extractor) RenderTable(w io.Writer) {
	RenderTable(w, e.table.All(), e.config.Fields)
}

// describe lists a record's values in field order, one "label: value" per line
func describe(record types.Record, fields types.FieldSet) string {
	lines := make([]string, 0, len(record.Fields))
	for _, field := range fields {
		if v, ok := record.Fields[field]; ok {
			lines = append(lines, field+": "+v)
		}
	}
	return strings.Join(lines, "\n")
}
