package extractor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"guild-contributions/adapters"
	"guild-contributions/internal/types"
	"guild-contributions/utils"
)

// Surface is the live page as the protocol sees it
type Surface interface {
	// DiscoverEntities lists the member rows in page order
	DiscoverEntities(ctx context.Context) ([]types.EntityRef, error)

	// Activate clicks the control behind handle; a missing control is a no-op
	Activate(ctx context.Context, handle types.Handle) error

	// MenuItems lists the items of the open member menu (empty when closed)
	MenuItems(ctx context.Context) ([]types.Control, error)

	// PanelHTML returns the markup of the open dialog ("" when closed)
	PanelHTML(ctx context.Context) (string, error)

	// DismissControl locates the dialog's confirm button
	DismissControl() types.Handle

	// Reset closes any menu or dialog left open
	Reset(ctx context.Context) error
}

// State is a step of the per-member interaction
type State int

const (
	StateIdle State = iota
	StateMenuOpening
	StateMenuOpen
	StateActionSelected
	StatePanelOpening
	StatePanelOpen
	StateExtracting
	StateDismissing
	StateDone
	StateFailed
)

var stateNames = [...]string{
	"idle",
	"menu-opening",
	"menu-open",
	"action-selected",
	"panel-opening",
	"panel-open",
	"extracting",
	"dismissing",
	"done",
	"failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// Failure reasons reported in the run log
const (
	ReasonTriggerFailed  = "trigger activation failed"
	ReasonMenuNotOpen    = "menu did not open"
	ReasonActionNotFound = "action item not found"
	ReasonActionFailed   = "action activation failed"
	ReasonPanelNotOpen   = "panel did not open"
	ReasonHeaderNotFound = "header not found"
)

// Failure is the terminal Failed(reason) state of one member's interaction
type Failure struct {
	Entity string
	State  State // state in which the failure occurred
	Reason string
	Err    error
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return fmt.Sprintf("%s: %s", f.Entity, f.Reason)
	}
	return fmt.Sprintf("%s: %s: %v", f.Entity, f.Reason, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Protocol walks one member through menu, action, dialog, extraction and dismissal
type Protocol struct {
	surface    Surface
	config     *types.Config
	logger     types.Logger
	strategies []adapters.Strategy
}

// NewProtocol creates a protocol using the default extraction strategies
func NewProtocol(surface Surface, config *types.Config, logger types.Logger) *Protocol {
	return &Protocol{
		surface:    surface,
		config:     config,
		logger:     logger,
		strategies: adapters.DefaultStrategies,
	}
}

// run holds the progress of a single member
type run struct {
	*Protocol
	entity types.EntityRef
	state  State
}

func (r *run) enter(s State) {
	r.logger.Debugf("%s: %s -> %s", r.entity.Name, r.state, s)
	r.state = s
}

func (r *run) fail(reason string, err error) error {
	f := &Failure{Entity: r.entity.Name, State: r.state, Reason: reason, Err: err}
	r.state = StateFailed
	return f
}

// Run drives entity through the full interaction. Any error returned is a *Failure.
func (p *Protocol) Run(ctx context.Context, entity types.EntityRef) (types.Record, error) {
	r := &run{Protocol: p, entity: entity, state: StateIdle}
	record, err := r.execute(ctx)
	if err != nil {
		if resetErr := p.surface.Reset(ctx); resetErr != nil {
			p.logger.Debugf("%s: reset failed: %v", entity.Name, resetErr)
		}
	}
	return record, err
}

func (r *run) execute(ctx context.Context) (types.Record, error) {
	record := types.Record{Name: r.entity.Name, Fields: make(map[string]string)}

	r.enter(StateMenuOpening)
	if err := r.surface.Activate(ctx, r.entity.Trigger); err != nil {
		return record, r.fail(ReasonTriggerFailed, err)
	}

	items, err := utils.Await(ctx, r.config.MenuTimeout, r.config.PollInterval, func(ctx context.Context) ([]types.Control, bool, error) {
		items, err := r.surface.MenuItems(ctx)
		return items, len(items) > 0, err
	})
	if err != nil {
		return record, r.fail(ReasonMenuNotOpen, err)
	}
	r.enter(StateMenuOpen)

	action, found := findControl(items, r.config.Action)
	if !found {
		return record, r.fail(ReasonActionNotFound, fmt.Errorf("menu item %q: %w", r.config.Action, types.ErrNotFound))
	}
	if err := r.surface.Activate(ctx, action.Handle); err != nil {
		return record, r.fail(ReasonActionFailed, err)
	}
	r.enter(StateActionSelected)

	r.enter(StatePanelOpening)
	panel, err := utils.Await(ctx, r.config.PanelTimeout, r.config.PollInterval, func(ctx context.Context) (*goquery.Selection, bool, error) {
		html, err := r.surface.PanelHTML(ctx)
		if err != nil {
			return nil, false, err
		}
		panel, err := adapters.ParsePanel(html, r.config.Selectors)
		if err != nil {
			return nil, false, err
		}
		return panel, true, nil
	})
	if err != nil {
		return record, r.fail(ReasonPanelNotOpen, err)
	}
	r.enter(StatePanelOpen)

	header, err := adapters.FindHeader(panel, r.config.Selectors)
	if err != nil {
		return record, r.fail(ReasonHeaderNotFound, err)
	}

	r.enter(StateExtracting)
	r.extract(header, &record)

	r.enter(StateDismissing)
	r.dismiss(ctx)

	r.enter(StateDone)
	return record, nil
}

func (r *run) extract(header *goquery.Selection, record *types.Record) {
	for _, field := range adapters.ExtractFields(header, r.config.Fields, r.strategies) {
		if _, dup := record.Fields[field.Label]; dup {
			r.logger.Debugf("%s: ignoring repeated %s line", r.entity.Name, field.Label)
			continue
		}

		value, err := utils.ParseNumber(field.Value)
		if errors.Is(err, types.ErrParseAmbiguous) {
			r.logger.Warnf("%s: %s value %q is ambiguous, keeping %q", r.entity.Name, field.Label, field.Value, value)
		}
		if value == "" {
			continue
		}
		record.Fields[field.Label] = value
	}

	if len(record.Fields) == 0 {
		r.logger.Warnf("%s: dialog had no recognized contribution lines", r.entity.Name)
	}
}

// dismiss closes the dialog; it never fails the member
func (r *run) dismiss(ctx context.Context) {
	if err := r.surface.Activate(ctx, r.surface.DismissControl()); err != nil {
		r.logger.Debugf("%s: dismiss failed: %v", r.entity.Name, err)
	}

	_, err := utils.Await(ctx, r.config.MenuTimeout, r.config.PollInterval, func(ctx context.Context) (bool, bool, error) {
		html, err := r.surface.PanelHTML(ctx)
		return true, err == nil && strings.TrimSpace(html) == "", err
	})
	if err == nil {
		return
	}

	r.logger.Warnf("%s: dialog still open after dismiss, sending escape", r.entity.Name)
	if err := r.surface.Reset(ctx); err != nil {
		r.logger.Debugf("%s: reset failed: %v", r.entity.Name, err)
	}
}

func findControl(items []types.Control, label string) (types.Control, bool) {
	want := strings.TrimSpace(label)
	for _, item := range items {
		if strings.TrimSpace(item.Label) == want {
			return item, true
		}
	}
	return types.Control{}, false
}
