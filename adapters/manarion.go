package adapters

import (
	"context"
	"fmt"

	"guild-contributions/internal/types"
	"guild-contributions/utils"
)

// Attributes stamped on discovered controls so their handles stay stable
// while the page re-renders around them
const (
	entityAttr  = "data-scrape-entity"
	menuAttr    = "data-scrape-menu"
	dismissAttr = "data-scrape-dismiss"
)

const discoverScript = `((rowSel, triggerSel, attr) => {
	const out = [];
	document.querySelectorAll(rowSel).forEach((row, i) => {
		const trigger = row.querySelector(triggerSel);
		if (!trigger) return;
		trigger.setAttribute(attr, String(i));
		out.push({index: i, name: (trigger.textContent || '').trim()});
	});
	return out;
})(%s, %s, %s)`

const menuItemsScript = `((itemSel, attr) => {
	const out = [];
	document.querySelectorAll(itemSel).forEach((item, i) => {
		item.setAttribute(attr, String(i));
		out.push({index: i, label: (item.textContent || '').trim()});
	});
	return out;
})(%s, %s)`

// panelScript returns the dialog markup ("" when closed) and stamps the
// dismiss button found inside that dialog
const panelScript = `((panelSel, dismissSel, attr) => {
	document.querySelectorAll('[' + attr + ']').forEach((el) => el.removeAttribute(attr));
	const panel = document.querySelector(panelSel);
	if (!panel) return '';
	const button = panel.querySelector(dismissSel);
	if (button) button.setAttribute(attr, '');
	return panel.outerHTML;
})(%s, %s, %s)`

type stampedElement struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
	Label string `json:"label"`
}

// ManarionAdapter drives the guild page of manarion.com
type ManarionAdapter struct {
	config  *types.Config
	logger  types.Logger
	browser *utils.BrowserClient
}

// NewManarionAdapter creates a new guild page adapter
func NewManarionAdapter(config *types.Config, logger types.Logger) *ManarionAdapter {
	return &ManarionAdapter{
		config:  config,
		logger:  logger,
		browser: utils.NewBrowserClient(config, logger),
	}
}

// GetStoreName returns the domain the adapter scrapes
func (m *ManarionAdapter) GetStoreName() string {
	return m.config.Domain
}

// Open starts (or attaches to) the browser and loads the guild page
func (m *ManarionAdapter) Open(ctx context.Context) error {
	if err := m.browser.Open(ctx); err != nil {
		return err
	}
	if m.config.TargetURL == "" {
		return nil
	}
	if err := m.browser.Navigate(ctx, m.config.TargetURL, m.config.Selectors.Row); err != nil {
		return fmt.Errorf("failed to open guild page: %w", err)
	}
	return nil
}

// DiscoverEntities lists the member rows in page order
func (m *ManarionAdapter) DiscoverEntities(ctx context.Context) ([]types.EntityRef, error) {
	sel := m.config.Selectors
	var found []stampedElement
	script := fmt.Sprintf(discoverScript, utils.JSString(sel.Row), utils.JSString(sel.Trigger), utils.JSString(entityAttr))
	if err := m.browser.Evaluate(ctx, script, &found); err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}

	entities := make([]types.EntityRef, 0, len(found))
	for _, f := range found {
		entities = append(entities, types.EntityRef{
			Index:   f.Index,
			Name:    f.Name,
			Trigger: stampedHandle(entityAttr, f.Index),
		})
	}
	m.logger.Debugf("Discovered %d member rows", len(entities))
	return entities, nil
}

// Activate clicks the control behind handle
func (m *ManarionAdapter) Activate(ctx context.Context, handle types.Handle) error {
	return m.browser.Activate(ctx, handle)
}

// MenuItems lists the items of the currently open member menu
func (m *ManarionAdapter) MenuItems(ctx context.Context) ([]types.Control, error) {
	var found []stampedElement
	script := fmt.Sprintf(menuItemsScript, utils.JSString(m.config.Selectors.MenuItem), utils.JSString(menuAttr))
	if err := m.browser.Evaluate(ctx, script, &found); err != nil {
		return nil, fmt.Errorf("failed to list menu items: %w", err)
	}

	items := make([]types.Control, 0, len(found))
	for _, f := range found {
		items = append(items, types.Control{Label: f.Label, Handle: stampedHandle(menuAttr, f.Index)})
	}
	return items, nil
}

// PanelHTML returns the markup of the open dialog, or "" when none is open
func (m *ManarionAdapter) PanelHTML(ctx context.Context) (string, error) {
	var html string
	if err := m.browser.Evaluate(ctx, m.panelScript(), &html); err != nil {
		return "", fmt.Errorf("failed to read dialog: %w", err)
	}
	return html, nil
}

func (m *ManarionAdapter) panelScript() string {
	sel := m.config.Selectors
	return fmt.Sprintf(panelScript, utils.JSString(sel.Panel), utils.JSString(sel.Dismiss), utils.JSString(dismissAttr))
}

// DismissControl locates the confirm button of the dialog last read by
// PanelHTML
func (m *ManarionAdapter) DismissControl() types.Handle {
	return types.Handle(fmt.Sprintf("[%s]", dismissAttr))
}

// Reset closes whatever menu or dialog is left open
func (m *ManarionAdapter) Reset(ctx context.Context) error {
	return m.browser.PressEscape(ctx)
}

// Close cleans up resources
func (m *ManarionAdapter) Close() {
	if m.browser != nil {
		m.browser.Close()
	}
}

func stampedHandle(attr string, index int) types.Handle {
	return types.Handle(fmt.Sprintf(`[%s="%d"]`, attr, index))
}
