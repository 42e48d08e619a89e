package extractor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"guild-contributions/internal/types"
)

// fakeMember scripts how the page reacts for one member
type fakeMember struct {
	name        string
	menuNever   bool          // trigger does nothing
	menuItems   []string      // defaults to the guild menu
	menuDelay   time.Duration // time before the menu shows up
	panelNever  bool          // selecting the action does nothing
	panelDelay  time.Duration
	panelHTML   string
	stickyPanel bool  // dismiss button does not close the dialog
	triggerErr  error // returned when the trigger is activated
	actionErr   error // returned when a menu item is activated
}

// fakeSurface is an in-memory guild page
type fakeSurface struct {
	mu           sync.Mutex
	members      []fakeMember
	discoverErr  error
	menuFor      int // member whose menu is open, -1 if none
	menuOpenedAt time.Time
	panelFor     int
	panelAt      time.Time
	activations  []types.Handle
	resets       int
}

func newFakeSurface(members ...fakeMember) *fakeSurface {
	return &fakeSurface{members: members, menuFor: -1, panelFor: -1}
}

func triggerHandle(i int) types.Handle {
	return types.Handle(fmt.Sprintf("trigger-%d", i))
}

func menuHandle(i int) types.Handle {
	return types.Handle(fmt.Sprintf("menu-%d", i))
}

const dismissHandle = types.Handle("dismiss")

func (f *fakeSurface) DiscoverEntities(ctx context.Context) ([]types.EntityRef, error) {
	if f.discoverErr != nil {
		return nil, f.discoverErr
	}
	refs := make([]types.EntityRef, len(f.members))
	for i, m := range f.members {
		refs[i] = types.EntityRef{Index: i, Name: m.name, Trigger: triggerHandle(i)}
	}
	return refs, nil
}

func (f *fakeSurface) Activate(ctx context.Context, handle types.Handle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.activations = append(f.activations, handle)

	switch {
	case handle == dismissHandle:
		if f.panelFor >= 0 && !f.members[f.panelFor].stickyPanel {
			f.panelFor = -1
		}
	case strings.HasPrefix(string(handle), "trigger-"):
		var i int
		fmt.Sscanf(string(handle), "trigger-%d", &i)
		if err := f.members[i].triggerErr; err != nil {
			return err
		}
		if !f.members[i].menuNever {
			f.menuFor = i
			f.menuOpenedAt = time.Now()
		}
	case strings.HasPrefix(string(handle), "menu-"):
		if f.menuFor < 0 {
			return nil
		}
		var item int
		fmt.Sscanf(string(handle), "menu-%d", &item)
		m := f.members[f.menuFor]
		if m.actionErr != nil {
			return m.actionErr
		}
		if f.items(m)[item] == "Contributions" && !m.panelNever {
			f.panelFor = f.menuFor
			f.panelAt = time.Now()
		}
		f.menuFor = -1
	}
	return nil
}

func (f *fakeSurface) items(m fakeMember) []string {
	if m.menuItems != nil {
		return m.menuItems
	}
	return []string{"Profile", "Contributions", "Kick"}
}

func (f *fakeSurface) MenuItems(ctx context.Context) ([]types.Control, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.menuFor < 0 {
		return nil, nil
	}
	m := f.members[f.menuFor]
	if time.Since(f.menuOpenedAt) < m.menuDelay {
		return nil, nil
	}
	var controls []types.Control
	for i, label := range f.items(m) {
		controls = append(controls, types.Control{Label: label, Handle: menuHandle(i)})
	}
	return controls, nil
}

func (f *fakeSurface) PanelHTML(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panelFor < 0 {
		return "", nil
	}
	m := f.members[f.panelFor]
	if time.Since(f.panelAt) < m.panelDelay {
		return "", nil
	}
	return m.panelHTML, nil
}

func (f *fakeSurface) DismissControl() types.Handle {
	return dismissHandle
}

func (f *fakeSurface) Reset(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
	f.menuFor = -1
	f.panelFor = -1
	return nil
}

func (f *fakeSurface) activated(handle types.Handle) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, h := range f.activations {
		if h == handle {
			return true
		}
	}
	return false
}

var (
	errDiscovery = errors.New("table not rendered")
	errDetached  = errors.New("node is detached from document")
)

// contributionsDialog renders the dialog the way the guild page does
func contributionsDialog(lines ...string) string {
	return `<div role="dialog"><div data-slot="dialog-header">` +
		strings.Join(lines, "") +
		`</div><button>OK</button></div>`
}

func pairedLine(label, display, title string) string {
	return fmt.Sprintf(`<div><span>[%s]</span> <span title="%s">%s</span></div>`, label, title, display)
}

func testConfig() *types.Config {
	config := types.DefaultConfig()
	config.EntityDelay = time.Millisecond
	config.MenuTimeout = 80 * time.Millisecond
	config.PanelTimeout = 80 * time.Millisecond
	config.PollInterval = 5 * time.Millisecond
	config.Fields = types.FieldSet{"Gold", "Mana Dust", "Wood"}
	return config
}
