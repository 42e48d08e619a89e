package adapters_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"guild-contributions/adapters"
	"guild-contributions/extractor"
	"guild-contributions/internal/types"
)

// guildPage mimics the guild table: menus open on pointerdown only, and the
// second member's dialog never renders. The first member's dialog is a modal
// alertdialog that only its OK button closes and that blocks every menu while
// it is open.
const guildPage = `<!DOCTYPE html>
<html><body>
<table><tbody>
  <tr data-slot="table-row"><td><span class="cursor-pointer"><span>Aria</span></span></td></tr>
  <tr data-slot="table-row"><td><span class="cursor-pointer"><span>Bram</span></span></td></tr>
  <tr data-slot="table-row"><td><span class="cursor-pointer"><span>Cato</span></span></td></tr>
</tbody></table>
<script>
const data = {
  Aria: [["Gold", "1.2M", "1,234,567"], ["Wood", "2.5K", "2,500"]],
  Cato: [["Gold", "7", "7"]],
};
function closeAll() {
  document.querySelectorAll('[role="menu"], [role="dialog"], [role="alertdialog"]').forEach(el => el.remove());
}
function openDialog(name) {
  const rows = data[name];
  if (!rows) return;
  const dialog = document.createElement('div');
  dialog.setAttribute('role', name === 'Aria' ? 'alertdialog' : 'dialog');
  const header = document.createElement('div');
  header.setAttribute('data-slot', 'dialog-header');
  rows.forEach(([label, display, title]) => {
    const line = document.createElement('div');
    line.innerHTML = '<span>[' + label + ']</span> <span title="' + title + '">' + display + '</span>';
    header.appendChild(line);
  });
  dialog.appendChild(header);
  const ok = document.createElement('button');
  ok.textContent = 'OK';
  ok.addEventListener('click', closeAll);
  dialog.appendChild(ok);
  setTimeout(() => document.body.appendChild(dialog), 50);
}
document.querySelectorAll('span.cursor-pointer span').forEach(trigger => {
  trigger.addEventListener('pointerdown', () => {
    if (document.querySelector('[role="alertdialog"]')) return;
    closeAll();
    const name = trigger.textContent.trim();
    const menu = document.createElement('div');
    menu.setAttribute('role', 'menu');
    ['Profile', 'Contributions'].forEach(label => {
      const item = document.createElement('div');
      item.setAttribute('role', 'menuitem');
      item.textContent = label;
      item.addEventListener('click', () => {
        menu.remove();
        if (label === 'Contributions') openDialog(name);
      });
      menu.appendChild(item);
    });
    setTimeout(() => document.body.appendChild(menu), 30);
  });
});
document.addEventListener('keydown', e => {
  if (e.key === 'Escape') document.querySelectorAll('[role="menu"], [role="dialog"]').forEach(el => el.remove());
});
</script>
</body></html>`

func TestManarionAdapter_AgainstBrowser(t *testing.T) {
	if os.Getenv("WITH_CHROMEDP") == "" {
		t.Skip("WITH_CHROMEDP not set")
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(guildPage))
	}))
	defer server.Close()

	config := types.DefaultConfig()
	config.TargetURL = server.URL
	config.RemoteURL = os.Getenv("CHROME_REMOTE_URL")
	config.UseHeadlessBrowser = true
	config.EntityDelay = 10 * time.Millisecond
	config.Fields = types.FieldSet{"Gold", "Wood"}
	config.Selectors.Panel = `div[role="dialog"], div[role="alertdialog"]`
	logger := logrus.New()

	adapter := adapters.NewManarionAdapter(config, logger)
	defer adapter.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	require.NoError(t, adapter.Open(ctx))

	ex := extractor.NewExtractor(adapter, config, logger)
	summary, err := ex.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Discovered)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)

	records := ex.Records()
	require.Len(t, records, 2)
	assert.Equal(t, "Aria", records[0].Name)
	assert.Equal(t, map[string]string{"Gold": "1234567", "Wood": "2500"}, records[0].Fields)
	assert.Equal(t, "Cato", records[1].Name)

	log := ex.Log()
	require.Len(t, log, 3)
	assert.Equal(t, "Bram", log[1].Entity)
	assert.Equal(t, extractor.ReasonPanelNotOpen, log[1].Reason)
}
