package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"guild-contributions/adapters"
	"guild-contributions/internal/types"
	"guild-contributions/utils"
)

// Probe a guild page: list the members the adapter finds, then open the
// first member's dialog and show how each line of it is read.
func main() {
	config := types.DefaultConfig()
	flag.StringVar(&config.TargetURL, "url", config.TargetURL, "Guild page URL")
	flag.StringVar(&config.RemoteURL, "remote", os.Getenv("CHROME_REMOTE_URL"), "DevTools URL of a running Chrome")
	member := flag.Int("member", 0, "Index of the member to open")
	flag.Parse()

	adapter := adapters.NewManarionAdapter(config, &debugLogger{})
	err := probe(context.Background(), adapter, config, *member)
	adapter.Close()
	if err != nil {
		log.Fatal(err)
	}
}

func probe(ctx context.Context, adapter *adapters.ManarionAdapter, config *types.Config, member int) error {
	if err := adapter.Open(ctx); err != nil {
		return fmt.Errorf("failed to open guild page: %w", err)
	}

	fmt.Println("=== Members ===")
	entities, err := adapter.DiscoverEntities(ctx)
	if err != nil {
		return fmt.Errorf("failed to discover members: %w", err)
	}
	fmt.Printf("Total members found: %d\n", len(entities))
	for _, e := range entities {
		fmt.Printf("  %d: name='%s', trigger='%s'\n", e.Index, e.Name, e.Trigger)
	}
	if member >= len(entities) {
		return nil
	}

	entity := entities[member]
	fmt.Printf("\n=== Menu of %s ===\n", entity.Name)
	if err := adapter.Activate(ctx, entity.Trigger); err != nil {
		return fmt.Errorf("failed to activate trigger: %w", err)
	}
	items, err := utils.Await(ctx, config.MenuTimeout, config.PollInterval, func(ctx context.Context) ([]types.Control, bool, error) {
		items, err := adapter.MenuItems(ctx)
		return items, len(items) > 0, err
	})
	if err != nil {
		return fmt.Errorf("menu did not open: %w", err)
	}
	var action *types.Control
	for i, item := range items {
		fmt.Printf("  %d: label='%s', handle='%s'\n", i+1, item.Label, item.Handle)
		if strings.TrimSpace(item.Label) == config.Action {
			action = &items[i]
		}
	}
	if action == nil {
		fmt.Printf("No '%s' item in the menu\n", config.Action)
		return adapter.Reset(ctx)
	}

	fmt.Printf("\n=== %s dialog ===\n", config.Action)
	if err := adapter.Activate(ctx, action.Handle); err != nil {
		return fmt.Errorf("failed to activate menu item: %w", err)
	}
	panel, err := utils.Await(ctx, config.PanelTimeout, config.PollInterval, func(ctx context.Context) (*goquery.Selection, bool, error) {
		html, err := adapter.PanelHTML(ctx)
		if err != nil {
			return nil, false, err
		}
		panel, err := adapters.ParsePanel(html, config.Selectors)
		return panel, err == nil, err
	})
	if err != nil {
		return fmt.Errorf("dialog did not open: %w", err)
	}
	defer adapter.Reset(ctx)

	header, err := adapters.FindHeader(panel, config.Selectors)
	if err != nil {
		return fmt.Errorf("dialog has no header: %w", err)
	}

	fmt.Printf("Header lines: %d\n", header.Children().Length())
	header.Children().Each(func(i int, s *goquery.Selection) {
		text := strings.Join(strings.Fields(s.Text()), " ")
		read := "unread"
		for _, strategy := range adapters.DefaultStrategies {
			if label, value, ok := strategy.Extract(s, config.Fields); ok {
				read = fmt.Sprintf("%s: label='%s', value='%s' -> '%s'", strategy.Name(), label, value, utils.NormalizeNumber(value))
				break
			}
		}
		fmt.Printf("  %d: text='%s'\n     %s\n", i+1, text, read)
	})

	fmt.Println("\nRecognized fields:")
	for _, f := range adapters.ExtractFields(header, config.Fields, adapters.DefaultStrategies) {
		fmt.Printf("  %s = %s (%s)\n", f.Label, utils.NormalizeNumber(f.Value), f.Strategy)
	}
	return nil
}

type debugLogger struct{}

func (d *debugLogger) Debug(args ...interface{})                 { fmt.Println(args...) }
func (d *debugLogger) Info(args ...interface{})                  { fmt.Println(args...) }
func (d *debugLogger) Warn(args ...interface{})                  { fmt.Println(args...) }
func (d *debugLogger) Error(args ...interface{})                 { fmt.Println(args...) }
func (d *debugLogger) Debugf(format string, args ...interface{}) { fmt.Printf(format+"\n", args...) }
func (d *debugLogger) Infof(format string, args ...interface{})  { fmt.Printf(format+"\n", args...) }
func (d *debugLogger) Warnf(format string, args ...interface{})  { fmt.Printf(format+"\n", args...) }
func (d *debugLogger) Errorf(format string, args ...interface{}) { fmt.Printf(format+"\n", args...) }
