package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/MarcoPoloResearchLab/slidedeck/internal/apiclient"
	"github.com/MarcoPoloResearchLab/slidedeck/internal/deck"
	"github.com/MarcoPoloResearchLab/slidedeck/internal/editor"
	"github.com/MarcoPoloResearchLab/slidedeck/internal/slides"
	"github.com/MarcoPoloResearchLab/slidedeck/internal/tui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const titleWidth = 48

func newEditCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "edit",
		Short: "Open the interactive slide editor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, err := openSession(ctx, true)
			if err != nil {
				return err
			}
			defer sess.close()

			bridge := tui.NewBridge()
			state, err := editor.New(editor.Config{
				Backend:          sess.backend,
				DebounceInterval: sess.config.DebounceInterval,
				Logger:           sess.logger,
				OnChange:         bridge.OnChange,
			})
			if err != nil {
				return err
			}
			if err := state.Load(ctx); err != nil {
				// The editor shows the load banner; the session stays usable for retries.
				sess.logger.Warn("initial load failed", zap.Error(err))
			}

			followCtx, stopFollowing := context.WithCancel(ctx)
			defer stopFollowing()
			if client, ok := sess.backend.(*apiclient.Client); ok {
				changes, err := client.Events(followCtx)
				if err != nil {
					sess.logger.Warn("change stream unavailable", zap.Error(err))
				} else {
					go state.Follow(followCtx, changes)
				}
			}
			return tui.Run(ctx, bridge, state, sess.mode)
		},
	}
}

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List slides in presentation order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := openSession(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer sess.close()
			return listSlides(cmd.Context(), sess.backend, cmd.OutOrStdout())
		},
	}
}

func newAddCommand() *cobra.Command {
	var (
		content  string
		file     string
		layout   string
		position int
	)
	command := &cobra.Command{
		Use:   "add",
		Short: "Append a slide",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if file != "" {
				data, err := os.ReadFile(file)
				if err != nil {
					return err
				}
				content = string(data)
			}
			if strings.TrimSpace(content) == "" {
				content = editor.NewSlidePlaceholder
			}
			parsedLayout, err := slides.ParseLayout(layout)
			if err != nil {
				return err
			}

			sess, err := openSession(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer sess.close()

			var order *int
			if cmd.Flags().Changed("order") {
				order = &position
			}
			created, err := addSlide(cmd.Context(), sess.backend, content, parsedLayout, order)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created slide %d at order %d\n", created.ID, created.Order)
			return nil
		},
	}
	command.Flags().StringVar(&content, "content", "", "Slide Markdown")
	command.Flags().StringVar(&file, "file", "", "Read slide Markdown from a file")
	command.Flags().StringVar(&layout, "layout", slides.LayoutDefault.String(), "Slide layout (default, title, code, split, image)")
	command.Flags().IntVar(&position, "order", 0, "Explicit order value (defaults to the end of the deck)")
	return command
}

func newRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a slide",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			slideID, err := parseSlideID(args[0])
			if err != nil {
				return err
			}
			sess, err := openSession(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer sess.close()

			if err := removeSlide(cmd.Context(), sess.backend, sess.logger, slideID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted slide %d\n", slideID)
			return nil
		},
	}
}

func newMoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "move <id> <position>",
		Short: "Move a slide to a 1-based position",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			slideID, err := parseSlideID(args[0])
			if err != nil {
				return err
			}
			position, err := strconv.Atoi(args[1])
			if err != nil || position < 1 {
				return fmt.Errorf("position must be a positive integer, got %q", args[1])
			}
			sess, err := openSession(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer sess.close()

			if err := moveSlide(cmd.Context(), sess.backend, sess.logger, slideID, position-1); err != nil {
				return err
			}
			return listSlides(cmd.Context(), sess.backend, cmd.OutOrStdout())
		},
	}
}

func newImportCommand() *cobra.Command {
	var replace bool
	command := &cobra.Command{
		Use:   "import <deck.yaml>",
		Short: "Append slides from a YAML deck",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer file.Close()
			doc, err := deck.Decode(file)
			if err != nil {
				return err
			}

			sess, err := openSession(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer sess.close()

			created, err := importDeck(cmd.Context(), sess.backend, doc, replace)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d slides\n", created)
			return nil
		},
	}
	command.Flags().BoolVar(&replace, "replace", false, "Delete existing slides after importing")
	return command
}

func newExportCommand() *cobra.Command {
	var (
		output string
		title  string
	)
	command := &cobra.Command{
		Use:   "export",
		Short: "Write the deck as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := openSession(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer sess.close()

			writer := cmd.OutOrStdout()
			if output != "" && output != "-" {
				file, err := os.Create(output)
				if err != nil {
					return err
				}
				defer file.Close()
				writer = file
			}
			return exportDeck(cmd.Context(), sess.backend, writer, title)
		},
	}
	command.Flags().StringVarP(&output, "output", "o", "", "Output file (stdout when empty)")
	command.Flags().StringVar(&title, "title", "", "Deck title")
	return command
}

func parseSlideID(raw string) (int64, error) {
	slideID, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || slideID <= 0 {
		return 0, fmt.Errorf("slide id must be a positive integer, got %q", raw)
	}
	return slideID, nil
}

func listSlides(ctx context.Context, backend apiclient.Backend, w io.Writer) error {
	listed, err := backend.List(ctx)
	if err != nil {
		return err
	}
	table := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(table, "#\tID\tORDER\tLAYOUT\tTITLE")
	for index, slide := range listed {
		fmt.Fprintf(table, "%d\t%d\t%d\t%s\t%s\n", index+1, slide.ID, slide.Order, slide.Layout, headline(slide.Content))
	}
	return table.Flush()
}

func addSlide(ctx context.Context, backend apiclient.Backend, content string, layout slides.Layout, order *int) (apiclient.Slide, error) {
	if order == nil {
		listed, err := backend.List(ctx)
		if err != nil {
			return apiclient.Slide{}, err
		}
		next := len(listed)
		order = &next
	}
	return backend.Create(ctx, apiclient.SlideDraft{
		Order:    order,
		Content:  content,
		Layout:   layout,
		Metadata: slides.Metadata{},
	})
}

// removeSlide goes through the editor so the last slide is never deleted.
func removeSlide(ctx context.Context, backend apiclient.Backend, logger *zap.Logger, slideID int64) error {
	state, err := loadEditor(ctx, backend, logger)
	if err != nil {
		return err
	}
	defer state.Close(ctx) //nolint:errcheck

	if err := state.DeleteSlide(ctx, slideID); err != nil {
		if errors.Is(err, editor.ErrUnknownSlide) {
			return fmt.Errorf("slide %d not found", slideID)
		}
		return err
	}
	return nil
}

func moveSlide(ctx context.Context, backend apiclient.Backend, logger *zap.Logger, slideID int64, to int) error {
	state, err := loadEditor(ctx, backend, logger)
	if err != nil {
		return err
	}
	defer state.Close(ctx) //nolint:errcheck

	snapshot := state.Snapshot()
	from := -1
	for index, slide := range snapshot.Slides {
		if slide.ID == slideID {
			from = index
			break
		}
	}
	if from < 0 {
		return fmt.Errorf("slide %d not found", slideID)
	}
	if to >= len(snapshot.Slides) {
		to = len(snapshot.Slides) - 1
	}
	return state.Move(ctx, from, to)
}

func loadEditor(ctx context.Context, backend apiclient.Backend, logger *zap.Logger) (*editor.State, error) {
	state, err := editor.New(editor.Config{Backend: backend, Logger: logger})
	if err != nil {
		return nil, err
	}
	if err := state.Load(ctx); err != nil {
		return nil, err
	}
	return state, nil
}

// importDeck appends the deck after the highest existing order. With replace, the
// previous slides are removed once every new slide exists.
func importDeck(ctx context.Context, backend apiclient.Backend, doc deck.Document, replace bool) (int, error) {
	existing, err := backend.List(ctx)
	if err != nil {
		return 0, err
	}

	startOrder := 0
	for _, slide := range existing {
		if slide.Order >= startOrder {
			startOrder = slide.Order + 1
		}
	}

	created := 0
	for _, draft := range doc.Drafts(startOrder) {
		if _, err := backend.Create(ctx, draft); err != nil {
			return created, fmt.Errorf("import slide %d: %w", created+1, err)
		}
		created++
	}

	if replace {
		for _, slide := range existing {
			if err := backend.Delete(ctx, slide.ID); err != nil && !errors.Is(err, apiclient.ErrNotFound) {
				return created, fmt.Errorf("remove slide %d: %w", slide.ID, err)
			}
		}
	}
	return created, nil
}

func exportDeck(ctx context.Context, backend apiclient.Backend, w io.Writer, title string) error {
	listed, err := backend.List(ctx)
	if err != nil {
		return err
	}
	return deck.Encode(w, title, listed)
}

func headline(content string) string {
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "#"))
		if trimmed == "" {
			continue
		}
		if runes := []rune(trimmed); len(runes) > titleWidth {
			return string(runes[:titleWidth-1]) + "…"
		}
		return trimmed
	}
	return "(empty)"
}
