package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/OCAP2/markerview/internal/api"
	"github.com/OCAP2/markerview/internal/config"
	"github.com/OCAP2/markerview/internal/export"
	"github.com/OCAP2/markerview/internal/plugins/animate"
	"github.com/OCAP2/markerview/internal/server"
	"github.com/OCAP2/markerview/internal/view"
	"github.com/OCAP2/markerview/pkg/core"
)

var errUsage = errors.New("usage")

func viewOptions() ([]view.Option, error) {
	var opts []view.Option
	if Logger != nil {
		opts = append(opts, view.WithLogger(Logger))
	}
	if EventLogger != nil {
		opts = append(opts, view.WithEventLogger(EventLogger))
	}
	vc, err := config.GetViewConfig()
	if err != nil {
		return nil, err
	}
	if len(vc.MarkerTypes) > 0 {
		opts = append(opts, view.WithMarkerTypes(vc.MarkerTypes...))
	}
	return opts, nil
}

// openHeadless restores set into a view of the given size.
func openHeadless(set core.AnnotationSet, width, height float64) (*view.View, view.RestoreReport, error) {
	opts, err := viewOptions()
	if err != nil {
		return nil, view.RestoreReport{}, err
	}
	v, err := view.New(width, height, opts...)
	if err != nil {
		return nil, view.RestoreReport{}, err
	}
	report, err := v.Show(&set)
	if err != nil {
		_ = v.Close()
		return nil, view.RestoreReport{}, err
	}
	return v, report, nil
}

func printReport(w io.Writer, report view.RestoreReport) {
	fmt.Fprintf(w, "restored %d markers", report.Restored)
	if report.Rescaled {
		fmt.Fprintf(w, " (scaled %gx, %gx)", report.ScaleX, report.ScaleY)
	}
	fmt.Fprintln(w)
	for _, sk := range report.Skipped {
		fmt.Fprintf(w, "skipped #%d %s: %s\n", sk.Index, sk.TypeName, sk.Reason())
	}
}

// rescale restores a file into a view of a new size and writes the
// rescaled annotations.
func rescale(args []string, out io.Writer) error {
	if len(args) != 4 {
		return fmt.Errorf("%w: rescale <in.json[.gz]> <width> <height> <out.json[.gz]>", errUsage)
	}
	width, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("invalid width %q: %w", args[1], err)
	}
	height, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		return fmt.Errorf("invalid height %q: %w", args[2], err)
	}

	set, err := export.ReadFile(args[0])
	if err != nil {
		return err
	}
	v, report, err := openHeadless(set, width, height)
	if err != nil {
		return err
	}
	defer v.Close()

	result, err := v.Serialize()
	if err != nil {
		return err
	}
	if err := export.WriteFile(args[3], result); err != nil {
		return err
	}

	printReport(out, report)
	fmt.Fprintf(out, "wrote %d markers at %gx%g to %s\n", len(result.Markers), width, height, args[3])
	return nil
}

// inspect restores a file at its stored size and prints one line per marker.
func inspect(args []string, out io.Writer) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: inspect <in.json[.gz]>", errUsage)
	}
	set, err := export.ReadFile(args[0])
	if err != nil {
		return err
	}

	width, height := set.Width, set.Height
	if width <= 0 || height <= 0 {
		vc, err := config.GetViewConfig()
		if err != nil {
			return err
		}
		width, height = vc.DefaultWidth, vc.DefaultHeight
	}

	v, report, err := openHeadless(set, width, height)
	if err != nil {
		return err
	}
	defer v.Close()
	v.SetCurrentMarker(nil)

	fmt.Fprintf(out, "%s: canvas %gx%g\n", args[0], width, height)
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tTYPE\tBOUNDS\tNOTES")
	for i, m := range v.Markers() {
		bounds := "-"
		if lo, hi, ok := m.Container().ScreenBBox(); ok {
			bounds = fmt.Sprintf("%s,%s %s,%s",
				core.FormatFloat(lo.X), core.FormatFloat(lo.Y),
				core.FormatFloat(hi.X), core.FormatFloat(hi.Y))
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", i, m.TypeName(), bounds, m.Notes())
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	printReport(out, report)
	return nil
}

// upload sends an annotation file to the configured annotation store.
func upload(ctx context.Context, args []string, out io.Writer) error {
	if len(args) < 1 || len(args) > 3 {
		return fmt.Errorf("%w: upload <in.json[.gz]> [name] [tag]", errUsage)
	}
	set, err := export.ReadFile(args[0])
	if err != nil {
		return err
	}

	ac, err := config.GetAPIConfig()
	if err != nil {
		return err
	}
	client, err := api.New(ac.URL, ac.APIKey, ac.Timeout)
	if err != nil {
		return err
	}
	if err := client.Healthcheck(ctx); err != nil {
		return err
	}

	meta := api.UploadMetadata{
		Width:   set.Width,
		Height:  set.Height,
		Markers: len(set.Markers),
	}
	if len(args) > 1 {
		meta.Name = args[1]
	}
	if len(args) > 2 {
		meta.Tag = args[2]
	}
	if err := client.Upload(ctx, args[0], meta); err != nil {
		return err
	}
	if Logger != nil {
		Logger.Info("Uploaded annotations", "file", args[0], "markers", meta.Markers)
	}
	fmt.Fprintf(out, "uploaded %s (%d markers)\n", args[0], meta.Markers)
	return nil
}

// serve runs the websocket host bridge until ctx is done.
func serve(ctx context.Context) error {
	sc, err := config.GetServerConfig()
	if err != nil {
		return err
	}
	vc, err := config.GetViewConfig()
	if err != nil {
		return err
	}

	bridge, err = server.New(server.Config{
		Address:      sc.Address,
		ReadLimit:    sc.ReadLimit,
		WriteTimeout: sc.WriteTimeout,
		SendBuffer:   sc.SendBuffer,
		MarkerTypes:  vc.MarkerTypes,
		SaveDir:      sc.SaveDir,
		Compress:     config.GetExportConfig().Compress,
	}, Logger,
		server.WithEventLogger(EventLogger),
		server.WithDispatcherLogger(Logger.With("component", "dispatcher")),
		server.WithPlugins(func() []view.Plugin {
			return []view.Plugin{animate.New()}
		}),
	)
	if err != nil {
		return err
	}

	serveErr := bridge.ListenAndServe(ctx)
	if err := bridge.Close(); err != nil {
		Logger.Warn("closing bridge", "error", err)
	}
	return serveErr
}
