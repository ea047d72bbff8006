// Package pipeline runs one dm+d import end to end.
//
// Everything that reads the filesystem happens before the store is touched.
// Loading, reconciliation, propagation, name inference and the run marker
// share one transaction; the analytics upload, oddity detection, log files
// and notification follow the commit and can be repeated on their own.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"dmd/internal/analytics"
	"dmd/internal/catalogue"
	"dmd/internal/importlog"
	"dmd/internal/loader"
	"dmd/internal/metrics"
	"dmd/internal/naming"
	"dmd/internal/notify"
	"dmd/internal/oddity"
	"dmd/internal/projection"
	"dmd/internal/reconcile"
	"dmd/internal/report"
	"dmd/internal/source"
	"dmd/internal/storage"
)

// Logger is the minimal logging interface used by the importer.
// *log.Logger and *logger.Logger satisfy it.
type Logger interface {
	Printf(format string, v ...any)
}

type Options struct {
	// DataDir holds dmd/<stamp>/nhsbsa_dmd_*/ and bnf_snomed_mapping/<stamp>/.
	DataDir string
	// LogsDir receives one directory of anomaly logs per release.
	LogsDir   string
	BatchSize int
	// Force re-imports a release that import_log already records.
	Force bool
}

// Importer wires the stages to their stores. Analytics and Notifier are
// optional.
type Importer struct {
	Store     storage.Store
	Analytics storage.Store
	Notifier  notify.Notifier
	Logger    Logger
	Options   Options

	// seams
	now   func() time.Time
	newID func() string
}

// Result describes a finished run.
type Result struct {
	RunID   string
	Release source.Release
	// Skipped is set when the release was already imported and Force was off.
	Skipped bool
	Counts  map[string]int64
	Report  *report.Report
	LogDir  string
	Upload  analytics.Result
}

// inputs is everything read from disk before the first write.
type inputs struct {
	release source.Release
	groups  []source.Group
	mapping []reconcile.Entry
}

func (im *Importer) logger() func(format string, v ...any) {
	if im.Logger == nil {
		return log.New(io.Discard, "", 0).Printf
	}
	return im.Logger.Printf
}

func (im *Importer) clock() time.Time {
	if im.now != nil {
		return im.now()
	}
	return time.Now().UTC()
}

func (im *Importer) runID() string {
	if im.newID != nil {
		return im.newID()
	}
	return uuid.NewString()
}

// stage times fn, logs its outcome and emits step metrics.
func (im *Importer) stage(name string, fn func() error) error {
	logf := im.logger()
	start := time.Now()
	err := fn()
	dur := time.Since(start)

	status := "ok"
	if err != nil {
		status = "error"
		logf("stage=%s status=error duration=%s err=%v", name, dur.Truncate(time.Millisecond), err)
	} else {
		logf("stage=%s ok duration=%s", name, dur.Truncate(time.Millisecond))
	}
	labels := metrics.Labels{"step": name, "status": status}
	metrics.IncCounter(metrics.StepTotal, 1, labels)
	metrics.ObserveHistogram(metrics.StepDurationSeconds, dur.Seconds(), labels)
	return err
}

// Run imports the latest release under Options.DataDir.
func (im *Importer) Run(ctx context.Context) (Result, error) {
	if im.Store == nil {
		return Result{}, fmt.Errorf("pipeline: Store is required")
	}
	logf := im.logger()
	res := Result{RunID: im.runID(), Report: report.New()}

	var in inputs
	if err := im.stage("read", func() (err error) {
		in, err = readInputs(ctx, im.Options.DataDir)
		return err
	}); err != nil {
		return res, err
	}
	res.Release = in.release
	logf("release=%s date=%s groups=%d mapping_rows=%d run_id=%s",
		in.release.ID, in.release.Date.Format(catalogue.DateLayout), len(in.groups), len(in.mapping), res.RunID)

	if err := im.stage("ddl", func() error {
		return im.Store.EnsureTables(ctx, catalogue.TableSpecs())
	}); err != nil {
		return res, err
	}

	done, err := importlog.Exists(ctx, im.Store, importlog.CategoryDMD, in.release.ID)
	if err != nil {
		return res, err
	}
	if done && !im.Options.Force {
		logf("release=%s already imported; nothing to do", in.release.ID)
		res.Skipped = true
		return res, nil
	}

	if err := im.stage("import", func() error {
		return storage.WithTx(ctx, im.Store, func(tx storage.Tx) error {
			return im.importTx(ctx, tx, in, res.RunID, res.Report)
		})
	}); err != nil {
		return res, err
	}

	res.Counts, err = countObjects(ctx, im.Store, res.Report)
	if err != nil {
		return res, err
	}

	if im.Analytics != nil {
		if err := im.stage("upload", func() (err error) {
			res.Upload, err = Upload(ctx, im.Store, im.Analytics)
			return err
		}); err != nil {
			return res, err
		}
	}

	if err := im.stage("oddities", func() error {
		return oddity.Detect(ctx, im.Store, res.Report)
	}); err != nil {
		return res, err
	}

	res.LogDir = filepath.Join(im.Options.LogsDir, in.release.ID)
	if err := im.stage("logs", func() error {
		return res.Report.Write(res.LogDir)
	}); err != nil {
		return res, err
	}
	for c, n := range res.Report.Totals() {
		metrics.IncCounter(metrics.AnomaliesTotal, float64(n), metrics.Labels{"category": string(c)})
		logf("anomaly category=%s records=%d", c, n)
	}

	if im.Notifier != nil {
		if err := im.Notifier.Notify(ctx, "Imported dm+d data, release "+in.release.ID); err != nil {
			logf("notify failed: %v", err)
		}
	}
	return res, nil
}

func readInputs(ctx context.Context, dataDir string) (inputs, error) {
	rel, err := source.FindRelease(dataDir)
	if err != nil {
		return inputs{}, err
	}
	mappingPath, err := source.FindMapping(dataDir)
	if err != nil {
		return inputs{}, err
	}
	groups, err := source.Load(rel.Dir)
	if err != nil {
		return inputs{}, err
	}
	entries, err := reconcile.ReadMapping(ctx, mappingPath)
	if err != nil {
		return inputs{}, err
	}
	return inputs{release: rel, groups: groups, mapping: entries}, nil
}

// importTx is the transactional part of a run. Every statement goes through
// tx.
func (im *Importer) importTx(ctx context.Context, tx storage.Tx, in inputs, runID string, rep *report.Report) error {
	logf := im.logger()

	ld := loader.New(tx, loader.Options{BatchSize: im.Options.BatchSize})
	loaded, err := ld.LoadAll(ctx, loader.Plan(in.groups))
	if err != nil {
		return err
	}
	for label, n := range loaded {
		metrics.IncCounter(metrics.RecordsTotal, float64(n), metrics.Labels{"kind": label})
	}
	logf("stage=load kinds=%d", len(loaded))

	applied, err := reconcile.Apply(ctx, tx, in.mapping, rep)
	if err != nil {
		return err
	}
	logf("stage=reconcile applied=%d mapping_only=%d", applied, rep.Len(report.MappingOnly))

	inferred, err := reconcile.PropagateVMPCodes(ctx, tx, rep)
	if err != nil {
		return err
	}
	logf("stage=propagate inferred=%d without_code=%d", inferred, rep.Len(report.NoCode))

	named, err := naming.SetDMDNames(ctx, tx, rep)
	if err != nil {
		return err
	}
	logf("stage=names presentations=%d", named)

	return importlog.Record(ctx, tx, importlog.Entry{
		Category:   importlog.CategoryDMD,
		Filename:   in.release.ID,
		CurrentAt:  in.release.Date,
		ImportedAt: im.clock(),
		RunID:      runID,
	})
}

// countObjects returns the committed row count of every primary kind. Only
// the kinds that carry BNF codes go into the summary.
func countObjects(ctx context.Context, q storage.Querier, rep *report.Report) (map[string]int64, error) {
	out := map[string]int64{}
	for _, k := range catalogue.All() {
		if k.Class != catalogue.ClassPrimary {
			continue
		}
		n, err := storage.Count(ctx, q, k.Table)
		if err != nil {
			return nil, err
		}
		out[k.Label] = n
	}
	for _, k := range catalogue.Reconcilable() {
		rep.SetCount(k.Label, out[k.Label])
	}
	return out, nil
}

// Upload copies every catalogue table and the flattened <kind>_full
// projections from src to sink.
func Upload(ctx context.Context, src storage.Querier, sink storage.Store) (analytics.Result, error) {
	projections, err := projection.BuildAll()
	if err != nil {
		return analytics.Result{}, err
	}
	return analytics.Upload(ctx, src, sink, catalogue.TableSpecs(), projections)
}
