package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"hermannm.dev/devlog"
	"hermannm.dev/devlog/log"
	"hermannm.dev/pivot/config"
	"hermannm.dev/pivot/csv"
	"hermannm.dev/pivot/datatypes"
	"hermannm.dev/pivot/db"
	"hermannm.dev/pivot/db/clickhouse"
	"hermannm.dev/pivot/db/elasticsearch"
	"hermannm.dev/pivot/db/postgres"
	"hermannm.dev/pivot/db/sqlite"
	"hermannm.dev/pivot/pivot"
	"hermannm.dev/pivot/render"
	"hermannm.dev/pivot/report"
	"hermannm.dev/wrap"
)

func main() {
	flags, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		os.Exit(2)
	}

	conf, err := config.ReadFromEnv()
	if err != nil {
		log.ErrorCause(err, "failed to read config from env")
		os.Exit(1)
	}

	logHandler := devlog.NewHandler(os.Stderr, &devlog.Options{Level: conf.LogLevel})
	slog.SetDefault(slog.New(logHandler))

	ctx := context.Background()

	backend, err := connectBackend(ctx, conf)
	if err != nil {
		log.ErrorCause(err, "failed to initialize backend")
		os.Exit(1)
	}
	defer backend.close()

	if err := run(ctx, conf, flags, backend, os.Stdout); err != nil {
		log.ErrorCause(err, "report failed")
		backend.close()
		os.Exit(1)
	}
}

// Record source that can also describe the fields of dynamic data sources.
type fieldSource interface {
	report.RecordSource
	Fields(ctx context.Context, dataSourceID string) ([]datatypes.Field, error)
}

type dataBackend struct {
	source  fieldSource
	store   db.ReportStore
	closers []io.Closer
}

func (backend dataBackend) close() {
	for _, closer := range backend.closers {
		if err := closer.Close(); err != nil {
			log.ErrorCause(err, "failed to close backend connection")
		}
	}
}

func connectBackend(ctx context.Context, conf config.Config) (backend dataBackend, err error) {
	switch conf.Backend {
	case config.BackendClickHouse:
		clickHouseDB, err := clickhouse.NewClickHouseDB(ctx, conf.ClickHouse, conf.MaxRecords)
		if err != nil {
			return backend, err
		}
		backend.closers = append(backend.closers, clickHouseDB)

		if err := clickHouseDB.CreateSavedReportsTable(ctx); err != nil {
			backend.close()
			return backend, err
		}
		backend.source = clickHouseDB
		backend.store = clickHouseDB
		return backend, nil
	case config.BackendPostgres:
		postgresDB, err := postgres.NewPostgresDB(ctx, conf.Postgres, conf.MaxRecords)
		if err != nil {
			return backend, err
		}
		backend.closers = append(backend.closers, postgresDB)

		if err := postgresDB.CreateSavedReportsTable(ctx); err != nil {
			backend.close()
			return backend, err
		}
		backend.source = postgresDB
		backend.store = postgresDB
		return backend, nil
	case config.BackendElasticsearch:
		elasticDB, err := elasticsearch.NewElasticsearchDB(conf.Elasticsearch, conf.MaxRecords)
		if err != nil {
			return backend, err
		}
		backend.source = elasticDB
	default:
		backend.source = csv.FileSource{Dir: conf.DataDir, MaxRecords: conf.MaxRecords}
	}

	store, err := sqlite.NewReportStore(ctx, conf.ReportsDBPath)
	if err != nil {
		return backend, err
	}
	backend.store = store
	backend.closers = append(backend.closers, store)

	return backend, nil
}

func run(
	ctx context.Context,
	conf config.Config,
	flags flags,
	backend dataBackend,
	output io.Writer,
) error {
	if flags.list {
		return listReports(ctx, backend.store, output)
	}
	if flags.deleteReport != "" {
		return deleteReport(ctx, backend.store, flags.deleteReport)
	}

	registry := datatypes.NewRegistry()
	session := report.NewSession(registry, conf.MaxRecords)

	if err := loadSession(ctx, session, registry, backend, flags); err != nil {
		return err
	}
	if err := applyFlagOverrides(session, flags); err != nil {
		return err
	}

	result, err := session.Recompute()
	if err != nil {
		return wrap.Error(err, "failed to compute report")
	}

	if flags.expandAll || flags.expandLevel > 0 {
		if flags.expandAll {
			session.ExpandAll()
		} else {
			session.ExpandToLevel(flags.expandLevel)
		}
		if result, err = session.Recompute(); err != nil {
			return wrap.Error(err, "failed to compute expanded report")
		}
	}

	if flags.saveAs != "" {
		id, err := backend.store.SaveReport(ctx, session.SavedReport(flags.saveAs))
		if err != nil {
			return wrap.Errorf(err, "failed to save report '%s'", flags.saveAs)
		}
		log.Info("saved report", slog.String("name", flags.saveAs), slog.String("id", id.String()))
	}

	if flags.drillRow != "" {
		return writeDrillDown(output, result, session.Config(), flags)
	}

	return writeResult(output, session, result, flags)
}

func loadSession(
	ctx context.Context,
	session *report.Session,
	registry *datatypes.Registry,
	backend dataBackend,
	flags flags,
) error {
	if flags.joinFile != "" {
		return loadJoin(ctx, session, backend, flags)
	}

	var savedReport *report.SavedReport
	dataSourceID := flags.dataSource
	if flags.reportName != "" {
		stored, err := db.FindReport(ctx, backend.store, flags.reportName)
		if err != nil {
			return wrap.Errorf(err, "failed to find saved report '%s'", flags.reportName)
		}
		savedReport = &stored.Report
		dataSourceID = stored.Report.DataSource
	}
	if dataSourceID == "" {
		return errors.New("no data source given, use -source, -report or -join")
	}

	if !datatypes.IsStaticDataSource(dataSourceID) {
		fields, err := backend.source.Fields(ctx, dataSourceID)
		if err != nil {
			return wrap.Errorf(err, "failed to get fields of data source '%s'", dataSourceID)
		}
		registry.Register(dataSourceID, fields)
	}

	if savedReport != nil {
		session.LoadReport(*savedReport)
	} else {
		session.SelectDataSource(dataSourceID)
		session.SetConfig(db.DefaultPivotConfig(session.Fields()))
	}

	return session.Load(ctx, backend.source)
}

func loadJoin(ctx context.Context, session *report.Session, backend dataBackend, flags flags) error {
	schemaSource, ok := backend.source.(db.SchemaSource)
	if !ok {
		return errors.New("ad-hoc joins require a database backend")
	}

	query, err := readJoinQuery(flags.joinFile)
	if err != nil {
		return err
	}

	dataset, err := schemaSource.FetchJoin(ctx, query)
	if err != nil {
		return wrap.Error(err, "failed to run ad-hoc join")
	}

	session.UseAdHoc(dataset.AdHoc(flags.dataSource))
	return nil
}

func applyFlagOverrides(session *report.Session, flags flags) error {
	pivotConfig := session.Config()

	if flags.rows != "" {
		pivotConfig.Rows = splitList(flags.rows)
	}
	if flags.columns != "" {
		pivotConfig.Columns = splitList(flags.columns)
	}
	if flags.values != "" {
		values, err := parseValueFields(flags.values)
		if err != nil {
			return err
		}
		pivotConfig.Values = values
	}
	session.SetConfig(pivotConfig)

	if flags.filtersFile != "" {
		filters, err := readFilters(flags.filtersFile)
		if err != nil {
			return err
		}
		session.SetFilters(filters)
	}

	return nil
}

func writeResult(
	output io.Writer,
	session *report.Session,
	result pivot.Result,
	flags flags,
) error {
	colorRule, err := parseColorRule(flags.color)
	if err != nil {
		return err
	}
	tableOptions := render.TableOptions{
		ShowRowTotals:   flags.rowTotals,
		ShowGrandTotals: flags.grandTotals,
		ColorRule:       colorRule,
	}

	pivotConfig := session.Config()
	fields := session.Fields()

	switch outputFormat(flags.format) {
	case formatCSV:
		return render.CSV(output, result, pivotConfig, fields)
	case formatHTML:
		orientation, err := parseOrientation(flags.orientation)
		if err != nil {
			return err
		}
		return render.PrintHTML(output, result, pivotConfig, fields, render.PrintOptions{
			Title:       flags.title,
			Orientation: orientation,
			GeneratedAt: time.Now(),
			Table:       tableOptions,
		})
	case formatChart:
		kind, err := parseChartKind(flags.chartKind)
		if err != nil {
			return err
		}
		return render.WriteSVG(output, render.Chart(result, render.ChartOptions{Kind: kind}))
	case formatJSON:
		encoder := json.NewEncoder(output)
		encoder.SetIndent("", "  ")
		return encoder.Encode(render.Table(result, pivotConfig, fields, tableOptions))
	default:
		return render.WriteText(output, render.Table(result, pivotConfig, fields, tableOptions))
	}
}

func writeDrillDown(
	output io.Writer,
	result pivot.Result,
	pivotConfig pivot.Config,
	flags flags,
) error {
	node, ok := pivot.FindNode(result.Tree, flags.drillRow)
	if !ok {
		return fmt.Errorf("no row with key '%s'", flags.drillRow)
	}

	column := pivot.LegacyTotalColumn
	if flags.drillColumn != "" {
		var err error
		if column, err = pivot.ParseColumnKey(flags.drillColumn); err != nil {
			return wrap.Errorf(err, "invalid column key '%s'", flags.drillColumn)
		}
	}

	encoder := json.NewEncoder(output)
	encoder.SetIndent("", "  ")
	return encoder.Encode(render.DrillDown(node, column, pivotConfig.Columns))
}

func listReports(ctx context.Context, store db.ReportStore, output io.Writer) error {
	reports, err := store.ListReports(ctx)
	if err != nil {
		return wrap.Error(err, "failed to list saved reports")
	}

	writer := tabwriter.NewWriter(output, 0, 0, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tName\tData source\tSaved at")
	for _, stored := range reports {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\n",
			stored.ID,
			stored.Report.ReportName,
			stored.Report.DataSource,
			stored.SavedAt.Local().Format("2006-01-02 15:04"),
		)
	}
	return writer.Flush()
}

func deleteReport(ctx context.Context, store db.ReportStore, idOrName string) error {
	stored, err := db.FindReport(ctx, store, idOrName)
	if err != nil {
		return wrap.Errorf(err, "failed to find saved report '%s'", idOrName)
	}

	if err := store.DeleteReport(ctx, stored.ID); err != nil {
		return wrap.Errorf(err, "failed to delete saved report '%s'", idOrName)
	}

	log.Info("deleted report", slog.String("name", stored.Report.ReportName))
	return nil
}
