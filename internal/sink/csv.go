// Package sink persists normalized records. The CSV sink stages batches as
// delimiter-separated files with a JSON metadata sidecar for the downstream
// loader; the SQLite sink stages them as tables in a local database.
package sink

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"codeberg.org/mutker/fleetinv/internal/errors"
	"codeberg.org/mutker/fleetinv/internal/inventory"
	"codeberg.org/mutker/fleetinv/internal/logger"
)

var errFactory = errors.New()

type csvSink struct {
	cfg        CSVConfig
	runID      string
	batchEpoch int64
	log        logger.Logger
}

// batchMeta is the sidecar the staging loader reads next to each CSV file.
// processed stays false until the loader picks the file up.
type batchMeta struct {
	DBName               string `json:"db_name"`
	TableSchema          string `json:"table_schema"`
	TableName            string `json:"table_name"`
	IndexKey             string `json:"index_key"`
	StagingDB            string `json:"staging_db"`
	BatchEpochIdentifier int64  `json:"batch_epoch_identifier"`
	RunID                string `json:"run_id"`
	Rows                 int    `json:"rows"`
	Processed            bool   `json:"processed"`
	Delimiter            string `json:"delimiter"`
}

// NewCSV returns a sink writing each batch to
// <dir>/<name>_<region>_<batchEpoch>.csv plus a _meta.json sidecar.
func NewCSV(cfg CSVConfig, runID string, batchEpoch int64, log logger.Logger) (Sink, error) {
	cfg = cfg.withDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.Dir, defaultDirPerm); err != nil {
		return nil, errFactory.Wrap(ErrStorageInit, err)
	}

	return &csvSink{
		cfg:        cfg,
		runID:      runID,
		batchEpoch: batchEpoch,
		log:        log,
	}, nil
}

func (s *csvSink) WriteBatch(batch Batch) error {
	if len(batch.Schema) == 0 {
		return errFactory.WithMessage(ErrWriteFailed, "batch carries no schema")
	}

	base := fmt.Sprintf("%s_%s_%d", sanitizeName(batch.Name), strings.ToLower(s.cfg.Region), s.batchEpoch)
	dataPath := filepath.Join(s.cfg.Dir, base+".csv")
	metaPath := filepath.Join(s.cfg.Dir, base+"_meta.json")

	if err := s.writeData(dataPath, batch); err != nil {
		return err
	}

	if err := s.writeMeta(metaPath, batch); err != nil {
		return err
	}

	s.log.Debug().
		Str("file", dataPath).
		Int("rows", len(batch.Rows)).
		Msg("batch staged to csv")

	return nil
}

func (s *csvSink) writeData(path string, batch Batch) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, defaultFilePerm)
	if err != nil {
		return errFactory.Wrap(ErrWriteFailed, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	w.Comma = []rune(s.cfg.Delimiter)[0]

	names := batch.Schema.Names()
	if err := w.Write(names); err != nil {
		return errFactory.Wrap(ErrWriteFailed, err)
	}

	row := make([]string, len(names))

	for _, rec := range batch.Rows {
		for i, name := range names {
			row[i] = rec.Field(name).CSV()
		}

		if err := w.Write(row); err != nil {
			return errFactory.Wrap(ErrWriteFailed, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return errFactory.Wrap(ErrWriteFailed, err)
	}

	return nil
}

func (s *csvSink) writeMeta(path string, batch Batch) error {
	meta := batchMeta{
		DBName:               s.cfg.DBPrefix + "_" + strings.ToUpper(s.cfg.Region),
		TableSchema:          "Inventory",
		TableName:            batch.Name,
		IndexKey:             indexKey(batch.Schema),
		StagingDB:            "STAGING",
		BatchEpochIdentifier: s.batchEpoch,
		RunID:                s.runID,
		Rows:                 len(batch.Rows),
		Processed:            false,
		Delimiter:            s.cfg.Delimiter,
	}

	buf, err := json.MarshalIndent(meta, "", "    ")
	if err != nil {
		return errFactory.Wrap(ErrWriteFailed, err)
	}

	if err := os.WriteFile(path, buf, defaultFilePerm); err != nil {
		return errFactory.Wrap(ErrWriteFailed, err)
	}

	return nil
}

func (s *csvSink) Close() error {
	return nil
}

// indexKey picks the loader's upsert key: the identity columns when the
// schema carries them, otherwise the leading column.
func indexKey(schema inventory.Schema) string {
	has := func(name string) bool {
		for _, f := range schema {
			if f.Name == name {
				return true
			}
		}

		return false
	}

	if has(inventory.FieldDeviceID) && has(inventory.FieldSerialNumber) {
		return inventory.FieldDeviceID + "," + inventory.FieldSerialNumber
	}

	if len(schema) > 0 {
		return schema[0].Name
	}

	return ""
}

// sanitizeName keeps batch-derived file and table names to portable
// characters.
func sanitizeName(name string) string {
	var b strings.Builder

	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}

	if b.Len() == 0 {
		return "batch"
	}

	return b.String()
}
