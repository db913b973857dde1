package importer

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tealeg/xlsx/v3"
	"gopkg.in/yaml.v3"
)

// ImportOptions defines the configuration for Excel import operations
type ImportOptions struct {
	MappingPath string // default "configs/mapping/parc_items.yaml"
	DryRun      bool
	MaxErrors   int // default 50
}

// RowError represents an error that occurred during row processing
type RowError struct {
	Sheet   string `json:"sheet"`
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// SheetSummary contains the import statistics for a single sheet
type SheetSummary struct {
	Name     string     `json:"name"`
	Inserted int        `json:"inserted"`
	Updated  int        `json:"updated"`
	Skipped  int        `json:"skipped"`
	Errors   int        `json:"errors"`
	Samples  []RowError `json:"error_samples,omitempty"`
}

// ImportSummary contains the overall import statistics
type ImportSummary struct {
	Inserted int            `json:"inserted"`
	Updated  int            `json:"updated"`
	Skipped  int            `json:"skipped"`
	Errors   int            `json:"errors"`
	Sheets   []SheetSummary `json:"sheets"`
	DryRun   bool           `json:"dry_run"`
}

// MappingConfig is the YAML document that maps spreadsheet headers onto
// asset item fields. Each mapped sheet carries serialized items.
type MappingConfig struct {
	Version       int                    `yaml:"version"`
	DefaultStatus string                 `yaml:"default_status"`
	Sheets        map[string]SheetConfig `yaml:"sheets"`
}

type SheetConfig struct {
	// Columns maps a header cell (case-insensitive) to an item field:
	// model, manufacturer, category, asset_tag, serial_number, status, notes.
	Columns map[string]string `yaml:"columns"`
	// Aliases lists alternate header spellings per header name.
	Aliases map[string][]string `yaml:"aliases"`
}

var itemFields = map[string]bool{
	"model":         true,
	"manufacturer":  true,
	"category":      true,
	"asset_tag":     true,
	"serial_number": true,
	"status":        true,
	"notes":         true,
}

var validStatuses = map[string]bool{
	"EN_STOCK":   true,
	"HS":         true,
	"REPARATION": true,
}

// ImportExcel reads a workbook and upserts asset items keyed by asset_tag,
// creating asset models by name on demand. The whole import runs in one
// transaction; a dry run rolls it back instead of committing.
func ImportExcel(ctx context.Context, db *pgxpool.Pool, r io.Reader, opts ImportOptions) (ImportSummary, error) {
	summary := ImportSummary{
		DryRun: opts.DryRun,
		Sheets: []SheetSummary{},
	}

	if opts.MappingPath == "" {
		opts.MappingPath = "configs/mapping/parc_items.yaml"
	}
	if opts.MaxErrors == 0 {
		opts.MaxErrors = 50
	}

	mapping, err := loadMappingConfig(opts.MappingPath)
	if err != nil {
		return summary, fmt.Errorf("failed to load mapping config: %w", err)
	}

	// xlsx needs an io.ReaderAt, so buffer the upload first
	data, err := io.ReadAll(r)
	if err != nil {
		return summary, fmt.Errorf("failed to read Excel file: %w", err)
	}

	xlFile, err := xlsx.OpenBinary(data)
	if err != nil {
		return summary, fmt.Errorf("failed to open Excel file: %w", err)
	}

	tx, err := db.Begin(ctx)
	if err != nil {
		return summary, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, sheet := range xlFile.Sheets {
		sheetConfig, exists := mapping.Sheets[sheet.Name]
		if !exists {
			continue // unmapped sheets are ignored
		}

		sheetSummary := processSheet(ctx, tx, sheet, sheetConfig, mapping.DefaultStatus)
		summary.Sheets = append(summary.Sheets, sheetSummary)

		summary.Inserted += sheetSummary.Inserted
		summary.Updated += sheetSummary.Updated
		summary.Skipped += sheetSummary.Skipped
		summary.Errors += sheetSummary.Errors

		if summary.Errors > opts.MaxErrors {
			return summary, fmt.Errorf("too many errors (%d), stopping import", summary.Errors)
		}
	}

	if opts.DryRun {
		return summary, nil // deferred rollback discards everything
	}
	if err := tx.Commit(ctx); err != nil {
		return summary, fmt.Errorf("failed to commit import: %w", err)
	}
	return summary, nil
}

func loadMappingConfig(path string) (*MappingConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg MappingConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid mapping YAML: %w", err)
	}
	if len(cfg.Sheets) == 0 {
		return nil, fmt.Errorf("mapping defines no sheets")
	}
	for name, sheet := range cfg.Sheets {
		for _, field := range sheet.Columns {
			if !itemFields[field] {
				return nil, fmt.Errorf("sheet %q maps unknown field %q", name, field)
			}
		}
	}
	if cfg.DefaultStatus == "" {
		cfg.DefaultStatus = "EN_STOCK"
	}
	return &cfg, nil
}

func processSheet(ctx context.Context, tx pgx.Tx, sheet *xlsx.Sheet, config SheetConfig, defaultStatus string) SheetSummary {
	summary := SheetSummary{Name: sheet.Name}

	headerRow, err := sheet.Row(0)
	if err != nil {
		summary.Errors++
		summary.Samples = append(summary.Samples, RowError{
			Sheet:   sheet.Name,
			Row:     1,
			Message: "Failed to read header row: " + err.Error(),
		})
		return summary
	}

	// fieldByCol resolves each spreadsheet column to an item field,
	// honoring header aliases from the mapping
	fieldByCol := map[int]string{}
	for colIdx := 0; ; colIdx++ {
		cell := headerRow.GetCell(colIdx)
		if cell == nil {
			break
		}
		header := strings.TrimSpace(cell.String())
		if header == "" {
			continue
		}
		if field := resolveHeader(header, config); field != "" {
			fieldByCol[colIdx] = field
		}
	}

	if len(fieldByCol) == 0 {
		summary.Errors++
		summary.Samples = append(summary.Samples, RowError{
			Sheet:   sheet.Name,
			Row:     1,
			Message: "no mapped columns found in header row",
		})
		return summary
	}

	for rowIdx := 1; ; rowIdx++ {
		row, err := sheet.Row(rowIdx)
		if err != nil {
			break
		}

		item := map[string]string{}
		for colIdx, field := range fieldByCol {
			cell := row.GetCell(colIdx)
			if cell == nil {
				continue
			}
			if v := strings.TrimSpace(cell.String()); v != "" {
				item[field] = v
			}
		}

		if len(item) == 0 {
			summary.Skipped++
			continue
		}

		if err := upsertItem(ctx, tx, item, defaultStatus, &summary); err != nil {
			summary.Errors++
			summary.Samples = append(summary.Samples, RowError{
				Sheet:   sheet.Name,
				Row:     rowIdx + 1,
				Message: err.Error(),
			})
		}
	}

	return summary
}

func resolveHeader(header string, config SheetConfig) string {
	upper := strings.ToUpper(header)
	for name, field := range config.Columns {
		if strings.ToUpper(name) == upper {
			return field
		}
		for _, alias := range config.Aliases[name] {
			if strings.ToUpper(alias) == upper {
				return field
			}
		}
	}
	return ""
}

// upsertItem writes one spreadsheet row: the asset model is resolved (or
// created) by name, then the item is inserted or updated by asset_tag.
// Items currently on loan are never touched.
func upsertItem(ctx context.Context, tx pgx.Tx, item map[string]string, defaultStatus string, summary *SheetSummary) error {
	tag := item["asset_tag"]
	if tag == "" {
		return fmt.Errorf("missing asset_tag")
	}
	modelName := item["model"]
	if modelName == "" {
		return fmt.Errorf("missing model for asset_tag %s", tag)
	}

	status := item["status"]
	if status == "" {
		status = defaultStatus
	}
	if !validStatuses[status] {
		return fmt.Errorf("invalid status %q for asset_tag %s", status, tag)
	}

	var modelID int64
	err := tx.QueryRow(ctx, `
		INSERT INTO asset_models (name, manufacturer, category)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id`,
		modelName, nullable(item["manufacturer"]), nullable(item["category"])).Scan(&modelID)
	if err != nil {
		return fmt.Errorf("failed to resolve asset model %q: %w", modelName, err)
	}

	inserted, err := insertOrUpdateItem(ctx, tx, modelID, tag, status, item)
	if err != nil {
		return err
	}
	if inserted {
		summary.Inserted++
	} else {
		summary.Updated++
	}
	return nil
}

func insertOrUpdateItem(ctx context.Context, tx pgx.Tx, modelID int64, tag, status string, item map[string]string) (inserted bool, err error) {
	err = tx.QueryRow(ctx, `
		INSERT INTO asset_items (asset_model_id, asset_tag, serial_number, status, notes)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (asset_tag) DO UPDATE SET
			asset_model_id = EXCLUDED.asset_model_id,
			serial_number  = COALESCE(EXCLUDED.serial_number, asset_items.serial_number),
			status         = EXCLUDED.status,
			notes          = COALESCE(EXCLUDED.notes, asset_items.notes),
			updated_at     = now()
		WHERE asset_items.status <> 'PRETE'
		RETURNING (xmax = 0)`,
		modelID, tag, nullable(item["serial_number"]), status, nullable(item["notes"])).Scan(&inserted)
	if err == pgx.ErrNoRows {
		return false, fmt.Errorf("asset_tag %s is currently on loan, not updated", tag)
	}
	if err != nil {
		return false, err
	}
	return inserted, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
