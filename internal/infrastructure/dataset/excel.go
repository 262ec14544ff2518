package dataset

import (
	"context"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/garyjia/fraudguard/internal/application/port"
	"github.com/garyjia/fraudguard/internal/domain/entity"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

// Column headers written on export, in order
var headers = []string{
	"Claim ID",
	"Patient Name",
	"Hospital",
	"Amount",
	"Date",
	"Fraud Status",
	"Fraud Reason",
	"Location",
	"Claim Type",
	"Disease",
	"Treatment",
}

// headerAliases maps normalized header text to the canonical header
var headerAliases = map[string]string{
	"claimid":     "Claim ID",
	"id":          "Claim ID",
	"claimno":     "Claim ID",
	"patientname": "Patient Name",
	"patient":     "Patient Name",
	"hospital":    "Hospital",
	"amount":      "Amount",
	"claimamount": "Amount",
	"date":        "Date",
	"claimdate":   "Date",
	"fraudstatus": "Fraud Status",
	"status":      "Fraud Status",
	"fraudreason": "Fraud Reason",
	"reason":      "Fraud Reason",
	"location":    "Location",
	"region":      "Location",
	"claimtype":   "Claim Type",
	"type":        "Claim Type",
	"disease":     "Disease",
	"treatment":   "Treatment",
}

var dateLayouts = []string{
	dateLayout,
	"2006-01-02 15:04:05",
	"02/01/2006",
	"02-01-2006",
	time.RFC3339,
}

// Excel reads and writes claims as xlsx workbooks
type Excel struct {
	sheet  string
	logger *zap.Logger
}

// NewExcel creates an Excel dataset. sheet names the worksheet used for export and
// preferred for import; import falls back to the first worksheet.
func NewExcel(sheet string, logger *zap.Logger) *Excel {
	if sheet == "" {
		sheet = "Claims"
	}
	return &Excel{
		sheet:  sheet,
		logger: logger,
	}
}

// Load reads claims from the workbook at path. The first row holds the headers;
// columns are matched by name, so order and extra columns do not matter.
func (e *Excel) Load(ctx context.Context, path string) ([]*entity.Claim, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheet := e.pickSheet(f)
	if sheet == "" {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}
	if len(rows) == 0 {
		return []*entity.Claim{}, nil
	}

	columns := indexHeaders(rows[0])
	if _, ok := columns["Claim ID"]; !ok {
		return nil, fmt.Errorf("sheet %s has no Claim ID column", sheet)
	}

	claims := make([]*entity.Claim, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rowNum := i + 2
		cell := func(header string) string {
			idx, ok := columns[header]
			if !ok || idx >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[idx])
		}

		id := cell("Claim ID")
		if id == "" {
			e.logger.Warn("Skipping row without claim ID", zap.Int("row", rowNum))
			continue
		}

		claim, err := parseClaim(id, cell)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", rowNum, err)
		}
		claims = append(claims, claim)
	}

	e.logger.Info("Claims dataset loaded",
		zap.String("path", path),
		zap.String("sheet", sheet),
		zap.Int("claims", len(claims)))

	return claims, nil
}

// Write renders claims as a single-sheet workbook
func (e *Excel) Write(ctx context.Context, claims []*entity.Claim, w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), e.sheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	for col, h := range headers {
		if err := e.setCell(f, col+1, 1, h); err != nil {
			return err
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(headers), 1)
	if err := f.SetCellStyle(e.sheet, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	for i, c := range claims {
		if err := ctx.Err(); err != nil {
			return err
		}

		values := []interface{}{
			c.ID,
			c.PatientName,
			c.Hospital,
			c.Amount,
			c.Date.Format(dateLayout),
			c.FraudStatus,
			c.FraudReason,
			c.Location,
			c.ClaimType,
			c.Disease,
			c.Treatment,
		}
		for col, v := range values {
			if err := e.setCell(f, col+1, i+2, v); err != nil {
				return err
			}
		}
	}

	lastCol, _ := excelize.ColumnNumberToName(len(headers))
	if err := f.SetColWidth(e.sheet, "A", lastCol, 20); err != nil {
		return fmt.Errorf("failed to set column width: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	e.logger.Debug("Claims exported", zap.Int("claims", len(claims)))
	return nil
}

func (e *Excel) setCell(f *excelize.File, col, row int, value interface{}) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	if err := f.SetCellValue(e.sheet, cell, value); err != nil {
		return fmt.Errorf("failed to set %s: %w", cell, err)
	}
	return nil
}

func (e *Excel) pickSheet(f *excelize.File) string {
	sheets := f.GetSheetList()
	for _, s := range sheets {
		if strings.EqualFold(s, e.sheet) {
			return s
		}
	}
	if len(sheets) > 0 {
		return sheets[0]
	}
	return ""
}

func indexHeaders(row []string) map[string]int {
	columns := make(map[string]int, len(row))
	for i, raw := range row {
		key := strings.ToLower(strings.TrimSpace(raw))
		key = strings.NewReplacer(" ", "", "_", "", "-", "", ".", "").Replace(key)
		if canonical, ok := headerAliases[key]; ok {
			if _, seen := columns[canonical]; !seen {
				columns[canonical] = i
			}
		}
	}
	return columns
}

func parseClaim(id string, cell func(string) string) (*entity.Claim, error) {
	amount, err := parseAmount(cell("Amount"))
	if err != nil {
		return nil, err
	}

	date, err := parseDate(cell("Date"))
	if err != nil {
		return nil, err
	}

	status := strings.ToLower(cell("Fraud Status"))
	if status == "" {
		status = entity.FraudStatusPending
	}
	if !entity.IsClaimFraudStatus(status) {
		return nil, fmt.Errorf("unknown fraud status %q", status)
	}

	return &entity.Claim{
		ID:          id,
		PatientName: cell("Patient Name"),
		Hospital:    cell("Hospital"),
		Amount:      amount,
		Date:        date,
		FraudStatus: status,
		FraudReason: cell("Fraud Reason"),
		Location:    cell("Location"),
		ClaimType:   cell("Claim Type"),
		Disease:     cell("Disease"),
		Treatment:   cell("Treatment"),
		Source:      entity.ClaimSourceDataset,
	}, nil
}

// parseAmount accepts plain or grouped rupee amounts such as "₹1,25,000"
func parseAmount(s string) (int64, error) {
	s = strings.NewReplacer("₹", "", ",", "", " ", "").Replace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "Rs."), "Rs")
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	return int64(math.Round(v)), nil
}

// parseDate accepts common text layouts and Excel serial dates
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("missing date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

var _ port.ClaimDataset = (*Excel)(nil)
