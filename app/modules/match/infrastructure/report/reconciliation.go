package matchreport

import (
	"bytes"
	"fmt"
	"time"

	matchdomain "github.com/Black-And-White-Club/quickdraw/app/modules/match/domain"
	matchdb "github.com/Black-And-White-Club/quickdraw/app/modules/match/infrastructure/repositories"
	"github.com/xuri/excelize/v2"
)

const (
	SheetMatches     = "Matches"
	SheetPayments    = "Payments"
	SheetOutstanding = "Outstanding"
)

var (
	matchHeader       = []any{"Match", "Status", "Winner", "Rounds", "Collected (SOL)", "Payout", "Token", "Swap Signature", "Transfer Signature", "Swap OK", "Transfer OK", "Settled At"}
	paymentHeader     = []any{"Match", "Player", "Paid (SOL)", "Status", "Refunded", "Eliminated Round", "Response (ms)"}
	outstandingHeader = []any{"Match", "Winner", "Payout", "Token", "Swap Signature"}
)

// BuildReconciliation renders payment summaries as an xlsx workbook with one
// sheet per view: matches, individual payments and transfers still owed.
// Transfer columns come from each row's current prize.
func BuildReconciliation(rows []*matchdb.ReconciliationRow) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetMatches); err != nil {
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}
	for _, name := range []string{SheetPayments, SheetOutstanding} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("failed to create sheet %q: %w", name, err)
		}
	}

	matches := [][]any{matchHeader}
	payments := [][]any{paymentHeader}
	outstanding := [][]any{outstandingHeader}

	for _, row := range rows {
		s := row.Summary
		matches = append(matches, []any{
			s.MatchID,
			string(s.Status),
			s.Winner,
			s.Rounds,
			matchdomain.FormatSOL(s.TotalCollected),
			s.PayoutFormatted,
			s.TokenSymbol,
			s.SwapSignature,
			row.TransferSignature(),
			yesNo(s.SwapSuccess),
			yesNo(row.TransferSuccess()),
			formatTime(s.CreatedAt),
		})
		for _, e := range s.Entries {
			var rt any = ""
			if e.ResponseTimeMs != nil {
				rt = *e.ResponseTimeMs
			}
			var eliminated any = ""
			if e.EliminatedIn > 0 {
				eliminated = e.EliminatedIn
			}
			payments = append(payments, []any{
				s.MatchID,
				e.Address,
				matchdomain.FormatSOL(e.PaidLamports),
				string(e.Status),
				yesNo(e.Refunded),
				eliminated,
				rt,
			})
		}
		if row.Outstanding() {
			outstanding = append(outstanding, []any{s.MatchID, s.Winner, s.PayoutFormatted, s.TokenSymbol, s.SwapSignature})
		}
	}

	for sheet, cells := range map[string][][]any{SheetMatches: matches, SheetPayments: payments, SheetOutstanding: outstanding} {
		if err := writeRows(f, sheet, cells); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for idx, row := range rows {
		axis, err := excelize.CoordinatesToCellName(1, idx+1)
		if err != nil {
			return fmt.Errorf("failed to address row %d: %w", idx+1, err)
		}
		if err := f.SetSheetRow(sheet, axis, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, idx+1, err)
		}
	}
	if err := f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return fmt.Errorf("failed to freeze %s header: %w", sheet, err)
	}
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
