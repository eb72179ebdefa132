package transactions

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// csvHeader matches the dashboard import format consumed downstream.
const csvHeader = "id,externalId,pointsEarned,pointsRedeemed,date,accountId,riskLevel,status,createdAt,updatedAt"

// WriteCSV serializes transactions as CSV. Fields containing a comma, quote
// or newline are quoted with embedded quotes doubled; absent optional fields
// serialize as empty.
func WriteCSV(w io.Writer, txs []*Transaction) error {
	if _, err := fmt.Fprintln(w, csvHeader); err != nil {
		return err
	}
	for _, tx := range txs {
		record := []string{
			strconv.FormatInt(tx.ID, 10),
			csvField(tx.ExternalID),
			csvField(formatInt64Ptr(tx.PointsEarned)),
			csvField(formatInt64Ptr(tx.PointsRedeemed)),
			csvField(tx.Date),
			csvField(tx.AccountID),
			csvField(string(tx.RiskLevel)),
			csvField(string(tx.Status)),
			csvField(formatTime(tx.CreatedAt)),
			csvField(formatTime(tx.UpdatedAt)),
		}
		if _, err := fmt.Fprintln(w, strings.Join(record, ",")); err != nil {
			return err
		}
	}
	return nil
}

// csvField quotes s when needed, doubling embedded quotes.
func csvField(s string) string {
	if strings.ContainsAny(s, ",\"\n\r") {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return s
}

func formatInt64Ptr(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
